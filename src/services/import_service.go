package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/boxshift/backend/src/classifier"
	"github.com/username/boxshift/backend/src/database"
	"github.com/username/boxshift/backend/src/engine"
	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/models"
	"github.com/username/boxshift/backend/src/parsers"
	"github.com/username/boxshift/backend/src/utils"
)

const (
	ckDashboardSummary = "agg_dashboard_summary_company_%d"
	ckHoldingsSummary  = "agg_holdings_summary_company_%d"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

// ImportResult summarizes one CSV import: rows persisted, rows the parser
// dropped, and the position engine run that followed.
type ImportResult struct {
	Imported    int             `json:"imported"`
	Duplicates  int             `json:"duplicates"`
	RowsSkipped int             `json:"rows_skipped"`
	Engine      *engine.Summary `json:"engine"`
}

// DashboardSummary is the aggregate view the dashboard renders for one BV.
type DashboardSummary struct {
	TotalPortfolioCost float64 `json:"total_portfolio_cost"`
	CashBalance        float64 `json:"cash_balance"`
	RealizedGainsYTD   float64 `json:"realized_gains_ytd"`
	HoldingCount       int     `json:"holding_count"`
	TransactionCount   int     `json:"transaction_count"`
}

// ImportService ingests a broker export for a company: parse, classify,
// persist, then fold the new transactions into holdings. It also serves the
// cached aggregates derived from that data.
type ImportService interface {
	ImportCSV(ctx context.Context, file io.Reader, source string, companyID int64) (*ImportResult, error)
	GetHoldingsSummary(companyID int64) (*models.HoldingsSummary, error)
	GetDashboardSummary(companyID int64) (*DashboardSummary, error)
}

type importServiceImpl struct {
	classifier     classifier.Classifier
	positionEngine *engine.PositionEngine
	reportCache    *cache.Cache
}

func NewImportService(c classifier.Classifier, e *engine.PositionEngine, reportCache *cache.Cache) ImportService {
	return &importServiceImpl{
		classifier:     c,
		positionEngine: e,
		reportCache:    reportCache,
	}
}

func (s *importServiceImpl) ImportCSV(ctx context.Context, file io.Reader, source string, companyID int64) (*ImportResult, error) {
	overallStartTime := time.Now()
	logger.L.Info("ImportCSV START", "companyID", companyID, "source", source)

	parser, err := parsers.GetParser(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: reading upload: %v", ErrParsingFailed, err)
	}
	// Exports saved on Windows often carry a UTF-8 byte-order mark.
	text := strings.TrimPrefix(string(content), "\ufeff")

	batch, err := parser.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	batch.Drafts = s.classifier.Classify(ctx, batch.Drafts)

	result := &ImportResult{RowsSkipped: batch.RowsSkipped}
	if len(batch.Drafts) > 0 {
		seenRefs, err := existingBrokerRefs(companyID)
		if err != nil {
			return nil, err
		}

		dbTx, err := database.DB.Begin()
		if err != nil {
			return nil, fmt.Errorf("error beginning database transaction: %w", err)
		}
		defer dbTx.Rollback()

		stmt, err := dbTx.Prepare(`
			INSERT INTO transactions (company_id, date, type, ticker, description, quantity, price, amount, currency, broker_ref, processed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE)`)
		if err != nil {
			return nil, fmt.Errorf("error preparing insert statement: %w", err)
		}
		defer stmt.Close()

		for _, draft := range batch.Drafts {
			// Re-importing the same export must not double-book trades.
			if draft.BrokerRef != "" && seenRefs[draft.BrokerRef] {
				result.Duplicates++
				continue
			}
			if draft.BrokerRef != "" {
				seenRefs[draft.BrokerRef] = true
			}
			_, err := stmt.Exec(companyID, draft.Date.Format("2006-01-02"), draft.Type,
				draft.Ticker, draft.Description, draft.Quantity, draft.Price,
				draft.Amount, draft.Currency, draft.BrokerRef)
			if err != nil {
				return nil, fmt.Errorf("error inserting transaction (ref: %s): %w", draft.BrokerRef, err)
			}
			result.Imported++
		}

		if err := dbTx.Commit(); err != nil {
			return nil, fmt.Errorf("error committing transactions: %w", err)
		}
	}

	summary, err := s.positionEngine.ProcessCompany(companyID)
	if err != nil {
		return nil, fmt.Errorf("error processing positions: %w", err)
	}
	result.Engine = summary

	s.invalidateCompanyCache(companyID)

	logger.L.Info("ImportCSV END", "companyID", companyID,
		"imported", result.Imported, "duplicates", result.Duplicates,
		"rowsSkipped", result.RowsSkipped, "duration", time.Since(overallStartTime))
	return result, nil
}

// existingBrokerRefs loads the broker references already imported for a
// company, so a re-uploaded export only adds the new rows.
func existingBrokerRefs(companyID int64) (map[string]bool, error) {
	rows, err := database.DB.Query(`
		SELECT broker_ref FROM transactions
		WHERE company_id = ? AND broker_ref IS NOT NULL AND broker_ref != ''`, companyID)
	if err != nil {
		return nil, fmt.Errorf("error querying existing broker refs: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]bool)
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("error scanning broker ref: %w", err)
		}
		refs[ref] = true
	}
	return refs, rows.Err()
}

func (s *importServiceImpl) invalidateCompanyCache(companyID int64) {
	s.reportCache.Delete(fmt.Sprintf(ckDashboardSummary, companyID))
	s.reportCache.Delete(fmt.Sprintf(ckHoldingsSummary, companyID))
}

func (s *importServiceImpl) GetHoldingsSummary(companyID int64) (*models.HoldingsSummary, error) {
	cacheKey := fmt.Sprintf(ckHoldingsSummary, companyID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		if summary, ok := cached.(*models.HoldingsSummary); ok {
			logger.L.Debug("Cache hit for holdings summary", "companyID", companyID)
			return summary, nil
		}
	}

	summary, err := s.positionEngine.HoldingsSummary(companyID)
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(cacheKey, summary, cache.DefaultExpiration)
	return summary, nil
}

func (s *importServiceImpl) GetDashboardSummary(companyID int64) (*DashboardSummary, error) {
	cacheKey := fmt.Sprintf(ckDashboardSummary, companyID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		if summary, ok := cached.(*DashboardSummary); ok {
			logger.L.Debug("Cache hit for dashboard summary", "companyID", companyID)
			return summary, nil
		}
	}

	holdings, err := s.positionEngine.HoldingsSummary(companyID)
	if err != nil {
		return nil, err
	}

	summary := &DashboardSummary{
		TotalPortfolioCost: holdings.TotalPortfolioCost,
		HoldingCount:       len(holdings.Holdings),
	}

	err = database.DB.QueryRow(`
		SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM transactions WHERE company_id = ?`, companyID).
		Scan(&summary.CashBalance, &summary.TransactionCount)
	if err != nil {
		return nil, fmt.Errorf("error querying cash balance: %w", err)
	}

	err = database.DB.QueryRow(`
		SELECT COALESCE(SUM(realized_gain), 0)
		FROM transactions
		WHERE company_id = ? AND type = 'sell'
		  AND CAST(strftime('%Y', date) AS INTEGER) = ?`,
		companyID, time.Now().Year()).Scan(&summary.RealizedGainsYTD)
	if err != nil {
		return nil, fmt.Errorf("error querying realized gains: %w", err)
	}

	summary.CashBalance = utils.RoundCents(summary.CashBalance)
	summary.RealizedGainsYTD = utils.RoundCents(summary.RealizedGainsYTD)

	s.reportCache.Set(cacheKey, summary, cache.DefaultExpiration)
	return summary, nil
}
