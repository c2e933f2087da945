package engine

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/models"
	"github.com/username/boxshift/backend/src/utils"
)

// Epsilon below which a holding counts as fully sold and is removed.
const positionEpsilon = 1e-3

// TxError is a per-transaction processing failure. The batch continues past
// it; the failing transaction stays unprocessed for the next run.
type TxError struct {
	TransactionID int64  `json:"transaction_id"`
	Message       string `json:"message"`
}

// Summary is the result of one processing run.
type Summary struct {
	Processed     int       `json:"processed"`
	RealizedGains float64   `json:"realized_gains"`
	Errors        []TxError `json:"errors"`
}

// PositionEngine replays unprocessed transactions chronologically per company,
// maintaining one holding per ticker with a weighted-average cost price and
// recording the realized gain of every sell on the transaction row itself.
type PositionEngine struct {
	db    *sql.DB
	locks *companyLocks
}

func New(db *sql.DB) *PositionEngine {
	return &PositionEngine{db: db, locks: newCompanyLocks()}
}

// ProcessCompany folds all unprocessed transactions of a company into its
// holdings. At most one run per company executes at a time.
func (e *PositionEngine) ProcessCompany(companyID int64) (*Summary, error) {
	lock := e.locks.get(companyID)
	lock.Lock()
	defer lock.Unlock()

	dbTx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	rows, err := dbTx.Query(`
		SELECT id, type, ticker, description, quantity, amount
		FROM transactions
		WHERE company_id = ? AND processed = FALSE
		ORDER BY date, id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("error querying unprocessed transactions: %w", err)
	}

	type pendingTx struct {
		id          int64
		txType      string
		ticker      string
		description string
		quantity    float64
		amount      float64
	}
	var pending []pendingTx
	for rows.Next() {
		var t pendingTx
		var ticker, description sql.NullString
		var quantity sql.NullFloat64
		if err := rows.Scan(&t.id, &t.txType, &ticker, &description, &quantity, &t.amount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning transaction row: %w", err)
		}
		t.ticker = ticker.String
		t.description = description.String
		t.quantity = quantity.Float64
		pending = append(pending, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	summary := &Summary{}
	for _, t := range pending {
		var gain float64
		var procErr error

		switch t.txType {
		case models.TxBuy:
			procErr = e.processBuy(dbTx, companyID, t.ticker, t.description, t.quantity, t.amount)
		case models.TxSell:
			gain, procErr = e.processSell(dbTx, companyID, t.ticker, t.quantity, t.amount)
		default:
			// dividend, interest, cost, deposit, withdrawal don't affect holdings
		}

		if procErr != nil {
			summary.Errors = append(summary.Errors, TxError{TransactionID: t.id, Message: procErr.Error()})
			continue
		}

		if _, err := dbTx.Exec(
			"UPDATE transactions SET processed = TRUE, realized_gain = ? WHERE id = ?",
			gain, t.id); err != nil {
			summary.Errors = append(summary.Errors, TxError{TransactionID: t.id, Message: err.Error()})
			continue
		}

		summary.Processed++
		summary.RealizedGains += gain
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing position updates: %w", err)
	}

	if len(summary.Errors) > 0 {
		logger.L.Warn("Position processing finished with row errors",
			"companyID", companyID, "processed", summary.Processed, "errors", len(summary.Errors))
	}
	summary.RealizedGains = utils.RoundCents(summary.RealizedGains)
	return summary, nil
}

// processBuy creates or extends a holding, blending the buy into the
// weighted-average cost price. Rows without a ticker or quantity are no-ops.
func (e *PositionEngine) processBuy(dbTx *sql.Tx, companyID int64, ticker, description string, quantity, amount float64) error {
	if ticker == "" || quantity <= 0 {
		return nil
	}

	buyCost := math.Abs(amount)

	var id int64
	var oldQty, oldAvg float64
	err := dbTx.QueryRow(
		"SELECT id, quantity, avg_cost_price FROM holdings WHERE company_id = ? AND ticker = ?",
		companyID, ticker).Scan(&id, &oldQty, &oldAvg)
	switch {
	case err == sql.ErrNoRows:
		avgPrice := buyCost / quantity
		_, err := dbTx.Exec(`
			INSERT INTO holdings (company_id, ticker, name, quantity, avg_cost_price, total_cost)
			VALUES (?, ?, ?, ?, ?, ?)`,
			companyID, ticker, description, quantity, avgPrice, buyCost)
		if err != nil {
			return fmt.Errorf("inserting holding %s: %w", ticker, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("querying holding %s: %w", ticker, err)
	}

	newQty := oldQty + quantity
	newAvg := (oldQty*oldAvg + buyCost) / newQty
	_, err = dbTx.Exec(
		"UPDATE holdings SET quantity = ?, avg_cost_price = ?, total_cost = ? WHERE id = ?",
		newQty, newAvg, newQty*newAvg, id)
	if err != nil {
		return fmt.Errorf("updating holding %s: %w", ticker, err)
	}
	return nil
}

// processSell reduces a holding and returns the realized gain: proceeds minus
// the cost basis of the units sold. The average cost price is unchanged by a
// sell. Selling without a matching holding is a no-op with zero gain.
func (e *PositionEngine) processSell(dbTx *sql.Tx, companyID int64, ticker string, quantity, amount float64) (float64, error) {
	if ticker == "" || quantity <= 0 {
		return 0, nil
	}

	var id int64
	var oldQty, avgCost float64
	err := dbTx.QueryRow(
		"SELECT id, quantity, avg_cost_price FROM holdings WHERE company_id = ? AND ticker = ?",
		companyID, ticker).Scan(&id, &oldQty, &avgCost)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying holding %s: %w", ticker, err)
	}

	proceeds := math.Abs(amount)
	costBasis := quantity * avgCost
	realizedGain := proceeds - costBasis

	newQty := oldQty - quantity
	if newQty <= positionEpsilon {
		if _, err := dbTx.Exec("DELETE FROM holdings WHERE id = ?", id); err != nil {
			return 0, fmt.Errorf("deleting holding %s: %w", ticker, err)
		}
		return realizedGain, nil
	}

	_, err = dbTx.Exec(
		"UPDATE holdings SET quantity = ?, total_cost = ? WHERE id = ?",
		newQty, newQty*avgCost, id)
	if err != nil {
		return 0, fmt.Errorf("updating holding %s: %w", ticker, err)
	}
	return realizedGain, nil
}

// Holdings returns the current positions for a company, ordered by ticker.
func (e *PositionEngine) Holdings(companyID int64) ([]models.Holding, error) {
	rows, err := e.db.Query(`
		SELECT id, company_id, ticker, name, quantity, avg_cost_price, total_cost
		FROM holdings WHERE company_id = ? ORDER BY ticker`, companyID)
	if err != nil {
		return nil, fmt.Errorf("error querying holdings: %w", err)
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.ID, &h.CompanyID, &h.Ticker, &h.Name, &h.Quantity, &h.AvgCostPrice, &h.TotalCost); err != nil {
			return nil, fmt.Errorf("error scanning holding row: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// HoldingsSummary returns the portfolio with per-position figures rounded for
// display and the total cost of all positions.
func (e *PositionEngine) HoldingsSummary(companyID int64) (*models.HoldingsSummary, error) {
	holdings, err := e.Holdings(companyID)
	if err != nil {
		return nil, err
	}
	summary := &models.HoldingsSummary{Holdings: holdings}
	for i := range summary.Holdings {
		summary.TotalPortfolioCost += summary.Holdings[i].TotalCost
		summary.Holdings[i].AvgCostPrice = utils.RoundCents(summary.Holdings[i].AvgCostPrice)
		summary.Holdings[i].TotalCost = utils.RoundCents(summary.Holdings[i].TotalCost)
	}
	summary.TotalPortfolioCost = utils.RoundCents(summary.TotalPortfolioCost)
	return summary, nil
}
