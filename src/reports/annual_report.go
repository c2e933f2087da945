package reports

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/models"
	"github.com/username/boxshift/backend/src/utils"
)

var ErrReportNotFound = errors.New("annual report not found")
var ErrFilingNotFound = errors.New("vpb filing not found")

// Generator builds the jaarrekening (balance sheet + P&L) and the VPB filing
// for a fiscal year. Generation is a pure function of the transaction ledger
// and current holdings; regenerating for the same year overwrites in place.
type Generator struct {
	db *sql.DB
}

func NewGenerator(db *sql.DB) *Generator {
	return &Generator{db: db}
}

// Generate computes and upserts the AnnualReport and VPBFiling for
// (company, year). Any failure aborts the whole generation; no partial
// report is persisted.
func (g *Generator) Generate(companyID int64, year int) (*models.AnnualReport, *models.VPBFiling, error) {
	wv, err := g.winstVerliesForYear(companyID, year)
	if err != nil {
		return nil, nil, err
	}

	vpbAmount := CalculateVPB(wv.ResultaatVoorBelasting)
	wv.VPB = vpbAmount
	wv.ResultaatNaBelasting = utils.RoundCents(wv.ResultaatVoorBelasting - vpbAmount)

	balans, err := g.calculateBalans(companyID, year, wv)
	if err != nil {
		return nil, nil, err
	}

	report := &models.AnnualReport{
		CompanyID:    companyID,
		Year:         year,
		Balans:       *balans,
		WinstVerlies: *wv,
		Status:       "draft",
		GeneratedAt:  time.Now().UTC(),
	}
	filing := &models.VPBFiling{
		CompanyID:     companyID,
		Year:          year,
		TaxableProfit: wv.ResultaatVoorBelasting,
		VPBAmount:     vpbAmount,
		Status:        "draft",
	}

	if err := g.upsert(report, filing); err != nil {
		return nil, nil, err
	}
	return report, filing, nil
}

// winstVerliesForYear aggregates the P&L components of one fiscal year.
// Realized gains come from the per-sell figures the position engine recorded,
// not from raw sell proceeds.
func (g *Generator) winstVerliesForYear(companyID int64, year int) (*models.WinstVerlies, error) {
	rows, err := g.db.Query(`
		SELECT type, amount, realized_gain
		FROM transactions
		WHERE company_id = ? AND CAST(strftime('%Y', date) AS INTEGER) = ?`,
		companyID, year)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions for year %d: %w", year, err)
	}
	defer rows.Close()

	var gains, dividends, interest, transactionCosts, otherCosts float64
	for rows.Next() {
		var txType string
		var amount, realizedGain float64
		if err := rows.Scan(&txType, &amount, &realizedGain); err != nil {
			return nil, fmt.Errorf("error scanning transaction row: %w", err)
		}
		switch txType {
		case models.TxSell:
			gains += realizedGain
		case models.TxDividend:
			dividends += math.Abs(amount)
		case models.TxInterest:
			interest += math.Abs(amount)
		case models.TxCost:
			transactionCosts += math.Abs(amount)
			// buy, deposit, withdrawal are capital movements, not P&L
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	resultaat := gains + dividends + interest - transactionCosts - otherCosts
	return &models.WinstVerlies{
		GerealiseerdeKoersresultaten: utils.RoundCents(gains),
		Dividendinkomsten:            utils.RoundCents(dividends),
		RenteInkomsten:               utils.RoundCents(interest),
		Transactiekosten:             utils.RoundCents(transactionCosts),
		OverigeKosten:                utils.RoundCents(otherCosts),
		ResultaatVoorBelasting:       utils.RoundCents(resultaat),
	}, nil
}

// calculateBalans builds the balance sheet as of 31-12 of the target year.
//
// The prior-years reserve is rolled forward from each earlier year's
// after-tax result, and tax payable carries the cumulative VPB (the ledger
// has no tax payment transactions, so the liability accrues). Per-component
// rounding can leave sub-cent residue; that residue is carried in the
// reserve so both sides total equal to the cent. A gap above half a cent
// means ledger and holdings disagree and is logged as a data error.
func (g *Generator) calculateBalans(companyID int64, year int, wv *models.WinstVerlies) (*models.Balans, error) {
	effecten, err := g.holdingsCost(companyID)
	if err != nil {
		return nil, err
	}

	cash, gestort, err := g.cashAndCapital(companyID, year)
	if err != nil {
		return nil, err
	}

	firstYear, hasTxs, err := g.firstTransactionYear(companyID)
	if err != nil {
		return nil, err
	}

	var reserveRolled, cumulativeVPB float64
	if hasTxs {
		for y := firstYear; y < year; y++ {
			priorWV, err := g.winstVerliesForYear(companyID, y)
			if err != nil {
				return nil, err
			}
			priorVPB := CalculateVPB(priorWV.ResultaatVoorBelasting)
			reserveRolled += priorWV.ResultaatVoorBelasting - priorVPB
			cumulativeVPB += priorVPB
		}
	}
	cumulativeVPB += wv.VPB

	activaTotaal := utils.RoundCents(effecten + cash)
	gestortKapitaal := utils.RoundCents(gestort)
	resultaatBoekjaar := wv.ResultaatNaBelasting
	vpbSchuld := utils.RoundCents(cumulativeVPB)

	reserve := utils.RoundCents(activaTotaal - gestortKapitaal - resultaatBoekjaar - vpbSchuld)
	if math.Abs(reserve-utils.RoundCents(reserveRolled)) > 0.005 {
		logger.L.Error("Balance sheet does not reconcile with rolled-forward reserves",
			"companyID", companyID, "year", year,
			"rolledForward", utils.RoundCents(reserveRolled), "required", reserve)
	}

	return &models.Balans{
		Activa: models.BalansActiva{
			Effectenportefeuille: utils.RoundCents(effecten),
			LiquideMiddelen:      utils.RoundCents(cash),
			Totaal:               activaTotaal,
		},
		Passiva: models.BalansPassiva{
			GestortKapitaal:             gestortKapitaal,
			WinstreserveVoorgaandeJaren: reserve,
			ResultaatBoekjaar:           resultaatBoekjaar,
			VPBSchuld:                   vpbSchuld,
			Totaal:                      utils.RoundCents(gestortKapitaal + reserve + resultaatBoekjaar + vpbSchuld),
		},
	}, nil
}

func (g *Generator) holdingsCost(companyID int64) (float64, error) {
	var total sql.NullFloat64
	err := g.db.QueryRow(
		"SELECT SUM(total_cost) FROM holdings WHERE company_id = ?", companyID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("error summing holdings cost: %w", err)
	}
	return total.Float64, nil
}

// cashAndCapital accumulates the cash balance and paid-in capital over all
// transactions up to and including the target year.
func (g *Generator) cashAndCapital(companyID int64, year int) (cash, capital float64, err error) {
	rows, err := g.db.Query(`
		SELECT type, amount
		FROM transactions
		WHERE company_id = ? AND CAST(strftime('%Y', date) AS INTEGER) <= ?`,
		companyID, year)
	if err != nil {
		return 0, 0, fmt.Errorf("error querying transactions up to year %d: %w", year, err)
	}
	defer rows.Close()

	for rows.Next() {
		var txType string
		var amount float64
		if err := rows.Scan(&txType, &amount); err != nil {
			return 0, 0, fmt.Errorf("error scanning transaction row: %w", err)
		}
		abs := math.Abs(amount)
		switch txType {
		case models.TxDeposit:
			cash += abs
			capital += abs
		case models.TxWithdrawal:
			cash -= abs
			capital -= abs
		case models.TxBuy, models.TxCost:
			cash -= abs
		case models.TxSell, models.TxDividend, models.TxInterest:
			cash += abs
		}
	}
	return cash, capital, rows.Err()
}

func (g *Generator) firstTransactionYear(companyID int64) (int, bool, error) {
	var minYear sql.NullInt64
	err := g.db.QueryRow(`
		SELECT MIN(CAST(strftime('%Y', date) AS INTEGER))
		FROM transactions WHERE company_id = ?`, companyID).Scan(&minYear)
	if err != nil {
		return 0, false, fmt.Errorf("error querying first transaction year: %w", err)
	}
	return int(minYear.Int64), minYear.Valid, nil
}

// upsert writes report and filing in one database transaction, overwriting
// any existing snapshot for (company, year).
func (g *Generator) upsert(report *models.AnnualReport, filing *models.VPBFiling) error {
	balansJSON, err := json.Marshal(report.Balans)
	if err != nil {
		return fmt.Errorf("error marshaling balans: %w", err)
	}
	wvJSON, err := json.Marshal(report.WinstVerlies)
	if err != nil {
		return fmt.Errorf("error marshaling winst & verlies: %w", err)
	}

	dbTx, err := g.db.Begin()
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	_, err = dbTx.Exec(`
		INSERT INTO annual_reports (company_id, year, balans, winst_verlies, status, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, year) DO UPDATE SET
			balans = excluded.balans,
			winst_verlies = excluded.winst_verlies,
			status = excluded.status,
			generated_at = excluded.generated_at`,
		report.CompanyID, report.Year, string(balansJSON), string(wvJSON),
		report.Status, report.GeneratedAt)
	if err != nil {
		return fmt.Errorf("error upserting annual report: %w", err)
	}

	_, err = dbTx.Exec(`
		INSERT INTO vpb_filings (company_id, year, taxable_profit, vpb_amount, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(company_id, year) DO UPDATE SET
			taxable_profit = excluded.taxable_profit,
			vpb_amount = excluded.vpb_amount,
			status = excluded.status`,
		filing.CompanyID, filing.Year, filing.TaxableProfit, filing.VPBAmount, filing.Status)
	if err != nil {
		return fmt.Errorf("error upserting vpb filing: %w", err)
	}

	return dbTx.Commit()
}

// GetReport loads the stored jaarrekening for (company, year).
func (g *Generator) GetReport(companyID int64, year int) (*models.AnnualReport, error) {
	var report models.AnnualReport
	var balansJSON, wvJSON string
	err := g.db.QueryRow(`
		SELECT id, company_id, year, balans, winst_verlies, status, generated_at
		FROM annual_reports WHERE company_id = ? AND year = ?`,
		companyID, year).Scan(&report.ID, &report.CompanyID, &report.Year,
		&balansJSON, &wvJSON, &report.Status, &report.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying annual report: %w", err)
	}
	if err := json.Unmarshal([]byte(balansJSON), &report.Balans); err != nil {
		return nil, fmt.Errorf("error unmarshaling balans: %w", err)
	}
	if err := json.Unmarshal([]byte(wvJSON), &report.WinstVerlies); err != nil {
		return nil, fmt.Errorf("error unmarshaling winst & verlies: %w", err)
	}
	return &report, nil
}

// GetFiling loads the stored VPB filing for (company, year).
func (g *Generator) GetFiling(companyID int64, year int) (*models.VPBFiling, error) {
	var filing models.VPBFiling
	err := g.db.QueryRow(`
		SELECT id, company_id, year, taxable_profit, vpb_amount, status
		FROM vpb_filings WHERE company_id = ? AND year = ?`,
		companyID, year).Scan(&filing.ID, &filing.CompanyID, &filing.Year,
		&filing.TaxableProfit, &filing.VPBAmount, &filing.Status)
	if err == sql.ErrNoRows {
		return nil, ErrFilingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying vpb filing: %w", err)
	}
	return &filing, nil
}
