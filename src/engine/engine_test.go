package engine

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/boxshift/backend/src/database"
	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/models"
)

func init() {
	logger.InitLogger("error")
}

// testDB opens a fresh file-backed database. An in-memory DSN would hand each
// pooled connection its own empty database.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	return database.DB
}

func insertTx(t *testing.T, db *sql.DB, companyID int64, date, txType, ticker string, quantity, amount float64) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO transactions (company_id, date, type, ticker, description, quantity, price, amount, currency, processed)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, 'EUR', FALSE)`,
		companyID, date, txType, ticker, ticker, quantity, amount)
	require.NoError(t, err)
}

func getHolding(t *testing.T, e *PositionEngine, companyID int64, ticker string) *models.Holding {
	t.Helper()
	holdings, err := e.Holdings(companyID)
	require.NoError(t, err)
	for i := range holdings {
		if holdings[i].Ticker == ticker {
			return &holdings[i]
		}
	}
	return nil
}

func TestBuyBlendsWeightedAverage(t *testing.T) {
	db := testDB(t)
	e := New(db)

	insertTx(t, db, 1, "2024-01-10", models.TxBuy, "IWDA.AS", 10, -1000)
	insertTx(t, db, 1, "2024-02-10", models.TxBuy, "IWDA.AS", 10, -1200)

	summary, err := e.ProcessCompany(1)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Empty(t, summary.Errors)

	h := getHolding(t, e, 1, "IWDA.AS")
	require.NotNil(t, h)
	assert.InDelta(t, 20, h.Quantity, 1e-9)
	assert.InDelta(t, 110, h.AvgCostPrice, 1e-9)
	assert.InDelta(t, 2200, h.TotalCost, 1e-9)
}

func TestSellRealizesGainAndKeepsAverage(t *testing.T) {
	db := testDB(t)
	e := New(db)

	insertTx(t, db, 1, "2024-01-10", models.TxBuy, "IWDA.AS", 10, -1000)
	insertTx(t, db, 1, "2024-02-10", models.TxBuy, "IWDA.AS", 10, -1200)
	insertTx(t, db, 1, "2024-03-10", models.TxSell, "IWDA.AS", 5, 600)

	summary, err := e.ProcessCompany(1)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.InDelta(t, 50, summary.RealizedGains, 1e-9)

	h := getHolding(t, e, 1, "IWDA.AS")
	require.NotNil(t, h)
	assert.InDelta(t, 15, h.Quantity, 1e-9)
	assert.InDelta(t, 110, h.AvgCostPrice, 1e-9, "sells never move the average cost")
	assert.InDelta(t, 1650, h.TotalCost, 1e-9)

	// The gain is persisted on the sell row itself.
	var gain float64
	err = db.QueryRow("SELECT realized_gain FROM transactions WHERE type = 'sell'").Scan(&gain)
	require.NoError(t, err)
	assert.InDelta(t, 50, gain, 1e-9)
}

func TestFullLiquidationRemovesHolding(t *testing.T) {
	db := testDB(t)
	e := New(db)

	insertTx(t, db, 1, "2024-01-10", models.TxBuy, "ASML.AS", 4, -2000)
	insertTx(t, db, 1, "2024-05-10", models.TxSell, "ASML.AS", 4, 2600)

	summary, err := e.ProcessCompany(1)
	require.NoError(t, err)
	assert.InDelta(t, 600, summary.RealizedGains, 1e-9)
	assert.Nil(t, getHolding(t, e, 1, "ASML.AS"))
}

func TestSellWithoutHoldingIsNoOp(t *testing.T) {
	db := testDB(t)
	e := New(db)

	insertTx(t, db, 1, "2024-01-10", models.TxSell, "GHOST", 3, 300)

	summary, err := e.ProcessCompany(1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Zero(t, summary.RealizedGains)
	assert.Nil(t, getHolding(t, e, 1, "GHOST"))
}

func TestNonTradeTypesDoNotTouchHoldings(t *testing.T) {
	db := testDB(t)
	e := New(db)

	insertTx(t, db, 1, "2024-01-05", models.TxDeposit, "", 0, 10000)
	insertTx(t, db, 1, "2024-02-05", models.TxDividend, "IWDA.AS", 0, 12.34)
	insertTx(t, db, 1, "2024-03-05", models.TxCost, "", 0, -2.50)

	summary, err := e.ProcessCompany(1)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)

	holdings, err := e.Holdings(1)
	require.NoError(t, err)
	assert.Empty(t, holdings)
}

func TestProcessingIsIdempotent(t *testing.T) {
	db := testDB(t)
	e := New(db)

	insertTx(t, db, 1, "2024-01-10", models.TxBuy, "IWDA.AS", 10, -1000)

	_, err := e.ProcessCompany(1)
	require.NoError(t, err)
	summary, err := e.ProcessCompany(1)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed, "second run finds nothing unprocessed")

	h := getHolding(t, e, 1, "IWDA.AS")
	require.NotNil(t, h)
	assert.InDelta(t, 10, h.Quantity, 1e-9)
}

func TestCompaniesAreIsolated(t *testing.T) {
	db := testDB(t)
	e := New(db)

	insertTx(t, db, 1, "2024-01-10", models.TxBuy, "IWDA.AS", 10, -1000)
	insertTx(t, db, 2, "2024-01-10", models.TxBuy, "IWDA.AS", 3, -300)

	_, err := e.ProcessCompany(1)
	require.NoError(t, err)

	assert.NotNil(t, getHolding(t, e, 1, "IWDA.AS"))
	assert.Nil(t, getHolding(t, e, 2, "IWDA.AS"), "company 2 was not processed yet")

	_, err = e.ProcessCompany(2)
	require.NoError(t, err)
	h := getHolding(t, e, 2, "IWDA.AS")
	require.NotNil(t, h)
	assert.InDelta(t, 3, h.Quantity, 1e-9)
}

func TestHoldingsSummaryTotals(t *testing.T) {
	db := testDB(t)
	e := New(db)

	insertTx(t, db, 1, "2024-01-10", models.TxBuy, "IWDA.AS", 10, -1000)
	insertTx(t, db, 1, "2024-01-11", models.TxBuy, "ASML.AS", 2, -1300)

	_, err := e.ProcessCompany(1)
	require.NoError(t, err)

	summary, err := e.HoldingsSummary(1)
	require.NoError(t, err)
	assert.Len(t, summary.Holdings, 2)
	assert.InDelta(t, 2300, summary.TotalPortfolioCost, 1e-9)
}
