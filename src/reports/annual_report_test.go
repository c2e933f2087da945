package reports

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/boxshift/backend/src/database"
	"github.com/username/boxshift/backend/src/engine"
	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/models"
)

func init() {
	logger.InitLogger("error")
}

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

// seedFirstYear books the 2023 ledger of a small BV and folds it into
// holdings: 100k paid in, one ETF position, some dividend and costs.
func seedFirstYear(t *testing.T, db *sql.DB) {
	t.Helper()
	insertTx(t, db, 1, "2023-01-05", models.TxDeposit, "", 0, 100_000)
	insertTx(t, db, 1, "2023-02-01", models.TxBuy, "IWDA.AS", 100, -10_000)
	insertTx(t, db, 1, "2023-06-01", models.TxDividend, "IWDA.AS", 0, 150)
	insertTx(t, db, 1, "2023-07-01", models.TxCost, "", 0, -50)

	_, err := engine.New(db).ProcessCompany(1)
	require.NoError(t, err)
}

func TestGenerateFirstYearReport(t *testing.T) {
	db := testDB(t)
	seedFirstYear(t, db)

	report, filing, err := NewGenerator(db).Generate(1, 2023)
	require.NoError(t, err)

	wv := report.WinstVerlies
	assert.Equal(t, 0.0, wv.GerealiseerdeKoersresultaten)
	assert.Equal(t, 150.0, wv.Dividendinkomsten)
	assert.Equal(t, 50.0, wv.Transactiekosten)
	assert.Equal(t, 100.0, wv.ResultaatVoorBelasting)
	assert.Equal(t, 19.0, wv.VPB)
	assert.Equal(t, 81.0, wv.ResultaatNaBelasting)

	balans := report.Balans
	assert.Equal(t, 10_000.0, balans.Activa.Effectenportefeuille)
	assert.Equal(t, 90_100.0, balans.Activa.LiquideMiddelen)
	assert.Equal(t, 100_100.0, balans.Activa.Totaal)

	assert.Equal(t, 100_000.0, balans.Passiva.GestortKapitaal)
	assert.Equal(t, 0.0, balans.Passiva.WinstreserveVoorgaandeJaren)
	assert.Equal(t, 81.0, balans.Passiva.ResultaatBoekjaar)
	assert.Equal(t, 19.0, balans.Passiva.VPBSchuld)
	assert.Equal(t, balans.Activa.Totaal, balans.Passiva.Totaal, "balance sheet must balance")

	assert.Equal(t, 100.0, filing.TaxableProfit)
	assert.Equal(t, 19.0, filing.VPBAmount)
	assert.Equal(t, "draft", filing.Status)
}

func TestGenerateSecondYearRollsReservesForward(t *testing.T) {
	db := testDB(t)
	seedFirstYear(t, db)

	// 2024: sell half the position at a gain, plus some interest and costs.
	insertTx(t, db, 1, "2024-03-01", models.TxSell, "IWDA.AS", 50, 6_000)
	insertTx(t, db, 1, "2024-06-01", models.TxInterest, "", 0, 25)
	insertTx(t, db, 1, "2024-07-01", models.TxCost, "", 0, -10)
	_, err := engine.New(db).ProcessCompany(1)
	require.NoError(t, err)

	report, filing, err := NewGenerator(db).Generate(1, 2024)
	require.NoError(t, err)

	wv := report.WinstVerlies
	assert.Equal(t, 1_000.0, wv.GerealiseerdeKoersresultaten, "gain = 6000 proceeds - 50x100 cost basis")
	assert.Equal(t, 25.0, wv.RenteInkomsten)
	assert.Equal(t, 1_015.0, wv.ResultaatVoorBelasting)
	assert.Equal(t, 192.85, wv.VPB)
	assert.Equal(t, 822.15, wv.ResultaatNaBelasting)

	balans := report.Balans
	assert.Equal(t, 5_000.0, balans.Activa.Effectenportefeuille)
	assert.Equal(t, 96_115.0, balans.Activa.LiquideMiddelen)

	// 2023 closed at 100 pre-tax, 19 VPB: 81 flows into the reserve and the
	// unpaid VPB accumulates in the liability.
	assert.Equal(t, 81.0, balans.Passiva.WinstreserveVoorgaandeJaren)
	assert.Equal(t, 211.85, balans.Passiva.VPBSchuld)
	assert.Equal(t, balans.Activa.Totaal, balans.Passiva.Totaal)

	assert.Equal(t, 1_015.0, filing.TaxableProfit)
}

func TestRegenerationOverwritesInPlace(t *testing.T) {
	db := testDB(t)
	seedFirstYear(t, db)
	g := NewGenerator(db)

	first, _, err := g.Generate(1, 2023)
	require.NoError(t, err)
	second, _, err := g.Generate(1, 2023)
	require.NoError(t, err)

	assert.Equal(t, first.WinstVerlies, second.WinstVerlies)
	assert.Equal(t, first.Balans, second.Balans)

	var count int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM annual_reports WHERE company_id = 1 AND year = 2023").Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM vpb_filings WHERE company_id = 1 AND year = 2023").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestGetReportRoundTrip(t *testing.T) {
	db := testDB(t)
	seedFirstYear(t, db)
	g := NewGenerator(db)

	generated, _, err := g.Generate(1, 2023)
	require.NoError(t, err)

	loaded, err := g.GetReport(1, 2023)
	require.NoError(t, err)
	assert.Equal(t, generated.Balans, loaded.Balans)
	assert.Equal(t, generated.WinstVerlies, loaded.WinstVerlies)

	filing, err := g.GetFiling(1, 2023)
	require.NoError(t, err)
	assert.Equal(t, 19.0, filing.VPBAmount)
}

func TestGetReportNotFound(t *testing.T) {
	db := testDB(t)
	g := NewGenerator(db)

	_, err := g.GetReport(1, 2023)
	assert.ErrorIs(t, err, ErrReportNotFound)

	_, err = g.GetFiling(1, 2023)
	assert.ErrorIs(t, err, ErrFilingNotFound)
}

func TestAangifteDocument(t *testing.T) {
	db := testDB(t)
	seedFirstYear(t, db)
	_, err := db.Exec(
		"INSERT INTO companies (id, user_id, name, kvk_number) VALUES (1, 1, 'Pieters Beleggingen B.V.', '87654321')")
	require.NoError(t, err)

	g := NewGenerator(db)
	_, _, err = g.Generate(1, 2023)
	require.NoError(t, err)

	aangifte, err := g.Aangifte(1, 2023)
	require.NoError(t, err)

	assert.Equal(t, "Pieters Beleggingen B.V.", aangifte.BVNaam)
	assert.Equal(t, "87654321", aangifte.KvKNummer)
	assert.Equal(t, "01-01-2023", aangifte.BoekjaarStart)
	assert.Equal(t, "31-12-2023", aangifte.BoekjaarEind)
	assert.Equal(t, "01-06-2024", aangifte.Deadline)

	assert.Equal(t, 100.0, aangifte.FiscaleWinst.BelastbareWinst)
	assert.Equal(t, 50.0, aangifte.FiscaleWinst.AftrekbareKosten)
	assert.Equal(t, 19.0, aangifte.VPB.TotalVPB)
	assert.InDelta(t, 19.0, aangifte.VPB.EffectiveRate, 1e-9)

	require.Len(t, aangifte.Effecten, 1)
	assert.Equal(t, "IWDA.AS", aangifte.Effecten[0].Ticker)
	assert.Equal(t, 100.0, aangifte.Effecten[0].Aantal)
	assert.Equal(t, 100.0, aangifte.Effecten[0].KostprijsPerStuk)
	assert.Equal(t, 10_000.0, aangifte.Effecten[0].TotaleKostprijs)

	assert.Equal(t, 10_000.0, aangifte.Transacties.Aankopen)
	assert.Equal(t, 100_000.0, aangifte.Transacties.Stortingen)
	assert.Equal(t, 150.0, aangifte.Transacties.Dividend)
	assert.Equal(t, 50.0, aangifte.Transacties.Kosten)
}

func TestAangifteWithoutCompanyKvK(t *testing.T) {
	db := testDB(t)
	seedFirstYear(t, db)
	_, err := db.Exec(
		"INSERT INTO companies (id, user_id, name) VALUES (1, 1, 'Naamloos B.V.')")
	require.NoError(t, err)

	g := NewGenerator(db)
	_, _, err = g.Generate(1, 2023)
	require.NoError(t, err)

	aangifte, err := g.Aangifte(1, 2023)
	require.NoError(t, err)
	assert.Equal(t, "Nog invullen", aangifte.KvKNummer)
}
