package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/boxshift/backend/src/classifier"
	"github.com/username/boxshift/backend/src/database"
	"github.com/username/boxshift/backend/src/engine"
	"github.com/username/boxshift/backend/src/logger"
)

func init() {
	logger.InitLogger("error")
}

func newTestImportService(t *testing.T) ImportService {
	t.Helper()
	database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	reportCache := cache.New(DefaultCacheExpiration, CacheCleanupInterval)
	return NewImportService(&classifier.RuleClassifier{}, engine.New(database.DB), reportCache)
}

const degiroExport = "Datum,Tijd,Product,ISIN,Beurs,Aantal,Koers,Totaal,Transactiekosten en/of,Order Id,Omschrijving\n" +
	"15-03-2024,09:15,ISHARES MSCI WOR A,IE00B4L5Y983,EAM,10,\"87,50\",\"-875,00\",\"-2,00\",ord-1,Koop 10\n" +
	"20-06-2024,14:30,ISHARES MSCI WOR A,IE00B4L5Y983,EAM,-4,\"95,00\",\"380,00\",\"-2,00\",ord-2,Verkoop 4\n" +
	"bad-date,10:00,ISHARES MSCI WOR A,IE00B4L5Y983,EAM,1,\"90,00\",\"-90,00\",,ord-3,Koop\n"

func TestImportCSVEndToEnd(t *testing.T) {
	svc := newTestImportService(t)

	result, err := svc.ImportCSV(context.Background(), strings.NewReader(degiroExport), "degiro", 1)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.RowsSkipped)
	require.NotNil(t, result.Engine)
	assert.Equal(t, 2, result.Engine.Processed)
	assert.Empty(t, result.Engine.Errors)
	// Sold 4 of 10 units bought at 87.50: 380 - 4*87.50 = 30.
	assert.InDelta(t, 30.0, result.Engine.RealizedGains, 1e-9)

	var count int
	require.NoError(t, database.DB.QueryRow(
		"SELECT COUNT(*) FROM transactions WHERE company_id = 1 AND processed = TRUE").Scan(&count))
	assert.Equal(t, 2, count)

	summary, err := svc.GetHoldingsSummary(1)
	require.NoError(t, err)
	require.Len(t, summary.Holdings, 1)
	assert.Equal(t, "IWDA.AS", summary.Holdings[0].Ticker)
	assert.InDelta(t, 6, summary.Holdings[0].Quantity, 1e-9)
	assert.InDelta(t, 87.50, summary.Holdings[0].AvgCostPrice, 1e-9)
}

func TestReimportSkipsKnownBrokerRefs(t *testing.T) {
	svc := newTestImportService(t)

	first, err := svc.ImportCSV(context.Background(), strings.NewReader(degiroExport), "degiro", 1)
	require.NoError(t, err)
	require.Equal(t, 2, first.Imported)

	second, err := svc.ImportCSV(context.Background(), strings.NewReader(degiroExport), "degiro", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 2, second.Duplicates)

	var count int
	require.NoError(t, database.DB.QueryRow(
		"SELECT COUNT(*) FROM transactions WHERE company_id = 1").Scan(&count))
	assert.Equal(t, 2, count, "re-import must not double-book trades")
}

func TestImportCSVStripsByteOrderMark(t *testing.T) {
	svc := newTestImportService(t)

	result, err := svc.ImportCSV(context.Background(), strings.NewReader("\ufeff"+degiroExport), "degiro", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
}

func TestImportCSVUnknownSource(t *testing.T) {
	svc := newTestImportService(t)

	_, err := svc.ImportCSV(context.Background(), strings.NewReader(degiroExport), "robinhood", 1)
	assert.ErrorIs(t, err, ErrParsingFailed)
}

func TestImportCSVStoresISODates(t *testing.T) {
	svc := newTestImportService(t)

	_, err := svc.ImportCSV(context.Background(), strings.NewReader(degiroExport), "degiro", 1)
	require.NoError(t, err)

	var dateStr string
	require.NoError(t, database.DB.QueryRow(
		"SELECT date FROM transactions WHERE broker_ref = 'ord-1'").Scan(&dateStr))
	parsed, err := time.Parse("2006-01-02", dateStr)
	require.NoError(t, err)
	assert.Equal(t, 2024, parsed.Year())
	assert.Equal(t, time.March, parsed.Month())
}

func TestDashboardSummaryAggregates(t *testing.T) {
	svc := newTestImportService(t)

	_, err := svc.ImportCSV(context.Background(), strings.NewReader(degiroExport), "degiro", 1)
	require.NoError(t, err)

	dash, err := svc.GetDashboardSummary(1)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.HoldingCount)
	assert.Equal(t, 2, dash.TransactionCount)
	assert.InDelta(t, 525.0, dash.TotalPortfolioCost, 1e-9)
	// -875 + 380
	assert.InDelta(t, -495.0, dash.CashBalance, 1e-9)
}

func TestImportInvalidatesCachedSummaries(t *testing.T) {
	svc := newTestImportService(t)

	_, err := svc.ImportCSV(context.Background(), strings.NewReader(degiroExport), "degiro", 1)
	require.NoError(t, err)
	first, err := svc.GetHoldingsSummary(1)
	require.NoError(t, err)

	extra := "Datum,Tijd,Product,ISIN,Beurs,Aantal,Koers,Totaal,Transactiekosten en/of,Order Id,Omschrijving\n" +
		"01-07-2024,09:00,ISHARES MSCI WOR A,IE00B4L5Y983,EAM,2,\"100,00\",\"-200,00\",,ord-9,Koop 2\n"
	_, err = svc.ImportCSV(context.Background(), strings.NewReader(extra), "degiro", 1)
	require.NoError(t, err)

	second, err := svc.GetHoldingsSummary(1)
	require.NoError(t, err)
	assert.Greater(t, second.TotalPortfolioCost, first.TotalPortfolioCost)
}
