package degiro

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/boxshift/backend/src/models"
)

const header = "Datum,Tijd,Product,ISIN,Beurs,Aantal,Koers,Totaal,Transactiekosten en/of,Order Id,Omschrijving\n"

func TestParseBuyWithCommaDecimals(t *testing.T) {
	input := header +
		"15-03-2024,09:15,ISHARES MSCI WOR A,IE00B4L5Y983,EAM,10,\"87,50\",\"-875,00\",\"-2,00\",abc-123,Koop 10\n"

	batch, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, batch.Drafts, 1)
	assert.Equal(t, 0, batch.RowsSkipped)

	draft := batch.Drafts[0]
	assert.Equal(t, models.TxBuy, draft.Type)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), draft.Date)
	assert.Equal(t, "IWDA.AS", draft.Ticker)
	assert.Equal(t, 10.0, draft.Quantity)
	assert.Equal(t, 87.50, draft.Price)
	assert.Equal(t, -875.00, draft.Amount)
	assert.Equal(t, "EUR", draft.Currency)
	assert.Equal(t, "abc-123", draft.BrokerRef)
}

func TestParseSellNegativeQuantity(t *testing.T) {
	input := header +
		"20-06-2024,14:30,ASML HOLDING,NL0010273215,EAM,-5,\"650,00\",\"3250,00\",\"-2,50\",def-456,Verkoop 5\n"

	batch, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, batch.Drafts, 1)

	draft := batch.Drafts[0]
	assert.Equal(t, models.TxSell, draft.Type)
	assert.Equal(t, 5.0, draft.Quantity, "quantity is stored unsigned")
	assert.Equal(t, 3250.00, draft.Amount)
}

func TestParseDividendRow(t *testing.T) {
	input := header +
		"02-05-2024,,VANGUARD FTSE AW,IE00B3RBWM25,EAM,,,\"12,34\",,,Dividend\n"

	batch, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, batch.Drafts, 1)
	assert.Equal(t, models.TxDividend, batch.Drafts[0].Type)
	assert.Equal(t, 12.34, batch.Drafts[0].Amount)
}

func TestParseCostRow(t *testing.T) {
	input := header +
		"01-01-2024,,DEGIRO Aansluitkosten,,,,,\"-2,50\",\"-2,50\",,Aansluitkosten\n"

	batch, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, batch.Drafts, 1)
	assert.Equal(t, models.TxCost, batch.Drafts[0].Type)
}

func TestUnknownISINFallsBackToTruncatedCode(t *testing.T) {
	input := header +
		"10-02-2024,10:00,SOME FUND,XX9999999999,XET,3,\"10,00\",\"-30,00\",,ghi-789,Koop\n"

	batch, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, batch.Drafts, 1)
	assert.Equal(t, "XX9999.DE", batch.Drafts[0].Ticker)
}

func TestBadDateCountsAsSkipped(t *testing.T) {
	input := header +
		"not-a-date,10:00,SOME FUND,IE00B4L5Y983,EAM,1,\"10,00\",\"-10,00\",,x,Koop\n" +
		"15-03-2024,10:00,SOME FUND,IE00B4L5Y983,EAM,1,\"10,00\",\"-10,00\",,y,Koop\n"

	batch, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, batch.Drafts, 1)
	assert.Equal(t, 1, batch.RowsSkipped)
}

func TestBlankDateRowsAreIgnoredNotSkipped(t *testing.T) {
	input := header +
		",,,,,,,,,,\n" +
		"15-03-2024,10:00,SOME FUND,IE00B4L5Y983,EAM,1,\"10,00\",\"-10,00\",,y,Koop\n"

	batch, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, batch.Drafts, 1)
	assert.Equal(t, 0, batch.RowsSkipped)
}
