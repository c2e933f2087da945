package ibkr

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/boxshift/backend/src/models"
)

const statement = `Statement,Header,Field Name,Field Value
Statement,Data,BrokerName,Interactive Brokers
Trades,Header,DataDiscriminator,Asset Category,Currency,Symbol,Date/Time,Quantity,T. Price,Proceeds,Comm/Fee,Code
Trades,Data,Order,Stocks,USD,AAPL,"2024-04-02, 10:30:15",10,170.50,-1705.00,-1.00,O
Trades,Data,Order,Stocks,EUR,ASML,"2024-05-10, 14:05:00",-2,850.00,1700.00,-2.00,C
Open Positions,Header,DataDiscriminator,Asset Category
Open Positions,Data,Summary,Stocks
`

func TestParseExtractsOnlyTradesSection(t *testing.T) {
	batch, err := NewParser().Parse(strings.NewReader(statement))
	require.NoError(t, err)
	require.Len(t, batch.Drafts, 2)
	assert.Equal(t, 0, batch.RowsSkipped)
}

func TestParseBuyTrade(t *testing.T) {
	batch, err := NewParser().Parse(strings.NewReader(statement))
	require.NoError(t, err)
	require.Len(t, batch.Drafts, 2)

	buy := batch.Drafts[0]
	assert.Equal(t, models.TxBuy, buy.Type)
	assert.Equal(t, "AAPL", buy.Ticker)
	assert.Equal(t, time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), buy.Date)
	assert.Equal(t, 10.0, buy.Quantity)
	assert.Equal(t, 170.50, buy.Price)
	assert.Equal(t, "USD", buy.Currency)
	// Amount folds the commission into the signed proceeds.
	assert.InDelta(t, -1706.00, buy.Amount, 1e-9)
}

func TestParseSellTrade(t *testing.T) {
	batch, err := NewParser().Parse(strings.NewReader(statement))
	require.NoError(t, err)
	require.Len(t, batch.Drafts, 2)

	sell := batch.Drafts[1]
	assert.Equal(t, models.TxSell, sell.Type)
	assert.Equal(t, 2.0, sell.Quantity, "quantity is stored unsigned")
	assert.InDelta(t, 1698.00, sell.Amount, 1e-9)
}

func TestThousandsSeparatedQuantity(t *testing.T) {
	input := `Trades,Header,DataDiscriminator,Currency,Symbol,Date/Time,Quantity,T. Price,Proceeds,Comm/Fee,Code
Trades,Data,Order,USD,VT,"2024-01-15, 09:00:00","1,250",100.00,-125000.00,-5.00,O
`
	batch, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, batch.Drafts, 1)
	assert.Equal(t, 1250.0, batch.Drafts[0].Quantity)
}

func TestMalformedTradeRowsAreCounted(t *testing.T) {
	input := `Trades,Header,DataDiscriminator,Currency,Symbol,Date/Time,Quantity,T. Price,Proceeds,Comm/Fee,Code
Trades,Data,Order,USD,AAPL,"bad-date, 10:30:15",10,170.50,-1705.00,-1.00,O
Trades,Data,Order,USD,AAPL,"2024-04-02, 10:30:15",ten,170.50,-1705.00,-1.00,O
Trades,Data,Order,USD,AAPL,"2024-04-02, 10:30:15",10,170.50,-1705.00,-1.00,O
`
	batch, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, batch.Drafts, 1)
	assert.Equal(t, 2, batch.RowsSkipped)
}
