package ibkr

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/username/boxshift/backend/src/models"
)

// Parser reads the Interactive Brokers activity statement CSV.
//
// IB exports interleave multiple sections; each row is prefixed with the
// section name and a Header/Data marker. Only the Trades section is used.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(file io.Reader) (*models.DraftBatch, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read all CSV records: %w", err)
	}

	batch := &models.DraftBatch{}
	var headers []string
	inTrades := false

	for _, row := range records {
		if len(row) < 2 {
			continue
		}

		switch {
		case row[0] == "Trades" && row[1] == "Header":
			headers = row[2:]
			inTrades = true
		case row[0] == "Trades" && row[1] == "Data" && inTrades:
			data := make(map[string]string, len(headers))
			for i, h := range headers {
				if i+2 < len(row) {
					data[h] = row[i+2]
				}
			}
			draft, ok := parseTradeRow(data)
			if !ok {
				batch.RowsSkipped++
				continue
			}
			batch.Drafts = append(batch.Drafts, draft)
		case row[0] != "Trades" && inTrades:
			inTrades = false
		}
	}

	return batch, nil
}

func parseTradeRow(data map[string]string) (models.DraftTransaction, bool) {
	dateTime := data["Date/Time"]
	datePart := strings.TrimSpace(strings.SplitN(dateTime, ",", 2)[0])
	txDate, err := time.Parse("2006-01-02", datePart)
	if err != nil {
		return models.DraftTransaction{}, false
	}

	quantity, err := strconv.ParseFloat(strings.ReplaceAll(data["Quantity"], ",", ""), 64)
	if err != nil {
		return models.DraftTransaction{}, false
	}
	price, _ := strconv.ParseFloat(data["T. Price"], 64)
	proceeds, err := strconv.ParseFloat(data["Proceeds"], 64)
	if err != nil {
		return models.DraftTransaction{}, false
	}
	// Commission is already signed as a cost in the export.
	commission, _ := strconv.ParseFloat(data["Comm/Fee"], 64)

	txType := models.TxBuy
	if quantity < 0 {
		txType = models.TxSell
	}

	currency := data["Currency"]
	if currency == "" {
		currency = "EUR"
	}

	return models.DraftTransaction{
		Date:        txDate,
		Type:        txType,
		Ticker:      data["Symbol"],
		Description: strings.TrimSpace(data["Symbol"] + " " + dateTime),
		Quantity:    math.Abs(quantity),
		Price:       price,
		Amount:      proceeds + commission,
		Currency:    currency,
		// The Trades section carries no order id; symbol + timestamp +
		// quantity identifies a fill well enough for re-import detection.
		BrokerRef: fmt.Sprintf("%s|%s|%g", data["Symbol"], dateTime, quantity),
	}, true
}
