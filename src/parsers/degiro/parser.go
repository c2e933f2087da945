package degiro

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

// Parser reads the DEGIRO transaction export.
//
// Expected columns: Datum, Tijd, Product, ISIN, Beurs, Uitvoeringsplaats,
// Aantal, Koers, Waarde lokale valuta, Waarde, Wisselkoers,
// Transactiekosten en/of, Totaal, Order Id
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

const dateLayout = "02-01-2006"

func (p *Parser) Parse(file io.Reader) (*models.DraftBatch, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read all CSV records: %w", err)
	}

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	batch := &models.DraftBatch{}
	for _, record := range records {
		rawDate := field(record, "Datum")
		if rawDate == "" {
			continue // blank filler rows are not counted as skips
		}

		txDate, err := time.Parse(dateLayout, rawDate)
		if err != nil {
			batch.RowsSkipped++
			continue
		}

		quantity, hasQuantity := parseNum(field(record, "Aantal"))
		price, hasPrice := parseNum(field(record, "Koers"))
		total, _ := parseNum(field(record, "Totaal"))
		costs, hasCosts := parseNum(field(record, "Transactiekosten en/of"))

		product := field(record, "Product")
		isin := field(record, "ISIN")
		omschrijving := field(record, "Omschrijving")

		var txType string
		switch {
		case hasQuantity && quantity > 0 && hasPrice:
			txType = models.TxBuy
		case hasQuantity && quantity < 0 && hasPrice:
			txType = models.TxSell
		case strings.Contains(strings.ToLower(product), "dividend") ||
			strings.Contains(strings.ToLower(omschrijving), "dividend"):
			txType = models.TxDividend
		case hasCosts && costs != 0 && !hasQuantity:
			txType = models.TxCost
		default:
			txType = models.TxOther
		}

		var ticker string
		if isin != "" {
			ticker = isinToTicker(isin, field(record, "Beurs"))
		}

		description := product
		if description == "" {
			description = "DEGIRO transaction"
		}

		batch.Drafts = append(batch.Drafts, models.DraftTransaction{
			Date:        txDate,
			Type:        txType,
			Ticker:      ticker,
			Description: description,
			Quantity:    math.Abs(quantity),
			Price:       price,
			Amount:      total,
			Currency:    "EUR",
			BrokerRef:   field(record, "Order Id"),
		})
	}

	return batch, nil
}

// parseNum parses a DEGIRO locale-formatted decimal (comma separator).
// The second return value reports whether the field held a value at all.
func parseNum(val string) (float64, bool) {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0, false
	}
	val = strings.ReplaceAll(val, ",", ".")
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// commonISINs maps the ETFs and stocks DEGIRO users most commonly trade.
// Unknown ISINs fall back to a truncated form of the code itself.
var commonISINs = map[string]string{
	"IE00B4L5Y983": "IWDA",
	"IE00B3RBWM25": "VWRL",
	"IE00BK5BQT80": "VWCE",
	"IE00BKM4GZ66": "EMIM",
	"LU0392494562": "DBXW",
	"IE00B0M62Q58": "IUSQ",
	"NL0000009165": "HEIA",
	"NL0010273215": "ASML",
	"NL0000235190": "AIR",
	"US0378331005": "AAPL",
	"US5949181045": "MSFT",
}

var exchangeSuffix = map[string]string{
	"XET": ".DE",
	"EPA": ".PA",
	"AMS": ".AS",
	"LSE": ".L",
	"EAM": ".AS",
}

func isinToTicker(isin, exchange string) string {
	ticker, ok := commonISINs[isin]
	if !ok {
		ticker = isin
		if len(ticker) > 6 {
			ticker = ticker[:6]
		}
	}
	return ticker + exchangeSuffix[exchange]
}
