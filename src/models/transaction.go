package models

import "time"

// Transaction types. A transaction always carries exactly one of these.
const (
	TxBuy        = "buy"
	TxSell       = "sell"
	TxDividend   = "dividend"
	TxInterest   = "interest"
	TxCost       = "cost"
	TxDeposit    = "deposit"
	TxWithdrawal = "withdrawal"
	TxOther      = "other"
)

// ValidTxTypes is the closed set of types the classifier may assign.
var ValidTxTypes = map[string]bool{
	TxBuy:        true,
	TxSell:       true,
	TxDividend:   true,
	TxInterest:   true,
	TxCost:       true,
	TxDeposit:    true,
	TxWithdrawal: true,
}

// DraftTransaction is the unified intermediate representation produced by the
// broker parsers, before classification and persistence. Each parser populates
// as many fields as it can from the source file, including a provisional type.
// Quantity and Price are zero when the source row has no trade leg.
type DraftTransaction struct {
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	Ticker      string    `json:"ticker"`
	Description string    `json:"description"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Amount      float64   `json:"amount"` // positive = inflow, negative = outflow
	Currency    string    `json:"currency"`
	BrokerRef   string    `json:"broker_ref"`
}

// DraftBatch is the output of one parser run: the normalized drafts plus the
// number of source rows dropped because a required field (the date, in
// particular) could not be parsed.
type DraftBatch struct {
	Drafts      []DraftTransaction `json:"drafts"`
	RowsSkipped int                `json:"rows_skipped"`
}

// Transaction is a persisted broker event. Immutable after import except for
// the processed flag and the realized gain the position engine records on
// sells when it folds them into holdings.
type Transaction struct {
	ID           int64     `json:"id"`
	CompanyID    int64     `json:"company_id"`
	Date         time.Time `json:"date"`
	Type         string    `json:"type"`
	Ticker       string    `json:"ticker"`
	Description  string    `json:"description"`
	Quantity     float64   `json:"quantity"`
	Price        float64   `json:"price"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	BrokerRef    string    `json:"broker_ref"`
	RealizedGain float64   `json:"realized_gain"`
	Processed    bool      `json:"processed"`
}
