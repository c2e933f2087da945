package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/username/boxshift/backend/src/config"
	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/models"
)

func init() {
	logger.InitLogger("error")
}

func TestClassifyByRules(t *testing.T) {
	tests := []struct {
		name  string
		draft models.DraftTransaction
		want  string
	}{
		{"trade leg with negative amount is a buy",
			models.DraftTransaction{Quantity: 10, Price: 100, Amount: -1000}, models.TxBuy},
		{"trade leg with positive amount is a sell",
			models.DraftTransaction{Quantity: 5, Price: 120, Amount: 600}, models.TxSell},
		{"dividend keyword wins without a trade leg",
			models.DraftTransaction{Description: "Dividend IWDA", Amount: 12.34}, models.TxDividend},
		{"dutch interest keyword",
			models.DraftTransaction{Description: "Rente op saldo", Amount: 0.55}, models.TxInterest},
		{"english interest keyword",
			models.DraftTransaction{Description: "Credit Interest", Amount: 1.10}, models.TxInterest},
		{"dutch cost keyword",
			models.DraftTransaction{Description: "Aansluitkosten beurs", Amount: -2.50}, models.TxCost},
		{"commission keyword",
			models.DraftTransaction{Description: "Commission adjustment", Amount: -1.00}, models.TxCost},
		{"dutch deposit keyword",
			models.DraftTransaction{Description: "Storting via iDEAL", Amount: 5000}, models.TxDeposit},
		{"withdrawal keyword",
			models.DraftTransaction{Description: "Opname naar tegenrekening", Amount: -250}, models.TxWithdrawal},
		{"unmatched positive amount defaults to deposit",
			models.DraftTransaction{Description: "Overboeking", Amount: 100}, models.TxDeposit},
		{"unmatched negative amount defaults to cost",
			models.DraftTransaction{Description: "Onbekend", Amount: -3}, models.TxCost},
		{"trade leg beats dividend keyword",
			models.DraftTransaction{Description: "Dividend herbelegging", Quantity: 2, Price: 50, Amount: -100}, models.TxBuy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyByRules(&tt.draft))
		})
	}
}

func TestRuleClassifierTypesEveryDraft(t *testing.T) {
	drafts := []models.DraftTransaction{
		{Quantity: 1, Price: 10, Amount: -10},
		{Description: "dividend"},
		{Description: "???", Amount: -1},
	}

	out := (&RuleClassifier{}).Classify(context.Background(), drafts)
	assert.Len(t, out, len(drafts))
	for _, d := range out {
		assert.True(t, models.ValidTxTypes[d.Type], "draft %q got invalid type %q", d.Description, d.Type)
	}
}

func TestNewWithoutAPIKeyUsesRules(t *testing.T) {
	cfg := &config.AppConfig{GeminiAPIKey: ""}
	_, ok := New(cfg).(*RuleClassifier)
	assert.True(t, ok)

	cfg = &config.AppConfig{GeminiAPIKey: "your-gemini-api-key"}
	_, ok = New(cfg).(*RuleClassifier)
	assert.True(t, ok)
}
