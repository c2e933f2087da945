package classifier

import (
	"context"
	"strings"

	"github.com/username/boxshift/backend/src/config"
	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/models"
)

// Classifier finalizes the transaction type of each draft. Implementations
// never fail the caller: the result always has every draft typed, falling
// back to the deterministic rules when anything else goes wrong.
type Classifier interface {
	Classify(ctx context.Context, drafts []models.DraftTransaction) []models.DraftTransaction
}

// New selects the classifier implementation from config. Without a usable
// API key the rule-based classifier is returned directly; with one, the
// Gemini classifier wraps the rules as its fallback.
func New(cfg *config.AppConfig) Classifier {
	rules := &RuleClassifier{}

	key := strings.TrimSpace(cfg.GeminiAPIKey)
	if key == "" || strings.HasPrefix(key, "your-") || strings.HasSuffix(key, "...") {
		logger.L.Info("No Gemini API key configured, using rule-based transaction classifier")
		return rules
	}

	gc, err := newGeminiClassifier(key, cfg.GeminiModel, cfg.ClassifierBatchSize, rules)
	if err != nil {
		logger.L.Warn("Failed to initialize Gemini classifier, using rule-based fallback", "error", err)
		return rules
	}
	logger.L.Info("Gemini transaction classifier initialized", "model", cfg.GeminiModel)
	return gc
}

// RuleClassifier applies deterministic keyword and field heuristics.
// It is the system of record; the remote classifier is an optimization only.
type RuleClassifier struct{}

func (c *RuleClassifier) Classify(_ context.Context, drafts []models.DraftTransaction) []models.DraftTransaction {
	for i := range drafts {
		drafts[i].Type = classifyByRules(&drafts[i])
	}
	return drafts
}

// classifyByRules assigns a type by priority: trade legs first, then keyword
// matches (Dutch and English), then the amount sign.
func classifyByRules(tx *models.DraftTransaction) string {
	desc := strings.ToLower(tx.Description)

	switch {
	case tx.Quantity != 0 && tx.Price != 0:
		if tx.Amount < 0 {
			return models.TxBuy
		}
		return models.TxSell
	case strings.Contains(desc, "dividend"):
		return models.TxDividend
	case strings.Contains(desc, "rente") || strings.Contains(desc, "interest"):
		return models.TxInterest
	case strings.Contains(desc, "kosten") || strings.Contains(desc, "fee") || strings.Contains(desc, "commission"):
		return models.TxCost
	case strings.Contains(desc, "storting") || strings.Contains(desc, "deposit"):
		return models.TxDeposit
	case strings.Contains(desc, "opname") || strings.Contains(desc, "withdrawal"):
		return models.TxWithdrawal
	case tx.Amount > 0:
		return models.TxDeposit
	default:
		return models.TxCost
	}
}
