package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/models"
)

// geminiClassifier sends bounded batches of transaction summaries to the
// Gemini API and expects a JSON array mapping each index to a type. Any
// failure, malformed response or out-of-enum type degrades to the rules.
type geminiClassifier struct {
	client    *genai.Client
	model     string
	batchSize int
	fallback  *RuleClassifier
}

func newGeminiClassifier(apiKey, model string, batchSize int, fallback *RuleClassifier) (*geminiClassifier, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &geminiClassifier{
		client:    client,
		model:     model,
		batchSize: batchSize,
		fallback:  fallback,
	}, nil
}

type classification struct {
	Index int    `json:"index"`
	Type  string `json:"type"`
}

func (c *geminiClassifier) Classify(ctx context.Context, drafts []models.DraftTransaction) []models.DraftTransaction {
	for start := 0; start < len(drafts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(drafts) {
			end = len(drafts)
		}
		c.classifyBatch(ctx, drafts[start:end])
	}
	return drafts
}

func (c *geminiClassifier) classifyBatch(ctx context.Context, batch []models.DraftTransaction) {
	prompt := buildPrompt(batch)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		logger.L.Warn("Gemini classification call failed, falling back to rules", "error", err)
		c.fallback.Classify(ctx, batch)
		return
	}

	var results []classification
	if err := json.Unmarshal([]byte(resp.Text()), &results); err != nil {
		logger.L.Warn("Gemini classification response malformed, falling back to rules", "error", err)
		c.fallback.Classify(ctx, batch)
		return
	}

	assigned := make([]bool, len(batch))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(batch) || !models.ValidTxTypes[r.Type] {
			continue
		}
		batch[r.Index].Type = r.Type
		assigned[r.Index] = true
	}

	// Anything the model left out still gets a deterministic type.
	for i := range batch {
		if !assigned[i] {
			batch[i].Type = classifyByRules(&batch[i])
		}
	}
}

func buildPrompt(batch []models.DraftTransaction) string {
	var b strings.Builder
	b.WriteString("Classify these broker transactions into types.\n")
	b.WriteString("Valid types: buy, sell, dividend, interest, cost, deposit, withdrawal\n\nTransactions:\n")
	for i, tx := range batch {
		fmt.Fprintf(&b, "%d: desc=%q, amount=%.2f, qty=%g, price=%g\n",
			i, tx.Description, tx.Amount, tx.Quantity, tx.Price)
	}
	b.WriteString("\nReturn a JSON array of objects with \"index\" and \"type\" fields. Only return the JSON, nothing else.")
	return b.String()
}
