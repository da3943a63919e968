package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/askmap/diagnostic-engine/internal/apperrors"
	"github.com/askmap/diagnostic-engine/internal/catalog"
)

// ExtractJSON returns the text between the first '{' and the last '}'.
// Models often wrap JSON in prose or code fences.
func ExtractJSON(answer string) (string, error) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end < start {
		return "", apperrors.OracleError("answer contains no JSON object", nil)
	}
	return answer[start : end+1], nil
}

func decodeAnswer(answer string, v any) error {
	raw, err := ExtractJSON(answer)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return apperrors.OracleError("malformed JSON in answer", err)
	}
	return nil
}

// PromptEnricher implements Enricher on top of a completion model.
type PromptEnricher struct {
	completer Completer
}

// NewEnricher creates an enricher backed by the given completer.
func NewEnricher(c Completer) *PromptEnricher {
	return &PromptEnricher{completer: c}
}

// Enrich returns the original words plus synonyms, lowercased.
func (e *PromptEnricher) Enrich(ctx context.Context, text string) ([]string, error) {
	answer, err := e.completer.Complete(ctx, enrichmentPrompt, text)
	if err != nil {
		return nil, err
	}

	var payload struct {
		EnrichedKeywords []string `json:"enrichedKeywords"`
	}
	if err := decodeAnswer(answer, &payload); err != nil {
		return nil, err
	}

	keywords := make([]string, 0, len(payload.EnrichedKeywords))
	for _, k := range payload.EnrichedKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords, nil
}

// PromptExplainer implements Explainer on top of a completion model.
type PromptExplainer struct {
	completer Completer
}

// NewExplainer creates an explainer backed by the given completer.
func NewExplainer(c Completer) *PromptExplainer {
	return &PromptExplainer{completer: c}
}

// Explain returns the model's explanation, trimmed.
func (e *PromptExplainer) Explain(ctx context.Context, componentName, symptomLabel string) (string, error) {
	userText := fmt.Sprintf("Деталь: %q, Симптом: %q", componentName, symptomLabel)
	answer, err := e.completer.Complete(ctx, explanationPrompt, userText)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// Interpretation is a free-text complaint reduced to a symptom code and
// keywords.
type Interpretation struct {
	Symptom      catalog.SymptomCode `json:"symptom"`
	Keywords     []string            `json:"keywords"`
	OriginalText string              `json:"originalText"`
}

// Interpreter extracts a symptom code from a complaint.
type Interpreter struct {
	completer Completer
}

// NewInterpreter creates an interpreter backed by the given completer.
func NewInterpreter(c Completer) *Interpreter {
	return &Interpreter{completer: c}
}

// Interpret asks the model for a symptom and keywords. A symptom outside the
// known codes is an oracle error.
func (i *Interpreter) Interpret(ctx context.Context, text string) (Interpretation, error) {
	answer, err := i.completer.Complete(ctx, interpretPrompt, text)
	if err != nil {
		return Interpretation{}, err
	}

	var payload struct {
		Symptom  string   `json:"symptom"`
		Keywords []string `json:"keywords"`
	}
	if err := decodeAnswer(answer, &payload); err != nil {
		return Interpretation{}, err
	}

	symptom, err := catalog.ParseSymptomCode(payload.Symptom)
	if err != nil {
		return Interpretation{}, apperrors.OracleError("model returned an unknown symptom", err)
	}
	if payload.Keywords == nil {
		payload.Keywords = []string{}
	}

	return Interpretation{
		Symptom:      symptom,
		Keywords:     payload.Keywords,
		OriginalText: text,
	}, nil
}
