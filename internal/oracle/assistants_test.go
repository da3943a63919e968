package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askmap/diagnostic-engine/internal/apperrors"
	"github.com/askmap/diagnostic-engine/internal/catalog"
)

type fakeCompleter struct {
	answer     string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, userText string) (string, error) {
	f.lastSystem, f.lastUser = systemPrompt, userText
	return f.answer, f.err
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, false},
		{"prose around", `Вот ответ: {"a":1} Надеюсь, помог.`, `{"a":1}`, false},
		{"no object", "не знаю", "", true},
		{"reversed braces", "} {", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSON(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPromptEnricher_Enrich(t *testing.T) {
	fc := &fakeCompleter{answer: "```{\"enrichedKeywords\": [\"Коробас\", \" воет \", \"\", \"АКПП\"]}```"}
	got, err := NewEnricher(fc).Enrich(context.Background(), "коробас воет")
	require.NoError(t, err)
	assert.Equal(t, []string{"коробас", "воет", "акпп"}, got)
	assert.Equal(t, "коробас воет", fc.lastUser)
	assert.Equal(t, enrichmentPrompt, fc.lastSystem)
}

func TestPromptEnricher_Errors(t *testing.T) {
	_, err := NewEnricher(&fakeCompleter{err: errors.New("down")}).Enrich(context.Background(), "x")
	assert.Error(t, err)

	_, err = NewEnricher(&fakeCompleter{answer: "{not json}"}).Enrich(context.Background(), "x")
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeOracle))
}

func TestPromptExplainer_Explain(t *testing.T) {
	fc := &fakeCompleter{answer: "\n Стойка держит стабилизатор. \n"}
	got, err := NewExplainer(fc).Explain(context.Background(), "Стойка стабилизатора", "Стук")
	require.NoError(t, err)
	assert.Equal(t, "Стойка держит стабилизатор.", got)
	assert.Contains(t, fc.lastUser, "Стойка стабилизатора")
	assert.Contains(t, fc.lastUser, "Стук")
}

func TestInterpreter_Interpret(t *testing.T) {
	fc := &fakeCompleter{answer: `{"symptom": "power_loss", "keywords": ["троит", "мотор"]}`}
	got, err := NewInterpreter(fc).Interpret(context.Background(), "троит мотор")
	require.NoError(t, err)
	assert.Equal(t, catalog.SymptomPowerLoss, got.Symptom)
	assert.Equal(t, []string{"троит", "мотор"}, got.Keywords)
	assert.Equal(t, "троит мотор", got.OriginalText)
}

func TestInterpreter_UnknownSymptom(t *testing.T) {
	fc := &fakeCompleter{answer: `{"symptom": "RATTLE", "keywords": []}`}
	_, err := NewInterpreter(fc).Interpret(context.Background(), "гремит")
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeOracle))
}

func TestInterpreter_NilKeywords(t *testing.T) {
	fc := &fakeCompleter{answer: `{"symptom": "LEAK"}`}
	got, err := NewInterpreter(fc).Interpret(context.Background(), "течет")
	require.NoError(t, err)
	assert.NotNil(t, got.Keywords)
}

func TestStaticExtractor(t *testing.T) {
	text, err := StaticExtractor{}.ExtractText(context.Background(), Document{ID: uuid.New(), OCRText: "СТО АвтоМир"})
	require.NoError(t, err)
	assert.Equal(t, "СТО АвтоМир", text)

	_, err = StaticExtractor{}.ExtractText(context.Background(), Document{ID: uuid.New()})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeIO))
}
