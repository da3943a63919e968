package diagnostics

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/askmap/diagnostic-engine/internal/apperrors"
	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/oracle"
	"github.com/askmap/diagnostic-engine/internal/ranking"
)

const (
	// Disclaimer accompanies every non-empty report.
	Disclaimer = "Онлайн-оценка не заменяет диагностику на СТО. Для точного определения неисправности обратитесь к специалисту."
	// NoResultsDisclaimer replaces Disclaimer when nothing was ranked.
	NoResultsDisclaimer = "К сожалению, по вашему запросу не найдено вероятных причин. Попробуйте описать проблему иначе."

	// MinInterpretLen is the shortest free text Interpret accepts, in runes.
	MinInterpretLen = 3
)

// Query is a structured complaint.
type Query struct {
	Symptom      string  `json:"symptom"`
	Location     *string `json:"location"`
	Condition    *string `json:"condition"`
	OriginalText string  `json:"originalText"`
}

// Result is one ranked cause with its explanation.
type Result struct {
	catalog.RankedCause
	Explanation string `json:"explanation"`
}

// Report is the answer to a Query.
type Report struct {
	Symptom       catalog.SymptomCode `json:"symptom"`
	Results       []Result            `json:"results"`
	Keywords      []string            `json:"keywords"`
	KeywordSource ranking.Source      `json:"keywordSource"`
	Disclaimer    string              `json:"disclaimer"`
}

// Analyze ranks the probable causes of a complaint. Enrichment and
// explanations are best effort: their failures are logged and never fail
// the request.
func (s *Service) Analyze(ctx context.Context, q Query) (*Report, error) {
	symptom, err := catalog.ParseSymptomCode(q.Symptom)
	if err != nil {
		return nil, apperrors.ValidationError("invalid symptom", err)
	}
	logger := s.logger.WithContext(ctx).WithOperation("analyze")

	enrichCtx, cancel := context.WithTimeout(ctx, s.opts.EnrichTimeout)
	keywords := ranking.ResolveKeywords(enrichCtx, s.enricher, q.OriginalText, q.Location, q.Condition)
	cancel()
	if keywords.EnrichErr != nil {
		logger.Warn().Err(keywords.EnrichErr).Msg("Keyword enrichment failed, using fallback keywords")
	}

	rules, err := s.store.RulesForSymptom(ctx, symptom)
	if err != nil {
		return nil, apperrors.StorageError("load rules", err)
	}

	ranked := s.ranker.Rank(symptom, keywords.Keywords, rules)
	report := &Report{
		Symptom:       symptom,
		Results:       make([]Result, len(ranked)),
		Keywords:      keywords.Keywords,
		KeywordSource: keywords.Source,
		Disclaimer:    Disclaimer,
	}
	if len(ranked) == 0 {
		report.Disclaimer = NoResultsDisclaimer
		logger.Info().Str("symptom", string(symptom)).Int("rules", len(rules)).Msg("No probable causes found")
		return report, nil
	}

	for i, cause := range ranked {
		report.Results[i] = Result{RankedCause: cause}
	}
	s.explain(ctx, symptom, report.Results)

	logger.Info().
		Str("symptom", string(symptom)).
		Str("keyword_source", string(keywords.Source)).
		Int("keywords", len(keywords.Keywords)).
		Int("rules", len(rules)).
		Int("results", len(ranked)).
		Msg("Analysis complete")
	return report, nil
}

// explain fills in explanations concurrently. A failed explanation stays
// empty.
func (s *Service) explain(ctx context.Context, symptom catalog.SymptomCode, results []Result) {
	if s.explainer == nil {
		return
	}

	var g errgroup.Group
	g.SetLimit(s.opts.ExplanationConcurrency)
	for i := range results {
		g.Go(func() error {
			text, err := s.explainer.Explain(ctx, results[i].ComponentName, symptom.Label())
			if err != nil {
				s.logger.WithContext(ctx).Warn().
					Err(err).
					Str("component", results[i].ComponentName).
					Msg("Explanation failed")
				return nil
			}
			results[i].Explanation = text
			return nil
		})
	}
	_ = g.Wait()
}

// Interpret reduces free text to a symptom and keywords through the oracle.
func (s *Service) Interpret(ctx context.Context, text string) (oracle.Interpretation, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinInterpretLen {
		return oracle.Interpretation{}, apperrors.ValidationError("Запрос слишком короткий", nil)
	}
	if s.interpreter == nil {
		return oracle.Interpretation{}, apperrors.OracleError("interpreter is not configured", nil)
	}

	interp, err := s.interpreter.Interpret(ctx, text)
	if err != nil {
		if apperrors.TypeOf(err) == "" {
			err = apperrors.OracleError("interpret text", err)
		}
		return oracle.Interpretation{}, err
	}
	return interp, nil
}
