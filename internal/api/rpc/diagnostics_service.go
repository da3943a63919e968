// Package rpc provides the Connect service implementation for the
// diagnostic engine.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"github.com/askmap/diagnostic-engine/internal/apperrors"
	"github.com/askmap/diagnostic-engine/internal/diagnostics"
	"github.com/askmap/diagnostic-engine/internal/observability"
)

const (
	// ServiceName is the fully-qualified Connect service name.
	ServiceName = "askmap.diagnostics.v1.DiagnosticsService"
	// AnalyzeProcedure is the path of the Analyze RPC.
	AnalyzeProcedure = "/" + ServiceName + "/Analyze"
)

// Analyzer is the part of the diagnostics service exposed over RPC.
type Analyzer interface {
	Analyze(ctx context.Context, q diagnostics.Query) (*diagnostics.Report, error)
}

// DiagnosticsService implements the Connect diagnostics service.
type DiagnosticsService struct {
	logger   *observability.Logger
	analyzer Analyzer
}

// NewDiagnosticsService creates a new diagnostics service.
func NewDiagnosticsService(logger *observability.Logger, analyzer Analyzer) *DiagnosticsService {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &DiagnosticsService{logger: logger, analyzer: analyzer}
}

// AnalyzeRequest is the Analyze request message.
type AnalyzeRequest struct {
	Symptom      string  `json:"symptom"`
	Location     *string `json:"location,omitempty"`
	Condition    *string `json:"condition,omitempty"`
	OriginalText string  `json:"original_text"`
}

// AnalyzeResponse is the Analyze response message.
type AnalyzeResponse struct {
	Results       []*Cause `json:"results"`
	Keywords      []string `json:"keywords"`
	KeywordSource string   `json:"keyword_source"`
	Disclaimer    string   `json:"disclaimer"`
}

// Cause is one ranked cause.
type Cause struct {
	RuleID        string  `json:"rule_id"`
	ComponentID   string  `json:"component_id"`
	ComponentName string  `json:"component_name"`
	Score         float64 `json:"score"`
	Probability   int32   `json:"probability"`
	Explanation   string  `json:"explanation,omitempty"`
}

// Analyze handles Connect analyze calls.
func (s *DiagnosticsService) Analyze(ctx context.Context, req *connect.Request[AnalyzeRequest]) (*connect.Response[AnalyzeResponse], error) {
	msg := req.Msg
	if msg.Symptom == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("symptom is required"))
	}

	report, err := s.analyzer.Analyze(ctx, diagnostics.Query{
		Symptom:      msg.Symptom,
		Location:     msg.Location,
		Condition:    msg.Condition,
		OriginalText: msg.OriginalText,
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrorTypeValidation) {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		s.logger.Error().Err(err).Msg("Analyze failed")
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(toAnalyzeResponse(report)), nil
}

func toAnalyzeResponse(report *diagnostics.Report) *AnalyzeResponse {
	resp := &AnalyzeResponse{
		Results:       make([]*Cause, 0, len(report.Results)),
		Keywords:      report.Keywords,
		KeywordSource: string(report.KeywordSource),
		Disclaimer:    report.Disclaimer,
	}
	for _, r := range report.Results {
		resp.Results = append(resp.Results, &Cause{
			RuleID:        r.RuleID.String(),
			ComponentID:   r.ComponentID.String(),
			ComponentName: r.ComponentName,
			Score:         r.Score,
			Probability:   int32(r.Probability),
			Explanation:   r.Explanation,
		})
	}
	return resp
}

// NewHandler returns the service's mount path and HTTP handler. Messages are
// plain structs, so the JSON codec replaces the protobuf ones.
func NewHandler(svc *DiagnosticsService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	mux := http.NewServeMux()
	mux.Handle(AnalyzeProcedure, connect.NewUnaryHandler(AnalyzeProcedure, svc.Analyze, opts...))
	return "/" + ServiceName + "/", mux
}

// NewAnalyzeClient creates a Connect client for the Analyze RPC.
func NewAnalyzeClient(httpClient connect.HTTPClient, baseURL string) *connect.Client[AnalyzeRequest, AnalyzeResponse] {
	return connect.NewClient[AnalyzeRequest, AnalyzeResponse](
		httpClient,
		baseURL+AnalyzeProcedure,
		connect.WithCodec(jsonCodec{}),
	)
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
