package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askmap/diagnostic-engine/internal/apperrors"
	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/diagnostics"
	"github.com/askmap/diagnostic-engine/internal/ranking"
)

type fakeAnalyzer struct {
	got    diagnostics.Query
	report *diagnostics.Report
	err    error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, q diagnostics.Query) (*diagnostics.Report, error) {
	f.got = q
	return f.report, f.err
}

func newTestServer(t *testing.T, analyzer Analyzer) *connect.Client[AnalyzeRequest, AnalyzeResponse] {
	t.Helper()
	mux := http.NewServeMux()
	path, handler := NewHandler(NewDiagnosticsService(nil, analyzer))
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return NewAnalyzeClient(server.Client(), server.URL)
}

func TestDiagnosticsService_Analyze(t *testing.T) {
	componentID := uuid.New()
	analyzer := &fakeAnalyzer{report: &diagnostics.Report{
		Symptom: catalog.SymptomKnock,
		Results: []diagnostics.Result{{
			RankedCause: catalog.RankedCause{RuleID: uuid.New(), ComponentID: componentID, ComponentName: "Стойки стабилизатора", Score: 2.7, Probability: 70},
			Explanation: "Стойка соединяет стабилизатор с подвеской.",
		}},
		Keywords:      []string{"спереди", "кочках"},
		KeywordSource: ranking.SourceFallback,
		Disclaimer:    diagnostics.Disclaimer,
	}}
	client := newTestServer(t, analyzer)

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&AnalyzeRequest{
		Symptom:      "KNOCK",
		Location:     catalog.Ptr("спереди"),
		OriginalText: "стучит спереди",
	}))
	require.NoError(t, err)

	assert.Equal(t, "KNOCK", analyzer.got.Symptom)
	assert.Equal(t, "спереди", *analyzer.got.Location)
	assert.Nil(t, analyzer.got.Condition)

	require.Len(t, resp.Msg.Results, 1)
	assert.Equal(t, componentID.String(), resp.Msg.Results[0].ComponentID)
	assert.Equal(t, int32(70), resp.Msg.Results[0].Probability)
	assert.Equal(t, "fallback", resp.Msg.KeywordSource)
	assert.Equal(t, diagnostics.Disclaimer, resp.Msg.Disclaimer)
}

func TestDiagnosticsService_AnalyzeErrors(t *testing.T) {
	tests := []struct {
		name     string
		req      *AnalyzeRequest
		err      error
		wantCode connect.Code
	}{
		{"missing symptom", &AnalyzeRequest{}, nil, connect.CodeInvalidArgument},
		{"validation error", &AnalyzeRequest{Symptom: "HUM"}, apperrors.ValidationError("invalid symptom", nil), connect.CodeInvalidArgument},
		{"storage failure", &AnalyzeRequest{Symptom: "KNOCK"}, apperrors.StorageError("load rules", errors.New("db down")), connect.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, &fakeAnalyzer{err: tt.err})
			_, err := client.CallUnary(context.Background(), connect.NewRequest(tt.req))
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, connect.CodeOf(err))
		})
	}
}
