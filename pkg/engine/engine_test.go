package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askmap/diagnostic-engine/internal/api/rpc"
	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/diagnostics"
)

func TestFacade(t *testing.T) {
	assert.Equal(t, "стойка стабилизатора", Normalize("  СТОЙКА  стабилизатора! "))

	oil := Component{ID: uuid.New(), Code: "engine_oil", Name: "Масло двигателя", DistanceLifespan: catalog.Ptr(10000)}
	serviced := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	states := ComputeHealthStates(HealthInput{
		Components: []Component{oil},
		Events:     []UsageEvent{{ComponentIDs: []uuid.UUID{oil.ID}, Date: serviced, Odometer: 50000}},
		Odometer:   &OdometerSample{Value: 61000},
		Now:        serviced,
	})
	require.Len(t, states, 1)
	assert.Equal(t, catalog.StatusCritical, states[0].Status)

	match := MatchAlias("Масло ДВС 5W-30", []Alias{{Alias: "масло двс", ComponentID: oil.ID, ComponentCode: "engine_oil"}})
	assert.True(t, match.Matched)

	symptom, err := ParseSymptomCode("noise")
	require.NoError(t, err)
	ranked := RankCauses(symptom, []string{"гул"}, []Rule{
		{Symptom: catalog.SymptomNoise, Condition: catalog.Ptr("гул на скорости"), ComponentName: "Подшипник", BaseWeight: 0.6},
	})
	require.Len(t, ranked, 1)
	assert.Equal(t, 60, ranked[0].Probability)
}

type staticAnalyzer struct{}

func (staticAnalyzer) Analyze(_ context.Context, q diagnostics.Query) (*diagnostics.Report, error) {
	return &diagnostics.Report{
		Results:    []diagnostics.Result{},
		Keywords:   []string{},
		Disclaimer: diagnostics.NoResultsDisclaimer,
	}, nil
}

func TestClient_Analyze(t *testing.T) {
	mux := http.NewServeMux()
	path, handler := rpc.NewHandler(rpc.NewDiagnosticsService(nil, staticAnalyzer{}))
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL + "/"})
	require.NoError(t, err)
	assert.Equal(t, server.URL, client.BaseURL())

	resp, err := client.Analyze(context.Background(), AnalyzeRequest{Symptom: "LEAK"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, diagnostics.NoResultsDisclaimer, resp.Disclaimer)
}
