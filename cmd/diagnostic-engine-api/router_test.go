package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askmap/diagnostic-engine/cmd/diagnostic-engine-api/handlers"
	"github.com/askmap/diagnostic-engine/internal/api/rpc"
	"github.com/askmap/diagnostic-engine/internal/app"
	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/config"
	"github.com/askmap/diagnostic-engine/internal/diagnostics"
	"github.com/askmap/diagnostic-engine/internal/knowledgebase"
	"github.com/askmap/diagnostic-engine/internal/observability"
	"github.com/askmap/diagnostic-engine/internal/oracle"
	"github.com/askmap/diagnostic-engine/internal/storage"
)

type testEnv struct {
	server  *httptest.Server
	app     *app.App
	vehicle uuid.UUID
	codes   map[string]uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.Database.SQLite.Path = ":memory:"
	cfg.Database.SQLite.MaxOpenConns = 1

	a, err := app.Build(ctx, cfg, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	seed, err := knowledgebase.DefaultSeed()
	require.NoError(t, err)
	_, err = knowledgebase.NewImporter(a.Store, nil, nil).Import(ctx, seed)
	require.NoError(t, err)

	components, err := a.Store.Components(ctx)
	require.NoError(t, err)
	codes := make(map[string]uuid.UUID, len(components))
	for _, c := range components {
		codes[c.Code] = c.ID
	}

	router := NewRouter(observability.NopLogger(), RouterConfig{RequestTimeout: 5 * time.Second}, Backend{
		Diagnostics: a.Diagnostics,
		Knowledge:   a.Store,
		Store:       a.Store,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, app: a, vehicle: uuid.New(), codes: codes}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "healthy", body["status"])

	resp = env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_ComponentStates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.app.Store.CreateUsageEvent(ctx, &catalog.UsageEvent{
		VehicleID:    env.vehicle,
		ComponentIDs: []uuid.UUID{env.codes["engine_oil"]},
		Date:         time.Now().AddDate(0, 0, -60),
		Odometer:     100000,
		Title:        "Замена масла",
		Status:       catalog.EventStatusConfirmed,
		Source:       catalog.SourceManual,
	}))
	require.NoError(t, env.app.Store.CreateOdometerSample(ctx, &catalog.OdometerSample{
		VehicleID: env.vehicle,
		Date:      time.Now(),
		Value:     109000,
		Source:    catalog.SourceManual,
	}))

	resp := env.do(t, http.MethodGet, "/api/v1/vehicles/"+env.vehicle.String()+"/component-states", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[handlers.ComponentStatesResponseDTO](t, resp)
	assert.Equal(t, env.vehicle.String(), body.VehicleID)
	require.Len(t, body.States, 1)
	assert.Equal(t, "engine_oil", body.States[0].ComponentCode)
	assert.Equal(t, catalog.StatusAttention, body.States[0].Status)
	assert.InDelta(t, 0.9, body.States[0].Progress, 1e-9)

	resp = env.do(t, http.MethodGet, "/api/v1/vehicles/not-a-uuid/component-states", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_Analyze(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"ranked", `{"symptom":"KNOCK","location":"спереди","condition":"на кочках","originalText":"стучит спереди на кочках"}`, http.StatusOK},
		{"missing symptom", `{"originalText":"стучит"}`, http.StatusBadRequest},
		{"unknown symptom", `{"symptom":"HUM"}`, http.StatusBadRequest},
		{"malformed body", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/v1/diagnostics/analyze", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}

	resp := env.do(t, http.MethodPost, "/api/v1/diagnostics/analyze", tests[0].body)
	report := decode[diagnostics.Report](t, resp)
	require.NotEmpty(t, report.Results)
	assert.Equal(t, catalog.SymptomKnock, report.Symptom)
	assert.Equal(t, diagnostics.Disclaimer, report.Disclaimer)
	assert.Equal(t, "fallback", string(report.KeywordSource))
	assert.LessOrEqual(t, len(report.Results), 9)
}

func TestRouter_InterpretWithoutOracle(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/diagnostics/interpret", `{"text":"что-то стучит спереди"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/diagnostics/interpret", `{"text":"ой"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_AliasesAndSuggest(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/aliases/match", `{"text":"Масляный фильтр MANN W914"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	match := decode[struct {
		Matched       bool    `json:"matched"`
		ComponentCode string  `json:"componentCode"`
		Confidence    float64 `json:"confidence"`
	}](t, resp)
	assert.True(t, match.Matched)
	assert.Equal(t, "oil_filter", match.ComponentCode)
	assert.Greater(t, match.Confidence, 0.8)

	resp = env.do(t, http.MethodGet, "/api/v1/components/suggest?name=%D0%BC%D0%B0%D1%81%D0%BB%D1%8F%D0%BD%D1%8B%D0%B9+%D1%84%D0%B8%D0%BB%D1%8C%D1%82%D1%80&limit=3", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	suggest := decode[handlers.SuggestResponseDTO](t, resp)
	require.NotEmpty(t, suggest.Suggestions)
	assert.Equal(t, "oil_filter", suggest.Suggestions[0].Component.Code)
	assert.LessOrEqual(t, len(suggest.Suggestions), 3)

	resp = env.do(t, http.MethodGet, "/api/v1/components/suggest", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/components/suggest?name=x&limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_ParseDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := &storage.Document{Document: oracle.Document{
		VehicleID: &env.vehicle,
		Kind:      oracle.DocumentWorkOrder,
		OCRText:   "СТО Мотор\nМасляный фильтр\nИтог: 1500,00\n12.03.2024\nПробег 120500",
	}}
	require.NoError(t, env.app.Store.DocumentRepo.Create(ctx, doc))

	resp := env.do(t, http.MethodPost, "/api/v1/documents/"+doc.ID.String()+"/parse", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[diagnostics.ParseResult](t, resp)
	assert.Equal(t, doc.ID, result.DocumentID)
	assert.Equal(t, storage.DocumentParsed, result.Status)
	assert.NotNil(t, result.UsageEventID)

	resp = env.do(t, http.MethodPost, "/api/v1/documents/"+uuid.NewString()+"/parse", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	empty := &storage.Document{Document: oracle.Document{VehicleID: &env.vehicle, Kind: oracle.DocumentReceipt}}
	require.NoError(t, env.app.Store.DocumentRepo.Create(ctx, empty))
	resp = env.do(t, http.MethodPost, "/api/v1/documents/"+empty.ID.String()+"/parse", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRouter_KnowledgeExport(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/v1/knowledge/export", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "askmap_knowledge_")

	export := decode[knowledgebase.Export](t, resp)
	assert.NotEmpty(t, export.Components)
	assert.NotEmpty(t, export.KnowledgeBase)
	for _, c := range export.Components {
		assert.False(t, strings.HasPrefix(c.PartCode, knowledgebase.ZonePrefix), c.PartCode)
	}
}

func TestRouter_ConnectAnalyze(t *testing.T) {
	env := newTestEnv(t)

	client := rpc.NewAnalyzeClient(env.server.Client(), env.server.URL)
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&rpc.AnalyzeRequest{
		Symptom:      "SQUEAK",
		Condition:    catalog.Ptr("при торможении"),
		OriginalText: "скрипит при торможении",
	}))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Msg.Results)
	assert.Equal(t, diagnostics.Disclaimer, resp.Msg.Disclaimer)
}

func TestRouter_CORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/api/v1/diagnostics/analyze", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.askmap.example")
	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.askmap.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_HistoryFeedsComponentStates(t *testing.T) {
	env := newTestEnv(t)
	base := "/api/v1/vehicles/" + env.vehicle.String()
	serviced := time.Now().AddDate(0, 0, -60).UTC().Format(time.RFC3339)

	resp := env.do(t, http.MethodPost, base+"/service-records",
		`{"title":"Замена масла","mileage":100000,"date":"`+serviced+`","installedPartLifespanKm":20000,"componentCodes":["engine_oil"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	record := decode[diagnostics.ServiceRecordResult](t, resp)
	assert.Equal(t, catalog.EventStatusConfirmed, record.Event.Status)
	assert.Equal(t, []uuid.UUID{env.codes["engine_oil"]}, record.Event.ComponentIDs)
	assert.NotNil(t, record.OdometerSampleID)

	resp = env.do(t, http.MethodPost, base+"/odometer-readings", `{"value":99000}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, base+"/odometer-readings", `{"value":109000}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sample := decode[catalog.OdometerSample](t, resp)
	assert.Equal(t, 109000, sample.Value)
	assert.Equal(t, catalog.SourceManual, sample.Source)

	resp = env.do(t, http.MethodGet, base+"/component-states", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	states := decode[handlers.ComponentStatesResponseDTO](t, resp)
	require.Len(t, states.States, 1)
	assert.Equal(t, "engine_oil", states.States[0].ComponentCode)
	assert.Equal(t, catalog.StatusOK, states.States[0].Status)
	assert.InDelta(t, 0.45, states.States[0].Progress, 1e-9)
}

func TestRouter_HistoryValidation(t *testing.T) {
	env := newTestEnv(t)
	base := "/api/v1/vehicles/" + env.vehicle.String()

	tests := []struct {
		name string
		path string
		body string
	}{
		{"short title", base + "/service-records", `{"title":"ТО"}`},
		{"unknown component", base + "/service-records", `{"title":"Замена масла","componentCodes":["warp_core"]}`},
		{"negative mileage", base + "/service-records", `{"title":"Замена масла","mileage":-5}`},
		{"malformed record", base + "/service-records", `{`},
		{"bad vehicle", "/api/v1/vehicles/nope/service-records", `{"title":"Замена масла"}`},
		{"zero reading", base + "/odometer-readings", `{"value":0}`},
		{"bad vehicle reading", "/api/v1/vehicles/nope/odometer-readings", `{"value":10}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}
