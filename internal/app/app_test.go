package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askmap/diagnostic-engine/internal/config"
	"github.com/askmap/diagnostic-engine/internal/observability"
)

func memoryConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Database.SQLite.Path = ":memory:"
	cfg.Database.SQLite.MaxOpenConns = 1
	return cfg
}

func TestBuild_WithoutOracle(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, memoryConfig(), observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.False(t, a.OracleEnabled)
	require.NoError(t, a.Store.Ping(ctx))

	states, err := a.Diagnostics.HealthStates(ctx, uuid.New(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestBuild_OracleWithoutKey(t *testing.T) {
	cfg := memoryConfig()
	cfg.Oracle.Enabled = true
	cfg.Oracle.APIKey = ""

	_, err := Build(context.Background(), cfg, observability.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestBuild_OracleEnabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.Oracle.Enabled = true
	cfg.Oracle.APIKey = "test-key"
	cfg.Oracle.FolderID = "b1g"

	a, err := Build(context.Background(), cfg, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.True(t, a.OracleEnabled)
}

func TestModelURI(t *testing.T) {
	tests := []struct {
		folder, model, want string
	}{
		{"b1g", "yandexgpt-lite", "gpt://b1g/yandexgpt-lite"},
		{"", "yandexgpt-lite", "yandexgpt-lite"},
		{"b1g", "gpt://other/yandexgpt", "gpt://other/yandexgpt"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, ModelURI(tt.folder, tt.model))
		})
	}
}
