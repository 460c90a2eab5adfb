package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestServices(t *testing.T, yaml string) (*services, *observer.ObservedLogs) {
	t.Helper()
	cfg, err := decodeConfig(newTestViper(t, yaml))
	require.NoError(t, err)

	core, logs := observer.New(zap.WarnLevel)
	return &services{cfg: cfg, logger: zap.New(core)}, logs
}

func TestTrackerWarnsAboutMemoryBackend(t *testing.T) {
	svc, logs := newTestServices(t, "")
	ctx := context.Background()

	first, err := svc.Tracker(ctx)
	require.NoError(t, err)
	second, err := svc.Tracker(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	warned := logs.FilterMessage("budget backend is memory, usage is per process only").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "set budget.backend to redis", warned[0].ContextMap()["hint"])
}

func TestOrchestratorWarnsAboutMemoryBackend(t *testing.T) {
	svc, logs := newTestServices(t, "source: {api-key: secret}")
	defer svc.Close(context.Background())

	_, err := svc.Orchestrator(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("budget backend is memory, usage is per process only").Len())
}

func TestSourceFetchesSingleJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ext-7", r.URL.Query().Get("jobId"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "ext-7", "title": "SRE", "companyName": "Hooli"})
	}))
	defer srv.Close()

	svc, _ := newTestServices(t, `source: {api-key: secret, base-url: "`+srv.URL+`"}`)
	ctx := context.Background()

	source, err := svc.Source(ctx)
	require.NoError(t, err)

	raw, err := source.GetJob(ctx, "ext-7")
	require.NoError(t, err)
	assert.Equal(t, "SRE", raw.Title)

	tracker, err := svc.Tracker(ctx)
	require.NoError(t, err)
	st, err := tracker.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Used)

	normalizer, err := svc.Normalizer()
	require.NoError(t, err)
	job := normalizer.Normalize(*raw, "manual")
	assert.Equal(t, "ext-7", job.ExternalJobID)
	assert.Equal(t, "Hooli", job.CompanyName)
}
