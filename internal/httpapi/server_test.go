package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftline/ineffic-engine/internal/config"
	"github.com/riftline/ineffic-engine/internal/stats"
)

type fakeSubsystems struct {
	started, stopped []string
	failOn           string
}

func (f *fakeSubsystems) Start(name string) error {
	if name == f.failOn {
		return assertErr("cannot start")
	}
	f.started = append(f.started, name)
	return nil
}

func (f *fakeSubsystems) Stop(name string) error {
	f.stopped = append(f.stopped, name)
	return nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func validConfig() config.Config {
	return config.Config{
		Depeg: config.DepegConfig{
			Stablecoins: []string{"USDX"}, MinExchangesRequired: 2,
			ThresholdMinor: 0.0005, ThresholdModerate: 0.002, ThresholdSevere: 0.01, ThresholdExtreme: 0.05,
		},
		Correlation: config.CorrelationConfig{ReferenceSymbol: "BTC", MinSamples: 100},
		Classifier: config.ClassifierConfig{
			WeightProfit: 0.30, WeightLiquidity: 0.20, WeightHistorical: 0.20, WeightReversion: 0.15, WeightMarket: 0.15,
		},
		PlanBuilder: config.PlanBuilderConfig{MarketThresholdPct: 0.05, TWAPThresholdPct: 0.20},
		ExitEngine:  config.ExitEngineConfig{StopLossPct: 0.015, EmergencyDrawdownPct: 0.08},
		Server:      config.ServerConfig{ListenAddr: ":8080"},
	}
}

func newTestServer() (*Server, *fakeSubsystems) {
	st := stats.New()
	st.RecordDetection("depeg")
	cfgStore := config.NewStore(validConfig())
	subsys := &fakeSubsystems{failOn: "nosuch"}
	s := New(DefaultConfig(), zerolog.Nop(), st, cfgStore, subsys, nil, nil)
	return s, subsys
}

func TestHandleStatsReturnsRecordedCounters(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]stats.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, uint64(1), body["depeg"].Detections)
}

func TestHandleUpdateConfigAppliesValidConfig(t *testing.T) {
	s, _ := newTestServer()
	next := validConfig()
	next.Server.ListenAddr = ":9090"
	payload, err := json.Marshal(next)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/config", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, ":9090", s.cfgStore.Current().Server.ListenAddr)
}

func TestHandleUpdateConfigRejectsInvalidConfig(t *testing.T) {
	s, _ := newTestServer()
	bad := validConfig()
	bad.Server.ListenAddr = ""
	payload, err := json.Marshal(bad)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/config", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, ":8080", s.cfgStore.Current().Server.ListenAddr)
}

func TestHandleSubsystemStartAndStop(t *testing.T) {
	s, subsys := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/subsystems/depeg/start", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, subsys.started, "depeg")

	req = httptest.NewRequest(http.MethodPost, "/subsystems/depeg/stop", nil)
	rr = httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, subsys.stopped, "depeg")
}

func TestHandleSubsystemStartPropagatesFailure(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/subsystems/nosuch/start", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNotFoundRouteReturns404(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
