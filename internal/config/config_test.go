package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Depeg: DepegConfig{
			Stablecoins: []string{"USDX"}, MinExchangesRequired: 2,
			ThresholdMinor: 0.0005, ThresholdModerate: 0.002, ThresholdSevere: 0.01, ThresholdExtreme: 0.05,
		},
		Correlation: CorrelationConfig{ReferenceSymbol: "BTC", MinSamples: 100},
		Classifier: ClassifierConfig{
			WeightProfit: 0.30, WeightLiquidity: 0.20, WeightHistorical: 0.20, WeightReversion: 0.15, WeightMarket: 0.15,
		},
		PlanBuilder: PlanBuilderConfig{MarketThresholdPct: 0.05, TWAPThresholdPct: 0.20},
		ExitEngine:  ExitEngineConfig{StopLossPct: 0.015, EmergencyDrawdownPct: 0.08},
		Server:      ServerConfig{ListenAddr: ":8080"},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsBadWeightSum(t *testing.T) {
	c := validConfig()
	c.Classifier.WeightProfit = 0.9
	assert.Error(t, c.Validate())
}

func TestValidateRejectsNonMonotoneThresholdLadder(t *testing.T) {
	c := validConfig()
	c.Depeg.ThresholdSevere = 0.001
	assert.Error(t, c.Validate())
}

func TestStoreUpdateIsAtomicAndRejectsInvalid(t *testing.T) {
	s := NewStore(validConfig())
	bad := validConfig()
	bad.Server.ListenAddr = ""
	err := s.Update(bad)
	assert.Error(t, err)
	assert.Equal(t, ":8080", s.Current().Server.ListenAddr, "rejected update must not replace the live config")

	good := validConfig()
	good.Server.ListenAddr = ":9090"
	require.NoError(t, s.Update(good))
	assert.Equal(t, ":9090", s.Current().Server.ListenAddr)
}

func TestValidateRejectsNegativeInfraTimeout(t *testing.T) {
	c := validConfig()
	c.Infra.QueryTimeoutSecs = -1
	assert.Error(t, c.Validate())
}

func TestUpdateIdempotentWhenReapplied(t *testing.T) {
	s := NewStore(validConfig())
	require.NoError(t, s.Update(validConfig()))
	require.NoError(t, s.Update(validConfig()))
	assert.Equal(t, validConfig().Server.ListenAddr, s.Current().Server.ListenAddr)
}
