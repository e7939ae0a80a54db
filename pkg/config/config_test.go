package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 4021, c.Server.Port)
	require.Equal(t, "https://streaming.bitquery.io/graphql", c.Bitquery.Endpoint)
	require.Equal(t, 2, c.Payment.X402Version)
	require.Equal(t, "memory", c.Payment.ReplayGuard.Backend)
	require.Equal(t, 10*time.Minute, c.Payment.ReplayGuard.TTL)
	require.Equal(t, 10*time.Second, c.Kafka.WriteTimeout)
	require.True(t, c.Kafka.Async)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 5000
payment:
  networks:
    - network: eip155:8453
      pay_to: "0x4C10192b9F6F4781BA5fb27145743630e4B0D3F8"
  routes:
    /ohlc:
      price: "$0.01"
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	c.applyEnv(envFrom(map[string]string{"BITQUERY_API_KEY": "k"}))
	c.ApplyDerivedDefaults()
	require.NoError(t, c.Validate())

	require.Equal(t, 5000, c.Server.Port)
	require.Equal(t, "http://127.0.0.1:5000", c.Relay.BaseURL)
	require.Equal(t, "$0.01", c.Payment.Routes[RouteOHLC].Price)
	require.Equal(t, "OHLC series of a token via Bitquery", c.Payment.Routes[RouteOHLC].Description)
	require.Equal(t, "application/json", c.Payment.Routes[RouteOHLC].MimeType)
}

func TestApplyEnv(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	c.applyEnv(envFrom(map[string]string{
		"BITQUERY_API_KEY":    "bq",
		"EVM_PRIVATE_KEY":     "0x01",
		"PORT":                "8080",
		"X402_BYPASS":         "true",
		"PAY_TO":              "0x4C10192b9F6F4781BA5fb27145743630e4B0D3F8",
		"PAY_TO_EIP155_84532": "0x9858EfFD232B4033E47d90003D41EC34EcaEda94",
		"KAFKA_BROKERS":       "a:9092,b:9092",
	}))
	c.ApplyDerivedDefaults()

	require.Equal(t, "bq", c.Bitquery.APIKey)
	require.True(t, c.Relay.Enabled())
	require.Equal(t, 8080, c.Server.Port)
	require.True(t, c.Payment.Bypass)
	require.Len(t, c.Payment.Networks, 1)
	require.Equal(t, DefaultNetwork, c.Payment.Networks[0].Network)
	require.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", c.Payment.Networks[0].PayTo)
	require.True(t, c.Kafka.Enabled)
	require.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	require.Len(t, c.Payment.Routes, len(ReportRoutes))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c, err := Load("")
		require.NoError(t, err)
		c.Bitquery.APIKey = "k"
		c.Payment.Networks = []NetworkPayee{{Network: DefaultNetwork, PayTo: "0x4C10192b9F6F4781BA5fb27145743630e4B0D3F8"}}
		c.ApplyDerivedDefaults()
		return c
	}
	require.NoError(t, base().Validate())

	c := base()
	c.Bitquery.APIKey = ""
	require.ErrorContains(t, c.Validate(), "bitquery.api_key")

	c = base()
	c.Payment.Networks = nil
	require.ErrorContains(t, c.Validate(), "payment.networks")
	c.Payment.Bypass = true
	require.NoError(t, c.Validate())

	c = base()
	c.Payment.Routes["/proxy"] = Route{Price: "$1"}
	require.ErrorContains(t, c.Validate(), "unknown route")

	c = base()
	c.Payment.Networks[0].PayTo = "not-an-address"
	require.Error(t, c.Validate())
}

func TestIsReportRoute(t *testing.T) {
	for _, r := range ReportRoutes {
		require.True(t, IsReportRoute(r))
	}
	require.False(t, IsReportRoute("/proxy"))
	require.False(t, IsReportRoute("/ohlc/"))
	require.False(t, IsReportRoute(""))
}
