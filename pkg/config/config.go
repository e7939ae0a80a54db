package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Kshitij0O7/bitquery-x402/pkg/logger"
)

// Report route paths served behind the paywall.
const (
	RouteLatestPrice  = "/latest-price"
	RouteOHLC         = "/ohlc"
	RouteAveragePrice = "/average-price"
	RouteVolume       = "/volume"
)

// ReportRoutes lists the protected report routes in a stable order.
var ReportRoutes = []string{RouteLatestPrice, RouteOHLC, RouteAveragePrice, RouteVolume}

type Config struct {
	Environment string        `yaml:"environment" default:"development"`
	Server      ServerConfig  `yaml:"server"`
	Log         logger.Config `yaml:"log"`
	Metrics     struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Bitquery BitqueryConfig `yaml:"bitquery"`
	Payment  PaymentConfig  `yaml:"payment"`
	Relay    RelayConfig    `yaml:"relay"`
	Redis    struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"x402.settlements"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"snappy"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		Async        bool          `yaml:"async" default:"true"`
	} `yaml:"kafka"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"4021" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"90s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	StaticDir       string        `yaml:"static_dir"`
}

type BitqueryConfig struct {
	Endpoint string        `yaml:"endpoint" default:"https://streaming.bitquery.io/graphql" validate:"required,url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout" default:"30s"`
}

type PaymentConfig struct {
	// Bypass disables the paywall for every route.
	Bypass            bool              `yaml:"bypass"`
	X402Version       int               `yaml:"x402_version" default:"2" validate:"oneof=1 2"`
	MaxTimeoutSeconds int               `yaml:"max_timeout_seconds" default:"300" validate:"gt=0"`
	Facilitator       FacilitatorConfig `yaml:"facilitator"`
	Networks          []NetworkPayee    `yaml:"networks" validate:"dive"`
	Routes            map[string]Route  `yaml:"routes" validate:"dive"`
	ReplayGuard       struct {
		Backend string        `yaml:"backend" default:"memory" validate:"oneof=none memory redis"`
		TTL     time.Duration `yaml:"ttl" default:"10m"`
	} `yaml:"replay_guard"`
}

type FacilitatorConfig struct {
	URL          string        `yaml:"url" default:"https://x402.org/facilitator" validate:"required,url"`
	Timeout      time.Duration `yaml:"timeout" default:"15s"`
	CDPKeyID     string        `yaml:"cdp_api_key_id"`
	CDPKeySecret string        `yaml:"cdp_api_key_secret"`
}

// NetworkPayee binds a CAIP-2 network to the address receiving payments on it.
type NetworkPayee struct {
	Network string `yaml:"network" validate:"required"`
	PayTo   string `yaml:"pay_to" validate:"omitempty,eth_addr"`
}

type Route struct {
	Price       string `yaml:"price" validate:"required"`
	Description string `yaml:"description"`
	MimeType    string `yaml:"mime_type"`
}

type RelayConfig struct {
	PrivateKey string        `yaml:"private_key"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout" default:"60s"`
	RateLimit  struct {
		Capacity     float64 `yaml:"capacity" default:"5"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"0.2"`
	} `yaml:"rate_limit"`
}

// Enabled reports whether the demo relay has a signing key.
func (r RelayConfig) Enabled() bool { return strings.TrimSpace(r.PrivateKey) != "" }

// DefaultNetwork is used when no payee network is configured.
const DefaultNetwork = "eip155:84532"

// DefaultRoutes returns the stock price table for the report routes.
func DefaultRoutes() map[string]Route {
	return map[string]Route{
		RouteLatestPrice:  {Price: "$0.001", Description: "Latest price of a token via Bitquery"},
		RouteOHLC:         {Price: "$0.001", Description: "OHLC series of a token via Bitquery"},
		RouteAveragePrice: {Price: "$0.001", Description: "Averaged price series of a token via Bitquery"},
		RouteVolume:       {Price: "$0.001", Description: "Trade volume of a token via Bitquery"},
	}
}

var validate = validator.New()

// Load reads and parses a YAML configuration file on top of the defaults.
// A missing file is not an error; the environment may carry everything.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML, overrides with environment variables and validates.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)
	c.ApplyDerivedDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("BITQUERY_API_KEY"); v != "" {
		c.Bitquery.APIKey = v
	}
	if v := getenv("BITQUERY_ENDPOINT"); v != "" {
		c.Bitquery.Endpoint = v
	}
	if v := getenv("EVM_PRIVATE_KEY"); v != "" {
		c.Relay.PrivateKey = v
	}
	if v := getenv("RELAY_BASE_URL"); v != "" {
		c.Relay.BaseURL = v
	}
	if v := getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := getenv("X402_BYPASS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Payment.Bypass = b
		}
	}
	if v := getenv("FACILITATOR_URL"); v != "" {
		c.Payment.Facilitator.URL = v
	}
	if v := getenv("CDP_API_KEY_ID"); v != "" {
		c.Payment.Facilitator.CDPKeyID = v
	}
	if v := getenv("CDP_API_KEY_SECRET"); v != "" {
		c.Payment.Facilitator.CDPKeySecret = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	if v := getenv("PAY_TO"); v != "" {
		if len(c.Payment.Networks) == 0 {
			c.Payment.Networks = []NetworkPayee{{Network: DefaultNetwork}}
		}
		for i := range c.Payment.Networks {
			if c.Payment.Networks[i].PayTo == "" {
				c.Payment.Networks[i].PayTo = v
			}
		}
	}
	for i := range c.Payment.Networks {
		if v := getenv("PAY_TO_" + envSuffix(c.Payment.Networks[i].Network)); v != "" {
			c.Payment.Networks[i].PayTo = v
		}
	}
}

// ApplyDerivedDefaults fills values that depend on other settings.
func (c *Config) ApplyDerivedDefaults() {
	if len(c.Payment.Routes) == 0 {
		c.Payment.Routes = DefaultRoutes()
	}
	stock := DefaultRoutes()
	for path, r := range c.Payment.Routes {
		if r.Description == "" {
			r.Description = stock[path].Description
		}
		if r.MimeType == "" {
			r.MimeType = "application/json"
		}
		c.Payment.Routes[path] = r
	}
	if c.Relay.BaseURL == "" {
		c.Relay.BaseURL = fmt.Sprintf("http://127.0.0.1:%d", c.Server.Port)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Bitquery.APIKey == "" {
		return fmt.Errorf("bitquery.api_key is required")
	}
	for path := range c.Payment.Routes {
		if !IsReportRoute(path) {
			return fmt.Errorf("payment.routes: unknown route %q", path)
		}
	}
	if c.Payment.Bypass {
		return nil
	}
	if len(c.Payment.Networks) == 0 {
		return fmt.Errorf("payment.networks cannot be empty unless payment.bypass is set")
	}
	for _, n := range c.Payment.Networks {
		if n.PayTo == "" {
			return fmt.Errorf("payment.networks[%s].pay_to is required", n.Network)
		}
	}
	return nil
}

// IsReportRoute reports whether path is one of the protected report routes.
func IsReportRoute(path string) bool {
	for _, r := range ReportRoutes {
		if r == path {
			return true
		}
	}
	return false
}

// envSuffix turns "eip155:84532" into "EIP155_84532".
func envSuffix(network string) string {
	r := strings.NewReplacer(":", "_", "-", "_", ".", "_")
	return strings.ToUpper(r.Replace(network))
}
