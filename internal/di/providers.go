package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kshitij0O7/bitquery-x402/internal/domain/repository"
	"github.com/Kshitij0O7/bitquery-x402/internal/handler/api"
	mid "github.com/Kshitij0O7/bitquery-x402/internal/middleware"
	internalrepo "github.com/Kshitij0O7/bitquery-x402/internal/repository"
	"github.com/Kshitij0O7/bitquery-x402/internal/service/bitquery"
	"github.com/Kshitij0O7/bitquery-x402/internal/service/cache"
	"github.com/Kshitij0O7/bitquery-x402/internal/service/ratelimit"
	"github.com/Kshitij0O7/bitquery-x402/internal/usecase"
	"github.com/Kshitij0O7/bitquery-x402/pkg/cdpauth"
	"github.com/Kshitij0O7/bitquery-x402/pkg/config"
	xhttp "github.com/Kshitij0O7/bitquery-x402/pkg/http"
	pkgkafka "github.com/Kshitij0O7/bitquery-x402/pkg/kafka"
	"github.com/Kshitij0O7/bitquery-x402/pkg/logger"
	"github.com/Kshitij0O7/bitquery-x402/pkg/metrics"
	"github.com/Kshitij0O7/bitquery-x402/pkg/server"
	"github.com/Kshitij0O7/bitquery-x402/pkg/x402"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideReportSource creates the Bitquery GraphQL client.
func ProvideReportSource(cfg *config.Config, m repository.Metrics, l *logger.Logger) repository.ReportSource {
	return bitquery.New(
		cfg.Bitquery.Endpoint,
		cfg.Bitquery.APIKey,
		cfg.Bitquery.Timeout,
		bitquery.WithMetrics(m),
		bitquery.WithLogger(l),
	)
}

// ProvideReplayGuard creates the nonce replay guard. A nil guard disables it.
func ProvideReplayGuard(cfg *config.Config, l *logger.Logger) (repository.ReplayGuard, error) {
	g, err := cache.NewReplayGuard(cfg.Payment.ReplayGuard.Backend, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("replay guard: %w", err)
	}
	if p, ok := g.(cache.Pinger); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			l.Warn("replay guard backend unreachable", logger.String("backend", cfg.Payment.ReplayGuard.Backend), logger.Error(err))
		}
	}
	return g, nil
}

// ProvideSettlementPublisher publishes settlements to Kafka when enabled and to the log otherwise.
func ProvideSettlementPublisher(cfg *config.Config, l *logger.Logger) (repository.SettlementPublisher, error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NewLogSettlementPublisher(l), nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaSettlementPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideFacilitator creates the facilitator client, authenticated with a CDP key when one is set.
func ProvideFacilitator(cfg *config.Config) (x402.Facilitator, error) {
	fc := cfg.Payment.Facilitator
	var opts []x402.FacilitatorOption
	if fc.CDPKeyID != "" && fc.CDPKeySecret != "" {
		ts, err := cdpauth.NewSigner(fc.CDPKeyID, fc.CDPKeySecret, cdpauth.DefaultExpiry)
		if err != nil {
			return nil, fmt.Errorf("cdp auth: %w", err)
		}
		opts = append(opts, x402.WithTokenSource(ts))
	}
	return x402.NewHTTPFacilitator(fc.URL, fc.Timeout, opts...), nil
}

// ProvidePaywall creates the payment gate for the report routes.
func ProvidePaywall(
	cfg *config.Config,
	f x402.Facilitator,
	guard repository.ReplayGuard,
	pub repository.SettlementPublisher,
	m repository.Metrics,
	l *logger.Logger,
) (*mid.Paywall, error) {
	var routes map[string]mid.RoutePayment
	if !cfg.Payment.Bypass {
		var err error
		if routes, err = mid.BuildRoutes(cfg.Payment); err != nil {
			return nil, fmt.Errorf("payment routes: %w", err)
		}
	}
	return mid.NewPaywall(routes, f,
		mid.WithBypass(cfg.Payment.Bypass),
		mid.WithVersion(cfg.Payment.X402Version),
		mid.WithReplayGuard(guard, cfg.Payment.ReplayGuard.TTL),
		mid.WithSettlementPublisher(pub),
		mid.WithPaymentMetrics(m),
		mid.WithPaywallLogger(l),
	), nil
}

// ProvideRelaySigner loads the relay wallet. The relay stays disabled without a usable key.
func ProvideRelaySigner(cfg *config.Config, l *logger.Logger) *x402.Signer {
	if !cfg.Relay.Enabled() {
		l.Warn("EVM_PRIVATE_KEY not set, /proxy relay disabled")
		return nil
	}
	s, err := x402.NewSigner(cfg.Relay.PrivateKey)
	if err != nil {
		l.Warn("relay wallet init failed, /proxy relay disabled", logger.Error(err))
		return nil
	}
	l.Info("relay wallet ready", logger.String("address", s.Address().Hex()))
	return s
}

// ProvideLimiter creates the relay rate limiter.
func ProvideLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideReportsHandler creates the report routes.
func ProvideReportsHandler(l *logger.Logger, source repository.ReportSource) *api.ReportsHandler {
	return api.NewReportsHandler(l, usecase.NewReportsUseCase(source))
}

// ProvideProxyHandler creates the demo relay route.
func ProvideProxyHandler(cfg *config.Config, l *logger.Logger, signer *x402.Signer, limiter *ratelimit.Limiter) *api.ProxyHandler {
	return api.NewProxyHandler(l, cfg.Relay, signer, limiter)
}

// ProvideHTTPServer creates the Echo server with the paywall in front of every route.
func ProvideHTTPServer(
	cfg *config.Config,
	l *logger.Logger,
	reports *api.ReportsHandler,
	proxy *api.ProxyHandler,
	paywall *mid.Paywall,
) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(
		xhttp.Handlers{reports, proxy},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithStaticDir(cfg.Server.StaticDir),
		xhttp.WithMiddleware(paywall.Middleware()),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	srv *xhttp.Server,
	guard repository.ReplayGuard,
	pub repository.SettlementPublisher,
	limiter *ratelimit.Limiter,
) *server.App {
	app := server.New(cfg, l, srv)
	app.AddTask(limiter.Prune)
	if ttl, ok := guard.(*cache.TTLCache); ok {
		app.AddTask(func() { ttl.Sweep() })
	}
	if rc, ok := guard.(*cache.RedisCache); ok {
		app.AddCloser(rc)
	}
	app.AddCloser(pub)
	return app
}
