//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/Kshitij0O7/bitquery-x402/pkg/config"
	"github.com/Kshitij0O7/bitquery-x402/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideReplayGuard,
		ProvideSettlementPublisher,
		ProvideFacilitator,
		ProvideRelaySigner,
		ProvideLimiter,

		// Upstream
		ProvideReportSource,

		// HTTP
		ProvidePaywall,
		ProvideReportsHandler,
		ProvideProxyHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}
