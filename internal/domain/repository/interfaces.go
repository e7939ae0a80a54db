package repository

import (
	"context"
	"time"

	"github.com/Kshitij0O7/bitquery-x402/internal/domain/models"
)

// ReportSource fetches market-data reports for a token.
type ReportSource interface {
	LatestPrice(ctx context.Context, token string) ([]models.ClosePrice, error)
	OHLC(ctx context.Context, token string, interval any) ([]models.OHLCPoint, error)
	AveragePrice(ctx context.Context, token string, interval any) ([]models.AveragePoint, error)
	Volume(ctx context.Context, token string, interval any) ([]models.VolumePoint, error)
}

// ReplayGuard marks payment nonces as used.
type ReplayGuard interface {
	// TryMark records key for ttl and reports whether it was not already present.
	TryMark(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets key so the same authorization can be presented again.
	Release(ctx context.Context, key string) error
}

// SettlementPublisher emits an audit event per settled payment.
type SettlementPublisher interface {
	Publish(ctx context.Context, ev *models.SettlementEvent) error
	Close() error
}

type Metrics interface {
	RecordUpstream(report string, outcome string, seconds float64)
	RecordPaymentEvent(route, event string)
	RecordError(kind string)
}
