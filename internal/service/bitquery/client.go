package bitquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/Kshitij0O7/bitquery-x402/internal/domain/models"
	drepo "github.com/Kshitij0O7/bitquery-x402/internal/domain/repository"
	xhttp "github.com/Kshitij0O7/bitquery-x402/pkg/http"
	"github.com/Kshitij0O7/bitquery-x402/pkg/logger"
)

// DefaultEndpoint is the Bitquery streaming GraphQL endpoint.
const DefaultEndpoint = "https://streaming.bitquery.io/graphql"

// Client queries the Bitquery GraphQL API.
type Client struct {
	endpoint string
	apiKey   string
	http     *xhttp.Client
	metrics  drepo.Metrics
	log      *logger.Logger
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *xhttp.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithMetrics records latency and outcome per report.
func WithMetrics(m drepo.Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(cl *Client) { cl.log = l }
}

// New creates a Bitquery client authenticating with apiKey.
func New(endpoint, apiKey string, timeout time.Duration, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     xhttp.NewClient(xhttp.WithTimeout(timeout)),
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ drepo.ReportSource = (*Client)(nil)

// LatestPrice returns at most one record holding the latest close price.
func (c *Client) LatestPrice(ctx context.Context, token string) ([]models.ClosePrice, error) {
	return fetch[models.ClosePrice](ctx, c, models.ReportLatestPrice, token, latestPriceInterval)
}

// OHLC returns the close series for token at interval seconds.
func (c *Client) OHLC(ctx context.Context, token string, interval any) ([]models.OHLCPoint, error) {
	return fetch[models.OHLCPoint](ctx, c, models.ReportOHLC, token, interval)
}

// AveragePrice returns the averaged price series for token.
func (c *Client) AveragePrice(ctx context.Context, token string, interval any) ([]models.AveragePoint, error) {
	return fetch[models.AveragePoint](ctx, c, models.ReportAveragePrice, token, interval)
}

// Volume returns the traded volume series for token.
func (c *Client) Volume(ctx context.Context, token string, interval any) ([]models.VolumePoint, error) {
	return fetch[models.VolumePoint](ctx, c, models.ReportVolume, token, interval)
}

type envelope[T any] struct {
	Data *struct {
		Trading *struct {
			Tokens []T `json:"Tokens"`
		} `json:"Trading"`
	} `json:"data"`
	Errors []any `json:"errors"`
}

func fetch[T any](ctx context.Context, c *Client, report models.Report, token string, interval any) ([]T, error) {
	query, ok := Query(report)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReport, report)
	}

	start := time.Now()
	var raw []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: http.MethodPost,
		URL:    c.endpoint,
		Headers: map[string]string{
			"Authorization": "Bearer " + c.apiKey,
			"Content-Type":  "application/json",
		},
		Body: request{Query: query, Variables: variables(token, interval)},
	}, &raw)

	records, err := decode[T](report, raw, err)
	c.observe(report, start, err)
	if err != nil {
		c.log.Error("bitquery request failed",
			logger.String("report", string(report)),
			logger.String("token", token),
			logger.Error(err),
		)
		return nil, err
	}
	return records, nil
}

func decode[T any](report models.Report, raw []byte, err error) ([]T, error) {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return nil, statusError(se)
	}
	if err != nil {
		return nil, fmt.Errorf("bitquery %s: %w", report, err)
	}

	var env envelope[T]
	if err := sonic.ConfigStd.Unmarshal(raw, &env); err != nil {
		return nil, &ShapeError{Report: string(report), Err: err}
	}
	if env.Errors != nil {
		return nil, queryError(env.Errors)
	}
	if env.Data == nil || env.Data.Trading == nil {
		return []T{}, nil
	}
	if env.Data.Trading.Tokens == nil {
		return []T{}, nil
	}
	return env.Data.Trading.Tokens, nil
}

func statusError(se *xhttp.StatusError) *StatusError {
	out := &StatusError{Status: se.StatusCode, Message: http.StatusText(se.StatusCode)}
	var body any
	if err := sonic.ConfigStd.Unmarshal(se.Body, &body); err != nil {
		if len(se.Body) > 0 {
			out.Body = string(se.Body)
		}
		return out
	}
	out.Body = body
	if m, ok := body.(map[string]any); ok {
		if s, ok := m["message"].(string); ok && s != "" {
			out.Message = s
		}
	}
	return out
}

func (c *Client) observe(report models.Report, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "ok"
	var (
		qe *QueryError
		se *StatusError
		sh *ShapeError
	)
	switch {
	case err == nil:
	case errors.As(err, &qe):
		outcome = "query_error"
	case errors.As(err, &se):
		outcome = "status_error"
	case errors.As(err, &sh):
		outcome = "shape_error"
	default:
		outcome = "transport_error"
	}
	c.metrics.RecordUpstream(string(report), outcome, time.Since(start).Seconds())
}
