package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Kshitij0O7/bitquery-x402/internal/domain/models"
	drepo "github.com/Kshitij0O7/bitquery-x402/internal/domain/repository"
	"github.com/Kshitij0O7/bitquery-x402/pkg/config"
	xhttp "github.com/Kshitij0O7/bitquery-x402/pkg/http"
	"github.com/Kshitij0O7/bitquery-x402/pkg/logger"
	"github.com/Kshitij0O7/bitquery-x402/pkg/x402"
)

// Payment events recorded through Metrics.
const (
	EventChallenge    = "challenge"
	EventRejected     = "rejected"
	EventReplay       = "replay"
	EventVerified     = "verified"
	EventSettled      = "settled"
	EventSettleFailed = "settle_failed"
	EventHandlerError = "handler_error"
)

// RoutePayment is the payment obligation attached to one route.
type RoutePayment struct {
	Accepts     []x402.PaymentRequirements
	Description string
	MimeType    string
}

// RouteKey returns the route table key for method and path.
func RouteKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// BuildRoutes derives the route table from payment configuration: every
// priced route accepts payment on every configured network.
func BuildRoutes(cfg config.PaymentConfig) (map[string]RoutePayment, error) {
	paths := make([]string, 0, len(cfg.Routes))
	for p := range cfg.Routes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	routes := make(map[string]RoutePayment, len(paths))
	for _, path := range paths {
		r := cfg.Routes[path]
		rp := RoutePayment{Description: r.Description, MimeType: r.MimeType}
		for _, n := range cfg.Networks {
			req, err := x402.NewRequirements(n.Network, r.Price, n.PayTo, cfg.MaxTimeoutSeconds)
			if err != nil {
				return nil, fmt.Errorf("route %s on %s: %w", path, n.Network, err)
			}
			rp.Accepts = append(rp.Accepts, req)
		}
		if len(rp.Accepts) == 0 {
			return nil, fmt.Errorf("route %s: no payment networks configured", path)
		}
		routes[RouteKey(http.MethodPost, path)] = rp
	}
	return routes, nil
}

// Paywall requires a verified and settled x402 payment before a protected
// route's response is released.
type Paywall struct {
	routes      map[string]RoutePayment
	facilitator x402.Facilitator
	version     int
	bypass      bool
	guard       drepo.ReplayGuard
	guardTTL    time.Duration
	events      drepo.SettlementPublisher
	metrics     drepo.Metrics
	log         *logger.Logger
	now         func() time.Time
}

// PaywallOption configures Paywall.
type PaywallOption func(*Paywall)

// WithBypass lets every request through unpaid.
func WithBypass(bypass bool) PaywallOption {
	return func(p *Paywall) { p.bypass = bypass }
}

// WithVersion sets the protocol version advertised in challenges.
func WithVersion(v int) PaywallOption {
	return func(p *Paywall) {
		if v > 0 {
			p.version = v
		}
	}
}

// WithReplayGuard rejects proofs whose nonce was already presented.
func WithReplayGuard(g drepo.ReplayGuard, ttl time.Duration) PaywallOption {
	return func(p *Paywall) {
		p.guard = g
		p.guardTTL = ttl
	}
}

// WithSettlementPublisher emits an event per settled payment.
func WithSettlementPublisher(pub drepo.SettlementPublisher) PaywallOption {
	return func(p *Paywall) { p.events = pub }
}

// WithPaymentMetrics records payment events.
func WithPaymentMetrics(m drepo.Metrics) PaywallOption {
	return func(p *Paywall) { p.metrics = m }
}

// WithPaywallLogger sets the logger.
func WithPaywallLogger(l *logger.Logger) PaywallOption {
	return func(p *Paywall) { p.log = l }
}

// NewPaywall creates the payment gate for routes.
func NewPaywall(routes map[string]RoutePayment, f x402.Facilitator, opts ...PaywallOption) *Paywall {
	p := &Paywall{
		routes:      routes,
		facilitator: f,
		version:     x402.Version,
		log:         logger.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Middleware returns the echo middleware. It must run after routing so that
// c.Path() names the matched route.
func (p *Paywall) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if p.bypass {
				return next(c)
			}
			key := RouteKey(c.Request().Method, c.Path())
			route, ok := p.routes[key]
			if !ok {
				return next(c)
			}
			return p.serve(c, next, c.Path(), route)
		}
	}
}

func (p *Paywall) serve(c echo.Context, next echo.HandlerFunc, path string, route RoutePayment) error {
	ctx := c.Request().Context()
	challenge := p.challenge(c, route)

	payment, err := x402.ParsePayment(c.Request().Header)
	if errors.Is(err, x402.ErrNoPayment) {
		p.record(path, EventChallenge)
		return p.deny(c, challenge, "")
	}
	if err != nil {
		return p.reject(c, path, challenge, "invalid payment header", err)
	}

	req, err := match(route.Accepts, payment)
	if err != nil {
		return p.reject(c, path, challenge, err.Error(), nil)
	}

	payer, err := x402.CheckPayload(payment, req, p.now())
	if err != nil {
		return p.reject(c, path, challenge, "invalid payment: "+err.Error(), nil)
	}

	vr, err := p.facilitator.Verify(ctx, payment, req)
	if err != nil {
		return p.reject(c, path, challenge, "payment verification failed", err)
	}
	if !vr.IsValid {
		return p.reject(c, path, challenge, orReason(vr.InvalidReason, "payment invalid"), nil)
	}

	key := replayKey(req.Network, payer, payment.Payload.Authorization.Nonce)
	if p.guard != nil {
		fresh, err := p.guard.TryMark(ctx, key, p.guardTTL)
		if err != nil {
			p.recordError("replay_guard")
			return p.reject(c, path, challenge, "payment replay check unavailable", err)
		}
		if !fresh {
			p.record(path, EventReplay)
			return p.reject(c, path, challenge, "payment nonce already used", nil)
		}
	}
	p.record(path, EventVerified)

	buf := &bufferedWriter{orig: c.Response().Writer, status: http.StatusOK}
	p.run(c, next, buf, func() {
		p.record(path, EventHandlerError)
		p.release(ctx, key)
	})

	status := c.Response().Status
	if buf.wrote {
		status = buf.status
	}
	if status >= http.StatusBadRequest {
		p.record(path, EventHandlerError)
		p.release(ctx, key)
		return buf.flush(status)
	}

	sr, err := p.facilitator.Settle(ctx, payment, req)
	if err == nil && !sr.Success {
		err = errors.New(orReason(sr.ErrorReason, "settlement unsuccessful"))
	}
	if err != nil {
		p.record(path, EventSettleFailed)
		p.log.Warn("payment settlement failed",
			logger.String("route", path),
			logger.String("payer", payer),
			logger.Error(err),
		)
		resetResponse(c, buf.orig)
		return p.deny(c, challenge, "payment settlement failed")
	}

	receipt := receiptFor(sr, req, payer)
	header, err := x402.EncodeHeader(receipt)
	if err != nil {
		return err
	}
	c.Response().Header().Set(x402.HeaderPaymentResponse, header)
	if payment.X402Version < 2 {
		c.Response().Header().Set(x402.HeaderXPaymentResponse, header)
	}
	p.record(path, EventSettled)
	if err := buf.flush(status); err != nil {
		return err
	}

	p.publish(ctx, path, receipt)
	return nil
}

// run calls the handler with its output captured in buf. On panic the real
// writer is restored before the panic continues, so the recover middleware
// answers on it.
func (p *Paywall) run(c echo.Context, next echo.HandlerFunc, buf *bufferedWriter, onPanic func()) {
	c.Response().Writer = buf
	defer func() {
		if r := recover(); r != nil {
			resetResponse(c, buf.orig)
			onPanic()
			panic(r)
		}
	}()
	if herr := next(c); herr != nil {
		c.Error(herr)
	}
	c.Response().Writer = buf.orig
}

// release lets an authorization that was never settled be presented again.
func (p *Paywall) release(ctx context.Context, key string) {
	if p.guard == nil {
		return
	}
	if err := p.guard.Release(context.WithoutCancel(ctx), key); err != nil {
		p.recordError("replay_guard")
		p.log.Warn("payment nonce release failed", logger.String("key", key), logger.Error(err))
	}
}

func (p *Paywall) challenge(c echo.Context, route RoutePayment) x402.PaymentRequired {
	r := c.Request()
	return x402.PaymentRequired{
		X402Version: p.version,
		Resource: x402.ResourceInfo{
			URL:         c.Scheme() + "://" + r.Host + r.URL.Path,
			Description: route.Description,
			MimeType:    route.MimeType,
		},
		Accepts: route.Accepts,
	}
}

func (p *Paywall) deny(c echo.Context, challenge x402.PaymentRequired, reason string) error {
	challenge.Error = reason
	header, err := x402.EncodeHeader(challenge)
	if err != nil {
		return err
	}
	c.Response().Header().Set(x402.HeaderPaymentRequired, header)
	return xhttp.EmptyObjectResponse(c, http.StatusPaymentRequired)
}

func (p *Paywall) reject(c echo.Context, path string, challenge x402.PaymentRequired, reason string, cause error) error {
	p.record(path, EventRejected)
	fields := []logger.Field{
		logger.String("route", path),
		logger.String("reason", reason),
	}
	if cause != nil {
		fields = append(fields, logger.Error(cause))
	}
	p.log.Warn("payment rejected", fields...)
	return p.deny(c, challenge, reason)
}

func (p *Paywall) record(path, event string) {
	if p.metrics != nil {
		p.metrics.RecordPaymentEvent(path, event)
	}
}

func (p *Paywall) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

func (p *Paywall) publish(ctx context.Context, path string, r *x402.SettleResponse) {
	if p.events == nil {
		return
	}
	ev := &models.SettlementEvent{
		Route:       path,
		Network:     r.Network,
		Payer:       r.Payer,
		Transaction: r.Transaction,
		Amount:      r.Amount,
		Asset:       r.Asset,
		At:          p.now().UTC(),
	}
	if err := p.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		p.recordError("settlement_publish")
		p.log.Warn("publish settlement event",
			logger.String("route", path),
			logger.String("transaction", r.Transaction),
			logger.Error(err),
		)
	}
}

// match picks the advertised requirement the payment targets.
func match(accepts []x402.PaymentRequirements, p *x402.PaymentPayload) (x402.PaymentRequirements, error) {
	for _, req := range accepts {
		if p.SchemeName() != req.Scheme || !x402.SameNetwork(p.NetworkID(), req.Network) {
			continue
		}
		if a := p.Accepted; a != nil {
			if !strings.EqualFold(a.PayTo, req.PayTo) || a.AtomicAmount() != req.Amount {
				continue
			}
		}
		return req, nil
	}
	return x402.PaymentRequirements{}, fmt.Errorf("no matching payment requirements for %s on %s", p.SchemeName(), p.NetworkID())
}

func replayKey(network, payer, nonce string) string {
	return strings.ToLower(network + ":" + payer + ":" + nonce)
}

func receiptFor(sr *x402.SettleResponse, req x402.PaymentRequirements, payer string) *x402.SettleResponse {
	out := *sr
	if out.Network == "" {
		out.Network = req.Network
	}
	if out.Payer == "" {
		out.Payer = payer
	}
	if out.Amount == "" {
		out.Amount = req.Amount
	}
	if out.Asset == "" {
		out.Asset = req.Asset
	}
	return &out
}

func orReason(reason, def string) string {
	if reason == "" {
		return def
	}
	return reason
}

// bufferedWriter holds a handler's response until settlement decides its fate.
// Headers go straight to the underlying writer's map, which is not sent
// before flush.
type bufferedWriter struct {
	orig   http.ResponseWriter
	status int
	wrote  bool
	body   bytes.Buffer
}

func (w *bufferedWriter) Header() http.Header { return w.orig.Header() }

func (w *bufferedWriter) WriteHeader(code int) {
	if w.wrote {
		return
	}
	w.status = code
	w.wrote = true
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(b)
}

func (w *bufferedWriter) flush(status int) error {
	w.orig.WriteHeader(status)
	_, err := w.orig.Write(w.body.Bytes())
	return err
}

func resetResponse(c echo.Context, w http.ResponseWriter) {
	h := w.Header()
	for k := range h {
		if k == echo.HeaderXRequestID || strings.HasPrefix(k, "Access-Control-") || k == echo.HeaderVary {
			continue
		}
		h.Del(k)
	}
	resp := c.Response()
	resp.Writer = w
	resp.Status = http.StatusOK
	resp.Size = 0
	resp.Committed = false
}
