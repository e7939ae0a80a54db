package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Kshitij0O7/bitquery-x402/pkg/config"
	xhttp "github.com/Kshitij0O7/bitquery-x402/pkg/http"
	applogger "github.com/Kshitij0O7/bitquery-x402/pkg/logger"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestRunContextShutsDownInOrder(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.ShutdownTimeout = time.Second

	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0))
	app := New(cfg, applogger.Nop(), srv)

	var order []string
	app.AddCloser(closerFunc(func() error { order = append(order, "first"); return nil }))
	app.AddCloser(closerFunc(func() error { order = append(order, "second"); return nil }))
	app.AddCloser(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, app.RunContext(ctx))
	require.Equal(t, []string{"second", "first"}, order)
}
