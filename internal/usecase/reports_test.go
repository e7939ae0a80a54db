package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Kshitij0O7/bitquery-x402/internal/domain/models"
	"github.com/Kshitij0O7/bitquery-x402/internal/service/bitquery"
	xhttp "github.com/Kshitij0O7/bitquery-x402/pkg/http"
)

type fakeSource struct {
	latest   []models.ClosePrice
	ohlc     []models.OHLCPoint
	err      error
	interval any
}

func (f *fakeSource) LatestPrice(context.Context, string) ([]models.ClosePrice, error) {
	return f.latest, f.err
}

func (f *fakeSource) OHLC(_ context.Context, _ string, interval any) ([]models.OHLCPoint, error) {
	f.interval = interval
	return f.ohlc, f.err
}

func (f *fakeSource) AveragePrice(_ context.Context, _ string, interval any) ([]models.AveragePoint, error) {
	f.interval = interval
	return nil, f.err
}

func (f *fakeSource) Volume(_ context.Context, _ string, interval any) ([]models.VolumePoint, error) {
	f.interval = interval
	return nil, f.err
}

func asAppError(t *testing.T, err error) *xhttp.AppError {
	t.Helper()
	var appErr *xhttp.AppError
	require.True(t, errors.As(err, &appErr), "got %T: %v", err, err)
	return appErr
}

func closeRecord(raw string) models.ClosePrice {
	return models.ClosePrice{Price: &models.OhlcPrice{Ohlc: &models.Ohlc{Close: models.Value(raw)}}}
}

func TestLatestPrice(t *testing.T) {
	uc := NewReportsUseCase(&fakeSource{latest: []models.ClosePrice{closeRecord(`"1.23"`)}})
	v, err := uc.LatestPrice(context.Background(), models.ReportRequest{TokenAddress: "0xabc"})
	require.NoError(t, err)
	require.Equal(t, `"1.23"`, string(v))
}

func TestLatestPriceMissing(t *testing.T) {
	cases := map[string][]models.ClosePrice{
		"null close": {closeRecord("null")},
		"zero close": {closeRecord("0")},
		"no ohlc":    {{Price: &models.OhlcPrice{}}},
		"no price":   {{}},
	}
	for name, records := range cases {
		t.Run(name, func(t *testing.T) {
			uc := NewReportsUseCase(&fakeSource{latest: records})
			_, err := uc.LatestPrice(context.Background(), models.ReportRequest{TokenAddress: "0xabc"})
			appErr := asAppError(t, err)
			require.Equal(t, http.StatusNotFound, appErr.Status)
			require.Equal(t, xhttp.CategoryNoPriceData, appErr.Category)
			require.Equal(t, "0xabc", appErr.Params["tokenAddress"])
		})
	}
}

func TestEmptySeriesIsNotFound(t *testing.T) {
	src := &fakeSource{}
	uc := NewReportsUseCase(src)
	ctx := context.Background()
	req := models.ReportRequest{TokenAddress: "0xabc", Interval: float64(300)}

	_, err := uc.OHLC(ctx, req)
	appErr := asAppError(t, err)
	require.Equal(t, http.StatusNotFound, appErr.Status)
	require.Equal(t, xhttp.CategoryNoDataFound, appErr.Category)
	require.Equal(t, float64(300), appErr.Params["interval"])

	_, err = uc.LatestPrice(ctx, req)
	require.Equal(t, xhttp.CategoryNoDataFound, asAppError(t, err).Category)

	_, err = uc.Volume(ctx, req)
	require.Equal(t, http.StatusNotFound, asAppError(t, err).Status)
}

func TestIntervalDefaults(t *testing.T) {
	for _, in := range []any{nil, float64(0), "", false} {
		src := &fakeSource{ohlc: []models.OHLCPoint{{}}}
		_, err := NewReportsUseCase(src).OHLC(context.Background(), models.ReportRequest{TokenAddress: "x", Interval: in})
		require.NoError(t, err)
		require.Equal(t, models.DefaultInterval, src.interval, "%#v", in)
	}

	src := &fakeSource{ohlc: []models.OHLCPoint{{}}}
	_, err := NewReportsUseCase(src).AveragePrice(context.Background(), models.ReportRequest{TokenAddress: "x", Interval: "3600"})
	require.Error(t, err)
	require.Equal(t, int64(3600), src.interval)

	src = &fakeSource{}
	_, err = NewReportsUseCase(src).Volume(context.Background(), models.ReportRequest{TokenAddress: "x", Interval: "1h"})
	require.Error(t, err)
	require.Equal(t, "1h", src.interval)
}

func TestSourceErrorMapping(t *testing.T) {
	ctx := context.Background()
	req := models.ReportRequest{TokenAddress: "0xabc"}

	details := []any{map[string]any{"message": "bad query"}}
	_, err := NewReportsUseCase(&fakeSource{err: &bitquery.QueryError{Message: "bad query", Details: details}}).OHLC(ctx, req)
	appErr := asAppError(t, err)
	require.Equal(t, http.StatusBadRequest, appErr.Status)
	require.Equal(t, xhttp.CategoryUpstreamAPI, appErr.Category)
	require.Equal(t, "bad query", appErr.Message)
	require.Equal(t, details, appErr.Params["details"])

	_, err = NewReportsUseCase(&fakeSource{err: &bitquery.StatusError{Status: 401, Message: "invalid token", Body: map[string]any{"message": "invalid token"}}}).Volume(ctx, req)
	appErr = asAppError(t, err)
	require.Equal(t, http.StatusInternalServerError, appErr.Status)
	require.Equal(t, "invalid token", appErr.Message)
	require.NotNil(t, appErr.Params["details"])

	_, err = NewReportsUseCase(&fakeSource{err: &bitquery.ShapeError{Report: "volume", Err: errors.New("boom")}}).Volume(ctx, req)
	appErr = asAppError(t, err)
	require.Equal(t, http.StatusInternalServerError, appErr.Status)
	require.Equal(t, "Failed to fetch token volume", appErr.Message)

	_, err = NewReportsUseCase(&fakeSource{err: errors.New("dial tcp: refused")}).LatestPrice(ctx, req)
	appErr = asAppError(t, err)
	require.Equal(t, xhttp.CategoryInternal, appErr.Category)
	require.Equal(t, "dial tcp: refused", appErr.Message)
}
