package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kshitij0O7/bitquery-x402/internal/domain/models"
	domrepo "github.com/Kshitij0O7/bitquery-x402/internal/domain/repository"
	"github.com/Kshitij0O7/bitquery-x402/internal/service/bitquery"
	xhttp "github.com/Kshitij0O7/bitquery-x402/pkg/http"
)

// ReportsUseCase fetches reports and maps provider failures onto HTTP errors.
type ReportsUseCase struct {
	source domrepo.ReportSource
}

func NewReportsUseCase(source domrepo.ReportSource) *ReportsUseCase {
	return &ReportsUseCase{source: source}
}

// LatestPrice returns the latest close value for the token exactly as the
// provider encoded it.
func (uc *ReportsUseCase) LatestPrice(ctx context.Context, req models.ReportRequest) (models.Value, error) {
	records, err := uc.source.LatestPrice(ctx, req.TokenAddress)
	if err != nil {
		return nil, mapSourceError(err, "Failed to fetch latest price")
	}
	if len(records) == 0 {
		return nil, xhttp.NotFoundError(xhttp.CategoryNoDataFound,
			fmt.Sprintf("No price data found for token address: %s", req.TokenAddress)).
			WithParam("tokenAddress", req.TokenAddress)
	}

	price := records[0].Close()
	if price.Empty() {
		return nil, xhttp.NotFoundError(xhttp.CategoryNoPriceData,
			fmt.Sprintf("Price data not available for token address: %s", req.TokenAddress)).
			WithParam("tokenAddress", req.TokenAddress)
	}
	return price, nil
}

// OHLC returns the OHLC series for the token.
func (uc *ReportsUseCase) OHLC(ctx context.Context, req models.ReportRequest) ([]models.OHLCPoint, error) {
	interval := req.EffectiveInterval()
	records, err := uc.source.OHLC(ctx, req.TokenAddress, interval)
	if err != nil {
		return nil, mapSourceError(err, "Failed to fetch OHLC data")
	}
	if len(records) == 0 {
		return nil, noSeries("No OHLC data found for token address: %s", req.TokenAddress, interval)
	}
	return records, nil
}

// AveragePrice returns the averaged price series for the token.
func (uc *ReportsUseCase) AveragePrice(ctx context.Context, req models.ReportRequest) ([]models.AveragePoint, error) {
	interval := req.EffectiveInterval()
	records, err := uc.source.AveragePrice(ctx, req.TokenAddress, interval)
	if err != nil {
		return nil, mapSourceError(err, "Failed to fetch average price")
	}
	if len(records) == 0 {
		return nil, noSeries("No trading data found for token address: %s", req.TokenAddress, interval)
	}
	return records, nil
}

// Volume returns the volume series for the token.
func (uc *ReportsUseCase) Volume(ctx context.Context, req models.ReportRequest) ([]models.VolumePoint, error) {
	interval := req.EffectiveInterval()
	records, err := uc.source.Volume(ctx, req.TokenAddress, interval)
	if err != nil {
		return nil, mapSourceError(err, "Failed to fetch token volume")
	}
	if len(records) == 0 {
		return nil, noSeries("No volume data found for token address: %s", req.TokenAddress, interval)
	}
	return records, nil
}

func noSeries(format, token string, interval any) *xhttp.AppError {
	return xhttp.NotFoundError(xhttp.CategoryNoDataFound, fmt.Sprintf(format, token)).
		WithParam("tokenAddress", token).
		WithParam("interval", interval)
}

func mapSourceError(err error, fallback string) *xhttp.AppError {
	var (
		qe *bitquery.QueryError
		se *bitquery.StatusError
		sh *bitquery.ShapeError
	)
	switch {
	case errors.As(err, &qe):
		return xhttp.UpstreamError(qe.Message).
			WithParam("details", qe.Details).
			WithError(err)
	case errors.As(err, &se):
		appErr := xhttp.InternalError(orDefault(se.Message, fallback)).WithError(err)
		if se.Body != nil {
			appErr.WithParam("details", se.Body)
		}
		return appErr
	case errors.As(err, &sh):
		return xhttp.InternalError(fallback).WithError(err)
	default:
		return xhttp.InternalError(orDefault(err.Error(), fallback)).WithError(err)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
