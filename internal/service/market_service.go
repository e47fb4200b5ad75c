package service

import (
	"context"
	"errors"

	"ai-marketchat-be/internal/pkg/logger"
	"ai-marketchat-be/internal/pkg/serverutils"
	"ai-marketchat-be/pkg/marketdata"

	"github.com/gofiber/fiber/v2"
)

type IMarketService interface {
	Quote(ctx context.Context, symbol string) (*marketdata.Snapshot, error)
}

type marketService struct {
	provider marketdata.Provider
	logger   logger.ILogger
}

func NewMarketService(provider marketdata.Provider, log logger.ILogger) IMarketService {
	return &marketService{provider: provider, logger: log}
}

// Quote looks a symbol up and maps provider failures to HTTP errors.
func (s *marketService) Quote(ctx context.Context, symbol string) (*marketdata.Snapshot, error) {
	normalized := marketdata.NormalizeSymbol(symbol)
	if normalized == "" {
		return nil, serverutils.NewBadRequest("Please provide a stock symbol")
	}

	snap, err := s.provider.Quote(ctx, normalized)
	if err == nil && snap != nil {
		return snap, nil
	}
	if err == nil {
		err = marketdata.ErrUnavailable
	}

	s.logger.Warn("MarketService", "Quote lookup failed", map[string]interface{}{"symbol": normalized, "provider": s.provider.Name(), "error": err.Error()})

	switch {
	case errors.Is(err, marketdata.ErrSymbolNotFound):
		return nil, serverutils.NewNotFound("Stock symbol '" + normalized + "' not found on NSE/BSE")
	case errors.Is(err, marketdata.ErrRateLimited):
		return nil, &serverutils.HttpError{Code: fiber.StatusTooManyRequests, Message: "Market data rate limit reached, please retry in a minute"}
	default:
		return nil, &serverutils.HttpError{Code: fiber.StatusBadGateway, Message: "Market data service unavailable"}
	}
}
