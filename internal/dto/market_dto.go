package dto

type StockQuoteRequest struct {
	Symbol string `json:"symbol" validate:"required"`
}
