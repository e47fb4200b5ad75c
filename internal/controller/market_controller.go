package controller

import (
	"ai-marketchat-be/internal/dto"
	"ai-marketchat-be/internal/pkg/serverutils"
	"ai-marketchat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IMarketController interface {
	RegisterRoutes(r fiber.Router)
	Quote(ctx *fiber.Ctx) error
}

type marketController struct {
	service service.IMarketService
}

func NewMarketController(service service.IMarketService) IMarketController {
	return &marketController{service: service}
}

func (c *marketController) RegisterRoutes(r fiber.Router) {
	r.Post("/stock", c.Quote)
}

func (c *marketController) Quote(ctx *fiber.Ctx) error {
	var req dto.StockQuoteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequest("Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return serverutils.NewBadRequest("Please provide a stock symbol")
	}

	res, err := c.service.Quote(ctx.UserContext(), req.Symbol)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get stock quote", res))
}
