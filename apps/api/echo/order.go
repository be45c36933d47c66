package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core/order"
)

type orderApi struct {
	svc      order.ServiceInterface
	validate *validator.Validate
}

func registerOrderAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := orderApi{svc: deps.OrderSvc, validate: deps.Validate}
	carts := cartApi{
		logger:   deps.Logger,
		carts:    deps.Carts,
		orders:   deps.OrderSvc,
		menuSvc:  deps.MenuSvc,
		validate: deps.Validate,
	}

	og := g.Group("/orders", jwt)
	og.POST("", api.checkout, carts.engineMiddleware)
	og.GET("", api.history)
}

// Handlers

func (api *orderApi) checkout(ctx echo.Context) error {
	engine, err := getContextEngine(ctx)
	if err != nil {
		return err
	}

	var data order.CheckoutRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckoutRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	orderID, err := engine.Submit(reqCtx, data.Checkout())
	if err != nil {
		return errors.Wrap(err, "submitting cart")
	}
	o, err := api.svc.GetByID(reqCtx, orderID)
	if err != nil {
		return errors.Wrap(err, "finding placed order")
	}
	return ctx.JSON(http.StatusCreated, o)
}

func (api *orderApi) history(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	orders := api.svc.History(ctx.Request().Context(), claims.Subject)
	if orders == nil {
		orders = []order.Order{}
	}
	return ctx.JSON(http.StatusOK, orders)
}
