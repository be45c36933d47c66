package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/cart"
	"github.com/trezcool/canteen/core/menu"
	"github.com/trezcool/canteen/core/order"
)

const contextCartKey = "cart"

var errCartNotFoundInCtx = errors.New("cart engine not found in echo.Context")

type cartApi struct {
	logger   core.Logger
	carts    cart.RemoteStore
	orders   order.ServiceInterface
	menuSvc  menu.ServiceInterface
	validate *validator.Validate
}

func registerCartAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := cartApi{
		logger:   deps.Logger,
		carts:    deps.Carts,
		orders:   deps.OrderSvc,
		menuSvc:  deps.MenuSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/cart", jwt, api.engineMiddleware)
	cg.GET("", api.retrieve)
	cg.DELETE("", api.clear)
	cg.POST("/items", api.addItem)
	cg.PATCH("/items", api.updateQuantity)
	cg.DELETE("/items", api.removeItem)
	cg.POST("/merge", api.merge)
}

// engineMiddleware loads the cart of the request session into an engine.
func (api *cartApi) engineMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sess, err := getContextSession(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context session")
		}

		engine := cart.NewEngine(cart.NopLocalStore(), api.carts, api.orders, cart.StaticIdentity(sess), api.logger)
		defer engine.Close()
		if err = engine.Load(ctx.Request().Context()); err != nil {
			return errors.Wrap(err, "loading cart")
		}
		ctx.Set(contextCartKey, engine)
		return next(ctx)
	}
}

func getContextEngine(ctx echo.Context) (*cart.Engine, error) {
	if engine, ok := ctx.Get(contextCartKey).(*cart.Engine); ok {
		return engine, nil
	}
	return nil, errCartNotFoundInCtx
}

// Handlers

func (api *cartApi) retrieve(ctx echo.Context) error {
	engine, err := getContextEngine(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newCartResponse(engine))
}

func (api *cartApi) addItem(ctx echo.Context) error {
	engine, err := getContextEngine(ctx)
	if err != nil {
		return err
	}

	var data AddCartItemRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddCartItemRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	it, err := api.menuSvc.GetItem(reqCtx, data.ItemID)
	if err != nil {
		if errors.Cause(err) == menu.ErrNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "item_id", Error: "item does not exist"})
		}
		return errors.Wrap(err, "finding menu item")
	}
	if !it.IsAvailable {
		return core.NewValidationError(nil, core.FieldError{Field: "item_id", Error: "item is not available"})
	}

	line := it.LineItem(data.Quantity, data.SpecialInstructions, data.Customizations...)
	if err = engine.Add(line).Wait(reqCtx); err != nil {
		return errors.Wrap(err, "adding cart item")
	}
	return ctx.JSON(http.StatusOK, newCartResponse(engine))
}

func (api *cartApi) updateQuantity(ctx echo.Context) error {
	engine, err := getContextEngine(ctx)
	if err != nil {
		return err
	}

	var data UpdateCartItemRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCartItemRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if err = engine.UpdateQuantity(data.Key(), data.Delta).Wait(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "updating cart item quantity")
	}
	return ctx.JSON(http.StatusOK, newCartResponse(engine))
}

func (api *cartApi) removeItem(ctx echo.Context) error {
	engine, err := getContextEngine(ctx)
	if err != nil {
		return err
	}

	var data CartItemKey
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CartItemKey")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if err = engine.Remove(data.Key()).Wait(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "removing cart item")
	}
	return ctx.JSON(http.StatusOK, newCartResponse(engine))
}

func (api *cartApi) clear(ctx echo.Context) error {
	engine, err := getContextEngine(ctx)
	if err != nil {
		return err
	}
	if err = engine.Clear().Wait(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "clearing cart")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// merge folds a cart kept by an anonymous client into the remote cart.
func (api *cartApi) merge(ctx echo.Context) error {
	engine, err := getContextEngine(ctx)
	if err != nil {
		return err
	}
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}

	var data MergeCartRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MergeCartRequest")
	}

	reqCtx := ctx.Request().Context()
	res := engine.Merge(reqCtx, sess.UserID(), data.Items)
	if err = engine.Load(reqCtx); err != nil {
		return errors.Wrap(err, "reloading cart")
	}
	return ctx.JSON(http.StatusOK, MergeCartResponse{
		Updated:  res.Updated,
		Inserted: res.Inserted,
		Failed:   res.Failed,
		Cart:     newCartResponse(engine),
	})
}

type (
	CartItemKey struct {
		ItemID              string   `json:"item_id" validate:"required"`
		SpecialInstructions string   `json:"special_instructions" validate:"max=500"`
		Customizations      []string `json:"customizations" validate:"max=20,dive,max=120"`
	}

	AddCartItemRequest struct {
		CartItemKey
		Quantity int `json:"quantity" validate:"required,min=1,max=99"`
	}

	UpdateCartItemRequest struct {
		CartItemKey
		Delta int `json:"delta" validate:"required"`
	}

	MergeCartRequest struct {
		Items []cart.LineItem `json:"items"`
	}

	CartResponse struct {
		Items  []cart.LineItem `json:"items"`
		Count  int             `json:"count"`
		Totals cart.Totals     `json:"totals"`
	}

	MergeCartResponse struct {
		Updated  int          `json:"updated"`
		Inserted int          `json:"inserted"`
		Failed   int          `json:"failed"`
		Cart     CartResponse `json:"cart"`
	}
)

func (k *CartItemKey) clean() {
	k.ItemID = core.CleanString(k.ItemID)
	k.SpecialInstructions = core.CleanString(k.SpecialInstructions)
	for i := range k.Customizations {
		k.Customizations[i] = core.CleanString(k.Customizations[i])
	}
}

func (k *CartItemKey) Validate(validate *validator.Validate) error {
	k.clean()
	return validate.Struct(k)
}

func (k CartItemKey) Key() cart.Key {
	return cart.NewKey(k.ItemID, k.SpecialInstructions, k.Customizations...)
}

func (r *AddCartItemRequest) Validate(validate *validator.Validate) error {
	r.clean()
	return validate.Struct(r)
}

func (r *UpdateCartItemRequest) Validate(validate *validator.Validate) error {
	r.clean()
	return validate.Struct(r)
}

func newCartResponse(engine *cart.Engine) CartResponse {
	items := engine.Items()
	if items == nil {
		items = []cart.LineItem{}
	}
	return CartResponse{Items: items, Count: engine.Count(), Totals: engine.Totals()}
}
