package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/order"
	"github.com/trezcool/canteen/core/report"
	"github.com/trezcool/canteen/services/realtime"
)

var errOrderNotFoundInCtx = errors.New("order not found in echo.Context")

type adminApi struct {
	conf     *core.Config
	logger   core.Logger
	orders   order.ServiceInterface
	stats    StatsProvider
	feed     realtime.Feed
	validate *validator.Validate
}

func registerAdminAPI(g *echo.Group, deps *Deps) {
	api := adminApi{
		conf:     deps.Conf,
		logger:   deps.Logger,
		orders:   deps.OrderSvc,
		stats:    deps.ReportSvc,
		feed:     deps.Feed,
		validate: deps.Validate,
	}

	// the dashboard stream authenticates with `?token=`
	g.GET("/admin/orders/stream", api.stream, jwtMiddleware(deps.Conf, queryTokenLookup), staffMiddleware())

	ag := g.Group("/admin", jwtMiddleware(deps.Conf, headerTokenLookup), staffMiddleware())
	ag.GET("/stats", api.statistics)

	og := ag.Group("/orders")
	og.GET("", api.query)
	og.GET("/special", api.listSpecial)
	og.PATCH("/:id/status", api.updateStatus, api.orderMiddleware)
	og.POST("/:id/special", api.markSpecial, api.orderMiddleware)
}

// Handlers

func (api *adminApi) query(ctx echo.Context) error {
	var params orderQueryParams
	if err := ctx.Bind(&params); err != nil {
		return errors.Wrap(err, "binding to orderQueryParams")
	}

	loc := api.conf.Location()
	from, err := queryTime(ctx, "created_from", loc)
	if err != nil {
		return err
	}
	to, err := queryTime(ctx, "created_to", loc)
	if err != nil {
		return err
	}

	filter := &order.QueryFilter{
		UserID:      params.UserID,
		Statuses:    params.Statuses,
		CreatedFrom: from,
		CreatedTo:   to,
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	orders, err := api.orders.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying orders")
	}
	if orders == nil {
		orders = []order.Order{}
	}
	return ctx.JSON(http.StatusOK, orders)
}

func (api *adminApi) updateStatus(ctx echo.Context) error {
	o, ok := ctx.Get("object").(order.Order)
	if !ok {
		return errors.Wrap(errOrderNotFoundInCtx, "retrieving object from context")
	}

	var data order.UpdateStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	o, err := api.orders.UpdateStatus(ctx.Request().Context(), o.ID, data.Status)
	if err != nil {
		return errors.Wrap(err, "updating order status")
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *adminApi) markSpecial(ctx echo.Context) error {
	o, ok := ctx.Get("object").(order.Order)
	if !ok {
		return errors.Wrap(errOrderNotFoundInCtx, "retrieving object from context")
	}

	var data order.MarkSpecial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkSpecial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	so, err := api.orders.MarkSpecial(ctx.Request().Context(), o.ID, data.EventName)
	if err != nil {
		return errors.Wrap(err, "marking special order")
	}
	return ctx.JSON(http.StatusCreated, so)
}

func (api *adminApi) listSpecial(ctx echo.Context) error {
	specials, err := api.orders.ListSpecial(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing special orders")
	}
	if specials == nil {
		specials = []order.SpecialOrder{}
	}
	return ctx.JSON(http.StatusOK, specials)
}

// stream pushes order changes to the dashboard as server-sent events.
func (api *adminApi) stream(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	changes, err := api.feed.Subscribe(reqCtx)
	if err != nil {
		return errors.Wrap(err, "subscribing to order changes")
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	for {
		select {
		case <-reqCtx.Done():
			return nil
		case ch, ok := <-changes:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ch)
			if err != nil {
				api.logger.Error(fmt.Sprintf("echoapi.stream: %v", err), err)
				continue
			}
			if _, err = fmt.Fprintf(res, "event: order\ndata: %s\n\n", data); err != nil {
				return nil // client went away
			}
			res.Flush()
		}
	}
}

func (api *adminApi) statistics(ctx echo.Context) error {
	loc := api.conf.Location()
	from, err := queryTime(ctx, "from", loc)
	if err != nil {
		return err
	}
	to, err := queryTime(ctx, "to", loc)
	if err != nil {
		return err
	}

	req := report.StatsRequest{Period: ctx.QueryParam("period"), From: from, To: to}
	if lim := ctx.QueryParam("limit"); lim != "" {
		if req.Limit, err = strconv.Atoi(lim); err != nil || req.Limit < 0 {
			return core.NewValidationError(err, core.FieldError{Field: "limit", Error: "limit must be a positive number"})
		}
	}

	stats, err := api.stats.Stats(ctx.Request().Context(), req)
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *adminApi) orderMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		o, err := api.orders.GetByID(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if errors.Cause(err) == order.ErrNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding order by ID")
		}
		ctx.Set("object", o)
		return next(ctx)
	}
}

// orderQueryParams are the query params of the order list that echo can bind;
// dates are parsed with queryTime.
type orderQueryParams struct {
	UserID   string   `query:"user_id"`
	Statuses []string `query:"status"`
}
