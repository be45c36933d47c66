package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/menu"
)

var errItemNotFoundInCtx = errors.New("menu item not found in echo.Context")

// maxImageSize caps menu image uploads.
const maxImageSize = 5 << 20

type menuApi struct {
	svc      menu.ServiceInterface
	validate *validator.Validate
}

func registerMenuAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := menuApi{svc: deps.MenuSvc, validate: deps.Validate}

	mg := g.Group("/menu")
	mg.GET("/items", api.listItems)
	mg.GET("/categories", api.listCategories)
	mg.GET("/items/:id", api.retrieveItem, api.itemMiddleware)

	// staff endpoints
	sg := mg.Group("", jwt, staffMiddleware())
	sg.POST("/items", api.createItem)
	sg.PUT("/items/:id", api.updateItem, api.itemMiddleware)
	sg.DELETE("/items/:id", api.deleteItem)
	sg.POST("/items/:id/image", api.uploadImage)
	sg.POST("/categories", api.createCategory)

	fg := g.Group("/favorites", jwt)
	fg.GET("", api.listFavorites)
	fg.POST("", api.addFavorite)
	fg.DELETE("/:itemId", api.removeFavorite)
}

// Handlers

func (api *menuApi) listItems(ctx echo.Context) error {
	var filter menu.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to Filter")
	}
	items, err := api.svc.ListItems(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing menu items")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *menuApi) retrieveItem(ctx echo.Context) error {
	it, ok := ctx.Get("object").(menu.Item)
	if !ok {
		return errors.Wrap(errItemNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, it)
}

func (api *menuApi) createItem(ctx echo.Context) error {
	var data menu.NewItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	it, err := api.svc.CreateItem(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating menu item")
	}
	return ctx.JSON(http.StatusCreated, it)
}

func (api *menuApi) updateItem(ctx echo.Context) error {
	it, ok := ctx.Get("object").(menu.Item)
	if !ok {
		return errors.Wrap(errItemNotFoundInCtx, "retrieving object from context")
	}

	var data menu.UpdateItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	it, err := api.svc.UpdateItem(ctx.Request().Context(), it, data)
	if err != nil {
		return errors.Wrap(err, "updating menu item")
	}
	return ctx.JSON(http.StatusOK, it)
}

func (api *menuApi) deleteItem(ctx echo.Context) error {
	if err := api.svc.DeleteItem(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting menu item")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *menuApi) uploadImage(ctx echo.Context) error {
	fh, err := ctx.FormFile("image")
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "image", Error: "image is a required field"})
	}
	if fh.Size > maxImageSize {
		return core.NewValidationError(nil, core.FieldError{Field: "image", Error: "image must be at most 5MB"})
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded image")
	}
	defer func() { _ = file.Close() }()

	it, err := api.svc.UploadImage(ctx.Request().Context(), ctx.Param("id"), file, fh.Filename, fh.Header.Get(echo.HeaderContentType))
	if err != nil {
		return errors.Wrap(err, "uploading menu image")
	}
	return ctx.JSON(http.StatusOK, it)
}

func (api *menuApi) listCategories(ctx echo.Context) error {
	cats, err := api.svc.ListCategories(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing categories")
	}
	if cats == nil {
		cats = []menu.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *menuApi) createCategory(ctx echo.Context) error {
	var data menu.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cat, err := api.svc.CreateCategory(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *menuApi) listFavorites(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	favs, err := api.svc.ListFavorites(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing favorites")
	}
	if favs == nil {
		favs = []menu.Favorite{}
	}
	return ctx.JSON(http.StatusOK, favs)
}

func (api *menuApi) addFavorite(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data FavoriteRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FavoriteRequest")
	}
	if err = api.validate.Struct(&data); err != nil {
		return err
	}

	fav, err := api.svc.AddFavorite(ctx.Request().Context(), claims.Subject, data.ItemID)
	if err != nil {
		return errors.Wrap(err, "adding favorite")
	}
	return ctx.JSON(http.StatusCreated, fav)
}

func (api *menuApi) removeFavorite(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.svc.RemoveFavorite(ctx.Request().Context(), claims.Subject, ctx.Param("itemId")); err != nil {
		return errors.Wrap(err, "removing favorite")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *menuApi) itemMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		it, err := api.svc.GetItem(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if errors.Cause(err) == menu.ErrNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding menu item by ID")
		}
		ctx.Set("object", it)
		return next(ctx)
	}
}

type FavoriteRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}
