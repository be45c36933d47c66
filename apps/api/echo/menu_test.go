package echoapi_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/canteen/core/menu"
	"github.com/trezcool/canteen/core/user"
)

func Test_menuApi_items(t *testing.T) {
	app := setup(t)
	cook := app.createUser(t, "Cook", "cook@canteen.test", user.RoleStaff)
	ada := app.createUser(t, "Ada", "ada@canteen.test", user.RoleCustomer)
	staffToken := getToken(t, app.conf, cook)
	tea := app.createItem(t, "Tea", "1.20", true)

	tests := []httpTest{
		{name: "list (public)", method: http.MethodGet, path: "/v1/menu/items", wantCode: http.StatusOK, wantData: marshalObj(t, []menu.Item{tea})},
		{name: "retrieve", method: http.MethodGet, path: "/v1/menu/items/" + tea.ID, wantCode: http.StatusOK, wantData: marshalObj(t, tea)},
		{name: "retrieve unknown", method: http.MethodGet, path: "/v1/menu/items/nope", wantCode: http.StatusNotFound},
		{name: "search (unknown)", method: http.MethodGet, path: "/v1/menu/items?search=pizza", wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "create (anonymous)", method: http.MethodPost, path: "/v1/menu/items", body: []byte(`{"name":"Stew","price":"7.00"}`), wantCode: http.StatusUnauthorized},
		{name: "create (customer)", method: http.MethodPost, path: "/v1/menu/items", body: []byte(`{"name":"Stew","price":"7.00"}`), token: getToken(t, app.conf, ada), wantCode: http.StatusForbidden},
		{name: "create (bad price)", method: http.MethodPost, path: "/v1/menu/items", body: []byte(`{"name":"Stew","price":"-1"}`), token: staffToken, wantCode: http.StatusBadRequest},
		{name: "create", method: http.MethodPost, path: "/v1/menu/items", body: []byte(`{"name":"Stew","price":"7.00"}`), token: staffToken, wantCode: http.StatusCreated},
		{name: "update", method: http.MethodPut, path: "/v1/menu/items/" + tea.ID, body: []byte(`{"is_available":false}`), token: staffToken, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(tt))
		})
	}

	got, err := app.menuSvc.GetItem(context.Background(), tea.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)

	rec := app.do(httpTest{method: http.MethodGet, path: "/v1/menu/items?available=true", token: staffToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var items []menu.Item
	decode(t, rec, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "Stew", items[0].Name)

	rec = app.do(httpTest{method: http.MethodDelete, path: "/v1/menu/items/" + tea.ID, token: staffToken})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = app.do(httpTest{method: http.MethodGet, path: "/v1/menu/items/" + tea.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_menuApi_categories(t *testing.T) {
	app := setup(t)
	staffToken := getToken(t, app.conf, app.createUser(t, "Cook", "cook@canteen.test", user.RoleStaff))

	rec := app.do(httpTest{method: http.MethodPost, path: "/v1/menu/categories", body: []byte(`{"name":"Drinks","position":1}`), token: staffToken})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var drinks menu.Category
	decode(t, rec, &drinks)

	tests := []httpTest{
		{name: "duplicate", method: http.MethodPost, path: "/v1/menu/categories", body: []byte(`{"name":"Drinks"}`), token: staffToken, wantCode: http.StatusBadRequest},
		{name: "list", method: http.MethodGet, path: "/v1/menu/categories", wantCode: http.StatusOK, wantData: marshalObj(t, []menu.Category{drinks})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(tt))
		})
	}
}

func newImageRequest(t *testing.T, path, token, contentType string, content []byte) *http.Request {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="dish.PNG"`)
	h.Set(echo.HeaderContentType, contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	return req
}

func Test_menuApi_uploadImage(t *testing.T) {
	app := setup(t)
	staffToken := getToken(t, app.conf, app.createUser(t, "Cook", "cook@canteen.test", user.RoleStaff))
	tea := app.createItem(t, "Tea", "1.20", true)
	path := "/v1/menu/items/" + tea.ID + "/image"

	rec := httptest.NewRecorder()
	app.srv.ServeHTTP(rec, newImageRequest(t, path, staffToken, "text/plain", []byte("hello")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	app.srv.ServeHTTP(rec, newImageRequest(t, path, staffToken, "image/png", []byte("\x89PNG")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var it menu.Item
	decode(t, rec, &it)
	require.True(t, strings.HasPrefix(it.ImageURL, "/media/menu/"+tea.ID+"/"), it.ImageURL)
	assert.True(t, strings.HasSuffix(it.ImageURL, ".png"))

	// uploads are served back under /media
	rec = app.do(httpTest{method: http.MethodGet, path: it.ImageURL})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "\x89PNG", rec.Body.String())

	entries, err := os.ReadDir(filepath.Join(app.mediaRoot, "menu", tea.ID))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func Test_menuApi_favorites(t *testing.T) {
	app := setup(t)
	ada := app.createUser(t, "Ada", "ada@canteen.test", user.RoleCustomer)
	token := getToken(t, app.conf, ada)
	tea := app.createItem(t, "Tea", "1.20", true)

	tests := []httpTest{
		{name: "anonymous", method: http.MethodGet, path: "/v1/favorites", wantCode: http.StatusUnauthorized},
		{name: "add", method: http.MethodPost, path: "/v1/favorites", body: marshalObj(t, map[string]string{"item_id": tea.ID}), token: token, wantCode: http.StatusCreated},
		{name: "add twice", method: http.MethodPost, path: "/v1/favorites", body: marshalObj(t, map[string]string{"item_id": tea.ID}), token: token, wantCode: http.StatusBadRequest},
		{name: "add unknown", method: http.MethodPost, path: "/v1/favorites", body: []byte(`{"item_id":"nope"}`), token: token, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(tt))
		})
	}

	rec := app.do(httpTest{method: http.MethodGet, path: "/v1/favorites", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var favs []menu.Favorite
	decode(t, rec, &favs)
	require.Len(t, favs, 1)
	assert.Equal(t, tea.ID, favs[0].ItemID)

	rec = app.do(httpTest{method: http.MethodDelete, path: "/v1/favorites/" + tea.ID, token: token})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = app.do(httpTest{method: http.MethodGet, path: "/v1/favorites", token: token})
	decode(t, rec, &favs)
	assert.Empty(t, favs)
}
