package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/canteen/apps/api/echo"
	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/menu"
	"github.com/trezcool/canteen/core/order"
	"github.com/trezcool/canteen/core/report"
	"github.com/trezcool/canteen/core/user"
	appfs "github.com/trezcool/canteen/fs"
	emailsvc "github.com/trezcool/canteen/services/email"
	"github.com/trezcool/canteen/services/objectstore"
	inmemdb "github.com/trezcool/canteen/storage/database/inmem"
	"github.com/trezcool/canteen/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// feedStub replays its changes to every subscriber, then closes the subscription.
type feedStub struct {
	changes []order.Change
}

func (f *feedStub) Subscribe(context.Context) (<-chan order.Change, error) {
	ch := make(chan order.Change, len(f.changes))
	for _, c := range f.changes {
		ch <- c
	}
	close(ch)
	return ch, nil
}

type testApp struct {
	srv       *echoapi.Server
	conf      *core.Config
	mediaRoot string
	userRepo  user.Repository
	menuSvc   *menu.Service
	orderSvc  *order.Service
	feed      *feedStub
}

func setup(t *testing.T) *testApp {
	t.Helper()
	conf := testutil.Config()
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf.FrontendBaseURL, true, testutil.NopLogger)
	emailsvc.ResetSentMessages()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	menu.InitValidators(validate, translator)

	store, err := objectstore.NewDisk(core.StorageConfig{DiskRoot: t.TempDir()})
	require.NoError(t, err)

	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	userRepo := inmemdb.NewUserRepository(db)
	userSvc := user.NewService(userRepo, mailSvc, conf)
	menuSvc := menu.NewService(inmemdb.NewMenuRepository(db), store)
	orderSvc := order.NewService(inmemdb.NewOrderRepository(db, nil), userSvc, mailSvc, testutil.NopLogger)
	feed := new(feedStub)

	srv := echoapi.NewServer(&echoapi.Deps{
		Conf:           conf,
		Logger:         testutil.NopLogger,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        userSvc,
		MenuSvc:        menuSvc,
		OrderSvc:       orderSvc,
		ReportSvc:      report.NewService(orderSvc, menuSvc, conf),
		Carts:          inmemdb.NewCartRepository(db),
		Feed:           feed,
		MediaRoot:      store.Root(),
		DisableReqLogs: true,
	})

	return &testApp{
		srv:       srv,
		conf:      conf,
		mediaRoot: store.Root(),
		userRepo:  userRepo,
		menuSvc:   menuSvc,
		orderSvc:  orderSvc,
		feed:      feed,
	}
}

func (app *testApp) createUser(t *testing.T, name, email, role string) user.User {
	return testutil.CreateUser(t, app.userRepo, name, email, "", role, true)
}

func (app *testApp) createItem(t *testing.T, name, price string, available bool) menu.Item {
	it, err := app.menuSvc.CreateItem(context.Background(), menu.NewItem{
		Name:        name,
		Price:       decimal.RequireFromString(price),
		IsAvailable: &available,
	})
	require.NoError(t, err)
	return it
}

func (app *testApp) do(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	app.srv.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := echoapi.GenerateToken(conf, usr)
	require.NoError(t, err)
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
