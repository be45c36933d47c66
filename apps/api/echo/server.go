// Package echoapi is the HTTP API of the canteen: the storefront endpoints used by the
// customer apps and the dashboard endpoints used by the staff.
package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/cart"
	"github.com/trezcool/canteen/core/menu"
	"github.com/trezcool/canteen/core/order"
	"github.com/trezcool/canteen/core/report"
	"github.com/trezcool/canteen/core/user"
	"github.com/trezcool/canteen/services/realtime"
)

type (
	// StatsProvider aggregates orders for the dashboard.
	StatsProvider interface {
		Stats(ctx context.Context, req report.StatsRequest) (report.Stats, error)
	}

	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc   user.ServiceInterface
		MenuSvc   menu.ServiceInterface
		OrderSvc  order.ServiceInterface
		ReportSvc StatsProvider
		Carts     cart.RemoteStore
		Feed      realtime.Feed

		// MediaRoot is served under /media when uploads are kept on disk.
		MediaRoot      string
		DisableReqLogs bool
	}

	Server struct {
		*http.Server
		app      *echo.Echo
		deps     *Deps
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps *Deps) *Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps, "deps"),
		vala.IsNotNil(deps.Conf, "deps.Conf"),
		vala.IsNotNil(deps.Logger, "deps.Logger"),
		vala.IsNotNil(deps.Validate, "deps.Validate"),
		vala.IsNotNil(deps.Translator, "deps.Translator"),
		vala.IsNotNil(deps.UserSvc, "deps.UserSvc"),
		vala.IsNotNil(deps.MenuSvc, "deps.MenuSvc"),
		vala.IsNotNil(deps.OrderSvc, "deps.OrderSvc"),
		vala.IsNotNil(deps.ReportSvc, "deps.ReportSvc"),
		vala.IsNotNil(deps.Carts, "deps.Carts"),
		vala.IsNotNil(deps.Feed, "deps.Feed"),
	).CheckAndPanic()

	app := echo.New()
	s := &Server{
		Server: &http.Server{
			Addr:         deps.Conf.Server.Host,
			Handler:      app,
			ReadTimeout:  deps.Conf.Server.ReadTimeout,
			WriteTimeout: deps.Conf.Server.WriteTimeout,
		},
		app:      app,
		deps:     deps,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	if s.deps.MediaRoot != "" {
		s.app.Static("/media", s.deps.MediaRoot)
	}

	v1 := s.app.Group("/v1")
	jwt := jwtMiddleware(conf, headerTokenLookup)

	registerUserAPI(v1, jwt, s.deps)
	registerMenuAPI(v1, jwt, s.deps)
	registerCartAPI(v1, jwt, s.deps)
	registerOrderAPI(v1, jwt, s.deps)
	registerAdminAPI(v1, s.deps)
}

// Start listens until the server is shut down. Listen errors are sent on Errors().
func (s *Server) Start() {
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks the app to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the Canteen API!")
}
