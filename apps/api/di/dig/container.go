package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/canteen/apps/api/echo"
	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/menu"
	"github.com/trezcool/canteen/core/order"
	"github.com/trezcool/canteen/core/report"
	"github.com/trezcool/canteen/core/user"
	emailsvc "github.com/trezcool/canteen/services/email"
	logsvc "github.com/trezcool/canteen/services/logger"
	"github.com/trezcool/canteen/services/objectstore"
	"github.com/trezcool/canteen/services/realtime"
	"github.com/trezcool/canteen/storage/database"
	sqlxrepos "github.com/trezcool/canteen/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type depsParam struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	UserSvc    *user.Service
	MenuSvc    *menu.Service
	OrderSvc   *order.Service
	ReportSvc  *report.Service
	DB         *sqlx.DB
	Broker     *realtime.Broker
	Storage    core.ObjectStorage
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newObjectStorage(conf *core.Config) (core.ObjectStorage, error) {
	return objectstore.New(context.Background(), conf.Storage)
}

func newProfiles(svc *user.Service) order.Profiles { return svc }

func newReportService(orders *order.Service, catalog *menu.Service, conf *core.Config) *report.Service {
	return report.NewService(orders, catalog, conf)
}

func newDeps(p depsParam) *echoapi.Deps {
	deps := &echoapi.Deps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		UserSvc:    p.UserSvc,
		MenuSvc:    p.MenuSvc,
		OrderSvc:   p.OrderSvc,
		ReportSvc:  p.ReportSvc,
		Carts:      sqlxrepos.NewCartRepository(p.DB),
		Feed:       p.Broker,
	}
	if disk, ok := p.Storage.(*objectstore.Disk); ok {
		deps.MediaRoot = disk.Root()
	}
	return deps
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newObjectStorage))
	must(c.Provide(realtime.NewBroker))
	must(c.Provide(func(db *sqlx.DB) user.Repository { return sqlxrepos.NewUserRepository(db) }))
	must(c.Provide(func(db *sqlx.DB) menu.Repository { return sqlxrepos.NewMenuRepository(db) }))
	must(c.Provide(func(db *sqlx.DB) order.Repository { return sqlxrepos.NewOrderRepository(db) }))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(newProfiles))
	must(c.Provide(menu.NewService))
	must(c.Provide(order.NewService))
	must(c.Provide(newReportService))
	must(c.Provide(newDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
