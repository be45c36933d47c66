package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/menu"
	"github.com/trezcool/canteen/core/order"
	"github.com/trezcool/canteen/core/user"
	appfs "github.com/trezcool/canteen/fs"
	emailsvc "github.com/trezcool/canteen/services/email"
	logsvc "github.com/trezcool/canteen/services/logger"
	"github.com/trezcool/canteen/services/objectstore"
	"github.com/trezcool/canteen/storage/database"
	sqlxrepos "github.com/trezcool/canteen/storage/database/sqlx"
	"github.com/trezcool/canteen/storage/localcache"
)

func main() {
	conf := core.NewConfig()
	stdLogger := log.New(os.Stderr, "KIOSK : ", log.LstdFlags)
	rlogger := logsvc.NewRollbarLogger(stdLogger, conf)
	rlogger.Enable(!conf.Debug && conf.RollbarToken != "")
	defer rlogger.Close()
	var logger core.Logger = rlogger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// device cache: the anonymous cart, the session token & the menu prefetch
	cache, err := localcache.OpenSQLite(conf.LocalCache.Path)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening device cache: %v", err), err)
	}
	defer func() { _ = cache.Close() }()

	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() { _ = db.Close() }()

	storage, err := objectstore.New(ctx, conf.Storage)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening object storage: %v", err), err)
	}

	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf.FrontendBaseURL, conf.TestMode, logger)
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	userSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf)
	k, err := newKiosk(deps{
		conf:     conf,
		logger:   logger,
		cache:    cache,
		users:    userSvc,
		menuSvc:  menu.NewService(sqlxrepos.NewMenuRepository(db), storage),
		orders:   order.NewService(sqlxrepos.NewOrderRepository(db), userSvc, mailSvc, logger),
		carts:    sqlxrepos.NewCartRepository(db),
		validate: validate,
	})
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
	defer k.close()

	if err = newRootCmd(k).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		k.close()
		_ = cache.Close()
		_ = db.Close()
		rlogger.Close()
		os.Exit(1)
	}
}
