package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/menu"
	logsvc "github.com/trezcool/canteen/services/logger"
	"github.com/trezcool/canteen/services/objectstore"
	"github.com/trezcool/canteen/storage/database"
	sqlxrepos "github.com/trezcool/canteen/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	rlogger := logsvc.NewRollbarLogger(stdLogger, conf)
	rlogger.Enable(!conf.Debug && conf.RollbarToken != "")
	logger = rlogger

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)

	storage, err := objectstore.New(context.Background(), conf.Storage)
	errAndDie(err)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	menu.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:       db,
		usrRepo:  sqlxrepos.NewUserRepository(db),
		menuSvc:  menu.NewService(sqlxrepos.NewMenuRepository(db), storage),
		validate: validate,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
