package main

import (
	"github.com/trezcool/canteen/storage/database"
)

func (cli *commandLine) migrate(args []string) error {
	return database.RunMigrations(cli.db.DB, args[0], args[1:]...)
}
