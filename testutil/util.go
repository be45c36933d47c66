// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/user"
	"github.com/trezcool/canteen/storage/database"
)

// DatabaseURLEnv names the env var pointing at a disposable Postgres database.
const DatabaseURLEnv = "TEST_DATABASE_URL"

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// NopLogger discards everything.
var NopLogger core.Logger = &nopLogger{}

// Config returns a TEST configuration that does not depend on the environment.
func Config() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		Debug:                     true,
		TestMode:                  true,
		AppName:                   "Canteen",
		SecretKey:                 "test-secret",
		FrontendBaseURL:           "http://localhost:3000",
		Timezone:                  "UTC",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		EmailConfirmTimeoutDelta:  7 * 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
		},
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:             name,
		Email:            email,
		Role:             role,
		IsActive:         isActive,
		EmailConfirmedAt: tstamp,
		CreatedAt:        tstamp,
		UpdatedAt:        tstamp,
	}
	if pwd == "" {
		pwd = "Pwd-" + email
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// PrepareDB opens the database named by TEST_DATABASE_URL, migrates it and empties it.
// The test is skipped when the variable is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	dsn := os.Getenv(DatabaseURLEnv)
	if dsn == "" {
		t.Skipf("%s not set", DatabaseURLEnv)
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	ResetDB(t, db)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ResetDB truncates every application table.
func ResetDB(t *testing.T, db *sqlx.DB) {
	q := `TRUNCATE favorites, special_orders, orders, cart_items, menu_items, categories, profiles CASCADE`
	if _, err := db.Exec(q); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}
