// Package db opens the relational store behind the credential tables
package db

import (
	"bitwise74/learnhub-api/internal/model"
	"bitwise74/learnhub-api/pkg/util"
	"errors"
	"fmt"
	"os"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New opens the database configured under db.* and migrates every table
// the auth flow owns
func New() (*gorm.DB, error) {
	switch viper.GetString("db.type") {
	case "postgres":
		return Open(postgres.Open(viper.GetString("db.dsn")))
	case "memory":
		return NewMemory()
	default:
		path := viper.GetString("db.path")

		// If running in a docker container don't allow the sqlite file to be created.
		// The host should instead mount it using volumes
		if util.IsRunningInDocker() {
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("SQLite database file not mounted, please use docker volumes to mount it to /app/%s", path)
			}
		}

		return Open(sqlite.Open(path))
	}
}

// NewMemory returns a private in-memory SQLite database. Every call gets its
// own database so tests don't leak rows into each other
func NewMemory() (*gorm.DB, error) {
	name, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	db, err := Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)))
	if err != nil {
		return nil, err
	}

	// A shared-cache memory database locks whole tables, one connection avoids SQLITE_LOCKED
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func Open(d gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(d, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	err = db.AutoMigrate(
		model.User{},
		model.Account{},
		model.VerificationToken{},
		model.PasswordResetToken{},
		model.ResendRequest{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return db, nil
}
