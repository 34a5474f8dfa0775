package models

import (
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ilhamfadhil14/load-test-rtsp-stream/utils"
)

// SQL is the run history database handle, nil until Init.
var SQL *gorm.DB

// Init opens (or creates) the sqlite history file and migrates the
// schema.
func Init(file string) (err error) {
	if dir := filepath.Dir(file); dir != "." {
		if err = utils.EnsureDir(dir); err != nil {
			return
		}
	}
	SQL, err = gorm.Open(sqlite.Open(file), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return
	}
	return SQL.AutoMigrate(Run{}, StreamResult{})
}

func Close() {
	if SQL == nil {
		return
	}
	if db, err := SQL.DB(); err == nil {
		db.Close()
	}
	SQL = nil
}
