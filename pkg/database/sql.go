package database

import (
	"fmt"
	"time"

	"ai-edu-go/internal/config"
	"ai-edu-go/internal/model"
	"ai-edu-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Open 根据驱动名创建 gorm 连接，支持 mysql 与 postgres（Supabase）。
func Open(cfg config.SQLConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&model.MessageRecord{}, &model.CachedAnswer{}); err != nil {
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return db, nil
}

// InitSQL 初始化全局数据库连接，失败时直接退出。
func InitSQL(cfg config.SQLConfig) {
	db, err := Open(cfg)
	if err != nil {
		log.Fatal("failed to init database", err)
	}
	DB = db
	log.Infof("%s database connected successfully", cfg.Driver)
}
