package db

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	DB   *gorm.DB
	once sync.Once
)

type Config struct {
	User      string
	Password  string
	Host      string
	Port      string
	DBName    string
	Charset   string // optional
	Loc       string // optional
	ParseTime bool   // optional

	// 连接池参数，0取缺省值
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

func NewConfig(user, password, host, port, dbName string) Config {
	return Config{
		User:      user,
		Password:  password,
		Host:      host,
		Port:      port,
		DBName:    dbName,
		Charset:   "utf8mb4",
		Loc:       "Local",
		ParseTime: true,
	}
}

func (cfg Config) DSN() string {
	charset := cfg.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	loc := cfg.Loc
	if loc == "" {
		loc = "Local"
	}
	port := cfg.Port
	if port == "" {
		port = "3306"
	}
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=%t&loc=%s",
		cfg.User, cfg.Password, cfg.Host, port, cfg.DBName, charset, cfg.ParseTime, loc,
	)
}

func (cfg Config) pool() (idle, open int, lifetime time.Duration) {
	idle, open, lifetime = cfg.MaxIdleConns, cfg.MaxOpenConns, cfg.ConnMaxLifetime
	if idle <= 0 {
		idle = 10
	}
	if open <= 0 {
		open = 100
	}
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	return
}

func Init(cfg Config) *gorm.DB {
	once.Do(func() {
		var err error
		DB, err = gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}

		idle, open, lifetime := cfg.pool()
		sqlDB, _ := DB.DB()
		sqlDB.SetMaxIdleConns(idle)
		sqlDB.SetMaxOpenConns(open)
		sqlDB.SetConnMaxLifetime(lifetime)
	})
	return DB
}
