package main

import (
	"log"
	"os"

	"go.uber.org/multierr"

	api "signalflow/cmd/signalflow"
	"signalflow/conf"
	"signalflow/pkg/cache"
	"signalflow/pkg/db"
	"signalflow/pkg/logger"

	"gorm.io/gorm"
)

// 启动服务（监听webhook）

/*
测试

BODY='{"secret":"ab12cd34ef56abcdef1234567890abcdef1234567890abcdef1234567890","symbol":"BTC/USDT","action":"buy","price":113990,"exchange":"paper","strategy":"tv-breakout"}'

curl -X POST http://localhost:8090/api/v1/webhook \
  -H "Content-Type: application/json" \
  -d "$BODY"
*/

func main() {

	// 加载配置文件
	cfgPath := os.Getenv("SIGNALFLOW_CONFIG")
	if cfgPath == "" {
		cfgPath = "conf/config.yaml"
	}
	err := conf.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appCfg := conf.AppConfig
	logger.Init(appCfg.Log)
	defer logger.Sync()

	// 密钥可用环境变量覆盖，避免写进配置文件
	if s := os.Getenv("WEBHOOK_SECRET"); s != "" {
		appCfg.Webhook.Secret = s
		conf.AppConfig.Webhook.Secret = s
	}

	// 数据库可选，未配置时仓位只在内存里
	var datasource *gorm.DB
	if appCfg.Db.Host != "" {
		dbUser := os.Getenv("DB_USER")
		dbPass := os.Getenv("DB_PASSWORD")
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		dbName := os.Getenv("DB_NAME")
		if dbUser == "" || dbPass == "" || dbHost == "" {
			dbUser = appCfg.Db.Username
			dbPass = appCfg.Db.Password
			dbHost = appCfg.Db.Host
			dbPort = appCfg.Db.Port
			dbName = appCfg.Db.DbName
		}
		dbCfg := db.NewConfig(dbUser, dbPass, dbHost, dbPort, dbName)
		dbCfg.MaxIdleConns = appCfg.Db.MaxIdleConns
		dbCfg.MaxOpenConns = appCfg.Db.MaxOpenConns
		datasource = db.Init(dbCfg)
	}

	// redis可选，开启后幂等去重多一层跨进程占位
	if appCfg.Redis.Enabled {
		if err := cache.InitRedis(appCfg.Redis); err != nil {
			logger.Warnf("redis init failed, dedup falls back to local: %v", err)
		}
	}

	app := api.InitApp(datasource)

	srv := api.NewServer(&appCfg)
	srv.RegisterOnShutdown(func() {
		// 先停信号源，再等在途订单收尾，最后关外部资源
		app.Producer.Stop()
		app.Coordinator.Stop()

		var errs error
		if app.Events != nil {
			app.Events.Close()
		}
		if appCfg.Redis.Enabled {
			cache.CloseRedis()
		}
		if datasource != nil {
			if m, err := datasource.DB(); err == nil {
				errs = multierr.Append(errs, m.Close())
			}
		}
		if errs != nil {
			logger.Errorf("shutdown cleanup: %v", errs)
		}
	})

	srv.Run(app.Router)
}
