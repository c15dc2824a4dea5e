package conf

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// 配置加载（webhook密钥、风控参数、交易所API密钥等）

type WebhookConfig struct {
	Secret          string        `yaml:"secret"`
	SignatureHeader string        `yaml:"signature-header"` // 可选，HMAC签名头，空则只校验secret字段
	DedupWindow     time.Duration `yaml:"dedup-window"`     // 幂等去重窗口
	JournalPath     string        `yaml:"journal-path"`     // 信号流水文件（append-only）
}

// RiskConfig 风控参数，全部为小数比例（0.02 = 2%）
type RiskConfig struct {
	RiskPerTradePct         float64 `yaml:"risk-per-trade-pct"`
	DailyLossLimitPct       float64 `yaml:"daily-loss-limit-pct"`
	MaxCapitalAllocationPct float64 `yaml:"max-capital-allocation-pct"`
	StopPct                 float64 `yaml:"stop-pct"` // 默认止损距离
	MaxPositions            int     `yaml:"max-positions"`

	// TP1/TP2/Runner 止盈梯度：mult是风险距离的倍数，fraction是每档平掉的仓位比例
	TP1Multiplier  float64 `yaml:"tp1-multiplier"`
	TP2Multiplier  float64 `yaml:"tp2-multiplier"`
	RunnerMult     float64 `yaml:"runner-multiplier"`
	TP1Fraction    float64 `yaml:"tp1-fraction"`
	TP2Fraction    float64 `yaml:"tp2-fraction"`
	RunnerFraction float64 `yaml:"runner-fraction"`
}

type OkxConfig struct {
	ApiKey    string `yaml:"apiKey"`
	SecretKey string `yaml:"secretKey"`
	Password  string `yaml:"password"`
	Simulated bool   `yaml:"simulated"`
}

// VenueConfig 交易所配置。Mode 显式区分 paper / live，不允许隐式切换
type VenueConfig struct {
	Mode    string    `yaml:"mode"` // paper 或 live
	Default string    `yaml:"default"`
	Okx     OkxConfig `yaml:"okx"`
	FeeRate float64   `yaml:"fee-rate"`

	PaperEquity float64 `yaml:"paper-equity"` // paper模式的起始资金
}

// EngineConfig 执行协调器参数
type EngineConfig struct {
	Workers            int           `yaml:"workers"`              // 信号处理worker数
	MaxRetries         int           `yaml:"max-retries"`          // 瞬时错误最大重试次数
	VenueTimeout       time.Duration `yaml:"venue-timeout"`        // 单次交易所调用超时
	PartialFillTimeout time.Duration `yaml:"partial-fill-timeout"` // 部分成交后撤单等待
	MonitorInterval    time.Duration `yaml:"monitor-interval"`     // 止盈止损轮询间隔
}

// StrategyConfig 内部策略信号源（定时产出，走统一的ingest入口）
type StrategyConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Symbols    []string      `yaml:"symbols"`
	Interval   time.Duration `yaml:"interval"`
	RSIPeriod  int           `yaml:"rsi-period"`
	Oversold   float64       `yaml:"oversold"`
	Overbought float64       `yaml:"overbought"`
}

type Db struct {
	DbName   string `yaml:"dbname"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	MaxIdleConns int `yaml:"max-idle-conns"` // 0走缺省
	MaxOpenConns int `yaml:"max-open-conns"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	TimeFormat string `yaml:"time-format"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	LocalTime  bool   `yaml:"local-time"`
	Console    bool   `yaml:"console"`
}

// RedisConfig is used to configure redis
type RedisConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Addr         string `yaml:"address"`
	Password     string `yaml:"password"`
	Db           int    `yaml:"db"`
	PoolSize     int    `yaml:"pool-size"`
	MinIdleConns int    `yaml:"min-idle-conns"`
	IdleTimeout  int    `yaml:"idle-timeout"`
}

type KafkaConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

type Config struct {
	AppName      string `yaml:"app_name"`
	Listen       string `yaml:"listen"`
	Mode         string `yaml:"mode"` // gin mode: debug / release
	Language     string `yaml:"language"`
	MaxPingCount int    `yaml:"max-ping-count"`

	Webhook  WebhookConfig  `yaml:"webhook"`
	Risk     RiskConfig     `yaml:"risk"`
	Venue    VenueConfig    `yaml:"venue"`
	Engine   EngineConfig   `yaml:"engine"`
	Strategy StrategyConfig `yaml:"strategy"`
	Db       Db             `yaml:"db"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

var AppConfig Config

func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file error %w", err)
	}
	if err := yaml.Unmarshal(data, &AppConfig); err != nil {
		return fmt.Errorf("unmarshal config yaml error: %w", err)
	}
	AppConfig.applyDefaults()
	return AppConfig.validate()
}

// 硬校验，启动即失败好过带病运行
func (c *Config) validate() error {
	if s := c.Risk.TP1Fraction + c.Risk.TP2Fraction + c.Risk.RunnerFraction; s > 1.0+1e-9 {
		return fmt.Errorf("take profit fractions sum to %.4f, must not exceed 1.0", s)
	}
	return nil
}

// 缺省值，保证未配置时引擎仍然可用
func (c *Config) applyDefaults() {
	if c.Webhook.DedupWindow <= 0 {
		c.Webhook.DedupWindow = 5 * time.Minute
	}
	if c.Risk.RiskPerTradePct <= 0 {
		c.Risk.RiskPerTradePct = 0.02
	}
	if c.Risk.DailyLossLimitPct <= 0 {
		c.Risk.DailyLossLimitPct = 0.05
	}
	if c.Risk.MaxCapitalAllocationPct <= 0 {
		c.Risk.MaxCapitalAllocationPct = 0.9
	}
	if c.Risk.StopPct <= 0 {
		c.Risk.StopPct = 0.02
	}
	if c.Risk.MaxPositions <= 0 {
		c.Risk.MaxPositions = 5
	}
	if c.Risk.TP1Multiplier <= 0 {
		c.Risk.TP1Multiplier = 1.5
	}
	if c.Risk.TP2Multiplier <= 0 {
		c.Risk.TP2Multiplier = 2.0
	}
	if c.Risk.RunnerMult <= 0 {
		c.Risk.RunnerMult = 3.0
	}
	if c.Risk.TP1Fraction <= 0 {
		c.Risk.TP1Fraction = 0.5
	}
	if c.Risk.TP2Fraction <= 0 {
		c.Risk.TP2Fraction = 0.3
	}
	if c.Risk.RunnerFraction <= 0 {
		c.Risk.RunnerFraction = 0.2
	}
	if c.Engine.Workers <= 0 {
		c.Engine.Workers = 8
	}
	if c.Engine.MaxRetries <= 0 {
		c.Engine.MaxRetries = 3
	}
	if c.Engine.VenueTimeout <= 0 {
		c.Engine.VenueTimeout = 10 * time.Second
	}
	if c.Engine.PartialFillTimeout <= 0 {
		c.Engine.PartialFillTimeout = 30 * time.Second
	}
	if c.Engine.MonitorInterval <= 0 {
		c.Engine.MonitorInterval = 2 * time.Second
	}
	if c.Venue.Mode == "" {
		c.Venue.Mode = "paper"
	}
	if c.Venue.Default == "" {
		c.Venue.Default = "paper"
	}
	if c.Venue.PaperEquity <= 0 {
		c.Venue.PaperEquity = 10000
	}
	if c.MaxPingCount <= 0 {
		c.MaxPingCount = 10
	}
}
