package config

import (
	"log"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	SettlementResult string `mapstructure:"settlement_result"`
	MatchClosed      string `mapstructure:"match_closed"`
}

// BusinessConfig 业务参数
// 赔率为字符串，加载后用 decimal 精确解析，避免浮点误差进赔付计算
type BusinessConfig struct {
	PlatformFeePercent    int    `mapstructure:"platform_fee_percent"`    // 平台抽成百分比（默认10）
	DisputeWindowMinutes  int    `mapstructure:"dispute_window_minutes"`  // 审核后争议窗口（默认5分钟）
	SpectatorOdds         string `mapstructure:"spectator_odds"`          // 观战投注固定赔率（默认 "1.90"）
	SettleIntervalSeconds int    `mapstructure:"settle_interval_seconds"` // 结算扫描周期（默认30秒）
	SettleBatchSize       int    `mapstructure:"settle_batch_size"`       // 每轮扫描最多处理的对局数
	MaxRetryCount         int    `mapstructure:"max_retry_count"`         // 消息投递最大重试次数
}

// SpectatorOddsDecimal 解析固定赔率
func (b *BusinessConfig) SpectatorOddsDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(b.SpectatorOdds)
	if err != nil {
		log.Fatalf("spectator_odds 配置不合法: %v", err)
	}
	return d
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
