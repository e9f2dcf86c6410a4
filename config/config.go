package config

import (
	"os"

	postgres_wrapper "github.com/joripage/clob-engine/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/clob-engine/pkg/infra/redis"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type MarketConfig struct {
	Index               uint32 `yaml:"index"`
	Symbol              string `yaml:"symbol"`
	BaseLotSize         string `yaml:"base_lot_size"`
	QuoteLotSize        string `yaml:"quote_lot_size"`
	MinBaseLots         int64  `yaml:"min_base_lots"`
	TakerFeeBps         int64  `yaml:"taker_fee_bps"`
	MakerRebateBps      int64  `yaml:"maker_rebate_bps"`
	ReferrerRebateBps   int64  `yaml:"referrer_rebate_bps"`
	OracleA             string `yaml:"oracle_a"`
	OracleB             string `yaml:"oracle_b"`
	OracleStalenessSlot uint64 `yaml:"oracle_staleness_slots"`
	BaseVault           string `yaml:"base_vault"`
	QuoteVault          string `yaml:"quote_vault"`
	MaxBookOrders       int    `yaml:"max_book_orders"`
	EventQueueCap       int    `yaml:"event_queue_cap"`
}

type NatsConfig struct {
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
	Subject string `yaml:"subject"`
	Durable string `yaml:"durable"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type FixConfig struct {
	ConfigFilepath string `yaml:"config_filepath"`
}

type AppConfig struct {
	ServiceName string                           `yaml:"service_name"`
	SettleDB    *postgres_wrapper.PostgresConfig `yaml:"settle_db"`
	Redis       *redis_wrapper.RedisConfig       `yaml:"redis"`
	Nats        *NatsConfig                      `yaml:"nats"`
	Kafka       *KafkaConfig                     `yaml:"kafka"`
	Fix         *FixConfig                       `yaml:"fix"`
	Markets     []*MarketConfig                  `yaml:"markets"`
}

// Load load config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")
	zap.S().Debugf("CONFIG_FILE=%v", filePath)

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}

	err = yaml.Unmarshal(configBytes, cfg)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)

	return cfg, nil
}
