package bootstrap

import (
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort    string `mapstructure:"SERVER_PORT"`
	MongoUri      string `mapstructure:"MONGO_URI"`
	RedisUrl      string `mapstructure:"REDIS_URL"`
	EnginePath    string `mapstructure:"ENGINE_PATH"`
	QuickDepth    int    `mapstructure:"QUICK_DEPTH"`
	CriticalDepth int    `mapstructure:"CRITICAL_DEPTH"`
	MaxMoveTimeMs int    `mapstructure:"MAX_MOVE_TIME_MS"`
	EngineThreads int    `mapstructure:"ENGINE_THREADS"`
	EngineHashMb  int    `mapstructure:"ENGINE_HASH_MB"`
	SyncUrl       string `mapstructure:"SYNC_URL"`
	IsLocalCors   bool   `mapstructure:"LOCAL_CORS"`
}

func Setup(cfgPath string) (*Config, error) {
	viper.SetConfigFile(cfgPath)

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.QuickDepth == 0 {
		cfg.QuickDepth = 12
	}
	if cfg.CriticalDepth == 0 {
		cfg.CriticalDepth = 18
	}
	if cfg.MaxMoveTimeMs == 0 {
		cfg.MaxMoveTimeMs = 2000
	}
	if cfg.EngineHashMb == 0 {
		cfg.EngineHashMb = 128
	}
}
