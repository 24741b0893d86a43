package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string        `yaml:"env" env-default:"prod"`
	HTTP    HTTPConfig    `yaml:"http"`
	Storage StorageConfig `yaml:"storage"`
	History HistoryConfig `yaml:"history"`
	Servo   ServoConfig   `yaml:"servo"`
	Log     LogConfig     `yaml:"log"`
}

type HTTPConfig struct {
	Address      string        `yaml:"address" env-default:":8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env-default:"5s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"10s"`
	StaticDir    string        `yaml:"static_dir" env-default:""`
}

type StorageConfig struct {
	Path            string        `yaml:"path" env-default:"/var/lib/plantmon/plantmon.db"`
	MaxAge          time.Duration `yaml:"max_age" env-default:"720h"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env-default:"1h"`
	QueueSize       int           `yaml:"queue_size" env-default:"256"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"5s"`
}

type HistoryConfig struct {
	DefaultLimit int `yaml:"default_limit" env-default:"100"`
	MaxLimit     int `yaml:"max_limit" env-default:"1000"`
}

type ServoConfig struct {
	MinPosition int `yaml:"min_position" env-default:"0"`
	MaxPosition int `yaml:"max_position" env-default:"180"`
}

type LogConfig struct {
	Level  string `yaml:"level" env-default:"info"`
	Format string `yaml:"format" env-default:"json"`
}

func MustLoad(configPath string) *Config {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return &cfg
}
