package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads a yaml config file into Config, applies defaults and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with every default applied, for callers without a
// config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Secrets 汇总运行所需的 API 凭证，全部来自环境变量。
type Secrets struct {
	TavilyAPIKey string
	XAIAPIKey    string
	AlpacaKey    string
	AlpacaSecret string
}

// LoadSecrets resolves credentials from the environment. The Alpaca key and
// secret each accept several historical variable names.
func LoadSecrets() Secrets {
	return Secrets{
		TavilyAPIKey: os.Getenv("TAVILY_API_KEY"),
		XAIAPIKey:    os.Getenv("XAI_API_KEY"),
		AlpacaKey:    firstEnv("ALPACA_API_KEY", "APCA_API_KEY_ID"),
		AlpacaSecret: firstEnv("ALPACA_API_SECRET", "ALPACA_SECRET", "APCA_API_SECRET_KEY"),
	}
}

// AlpacaPaperFromEnv 读取 ALPACA_PAPER（缺省 true）。
func AlpacaPaperFromEnv() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("ALPACA_PAPER")))
	if raw == "" {
		return true
	}
	switch raw {
	case "0", "false", "no", "off":
		return false
	}
	return true
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
