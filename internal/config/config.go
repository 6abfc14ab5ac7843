package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/shahid-2020/candlesheet/internal/calendar"
	"github.com/shahid-2020/candlesheet/internal/provider/smartapi"
	"github.com/shahid-2020/candlesheet/internal/window"
	"github.com/shahid-2020/candlesheet/types"
)

const (
	DefaultPath = "configs/candlesheet.yaml"
	envPrefix   = "CANDLESHEET"
)

type Config struct {
	Mode     window.Mode        `mapstructure:"mode"`
	Timeout  time.Duration      `mapstructure:"timeout"`
	Schedule []string           `mapstructure:"schedule"`
	Batch    BatchConfig        `mapstructure:"batch"`
	Basket   []types.Instrument `mapstructure:"basket"`
	Holidays []string           `mapstructure:"holidays"`
	Sheets   SheetsConfig       `mapstructure:"sheets"`
	SmartAPI SmartAPIConfig     `mapstructure:"smartapi"`
	Yahoo    YahooConfig        `mapstructure:"yahoo"`
	Log      LogConfig          `mapstructure:"log"`
}

type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type SheetsConfig struct {
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type SmartAPIConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type YahooConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the YAML file at path. Any key can be overridden from the
// environment as CANDLESHEET_<SECTION>_<KEY>.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}

	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadCredentials reads the broker secrets from the environment. They are
// never read from the config file.
func LoadCredentials() (smartapi.Credentials, error) {
	var creds smartapi.Credentials
	if err := env.Parse(&creds); err != nil {
		return smartapi.Credentials{}, fmt.Errorf("reading credentials failed: %w", err)
	}
	return creds, nil
}

// HolidayDates parses the configured holiday list.
func (c *Config) HolidayDates() ([]time.Time, error) {
	return calendar.ParseDates(c.Holidays)
}
