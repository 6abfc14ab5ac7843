package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/shahid-2020/candlesheet/internal/batch"
	"github.com/shahid-2020/candlesheet/internal/job"
	"github.com/shahid-2020/candlesheet/internal/provider/smartapi"
	"github.com/shahid-2020/candlesheet/internal/provider/yahoo"
	"github.com/shahid-2020/candlesheet/internal/scheduler"
	"github.com/shahid-2020/candlesheet/internal/window"
	"github.com/shahid-2020/candlesheet/types"
)

// setDefaults registers every key so AutomaticEnv can override keys that are
// absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", window.MarketAligned.String())
	v.SetDefault("timeout", job.DefaultTimeout.String())
	v.SetDefault("schedule", scheduler.DefaultSpecs)
	v.SetDefault("batch.concurrency", batch.DefaultConcurrency)
	v.SetDefault("holidays", []string{})
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.credentials_file", "")
	v.SetDefault("smartapi.base_url", smartapi.DefaultBaseURL)
	v.SetDefault("yahoo.enabled", false)
	v.SetDefault("yahoo.base_url", yahoo.DefaultBaseURL)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = job.DefaultTimeout
	}
	if len(c.Schedule) == 0 {
		c.Schedule = append([]string(nil), scheduler.DefaultSpecs...)
	}
	if c.Batch.Concurrency <= 0 {
		c.Batch.Concurrency = batch.DefaultConcurrency
	}
	if len(c.Basket) == 0 {
		c.Basket = types.NIFTY50()
	}
	for i := range c.Basket {
		c.Basket[i].Symbol = strings.TrimSpace(c.Basket[i].Symbol)
		c.Basket[i].Token = strings.TrimSpace(c.Basket[i].Token)
	}
	if c.SmartAPI.BaseURL == "" {
		c.SmartAPI.BaseURL = smartapi.DefaultBaseURL
	}
	if c.Yahoo.BaseURL == "" {
		c.Yahoo.BaseURL = yahoo.DefaultBaseURL
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}
