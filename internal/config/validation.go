package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/shahid-2020/candlesheet/internal/calendar"
)

const maxConcurrency = 50

func validate(c *Config) error {
	var errs []error

	if c.Batch.Concurrency > maxConcurrency {
		errs = append(errs, fmt.Errorf("batch.concurrency must be at most %d, got %d", maxConcurrency, c.Batch.Concurrency))
	}

	symbols := make(map[string]int, len(c.Basket))
	tokens := make(map[string]int, len(c.Basket))
	for i, inst := range c.Basket {
		if inst.Symbol == "" || inst.Token == "" {
			errs = append(errs, fmt.Errorf("basket[%d]: symbol and token are required", i))
			continue
		}
		if j, ok := symbols[inst.Symbol]; ok {
			errs = append(errs, fmt.Errorf("basket[%d]: symbol %s already listed at basket[%d]", i, inst.Symbol, j))
		}
		if j, ok := tokens[inst.Token]; ok {
			errs = append(errs, fmt.Errorf("basket[%d]: token %s already listed at basket[%d]", i, inst.Token, j))
		}
		symbols[inst.Symbol] = i
		tokens[inst.Token] = i
	}

	for _, spec := range c.Schedule {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("schedule %q: %w", spec, err))
		}
	}

	if _, err := calendar.ParseDates(c.Holidays); err != nil {
		errs = append(errs, err)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// RequireSheets checks the settings needed to write to the spreadsheet.
// Dry runs skip it.
func (c *Config) RequireSheets() error {
	if c.Sheets.SpreadsheetID == "" {
		return errors.New("sheets.spreadsheet_id is required")
	}
	if c.Sheets.CredentialsFile == "" {
		return errors.New("sheets.credentials_file is required")
	}
	return nil
}
