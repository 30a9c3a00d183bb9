// Package config loads the demo's YAML run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sartorproj/goharch/har"
	"github.com/sartorproj/goharch/internal/logging"
)

var validate = validator.New()

// Config describes one lag-selection run.
type Config struct {
	Data struct {
		File        string  `yaml:"file" validate:"required"`
		ValueColumn string  `yaml:"value_column" default:"close"`
		DateColumn  string  `yaml:"date_column"`
		IDColumn    string  `yaml:"id_column"`
		ID          string  `yaml:"id"`
		LogReturns  bool    `yaml:"log_returns" default:"true"`
		Scale       float64 `yaml:"scale" default:"100" validate:"gt=0"`
	} `yaml:"data"`
	Mean struct {
		HoldBack  int     `yaml:"hold_back" default:"22" validate:"gte=1"`
		Constant  bool    `yaml:"constant"`
		Nu        float64 `yaml:"nu" validate:"eq=0|gt=2"`
		Criterion string  `yaml:"criterion" default:"bic" validate:"oneof=bic aic aicc"`
		Lags      []int   `yaml:"lags" validate:"dive,gte=1"`
	} `yaml:"mean"`
	Volatility struct {
		Enabled  bool  `yaml:"enabled" default:"true"`
		Lags     []int `yaml:"lags" validate:"dive,gte=1"`
		Leverage bool  `yaml:"leverage"`
	} `yaml:"volatility"`
	Selection struct {
		Workers  int  `yaml:"workers" validate:"gte=0"`
		Leverage bool `yaml:"leverage"`
		FailFast bool `yaml:"fail_fast"`
	} `yaml:"selection"`
	Logging logging.Config `yaml:"logging"`
	Metrics struct {
		DumpFile string `yaml:"dump_file"`
	} `yaml:"metrics"`
}

// Load reads path, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks field constraints and that every lag fits the hold back.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, message(fe))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	hb := c.Mean.HoldBack
	for _, l := range append(append([]int(nil), c.Mean.Lags...), c.Volatility.Lags...) {
		if l > hb {
			return fmt.Errorf("invalid config: lag %d exceeds mean.hold_back %d", l, hb)
		}
	}
	return nil
}

// HARParams returns the mean model parameters.
func (c *Config) HARParams() har.Params {
	return har.Params{
		HoldBack:  c.Mean.HoldBack,
		Constant:  c.Mean.Constant,
		Nu:        c.Mean.Nu,
		Criterion: har.Criterion(c.Mean.Criterion),
	}
}

func message(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
