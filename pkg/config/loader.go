// Package config loads environment-driven configuration structs.
package config

import (
	"fmt"
	"reflect"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"
)

// Load parses environment variables into cfg using `env` struct tags.
// Fields of type decimal.Decimal are parsed exactly, so rates such as
// VAT_RATE=0.20 never pass through float64.
func Load(cfg any) error {
	opts := env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(decimal.Decimal{}): parseDecimal,
		},
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func parseDecimal(v string) (any, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", v, err)
	}
	return d, nil
}
