package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// Validate normalizes and checks the config.
func Validate(cfg *Config) error {
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := structValidate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("config: %s", describe(verrs[0]))
		}
		return fmt.Errorf("config: %w", err)
	}
	if cfg.MaxBackoffMS > 0 && cfg.MaxBackoffMS < cfg.BackoffMS {
		return fmt.Errorf("config: 'max-backoff-ms' (%d) is less than 'backoff-ms' (%d)", cfg.MaxBackoffMS, cfg.BackoffMS)
	}
	if cfg.Backend == "claude" && cfg.ClaudeBinary == "" {
		cfg.ClaudeBinary = "claude"
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("'%s' is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("'%s' must be one of [%s], got %q", fe.Field(), fe.Param(), fmt.Sprint(fe.Value()))
	case "gte":
		return fmt.Sprintf("'%s' must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("'%s' must be at most %s", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("'%s' is not a valid URL", fe.Field())
	}
	return fmt.Sprintf("'%s' failed %s", fe.Field(), fe.Tag())
}
