package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks structural tags plus the cross-field rules the tags cannot
// express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return err
		}
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			f := fields[0]
			return fmt.Errorf("field %s failed rule %q", f.Namespace(), f.Tag())
		}
		return err
	}

	if !cfg.Auth.Disabled && cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret is required unless auth.disabled is set")
	}
	if len(cfg.Auth.JWTSecret) > 0 && len(cfg.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwtSecret must be at least 16 bytes")
	}

	if cfg.Process.PollInterval <= 0 {
		return errors.New("process.pollInterval must be positive")
	}
	if cfg.Process.GracefulTimeout <= 0 || cfg.Process.ForcedTimeout <= 0 {
		return errors.New("process timeouts must be positive")
	}
	if cfg.Process.PollInterval.Std() > cfg.Process.GracefulTimeout.Std() {
		return errors.New("process.pollInterval exceeds process.gracefulTimeout")
	}
	if cfg.Process.SettleDelay < 0 {
		return errors.New("process.settleDelay must not be negative")
	}

	if cfg.Server.ReadTimeout <= 0 || cfg.Server.WriteTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	// A restart can legitimately take the graceful timeout plus start settle;
	// the response must be allowed to outlive that.
	minWrite := cfg.Process.GracefulTimeout.Std() + cfg.Process.ForcedTimeout.Std() + cfg.Process.SettleDelay.Std()
	if cfg.Server.WriteTimeout.Std() < minWrite {
		return fmt.Errorf("server.writeTimeout %s is shorter than a worst-case restart (%s)",
			cfg.Server.WriteTimeout.Std(), minWrite)
	}

	return nil
}
