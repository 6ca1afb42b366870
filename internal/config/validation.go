package config

import "fmt"

func validate(c *Config) error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.MaxGroups <= 0 {
		return fmt.Errorf("max concurrent groups must be > 0")
	}
	if c.MaxPagesPerGroup <= 0 {
		return fmt.Errorf("max concurrent pages per group must be > 0")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be > 0")
	}
	if c.RetryStep <= 0 {
		return fmt.Errorf("retry step must be > 0")
	}
	if c.RunDeadline < 0 {
		return fmt.Errorf("run deadline must not be negative")
	}
	return nil
}
