package validation

import (
	"fmt"
	"net/url"
	"time"
)

const (
	MinParallel = 1
	MaxParallel = 20
)

func ValidateParallelism(n int) error {
	if n < MinParallel || n > MaxParallel {
		return fmt.Errorf("parallelism must be between %d and %d, got %d", MinParallel, MaxParallel, n)
	}
	return nil
}

func ValidateNonEmptyString(fieldName, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidatePositiveDuration rejects zero and negative durations.
func ValidatePositiveDuration(fieldName string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", fieldName, d)
	}
	return nil
}

// ValidateNonNegativeDuration rejects negative durations.
func ValidateNonNegativeDuration(fieldName string, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%s cannot be negative, got %s", fieldName, d)
	}
	return nil
}

// ValidateThreshold checks that the refresh threshold leaves part of the access token lifetime.
func ValidateThreshold(threshold, accessTTL time.Duration) error {
	if err := ValidateNonNegativeDuration("refresh threshold", threshold); err != nil {
		return err
	}
	if threshold >= accessTTL {
		return fmt.Errorf("refresh threshold (%s) must be shorter than the access token lifetime (%s)", threshold, accessTTL)
	}
	return nil
}

// ValidateHTTPURL checks that raw is an absolute http or https URL.
func ValidateHTTPURL(fieldName, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", fieldName, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https, got %q", fieldName, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s: missing host", fieldName)
	}
	return nil
}
