package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func String(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func RequiredString(key string) (string, error) {
	v := String(key, "")
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func Port(key, fallback string) (string, error) {
	v := String(key, fallback)
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", key, v)
	}
	return v, nil
}

func Int(key string, fallback int) (int, error) {
	v := String(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got %q)", key, v)
	}
	return n, nil
}

// Duration accepts Go duration syntax ("90s", "5m").
func Duration(key string, fallback time.Duration) (time.Duration, error) {
	v := String(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration (got %q)", key, v)
	}
	return d, nil
}

func Bool(key string, fallback bool) (bool, error) {
	v := String(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean (got %q)", key, v)
	}
	return b, nil
}

// List splits a comma separated value, dropping empty entries.
func List(key string) []string {
	var out []string
	for _, part := range strings.Split(String(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Loader reads several keys and reports every bad one at once.
type Loader struct {
	errs []error
}

func (l *Loader) RequiredString(key string) string {
	v, err := RequiredString(key)
	l.add(err)
	return v
}

func (l *Loader) Port(key, fallback string) string {
	v, err := Port(key, fallback)
	l.add(err)
	return v
}

func (l *Loader) Int(key string, fallback int) int {
	v, err := Int(key, fallback)
	l.add(err)
	return v
}

func (l *Loader) Duration(key string, fallback time.Duration) time.Duration {
	v, err := Duration(key, fallback)
	l.add(err)
	return v
}

func (l *Loader) Bool(key string, fallback bool) bool {
	v, err := Bool(key, fallback)
	l.add(err)
	return v
}

func (l *Loader) Err() error {
	return errors.Join(l.errs...)
}

func (l *Loader) add(err error) {
	if err != nil {
		l.errs = append(l.errs, err)
	}
}
