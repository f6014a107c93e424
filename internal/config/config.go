package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/example/visa-checker/internal/city"
	"github.com/example/visa-checker/internal/dateutil"
)

type Config struct {
	DatabaseURL string
	HTTPAddr    string

	PortalURL    string
	UserEmail    string
	UserPassword string

	NtfyTopic string
	LogFile   string

	SessionHashKey  []byte // base64
	SessionBlockKey []byte // base64

	Cities city.List

	// Preferred reschedule window; both zero means never reschedule.
	PreferFrom time.Time
	PreferTo   time.Time
}

func FromEnv() (Config, error) {
	cfg := Config{
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		HTTPAddr:     envDefault("HTTP_ADDR", ":8080"),
		PortalURL:    envDefault("PORTAL_URL", "https://ais.usvisa-info.com/en-ca/niv/users/sign_in"),
		UserEmail:    strings.TrimSpace(os.Getenv("VISA_USER_EMAIL")),
		UserPassword: os.Getenv("VISA_USER_PW"),
		NtfyTopic:    strings.TrimSpace(os.Getenv("NTFY_TOPIC")),
		LogFile:      strings.TrimSpace(os.Getenv("LOG_FILE")),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}

	var err error
	cfg.SessionHashKey, err = mustB64("SESSION_HASH_KEY")
	if err != nil {
		return cfg, err
	}
	cfg.SessionBlockKey, err = mustB64("SESSION_BLOCK_KEY")
	if err != nil {
		return cfg, err
	}

	cfg.Cities, err = parseCities(os.Getenv("CITIES"))
	if err != nil {
		return cfg, err
	}

	if from := strings.TrimSpace(os.Getenv("PREFER_FROM")); from != "" {
		cfg.PreferFrom, err = dateutil.ParseDate(from)
		if err != nil {
			return cfg, fmt.Errorf("PREFER_FROM: %w", err)
		}
	}
	if to := strings.TrimSpace(os.Getenv("PREFER_TO")); to != "" {
		cfg.PreferTo, err = dateutil.ParseDate(to)
		if err != nil {
			return cfg, fmt.Errorf("PREFER_TO: %w", err)
		}
	}
	return cfg, nil
}

// Preference builds the reschedule predicate from the configured window.
func (c Config) Preference() dateutil.Preference {
	if c.PreferFrom.IsZero() && c.PreferTo.IsZero() {
		return dateutil.None()
	}
	return dateutil.RangePreference(c.PreferFrom, c.PreferTo)
}

// parseCities parses the CITIES override, "Name:id[:skip]" entries joined
// by commas. Empty input keeps the default table.
func parseCities(s string) (city.List, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return city.Defaults(), nil
	}
	var out city.List
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("invalid CITIES entry %q (want Name:id[:skip])", entry)
		}
		c := city.City{Name: strings.TrimSpace(parts[0]), ID: strings.TrimSpace(parts[1])}
		if c.Name == "" || c.ID == "" {
			return nil, fmt.Errorf("invalid CITIES entry %q", entry)
		}
		if len(parts) == 3 {
			c.Skip = strings.TrimSpace(parts[2]) == "skip"
		}
		out = append(out, c)
	}
	return out, nil
}

func envDefault(k, d string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	return v
}

func mustB64(k string) ([]byte, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil, fmt.Errorf("%s is required (base64)", k)
	}
	if b, err := base64.StdEncoding.DecodeString(v); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}
