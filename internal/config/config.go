package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.courier/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
}

// Profile represents a per-session profile.toml: which organizer this
// session belongs to and where the platform lives.
type Profile struct {
	OrganizerID string `toml:"organizer_id"`
	APIBaseURL  string `toml:"api_base_url"`
	PushURL     string `toml:"push_url"`

	RequestTimeout   duration `toml:"request_timeout"`
	HandshakeTimeout duration `toml:"handshake_timeout"`
	PollInterval     duration `toml:"poll_interval"`

	MetricsAddr string `toml:"metrics_addr"`
}

// duration lets TOML carry values like "10s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Defaults applied to a loaded profile where fields are unset. The poll
// interval is the fallback refresh cadence used while the push channel is
// down; 7s keeps the list fresh without hammering the store.
const (
	DefaultRequestTimeout   = 10 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultPollInterval     = 7 * time.Second
)

// Load reads the global config from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the global config to the given path, creating parent dirs as
// needed.
func Save(path string, cfg *Config) error {
	return writeTOML(path, cfg)
}

// LoadProfile reads and validates a session profile.
func LoadProfile(path string) (*Profile, error) {
	var p Profile
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return nil, err
	}
	if p.OrganizerID == "" {
		return nil, fmt.Errorf("profile %s: organizer_id is required", path)
	}
	if p.APIBaseURL == "" {
		return nil, fmt.Errorf("profile %s: api_base_url is required", path)
	}
	if p.RequestTimeout == 0 {
		p.RequestTimeout = duration(DefaultRequestTimeout)
	}
	if p.HandshakeTimeout == 0 {
		p.HandshakeTimeout = duration(DefaultHandshakeTimeout)
	}
	if p.PollInterval == 0 {
		p.PollInterval = duration(DefaultPollInterval)
	}
	return &p, nil
}

// SaveProfile writes a session profile to the given path.
func SaveProfile(path string, p *Profile) error {
	return writeTOML(path, p)
}

// RequestTimeoutD returns the per-request store timeout.
func (p *Profile) RequestTimeoutD() time.Duration { return time.Duration(p.RequestTimeout) }

// HandshakeTimeoutD returns the push-channel handshake timeout.
func (p *Profile) HandshakeTimeoutD() time.Duration { return time.Duration(p.HandshakeTimeout) }

// PollIntervalD returns the fallback polling interval.
func (p *Profile) PollIntervalD() time.Duration { return time.Duration(p.PollInterval) }

func writeTOML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(v)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
