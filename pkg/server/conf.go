package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Conf holds venue-level configuration parameters, loaded from YAML.
type Conf struct {
	// --- Identity ---
	VenueName string `yaml:"venue_name"`

	// --- TCP listeners ---
	Port      int    `yaml:"port"`
	Cleartext *bool  `yaml:"cleartext"` // nil = default true; explicitly false disables plaintext
	TLS       bool   `yaml:"tls"`
	TLSPort   int    `yaml:"tls_port"`
	TLSCert   string `yaml:"tls_cert"`
	TLSKey    string `yaml:"tls_key"`

	// --- Web gateway ---
	WebEnabled     bool     `yaml:"web_enabled"`
	WebPort        int      `yaml:"web_port"`
	WebHost        string   `yaml:"web_host"`   // bind address (empty = all interfaces)
	WebDomain      string   `yaml:"web_domain"` // Let's Encrypt domain (empty = self-signed or files)
	CertDir        string   `yaml:"cert_dir"`
	WebCORSOrigins []string `yaml:"web_cors_origins"`
	WebRateLimit   int      `yaml:"web_rate_limit"` // requests per minute per IP
	JWTSecret      string   `yaml:"jwt_secret"`     // auto-generated if empty
	JWTExpiry      int      `yaml:"jwt_expiry"`     // seconds

	// --- World ---
	WorldFile string `yaml:"world_file"` // room topology; built-in default if empty
	TextDir   string `yaml:"text_dir"`   // welcome/motd/guest/quit text files
	BoltPath  string `yaml:"bolt_path"`  // accounts + snapshot store

	// --- Engine tuning ---
	QueueCap   int     `yaml:"queue_cap"`   // per-session delivery queue capacity
	FloodRate  float64 `yaml:"flood_rate"`  // admitted commands per second
	FloodBurst int     `yaml:"flood_burst"` // admission burst

	// --- Lifecycles (seconds) ---
	PollGrace            int `yaml:"poll_grace"`             // polling session reap window
	PrivateRoomRetention int `yaml:"private_room_retention"` // empty private room lifetime
	AutosaveMinutes      int `yaml:"autosave_minutes"`       // snapshot interval, 0 = disabled

	// --- Policy ---
	GuestsAllowed bool `yaml:"guests_allowed"`
}

// DefaultConf returns a Conf with working defaults: a venue on :4201 with the
// web gateway on :8443 and guests allowed.
func DefaultConf() *Conf {
	return &Conf{
		VenueName:            "GoMuch",
		Port:                 4201,
		WebEnabled:           true,
		WebPort:              8443,
		WebRateLimit:         120,
		JWTExpiry:            86400,
		QueueCap:             256,
		FloodRate:            4,
		FloodBurst:           10,
		PollGrace:            30,
		PrivateRoomRetention: 3600,
		AutosaveMinutes:      30,
		GuestsAllowed:        true,
	}
}

// LoadConf loads a YAML config file over the defaults.
func LoadConf(path string) (*Conf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	c := DefaultConf()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
	}
	if c.TLS && (c.TLSCert == "" || c.TLSKey == "") {
		return nil, fmt.Errorf("tls enabled but tls_cert/tls_key not set in %s", path)
	}
	return c, nil
}

// IsCleartext returns whether the plaintext TCP listener is enabled.
// Defaults to true if not explicitly set.
func (c *Conf) IsCleartext() bool {
	if c.Cleartext == nil {
		return true
	}
	return *c.Cleartext
}

// PollGraceDuration returns the polling reap window.
func (c *Conf) PollGraceDuration() time.Duration {
	if c.PollGrace <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.PollGrace) * time.Second
}

// RetentionDuration returns the empty private room retention window.
func (c *Conf) RetentionDuration() time.Duration {
	if c.PrivateRoomRetention <= 0 {
		return time.Hour
	}
	return time.Duration(c.PrivateRoomRetention) * time.Second
}
