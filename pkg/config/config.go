// Package config loads the static endpoint configuration enumerated in
// spec §6. There is no persisted state beyond Wi-Fi credentials, which the
// platform's non-volatile partition owns (out of scope here) — everything
// in this package is either a flag default or an environment override,
// following the pattern in sebacius-switchboard's rtpmanager/config.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the static endpoint configuration.
type Config struct {
	WifiSSID     string
	WifiPassword string
	WifiUsername string // non-empty enables WPA2-Enterprise

	SipRegistrar string // e.g. "sip:registrar.example.com:5060"
	SipContact   string // template, e.g. "sip:echo@0.0.0.0:0"
	SipUsername  string
	SipPassword  string
	SipTarget    string // default dial target for outbound PTT calls
	SipBindAddr  string // local UDP bind address for the SIP socket, e.g. ":0"

	RingTimeout time.Duration

	TaskStats bool
}

// Load parses flags into a Config, lets any set environment variable of the
// same name (upper-cased with underscores) override the flag value, and
// validates the result.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("atomphoned", flag.ContinueOnError)

	cfg := &Config{}
	var ringTimeoutSeconds int

	fs.StringVar(&cfg.WifiSSID, "wifi-ssid", "", "Wi-Fi SSID")
	fs.StringVar(&cfg.WifiPassword, "wifi-password", "", "Wi-Fi password")
	fs.StringVar(&cfg.WifiUsername, "wifi-username", "", "Wi-Fi WPA2-Enterprise username (optional)")
	fs.StringVar(&cfg.SipRegistrar, "sip-registrar", "", "SIP registrar URI")
	fs.StringVar(&cfg.SipContact, "sip-contact", "", "SIP contact URI template")
	fs.StringVar(&cfg.SipUsername, "sip-username", "", "SIP auth username")
	fs.StringVar(&cfg.SipPassword, "sip-password", "", "SIP auth password")
	fs.StringVar(&cfg.SipTarget, "sip-target", "", "default outbound SIP target URI")
	fs.StringVar(&cfg.SipBindAddr, "sip-bind-addr", ":0", "local UDP bind address for the SIP socket")
	fs.IntVar(&ringTimeoutSeconds, "ring-timeout", 20, "ring timeout in seconds")
	fs.BoolVar(&cfg.TaskStats, "task-stats", false, "sample and log per-task runtime/stack statistics")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	applyEnvOverride(&cfg.WifiSSID, "WIFI_SSID")
	applyEnvOverride(&cfg.WifiPassword, "WIFI_PASSWORD")
	applyEnvOverride(&cfg.WifiUsername, "WIFI_USERNAME")
	applyEnvOverride(&cfg.SipRegistrar, "SIP_REGISTRAR")
	applyEnvOverride(&cfg.SipContact, "SIP_CONTACT")
	applyEnvOverride(&cfg.SipUsername, "SIP_USERNAME")
	applyEnvOverride(&cfg.SipPassword, "SIP_PASSWORD")
	applyEnvOverride(&cfg.SipTarget, "SIP_TARGET")
	applyEnvOverride(&cfg.SipBindAddr, "SIP_BIND_ADDR")
	if v := os.Getenv("RING_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			ringTimeoutSeconds = n
		}
	}
	if v := os.Getenv("TASK_STATS"); v != "" {
		cfg.TaskStats = v == "1" || v == "true"
	}

	cfg.RingTimeout = time.Duration(ringTimeoutSeconds) * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverride(field *string, name string) {
	if v := os.Getenv(name); v != "" {
		*field = v
	}
}

// Validate checks that the fields required to bring the endpoint up are
// present. It does not attempt to resolve or connect to anything.
func (c *Config) Validate() error {
	if c.WifiSSID == "" {
		return fmt.Errorf("config: wifi-ssid is required")
	}
	if c.SipRegistrar == "" {
		return fmt.Errorf("config: sip-registrar is required")
	}
	if c.SipContact == "" {
		return fmt.Errorf("config: sip-contact is required")
	}
	if c.SipUsername == "" {
		return fmt.Errorf("config: sip-username is required")
	}
	if c.RingTimeout <= 0 {
		return fmt.Errorf("config: ring-timeout must be positive")
	}
	return nil
}
