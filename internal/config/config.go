package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every connection parameter the bridge needs. All values can
// come from the environment; a YAML file passed via --config supplies
// defaults that the environment overrides.
type Config struct {
	Front  FrontConfig  `yaml:"front"`
	Sinch  SinchConfig  `yaml:"sinch"`
	Server ServerConfig `yaml:"server"`
	Media  MediaConfig  `yaml:"media"`
}

// FrontConfig configures the Front channel API connection.
type FrontConfig struct {
	IncomingURI string `yaml:"incomingUri"` // inbound-message creation endpoint for the channel
	Token       string `yaml:"token"`       // API token, also used to download attachments
}

// SinchConfig configures the Sinch Conversation API connection.
type SinchConfig struct {
	Region       string `yaml:"region"` // e.g. "us", "eu"
	ProjectID    string `yaml:"projectId"`
	AppID        string `yaml:"appId"`
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
}

type ServerConfig struct {
	Port           int    `yaml:"port"`
	PublicHost     string `yaml:"publicHost"`     // host under which relayed media is reachable
	TimeoutSeconds int    `yaml:"timeoutSeconds"` // outbound HTTP timeout; 0 disables the timeout
}

type MediaConfig struct {
	Dir        string `yaml:"dir"`        // local attachment store
	LedgerPath string `yaml:"ledgerPath"` // SQLite relay ledger; empty disables it
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           80,
			TimeoutSeconds: 30,
		},
		Media: MediaConfig{
			Dir:        "public",
			LedgerPath: "public/relays.db",
		},
	}
}

// Load builds the config from an optional YAML file plus the environment.
// A .env file in the working directory is honored when present. The
// environment always wins over file values.
func Load(path string) (*Config, error) {
	// Best-effort, matching dotenv semantics: absence is not an error.
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Front.IncomingURI, "FRONT_APP_INCOMING_URI")
	setString(&cfg.Front.Token, "FRONT_APP_TOKEN")
	setString(&cfg.Sinch.Region, "SINCH_APP_ENVIRONMENT")
	setString(&cfg.Sinch.ProjectID, "SINCH_APP_PROJECT_ID")
	setString(&cfg.Sinch.AppID, "SINCH_APP_APP_ID")
	setString(&cfg.Sinch.ClientID, "SINCH_APP_CLIENT_ID")
	setString(&cfg.Sinch.ClientSecret, "SINCH_APP_CLIENT_SECRET")
	setString(&cfg.Server.PublicHost, "HOST")
	setInt(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.TimeoutSeconds, "BRIDGE_HTTP_TIMEOUT")
	setString(&cfg.Media.Dir, "BRIDGE_MEDIA_DIR")
	setString(&cfg.Media.LedgerPath, "BRIDGE_LEDGER_PATH")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks that every required connection parameter is present.
// All problems are reported in one error so a misconfigured deployment
// can be fixed in a single pass.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Front.IncomingURI == "" {
		errs = append(errs, "Front incoming uri is required (FRONT_APP_INCOMING_URI)")
	}
	if cfg.Front.Token == "" {
		errs = append(errs, "Front token is required (FRONT_APP_TOKEN)")
	}
	if cfg.Sinch.Region == "" {
		errs = append(errs, "Sinch region is required (SINCH_APP_ENVIRONMENT)")
	}
	if cfg.Sinch.ProjectID == "" {
		errs = append(errs, "Sinch project id is required (SINCH_APP_PROJECT_ID)")
	}
	if cfg.Sinch.AppID == "" {
		errs = append(errs, "Sinch app id is required (SINCH_APP_APP_ID)")
	}
	if cfg.Sinch.ClientID == "" {
		errs = append(errs, "Sinch client id is required (SINCH_APP_CLIENT_ID)")
	}
	if cfg.Sinch.ClientSecret == "" {
		errs = append(errs, "Sinch client secret is required (SINCH_APP_CLIENT_SECRET)")
	}
	if cfg.Server.PublicHost == "" {
		errs = append(errs, "public host is required (HOST)")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, "server port must be between 1 and 65535 (PORT)")
	}
	if cfg.Server.TimeoutSeconds < 0 {
		errs = append(errs, "http timeout must be >= 0 (BRIDGE_HTTP_TIMEOUT)")
	}
	if cfg.Media.Dir == "" {
		errs = append(errs, "media directory is required (BRIDGE_MEDIA_DIR)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// SinchSendURL returns the messages:send endpoint for the configured
// region and project.
func (c *Config) SinchSendURL() string {
	return fmt.Sprintf("https://%s.conversation.api.sinch.com/v1/projects/%s/messages:send",
		c.Sinch.Region, c.Sinch.ProjectID)
}

// HTTPTimeout returns the outbound HTTP client timeout. Zero means no
// timeout, mirroring deployments that need to wait out slow providers.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}
