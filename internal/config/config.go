package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/iksnae/agent-chat/internal"
)

// EnvPrefix is prepended to every environment variable, e.g. AGENTCHAT_WS_URL
const EnvPrefix = "AGENTCHAT"

// Config holds the client settings
type Config struct {
	WSURL          string        `mapstructure:"ws_url"`
	APIURL         string        `mapstructure:"api_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFile        string        `mapstructure:"log_file"`
	ImageDir       string        `mapstructure:"image_dir"`
	PageSize       int           `mapstructure:"page_size"`
}

// DefaultConfig returns the settings used when nothing is configured. The
// event channel URL has no default.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 30 * time.Second,
		LogLevel:       "info",
		PageSize:       1,
	}
}

// flagKeys maps command-line flags to config keys
var flagKeys = map[string]string{
	"ws-url":    "ws_url",
	"api-url":   "api_url",
	"log-file":  "log_file",
	"image-dir": "image_dir",
	"timeout":   "request_timeout",
}

// Load reads configuration from, in increasing precedence: defaults, the
// optional YAML file at configPath, AGENTCHAT_* environment variables (a
// .env file in the working directory is loaded first) and flags that were
// set explicitly. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		internal.LogWarn("Could not read .env file: %v", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				internal.LogWarn("Config file %s not found, using defaults", configPath)
			} else {
				return nil, &internal.ConfigError{Key: "config", Err: fmt.Errorf("error reading config file: %w", err)}
			}
		} else {
			internal.LogDebug("Loaded config file %s", v.ConfigFileUsed())
		}
	}

	if flags != nil {
		for flag, key := range flagKeys {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, &internal.ConfigError{Key: key, Err: err}
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &internal.ConfigError{Key: "config", Err: fmt.Errorf("invalid configuration: %w", err)}
	}
	cfg.WSURL = strings.TrimSpace(cfg.WSURL)
	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.APIURL == "" && cfg.WSURL != "" {
		if derived, err := DeriveAPIURL(cfg.WSURL); err == nil {
			internal.LogDebug("api_url not set, using %s", derived)
			cfg.APIURL = derived
		}
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("ws_url", "")
	v.SetDefault("api_url", "")
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("image_dir", d.ImageDir)
	v.SetDefault("page_size", d.PageSize)
}

// Validate reports the first invalid setting as an *internal.ConfigError
func (c *Config) Validate() error {
	if c.WSURL == "" {
		return &internal.ConfigError{Key: "ws_url", Err: errors.New("event channel URL is required (set AGENTCHAT_WS_URL or --ws-url)")}
	}
	if err := checkURL(c.WSURL, "ws", "wss"); err != nil {
		return &internal.ConfigError{Key: "ws_url", Err: err}
	}
	if c.APIURL != "" {
		if err := checkURL(c.APIURL, "http", "https"); err != nil {
			return &internal.ConfigError{Key: "api_url", Err: err}
		}
	}
	if c.RequestTimeout <= 0 {
		return &internal.ConfigError{Key: "request_timeout", Err: fmt.Errorf("must be positive, got %s", c.RequestTimeout)}
	}
	switch c.LogLevel {
	case "", "error", "warn", "warning", "info", "debug":
	default:
		return &internal.ConfigError{Key: "log_level", Err: fmt.Errorf("unknown level %q", c.LogLevel)}
	}
	if c.PageSize < 1 {
		return &internal.ConfigError{Key: "page_size", Err: fmt.Errorf("must be at least 1, got %d", c.PageSize)}
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			if u.Host == "" {
				return fmt.Errorf("%q has no host", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("%q must use one of %s", raw, strings.Join(schemes, ", "))
}

// DeriveAPIURL maps the event channel URL to the chat endpoint on the same
// host: ws://host:8000/ws becomes http://host:8000/chat
func DeriveAPIURL(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/chat"
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
