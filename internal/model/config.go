package model

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides
// (e.g. SHODJINN_MAILBOX_POLL_INTERVAL=10s).
const EnvPrefix = "SHODJINN"

// Output modes accepted by OutputConfig.Mode.
const (
	OutputAuto    = "auto"
	OutputVerbose = "verbose"
	OutputSilent  = "silent"
)

// MailboxConfig holds the disposable-mailbox provider settings.
type MailboxConfig struct {
	// APIURL is the provider's query-parameter RPC endpoint.
	APIURL string `mapstructure:"api_url" yaml:"api_url"`

	// IP and Agent form the synthetic client identity sent on every call.
	IP    string `mapstructure:"ip" yaml:"ip"`
	Agent string `mapstructure:"agent" yaml:"agent"`

	// StartSeq seeds the mail cursor.
	StartSeq int64 `mapstructure:"start_seq" yaml:"start_seq"`

	// PollInterval is the fixed delay between two mailbox checks.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// TargetConfig holds the URLs and form constants of the service the
// account is provisioned on.
type TargetConfig struct {
	RegisterURL string `mapstructure:"register_url" yaml:"register_url"`
	LoginURL    string `mapstructure:"login_url" yaml:"login_url"`
	AccountURL  string `mapstructure:"account_url" yaml:"account_url"`

	// NotifySender is the address activation emails are sent from.
	NotifySender string `mapstructure:"notify_sender" yaml:"notify_sender"`

	// RegisterPassword is submitted with the registration form and
	// LoginPassword with the login form. They are kept separate on purpose;
	// LoadConfig does not reconcile them.
	RegisterPassword string `mapstructure:"register_password" yaml:"register_password"`
	LoginPassword    string `mapstructure:"login_password" yaml:"login_password"`

	// UsernamePrefix is prepended to the address on the login form.
	UsernamePrefix string `mapstructure:"username_prefix" yaml:"username_prefix"`

	// TokenField is the form field carrying the anti-forgery token.
	TokenField string `mapstructure:"token_field" yaml:"token_field"`
}

// HTTPConfig holds transport settings shared by both HTTP clients.
type HTTPConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	AcceptLanguage string        `mapstructure:"accept_language" yaml:"accept_language"`
}

// OutputConfig holds presentation preferences.
type OutputConfig struct {
	Mode     string `mapstructure:"mode" yaml:"mode"`
	NoBanner bool   `mapstructure:"no_banner" yaml:"no_banner"`
}

// LogConfig holds diagnostic logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Config is the top-level application configuration.
type Config struct {
	Mailbox MailboxConfig `mapstructure:"mailbox" yaml:"mailbox"`
	Target  TargetConfig  `mapstructure:"target" yaml:"target"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/shodjinn/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "shodjinn", "config.yaml")
}

// defaults lists every configuration key with its default value.
var defaults = map[string]any{
	"mailbox.api_url":          "https://api.guerrillamail.com/ajax.php",
	"mailbox.ip":               "127.0.0.1",
	"mailbox.agent":            "Mozilla/5.0 (compatible)",
	"mailbox.start_seq":        1,
	"mailbox.poll_interval":    5 * time.Second,
	"target.register_url":      "https://account.shodan.io/register",
	"target.login_url":         "https://account.shodan.io/login",
	"target.account_url":       "https://account.shodan.io/",
	"target.notify_sender":     "no-reply@mg.shodan.io",
	"target.register_password": "#Password123#",
	"target.login_password":    "#Password@123#",
	"target.username_prefix":   "+",
	"target.token_field":       "csrf_token",
	"http.timeout":             15 * time.Second,
	"http.user_agent":          "Mozilla/5.0",
	"http.accept_language":     "en-US,en;q=0.9",
	"output.mode":              OutputAuto,
	"output.no_banner":         false,
	"log.level":                "warn",
}

// newViper returns a viper instance preloaded with the defaults.
func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// DefaultConfig returns the configuration used when no file, environment
// or flag overrides anything.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := newViper().Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("decoding default config: %v", err))
	}
	return cfg
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"poll-interval": "mailbox.poll_interval",
	"timeout":       "http.timeout",
	"output":        "output.mode",
	"no-banner":     "output.no_banner",
	"log-level":     "log.level",
}

// LoadConfig resolves the configuration from, in increasing precedence,
// built-in defaults, the YAML file at path, a .env file in the working
// directory, SHODJINN_* environment variables and the given flags.
// A missing config file is not an error. An empty path skips the file and
// a nil flag set skips flag binding.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := newViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate reports the first configuration value that cannot drive a run.
func (c *Config) Validate() error {
	required := map[string]string{
		"mailbox.api_url":      c.Mailbox.APIURL,
		"target.register_url":  c.Target.RegisterURL,
		"target.login_url":     c.Target.LoginURL,
		"target.account_url":   c.Target.AccountURL,
		"target.notify_sender": c.Target.NotifySender,
		"target.token_field":   c.Target.TokenField,
	}
	for _, key := range slices.Sorted(maps.Keys(required)) {
		if strings.TrimSpace(required[key]) == "" {
			return fmt.Errorf("config %s must not be empty", key)
		}
	}

	if c.Mailbox.PollInterval <= 0 {
		return fmt.Errorf("config mailbox.poll_interval must be positive, got %s", c.Mailbox.PollInterval)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("config http.timeout must be positive, got %s", c.HTTP.Timeout)
	}

	switch c.Output.Mode {
	case OutputAuto, OutputVerbose, OutputSilent:
	default:
		return fmt.Errorf("config output.mode %q is not one of auto, verbose, silent", c.Output.Mode)
	}

	return nil
}

// PasswordsDiffer reports whether the registration and login passwords
// are configured to different values.
func (c *Config) PasswordsDiffer() bool {
	return c.Target.RegisterPassword != c.Target.LoginPassword
}
