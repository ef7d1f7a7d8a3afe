// Package config loads wabulk settings from defaults, an optional YAML file,
// a .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/swatto/wabulk/internal/campaign"
	"github.com/swatto/wabulk/internal/contacts"
	"github.com/swatto/wabulk/internal/whatsapp"
)

// EnvPrefix prefixes every environment variable, e.g. WABULK_PORT.
const EnvPrefix = "WABULK"

// Config holds all runtime settings.
//
//nolint:govet // fieldalignment: grouped by concern
type Config struct {
	Port        string        `mapstructure:"port" validate:"required,numeric"`
	LogFormat   string        `mapstructure:"log_format" validate:"oneof=simple nginx"`
	LogLevel    string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	RateLimit   int           `mapstructure:"rate_limit" validate:"gte=0"` // POST /api/runs per minute, 0 disables
	AccessToken string        `mapstructure:"access_token"`                // bearer token for /api/*, empty disables
	DryRun      bool          `mapstructure:"dry_run"`
	HistoryDB   string        `mapstructure:"history_db" validate:"required"`
	Delay       time.Duration `mapstructure:"delay"`
	CountryCode string        `mapstructure:"country_code" validate:"required,numeric,max=4"`
	Browser     Browser       `mapstructure:"browser"`
}

// Browser holds the WhatsApp Web automation settings.
//
//nolint:govet // fieldalignment: grouped by concern
type Browser struct {
	BaseURL           string             `mapstructure:"base_url" validate:"required,url"`
	Bin               string             `mapstructure:"bin"`
	UserDataDir       string             `mapstructure:"user_data_dir"`
	ControlURL        string             `mapstructure:"control_url" validate:"omitempty,url"`
	Headless          bool               `mapstructure:"headless"`
	Mode              string             `mapstructure:"mode" validate:"oneof=prefill type"`
	PrintQR           bool               `mapstructure:"print_qr"`
	LoginTimeout      time.Duration      `mapstructure:"login_timeout" validate:"gt=0"`
	NavigationTimeout time.Duration      `mapstructure:"navigation_timeout" validate:"gt=0"`
	SendTimeout       time.Duration      `mapstructure:"send_timeout" validate:"gt=0"`
	SendSettle        time.Duration      `mapstructure:"send_settle" validate:"gte=0"`
	Selectors         whatsapp.Selectors `mapstructure:"selectors"`
}

// legacyEnv maps keys to the unprefixed variables the server has always read.
var legacyEnv = map[string]string{
	"port":       "PORT",
	"log_format": "LOG_FORMAT",
	"rate_limit": "RATE_LIMIT",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// SetDefaults registers every key with its default value. Keys unknown to
// viper are not picked up from the environment, so all of them live here.
func SetDefaults(v *viper.Viper) {
	opts := whatsapp.DefaultBrowserOptions()
	sel := whatsapp.DefaultSelectors()

	v.SetDefault("port", "9090")
	v.SetDefault("log_format", "simple")
	v.SetDefault("log_level", "info")
	v.SetDefault("rate_limit", 0)
	v.SetDefault("access_token", "")
	v.SetDefault("dry_run", false)
	v.SetDefault("history_db", filepath.Join(DataDir(), "history.db"))
	v.SetDefault("delay", campaign.DefaultDelay)
	v.SetDefault("country_code", contacts.DefaultCountryCode)

	v.SetDefault("browser.base_url", opts.BaseURL)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.user_data_dir", filepath.Join(DataDir(), "chrome-profile"))
	v.SetDefault("browser.control_url", "")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.mode", string(opts.Mode))
	v.SetDefault("browser.print_qr", true)
	v.SetDefault("browser.login_timeout", opts.LoginTimeout)
	v.SetDefault("browser.navigation_timeout", opts.NavigationTimeout)
	v.SetDefault("browser.send_timeout", opts.SendTimeout)
	v.SetDefault("browser.send_settle", opts.SendSettle)
	v.SetDefault("browser.selectors.logged_in", sel.LoggedIn)
	v.SetDefault("browser.selectors.qr_code", sel.QRCode)
	v.SetDefault("browser.selectors.compose_box", sel.ComposeBox)
	v.SetDefault("browser.selectors.send_button", sel.SendButton)
	v.SetDefault("browser.selectors.invalid_number", sel.InvalidNumber)
}

// DataDir is where the history database and browser profile live by default.
func DataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "wabulk")
	}
	return ".wabulk"
}

// New returns a viper instance wired for wabulk: defaults, WABULK_ env
// variables and the legacy unprefixed ones.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), env)
	}
	return v
}

// Load reads .env (if present) and the config file into v, then decodes and
// validates the result. An empty configFile looks for wabulk.yaml in the
// working directory and the user config directory; not finding one is fine.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("wabulk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DataDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: invalid %s: failed %q rule (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.Delay < campaign.MinDelay || c.Delay > campaign.MaxDelay {
		return fmt.Errorf("config: delay must be between %s and %s (got %s)", campaign.MinDelay, campaign.MaxDelay, c.Delay)
	}
	return nil
}

// BrowserOptions converts the browser settings for whatsapp.NewBrowserSender.
func (c *Config) BrowserOptions() whatsapp.BrowserOptions {
	b := c.Browser
	return whatsapp.BrowserOptions{
		BaseURL:           b.BaseURL,
		BrowserBin:        b.Bin,
		UserDataDir:       b.UserDataDir,
		ControlURL:        b.ControlURL,
		Headless:          b.Headless,
		Mode:              whatsapp.Mode(b.Mode),
		LoginTimeout:      b.LoginTimeout,
		NavigationTimeout: b.NavigationTimeout,
		SendTimeout:       b.SendTimeout,
		SendSettle:        b.SendSettle,
		Selectors:         b.Selectors,
	}
}
