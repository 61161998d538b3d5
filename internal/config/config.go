// Package config resolves renewguide settings from flags, environment,
// an optional .env file and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"renewguide/internal/api"
	"renewguide/internal/status"
)

const envPrefix = "RENEWGUIDE"

// Flag and config keys.
const (
	KeyConfigFile     = "config"
	KeyAPIURL         = "api-url"
	KeyRequestTimeout = "request-timeout"
	KeyPollInterval   = "poll-interval"
	KeyHeader         = "header"
	KeyAltScreen      = "alt-screen"
	KeyLogLevel       = "log.level"
	KeyLogFormat      = "log.format"
	KeyLogFile        = "log.file"
)

// Config is the resolved application configuration.
type Config struct {
	APIURL         string        `mapstructure:"api-url" validate:"required,http_url"`
	RequestTimeout time.Duration `mapstructure:"request-timeout" validate:"gte=0"`
	PollInterval   time.Duration `mapstructure:"poll-interval" validate:"gte=1s"`
	Headers        http.Header   `mapstructure:"header"`
	AltScreen      bool          `mapstructure:"alt-screen"`
	Log            LogConfig     `mapstructure:"log"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=DEBUG INFO WARN ERROR FATAL"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	// File receives log output. "stderr" and "stdout" are accepted too.
	File string `mapstructure:"file" validate:"required"`
}

var validate = newValidate()

// newValidate reports failures by config key rather than Go field name.
func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// DefaultLogFile is where the TUI writes logs; the terminal itself is taken.
func DefaultLogFile() string {
	return filepath.Join(os.TempDir(), "renewguide.log")
}

// AddFlags registers every setting on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(KeyConfigFile, "", "Path to a YAML config file")
	fs.String(KeyAPIURL, api.DefaultBaseURL, "Backend base URL (env RENEWGUIDE_API_URL or NEXT_PUBLIC_API_URL)")
	fs.Duration(KeyRequestTimeout, 0, "Per-request timeout, 0 disables")
	fs.Duration(KeyPollInterval, status.DefaultInterval, "Dashboard status poll interval")
	fs.StringArray(KeyHeader, nil, "Extra request header as 'Key: Value' (repeatable)")
	fs.Bool(KeyAltScreen, true, "Use the alternate screen buffer")
	fs.String(KeyLogLevel, "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	fs.String(KeyLogFormat, "json", "Log format (json|console)")
	fs.String(KeyLogFile, DefaultLogFile(), "Log output path (file, stderr or stdout)")
}

// Load reads .env, binds fs and the environment into v, reads the config file
// if one is named, and returns the validated result.
func Load(v *viper.Viper, fs *pflag.FlagSet) (Config, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(KeyAPIURL, envPrefix+"_API_URL", "NEXT_PUBLIC_API_URL"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	if path := strings.TrimSpace(v.GetString(KeyConfigFile)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	headers, err := ParseHeaders(v.GetStringSlice(KeyHeader))
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		APIURL:         strings.TrimRight(strings.TrimSpace(v.GetString(KeyAPIURL)), "/"),
		RequestTimeout: v.GetDuration(KeyRequestTimeout),
		PollInterval:   v.GetDuration(KeyPollInterval),
		Headers:        headers,
		AltScreen:      v.GetBool(KeyAltScreen),
		Log: LogConfig{
			Level:  strings.ToUpper(strings.TrimSpace(v.GetString(KeyLogLevel))),
			Format: strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
			File:   strings.TrimSpace(v.GetString(KeyLogFile)),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fills defaults for empty values and checks the rest.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		c.APIURL = api.DefaultBaseURL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = status.DefaultInterval
	}
	if c.Log.Level == "" {
		c.Log.Level = "INFO"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.File == "" {
		c.Log.File = DefaultLogFile()
	}

	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s=%v fails %s=%s", key, fe.Value(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s=%v fails %s", key, fe.Value(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ParseHeaders turns "Key: Value" pairs into a header set.
func ParseHeaders(pairs []string) (http.Header, error) {
	headers := http.Header{}
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("invalid header %q: want 'Key: Value'", pair)
		}
		if strings.EqualFold(name, "Content-Type") {
			return nil, errors.New("Content-Type is fixed to application/json and cannot be overridden")
		}
		headers.Add(name, strings.TrimSpace(value))
	}
	return headers, nil
}
