package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"sibterm/pkg/shellinabox"
)

type Config struct {
	Terminal TerminalConfig `mapstructure:"terminal"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
}

type TerminalConfig struct {
	// Width and Height are reported when the local side is not a TTY
	Width            int  `mapstructure:"width"`
	Height           int  `mapstructure:"height"`
	TranslateNewline bool `mapstructure:"translate_newline"`
}

type HTTPConfig struct {
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	OpenRetries        int           `mapstructure:"open_retries"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	UserAgent          string        `mapstructure:"user_agent"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func Load() (*Config, error) {
	// An explicit file set with viper.SetConfigFile (--config) wins over
	// the search paths; SetConfigName would clear it.
	if viper.ConfigFileUsed() == "" {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.sibterm")
		viper.AddConfigPath("/etc/sibterm/")
	}

	// Environment variable overrides: SIBTERM_HTTP_INSECURE_SKIP_VERIFY, SIBTERM_LOG_LEVEL, ...
	viper.SetEnvPrefix("SIBTERM")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.BindEnv("terminal.width")
	viper.BindEnv("terminal.height")
	viper.BindEnv("terminal.translate_newline")
	viper.BindEnv("http.insecure_skip_verify")
	viper.BindEnv("http.open_retries")
	viper.BindEnv("http.request_timeout")
	viper.BindEnv("http.user_agent")
	viper.BindEnv("log.level")
	viper.BindEnv("log.file")

	defaults := shellinabox.DefaultOptions()
	viper.SetDefault("terminal.width", shellinabox.DefaultWidth)
	viper.SetDefault("terminal.height", shellinabox.DefaultHeight)
	viper.SetDefault("terminal.translate_newline", true)
	viper.SetDefault("http.insecure_skip_verify", false)
	viper.SetDefault("http.open_retries", defaults.OpenRetries)
	viper.SetDefault("http.request_timeout", defaults.RequestTimeout)
	viper.SetDefault("http.user_agent", defaults.UserAgent)
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.file", "")

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values viper cannot type-check
func (c *Config) Validate() error {
	if c.Terminal.Width <= 0 || c.Terminal.Height <= 0 {
		return fmt.Errorf("terminal size must be positive, got %dx%d", c.Terminal.Width, c.Terminal.Height)
	}
	if c.HTTP.OpenRetries < 0 {
		return fmt.Errorf("http.open_retries must not be negative, got %d", c.HTTP.OpenRetries)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}

// Dimensions returns the configured fallback terminal size
func (c *Config) Dimensions() shellinabox.Dimensions {
	return shellinabox.Dimensions{Width: c.Terminal.Width, Height: c.Terminal.Height}
}

// ClientOptions maps the http section onto shellinabox client options
func (c *Config) ClientOptions() shellinabox.Options {
	opts := shellinabox.DefaultOptions()
	opts.InsecureSkipVerify = c.HTTP.InsecureSkipVerify
	opts.OpenRetries = c.HTTP.OpenRetries
	opts.RequestTimeout = c.HTTP.RequestTimeout
	opts.UserAgent = c.HTTP.UserAgent
	return opts
}

// ConfigureZerolog sets the global level and output of the zerolog logger.
// With a log file, logs are written there as JSON so they cannot disturb
// the raw terminal; otherwise they go to stderr in console format. The
// returned closer releases the file.
func (c *LogConfig) ConfigureZerolog() (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if c.File == "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return nopCloser{}, nil
	}

	file, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.Logger = zerolog.New(file).With().Timestamp().Logger()
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
