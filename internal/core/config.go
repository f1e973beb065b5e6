package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains every option available to the wirechat server and client.
type Config struct {
	// Minimum level of a log required to be written. Options: debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`
	// Full path to file to which logs will be written. Blank will write to stdout.
	LogFilePath string `mapstructure:"log_file_path"`

	Server struct {
		// Upper bound on a single readiness wait. Shutdown is observed at this interval.
		PollTimeout time.Duration `mapstructure:"poll_timeout"`
		// Largest segment body accepted from a client.
		ReceiveBufferSize int `mapstructure:"receive_buffer_size"`
		// Maximum number of concurrent connections the server will allow. Zero is unlimited.
		MaxConnections int `mapstructure:"max_connections"`
		// Tell the remaining clients when someone disconnects.
		AnnounceDepartures bool `mapstructure:"announce_departures"`
	} `mapstructure:"server"`

	Client struct {
		// How long the network loop waits for the server before checking input.
		PollInterval time.Duration `mapstructure:"poll_interval"`
		// Lines longer than this are sent as several messages.
		MaxLineLength int `mapstructure:"max_line_length"`
		// Number of rendered lines kept in the display history.
		HistorySize int `mapstructure:"history_size"`
		// Name sent with every message. Blank uses the local user name.
		Identity string `mapstructure:"identity"`
	} `mapstructure:"client"`

	Debugging struct {
		// Enable the pprof HTTP server.
		PprofEnabled bool `mapstructure:"pprof_enabled"`
		// Port on which a pprof server will be started if enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Log every segment received and sent.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "WIRECHAT"

var defaults = map[string]interface{}{
	"log_level":                        "info",
	"log_file_path":                    "",
	"server.poll_timeout":              100 * time.Millisecond,
	"server.receive_buffer_size":       1024,
	"server.max_connections":           0,
	"server.announce_departures":       false,
	"client.poll_interval":             20 * time.Millisecond,
	"client.max_line_length":           255,
	"client.history_size":              100,
	"client.identity":                  "",
	"debugging.pprof_enabled":          false,
	"debugging.pprof_port":             6060,
	"debugging.packet_logging_enabled": false,
}

// LoadConfig builds a Config from the defaults, an optional config.yaml under
// configPath, and WIRECHAT_ environment variables, in increasing precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Nested options are set through environment variables with the dots
	// replaced, e.g. server.poll_timeout is WIRECHAT_SERVER_POLL_TIMEOUT.
	for _, k := range v.AllKeys() {
		envVar := envVarPrefix + "_" + strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVar); err != nil {
			return nil, fmt.Errorf("error binding %s to %s: %w", k, envVar, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config object: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch {
	case c.Server.PollTimeout <= 0:
		return fmt.Errorf("server.poll_timeout must be positive, got %s", c.Server.PollTimeout)
	case c.Server.ReceiveBufferSize <= 0 || c.Server.ReceiveBufferSize > 65535:
		return fmt.Errorf("server.receive_buffer_size must be between 1 and 65535, got %d", c.Server.ReceiveBufferSize)
	case c.Server.MaxConnections < 0:
		return fmt.Errorf("server.max_connections cannot be negative, got %d", c.Server.MaxConnections)
	case c.Client.PollInterval <= 0:
		return fmt.Errorf("client.poll_interval must be positive, got %s", c.Client.PollInterval)
	case c.Client.MaxLineLength <= 0:
		return fmt.Errorf("client.max_line_length must be positive, got %d", c.Client.MaxLineLength)
	}
	return nil
}

// PprofAddress returns the local address the pprof server listens on.
func (c *Config) PprofAddress() string {
	return fmt.Sprintf("localhost:%d", c.Debugging.PprofPort)
}
