// Package config provides functionality for managing configuration options
// for the story client and the local fake API using command-line flags,
// an optional JSON config file and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// DefaultBaseURL is the public story API.
const DefaultBaseURL = "https://story-api.dicoding.dev/v1"

// Options holds the configuration values for the client.
type Options struct {
	// BaseURL is the root of the remote story API.
	BaseURL string `json:"base_url"`

	// SessionDir is the directory holding the persisted session record.
	SessionDir string `json:"session_dir"`

	// DatabaseDSN selects the Postgres session backend when non-empty.
	DatabaseDSN string `json:"database_dsn"`

	// CAFile is an optional PEM bundle trusted in addition to the system roots.
	CAFile string `json:"ca_file"`

	// Timeout bounds every HTTP request.
	Timeout time.Duration `json:"-"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// fileOptions is the JSON shape of the config file.
type fileOptions struct {
	Options
	Timeout string `json:"timeout"`
}

// Parse parses args, then the config file, then environment variables.
// Flags given explicitly on the command line win over the config file;
// environment variables win over both.
func Parse(args []string) (*Options, error) {
	opts := &Options{}

	fs := flag.NewFlagSet("storyapp", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.BaseURL, "url", DefaultBaseURL, "story API base URL")
	fs.StringVar(&opts.SessionDir, "session-dir", ".", "directory for the persisted session")
	fs.StringVar(&opts.DatabaseDSN, "d", "", "postgres DSN for session storage (optional)")
	fs.StringVar(&opts.CAFile, "ca", "", "path to an extra CA certificate")
	fs.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "HTTP request timeout")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "log level")
	fs.StringVar(&opts.Config, "config", "", "path to config file")
	fs.StringVar(&opts.Config, "c", "", "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}

	if opts.Config != "" {
		if err := loadFile(opts.Config, opts); err != nil {
			return nil, err
		}
		// explicit flags override the file
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("parse flags: %w", err)
		}
	}

	if baseURL := os.Getenv("STORY_API_URL"); baseURL != "" {
		opts.BaseURL = baseURL
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		opts.DatabaseDSN = dsn
	}

	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.BaseURL == "" {
		return nil, errors.New("base URL must not be empty")
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", opts.Timeout)
	}
	return opts, nil
}

func loadFile(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error while reading config file: %w", err)
	}

	fo := fileOptions{Options: *opts}
	if err := json.Unmarshal(data, &fo); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	if fo.Timeout != "" {
		d, err := time.ParseDuration(fo.Timeout)
		if err != nil {
			return fmt.Errorf("error while parsing config file: timeout: %w", err)
		}
		fo.Options.Timeout = d
	}
	fo.Options.Config = opts.Config
	*opts = fo.Options
	return nil
}

// ServerOptions holds the configuration of the local fake API.
type ServerOptions struct {
	// Port defines the server's listening address (ip:port).
	Port string
	// LogLevel is the zap level name.
	LogLevel string
	// CACert and CAKey name a development authority; when both are set the
	// server issues itself a certificate and serves HTTPS.
	CACert string
	CAKey  string
}

// TLS reports whether the server should serve HTTPS.
func (o *ServerOptions) TLS() bool {
	return o.CACert != "" && o.CAKey != ""
}

// ParseServer parses the fake API flags and environment variables.
func ParseServer(args []string) (*ServerOptions, error) {
	opts := &ServerOptions{}

	fs := flag.NewFlagSet("fakeserver", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.Port, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "log level")
	fs.StringVar(&opts.CACert, "tls-ca-cert", "", "development CA certificate (enables HTTPS)")
	fs.StringVar(&opts.CAKey, "tls-ca-key", "", "development CA private key")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		opts.Port = serverAddress
	}
	if (opts.CACert == "") != (opts.CAKey == "") {
		return nil, errors.New("-tls-ca-cert and -tls-ca-key must be set together")
	}
	return opts, nil
}
