// Package config assembles the service configuration from defaults, an
// optional JSON file, command-line flags and environment variables, in that
// order of increasing precedence.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Duration is a time.Duration read from JSON as a string such as "720h".
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Options holds the configuration values for the application.
type Options struct {
	// ServerAddress is the listening address (ip:port).
	ServerAddress string `json:"server_address"`
	// DatabaseDSN is the PostgreSQL connection string.
	DatabaseDSN string `json:"database_dsn"`
	// Storage selects the repository backend: "postgres" or "memory".
	Storage string `json:"storage"`

	BraveAPIKey    string   `json:"brave_api_key"`
	BraveSearchURL string   `json:"brave_search_url"`
	GeminiAPIKeys  []string `json:"gemini_api_keys"`
	GeminiModel    string   `json:"gemini_model"`
	IdentityURL    string   `json:"identity_url"`

	WebhookUsername string `json:"webhook_username"`
	WebhookSecret   string `json:"webhook_secret"`

	// CORSOrigins lists the browser origins allowed to call the API with
	// credentials.
	CORSOrigins  []string `json:"cors_origins"`
	CookieSecure bool     `json:"cookie_secure"`

	SignupCredits    int      `json:"signup_credits"`
	SessionRetention Duration `json:"session_retention"`

	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Config is the path to the JSON config file.
	Config string `json:"-"`
}

func defaults() *Options {
	return &Options{
		ServerAddress:    "localhost:8080",
		Storage:          StoragePostgres,
		GeminiModel:      "gemini-2.5-flash",
		CORSOrigins:      []string{"*"},
		CookieSecure:     true,
		SignupCredits:    10,
		SessionRetention: Duration(30 * 24 * time.Hour),
		LogLevel:         "info",
		Config:           "config.json",
	}
}

// Load builds Options from args (without the program name). A .env file in
// the working directory is loaded first if present; it never overrides
// variables already set in the environment.
func Load(args []string) (*Options, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	opts := defaults()

	fset := flag.NewFlagSet("imar", flag.ContinueOnError)
	addr := fset.String("a", "", "run on ip:port server")
	dsn := fset.String("d", "", "db address")
	storage := fset.String("storage", "", "storage backend: postgres or memory")
	level := fset.String("l", "", "log level")
	fset.StringVar(&opts.Config, "config", opts.Config, "path to config file")
	fset.StringVar(&opts.Config, "c", opts.Config, "path to config file (shorthand)")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	if v := os.Getenv("CONFIG"); v != "" {
		opts.Config = v
	}
	if err := loadFile(opts); err != nil {
		return nil, err
	}

	setIf(&opts.ServerAddress, *addr)
	setIf(&opts.DatabaseDSN, *dsn)
	setIf(&opts.Storage, *storage)
	setIf(&opts.LogLevel, *level)

	if err := applyEnv(opts); err != nil {
		return nil, err
	}
	return opts, opts.validate()
}

func loadFile(opts *Options) error {
	if opts.Config == "" {
		return nil
	}
	data, err := os.ReadFile(opts.Config)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, opts); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(opts *Options) error {
	setIf(&opts.ServerAddress, os.Getenv("SERVER_ADDRESS"))
	setIf(&opts.DatabaseDSN, os.Getenv("DATABASE_URL"))
	setIf(&opts.Storage, os.Getenv("STORAGE"))
	setIf(&opts.BraveAPIKey, os.Getenv("BRAVE_API_KEY"))
	setIf(&opts.BraveSearchURL, os.Getenv("BRAVE_SEARCH_URL"))
	setIf(&opts.GeminiModel, os.Getenv("GEMINI_MODEL"))
	setIf(&opts.IdentityURL, os.Getenv("IDENTITY_URL"))
	setIf(&opts.WebhookUsername, os.Getenv("WEBHOOK_USERNAME"))
	setIf(&opts.WebhookSecret, os.Getenv("WEBHOOK_SECRET"))
	setIf(&opts.LogLevel, os.Getenv("LOG_LEVEL"))
	setIf(&opts.LogFile, os.Getenv("LOG_FILE"))

	if v := os.Getenv("GEMINI_API_KEYS"); v != "" {
		opts.GeminiAPIKeys = splitList(v)
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		opts.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COOKIE_SECURE: %w", err)
		}
		opts.CookieSecure = b
	}
	if v := os.Getenv("SIGNUP_CREDITS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SIGNUP_CREDITS: %w", err)
		}
		opts.SignupCredits = n
	}
	if v := os.Getenv("SESSION_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SESSION_RETENTION: %w", err)
		}
		opts.SessionRetention = Duration(d)
	}
	return nil
}

func (o *Options) validate() error {
	switch o.Storage {
	case StorageMemory:
	case StoragePostgres:
		if o.DatabaseDSN == "" {
			return errors.New("database dsn is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage %q", o.Storage)
	}
	if o.SignupCredits < 0 {
		return errors.New("signup credits must not be negative")
	}
	return nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// splitList splits a comma separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
