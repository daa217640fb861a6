// Package config loads taskexec settings from defaults, an optional YAML
// file, a .env file, and the environment, in increasing precedence.
//
// Every key can be set with a TASKEXEC_ variable named after its path, e.g.
// TASKEXEC_STORE_PATH for store.path. The webhook, SMTP, and model keys also
// accept the unprefixed names used by earlier deployments (WEBHOOK_URL_SLACK,
// SMTP_SERVER, EMAIL_ADDRESS, LLM_MODEL, PORT, ...).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "TASKEXEC"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config is the full application configuration.
type Config struct {
	Store     StoreConfig     `mapstructure:"store" json:"store" yaml:"store"`
	Charts    ChartsConfig    `mapstructure:"charts" json:"charts" yaml:"charts"`
	Exec      ExecConfig      `mapstructure:"exec" json:"exec" yaml:"exec"`
	Generator GeneratorConfig `mapstructure:"generator" json:"generator" yaml:"generator"`
	Webhooks  WebhookConfig   `mapstructure:"webhooks" json:"webhooks" yaml:"webhooks"`
	SMTP      SMTPConfig      `mapstructure:"smtp" json:"smtp" yaml:"smtp"`
	HTTP      HTTPConfig      `mapstructure:"http" json:"http" yaml:"http"`
	Log       LogConfig       `mapstructure:"log" json:"log" yaml:"log"`
}

// StoreConfig selects the task store.
type StoreConfig struct {
	Backend string `mapstructure:"backend" json:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" json:"path" yaml:"path"`
	Watch   bool   `mapstructure:"watch" json:"watch" yaml:"watch"`
}

// ChartsConfig controls where figures are written.
type ChartsConfig struct {
	Dir string `mapstructure:"dir" json:"dir" yaml:"dir"`
}

// ExecConfig bounds snippet execution.
type ExecConfig struct {
	Timeout    time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	MaxTimeout time.Duration `mapstructure:"max_timeout" json:"max_timeout" yaml:"max_timeout"`
	MaxSteps   uint64        `mapstructure:"max_steps" json:"max_steps" yaml:"max_steps"`
	CacheSize  int           `mapstructure:"cache_size" json:"cache_size" yaml:"cache_size"`
}

// GeneratorConfig points at a remote generation service. An empty endpoint
// disables generation; planners then run their fallback snippets.
type GeneratorConfig struct {
	Endpoint string        `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`
	Token    string        `mapstructure:"token" json:"-" yaml:"-"`
	Model    string        `mapstructure:"model" json:"model" yaml:"model"`
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
}

// WebhookConfig holds chat webhook URLs.
type WebhookConfig struct {
	SlackTasks string `mapstructure:"slack_tasks" json:"slack_tasks" yaml:"slack_tasks"`
	SlackAgent string `mapstructure:"slack_agent" json:"slack_agent" yaml:"slack_agent"`
	Slack      string `mapstructure:"slack" json:"slack" yaml:"slack"`
	Discord    string `mapstructure:"discord" json:"discord" yaml:"discord"`
	Teams      string `mapstructure:"teams" json:"teams" yaml:"teams"`
}

// SMTPConfig configures outgoing email.
type SMTPConfig struct {
	Host      string `mapstructure:"host" json:"host" yaml:"host"`
	Port      int    `mapstructure:"port" json:"port" yaml:"port"`
	From      string `mapstructure:"from" json:"from" yaml:"from"`
	Password  string `mapstructure:"password" json:"-" yaml:"-"`
	Recipient string `mapstructure:"recipient" json:"recipient" yaml:"recipient"`
}

// HTTPConfig configures the REST server.
type HTTPConfig struct {
	Addr        string   `mapstructure:"addr" json:"addr" yaml:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins" yaml:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level"`
	Format string `mapstructure:"format" json:"format" yaml:"format"`
}

var defaults = map[string]any{
	"store.backend": StoreFile,
	"store.path":    "data/tasks.json",
	"store.watch":   false,

	"charts.dir": "data/charts",

	"exec.timeout":     5 * time.Second,
	"exec.max_timeout": 30 * time.Second,
	"exec.max_steps":   uint64(10_000_000),
	"exec.cache_size":  128,

	"generator.endpoint": "",
	"generator.token":    "",
	"generator.model":    "",
	"generator.timeout":  60 * time.Second,

	"webhooks.slack_tasks": "",
	"webhooks.slack_agent": "",
	"webhooks.slack":       "",
	"webhooks.discord":     "",
	"webhooks.teams":       "",

	"smtp.host":      "smtp.gmail.com",
	"smtp.port":      587,
	"smtp.from":      "",
	"smtp.password":  "",
	"smtp.recipient": "",

	"http.addr":         ":8000",
	"http.cors_origins": []string{"http://localhost:3000", "http://127.0.0.1:3000"},

	"log.level":  "info",
	"log.format": "text",
}

// aliases are the unprefixed variables accepted next to TASKEXEC_ names.
var aliases = map[string][]string{
	"webhooks.slack_tasks": {"WEBHOOK_URL_SLACK_TASKS"},
	"webhooks.slack_agent": {"WEBHOOK_URL_SLACK_AGENT"},
	"webhooks.slack":       {"WEBHOOK_URL_SLACK"},
	"webhooks.discord":     {"WEBHOOK_URL_DISCORD"},
	"webhooks.teams":       {"WEBHOOK_URL_TEAMS"},
	"smtp.host":            {"SMTP_SERVER"},
	"smtp.port":            {"SMTP_PORT"},
	"smtp.from":            {"EMAIL_ADDRESS"},
	"smtp.password":        {"EMAIL_PASSWORD"},
	"generator.model":      {"LLM_MODEL"},
}

// Options controls where Load looks.
type Options struct {
	// File is a YAML config file. Empty means none; a named file must exist.
	File string

	// EnvFile is a dotenv file. Missing files are ignored. Defaults to ".env".
	EnvFile string
}

// Load reads the configuration described by opts.
func Load(opts Options) (Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range aliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	if port := os.Getenv("PORT"); port != "" && os.Getenv(EnvPrefix+"_HTTP_ADDR") == "" {
		v.SetDefault("http.addr", ":"+port)
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and enums.
func (c Config) Validate() error {
	var problems []string
	switch c.Store.Backend {
	case StoreMemory:
	case StoreFile, StoreSQLite:
		if strings.TrimSpace(c.Store.Path) == "" {
			problems = append(problems, "store.path is required for the "+c.Store.Backend+" store")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.backend %q is not one of memory, file, sqlite", c.Store.Backend))
	}
	if c.Exec.Timeout <= 0 {
		problems = append(problems, "exec.timeout must be positive")
	}
	if c.Exec.MaxTimeout < c.Exec.Timeout {
		problems = append(problems, "exec.max_timeout must not be less than exec.timeout")
	}
	if c.Exec.CacheSize < 0 {
		problems = append(problems, "exec.cache_size must not be negative")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		problems = append(problems, fmt.Sprintf("smtp.port %d is out of range", c.SMTP.Port))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q is not one of text, json", c.Log.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// EmailEnabled reports whether SMTP credentials are present.
func (c Config) EmailEnabled() bool {
	return c.SMTP.From != "" && c.SMTP.Password != ""
}

// GeneratorEnabled reports whether a generation endpoint is configured.
func (c Config) GeneratorEnabled() bool {
	return c.Generator.Endpoint != ""
}
