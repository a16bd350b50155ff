package configuration

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the given env files from the working directory, or from
// the nearest parent holding go.mod when none exist there.
func LoadEnv(envFiles []string) (int, error) {
	existing := existingFiles("", envFiles)
	if len(existing) == 0 {
		if root, ok := findModuleRoot(); ok {
			existing = existingFiles(root, envFiles)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func existingFiles(dir string, envFiles []string) []string {
	out := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		path := file
		if dir != "" {
			path = filepath.Join(dir, file)
		}
		if fs.FileExists(path) {
			out = append(out, path)
		}
	}
	return out
}

func findModuleRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"gloria"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"10"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=%s pool_max_conns=%d",
		d.Host, d.Port, d.User, d.Name, d.Password, d.SSLMode, d.MaxConns,
	)
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"org-positions"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"http://localhost:4318"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type RateLimitOptions struct {
	Enabled   bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	GlobalRPS int    `env:"RATE_LIMIT_GLOBAL_RPS" envDefault:"1000"`
	Storage   string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	// Falls back to REDIS_URL when empty.
	RedisURL string `env:"RATE_LIMIT_REDIS_URL"`
}

func (r *RateLimitOptions) Validate() error {
	if r.GlobalRPS < 0 {
		return fmt.Errorf("rate limit GlobalRPS must be non-negative, got %d", r.GlobalRPS)
	}
	if r.GlobalRPS > 1000000 {
		return fmt.Errorf("rate limit GlobalRPS too high, maximum is 1,000,000, got %d", r.GlobalRPS)
	}
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	return nil
}

type CORSOptions struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

type AuthzOptions struct {
	ModelPath      string `env:"AUTHZ_MODEL_PATH"`
	PolicyPath     string `env:"AUTHZ_POLICY_PATH" envDefault:"config/access/policy.csv"`
	FlagConfigPath string `env:"AUTHZ_FLAG_CONFIG"`
	Mode           string `env:"AUTHZ_MODE" envDefault:"shadow"`
}

// OrgOptions are the tunable limits of the position assignment rules.
type OrgOptions struct {
	MaxBackdateMonths int           `env:"ASSIGNMENT_MAX_BACKDATE_MONTHS" envDefault:"12"`
	MaxSpanYears      int           `env:"ASSIGNMENT_MAX_SPAN_YEARS" envDefault:"5"`
	ActingMaxMonths   int           `env:"ASSIGNMENT_ACTING_MAX_MONTHS" envDefault:"6"`
	ActingMaxHolders  int           `env:"ASSIGNMENT_ACTING_MAX_HOLDERS" envDefault:"2"`
	MaxChainDepth     int           `env:"HIERARCHY_MAX_CHAIN_DEPTH" envDefault:"20"`
	TxMaxRetries      uint64        `env:"ORG_TX_MAX_RETRIES" envDefault:"3"`
	TxRetryBase       time.Duration `env:"ORG_TX_RETRY_BASE" envDefault:"25ms"`
	CacheEnabled      bool          `env:"ORG_HIERARCHY_CACHE_ENABLED" envDefault:"false"`
	CacheTTL          time.Duration `env:"ORG_HIERARCHY_CACHE_TTL" envDefault:"5m"`
	AuditTimeout      time.Duration `env:"ORG_AUDIT_TIMEOUT" envDefault:"5s"`
	ValidateOnStartup bool          `env:"ORG_VALIDATE_HIERARCHY_ON_STARTUP" envDefault:"false"`
}

func (o *OrgOptions) Validate() error {
	if o.MaxSpanYears <= 0 {
		return fmt.Errorf("ASSIGNMENT_MAX_SPAN_YEARS must be positive, got %d", o.MaxSpanYears)
	}
	if o.ActingMaxMonths <= 0 {
		return fmt.Errorf("ASSIGNMENT_ACTING_MAX_MONTHS must be positive, got %d", o.ActingMaxMonths)
	}
	if o.ActingMaxHolders <= 0 {
		return fmt.Errorf("ASSIGNMENT_ACTING_MAX_HOLDERS must be positive, got %d", o.ActingMaxHolders)
	}
	if o.MaxChainDepth <= 0 {
		return fmt.Errorf("HIERARCHY_MAX_CHAIN_DEPTH must be positive, got %d", o.MaxChainDepth)
	}
	if o.MaxBackdateMonths < 0 {
		return fmt.Errorf("ASSIGNMENT_MAX_BACKDATE_MONTHS must not be negative, got %d", o.MaxBackdateMonths)
	}
	return nil
}

type Configuration struct {
	Database      DatabaseOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	Authz         AuthzOptions
	Org           OrgOptions
	RateLimit     RateLimitOptions
	CORS          CORSOptions

	RedisURL         string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"text"`
	LogPath          string `env:"LOG_PATH"`
	// Request id header; a uuid is generated when it is absent.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	// Header carrying the acting user profile id.
	ActorIDHeader string `env:"ACTOR_ID_HEADER" envDefault:"X-Actor-ID"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

// Load builds a Configuration from the environment without touching the
// process-wide singleton.
func Load(envFiles ...string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 && len(envFiles) > 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.Org.Validate(); err != nil {
		return fmt.Errorf("org configuration error: %w", err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}
	if c.RateLimit.RedisURL == "" {
		c.RateLimit.RedisURL = c.RedisURL
	}
	if err := c.validateLogFormat(); err != nil {
		return err
	}
	if err := c.setupLogger(); err != nil {
		return err
	}

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}
	return nil
}

func (c *Configuration) validateLogFormat() error {
	format := strings.ToLower(strings.TrimSpace(c.LogFormat))
	if format == "" {
		format = "text"
	}
	switch format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT=%q (expected text|json)", c.LogFormat)
	}
	c.LogFormat = format
	return nil
}

func (c *Configuration) setupLogger() error {
	logger := logrus.New()
	logger.SetLevel(c.LogrusLogLevel())
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if c.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		c.logFile = f
		logger.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	c.logger = logger
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
