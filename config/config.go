package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings is the resolved process configuration.
// Every value can be overridden through the environment (or a local .env file).
type Settings struct {
	Port               string
	Env                string
	CorsAllowedOrigins []string

	DB    DatabaseSettings
	Redis RedisSettings

	PubSubProjectId       string
	PubSubCredentialsJSON string
	PubSubSummaryTopic    string

	GCSBucket          string
	GCSCredentialsJSON string

	Reconcile ReconcileSettings

	EnableReportCache bool
	ReportCacheTTL    time.Duration
	SkipMigrations    bool
	LogLevel          string

	RateLimitEnabled     bool
	RateLimitMaxRequests int64
	RateLimitWindow      time.Duration
}

type DatabaseSettings struct {
	User            string
	Password        string
	Host            string
	Port            string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MaxAttempts     int
}

type RedisSettings struct {
	Address  string
	Password string
}

type ReconcileSettings struct {
	Workers          int
	QueueSize        int
	MaxAttempts      int
	InitialBackoff   time.Duration
	CascadeBackdated bool
}

func (s *Settings) IsProduction() bool {
	return strings.EqualFold(s.Env, "production")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GO_ENV", "development")
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_NAME", "sitebooks")
	v.SetDefault("DB_MAX_OPEN_CONNS", 50)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	v.SetDefault("DB_CONNECT_MAX_ATTEMPTS", 0)
	v.SetDefault("REDIS_ADDRESS", "localhost:6379")
	v.SetDefault("RECONCILE_WORKERS", 4)
	v.SetDefault("RECONCILE_QUEUE_SIZE", 1024)
	v.SetDefault("RECONCILE_MAX_ATTEMPTS", 5)
	v.SetDefault("RECONCILE_INITIAL_BACKOFF", "500ms")
	v.SetDefault("REPORT_CACHE_TTL_SECONDS", 60)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RATE_LIMIT_MAX_REQUESTS", 600)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
}

// Load reads .env (if present) and the process environment.
func Load() (*Settings, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	backoff, err := time.ParseDuration(v.GetString("RECONCILE_INITIAL_BACKOFF"))
	if err != nil {
		return nil, err
	}

	projectId := v.GetString("PUBSUB_PROJECT_ID")
	if projectId == "" {
		projectId = v.GetString("GOOGLE_CLOUD_PROJECT")
	}

	s := &Settings{
		Port:               v.GetString("PORT"),
		Env:                v.GetString("GO_ENV"),
		CorsAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		DB: DatabaseSettings{
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			Name:            v.GetString("DB_NAME"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute,
			MaxAttempts:     v.GetInt("DB_CONNECT_MAX_ATTEMPTS"),
		},
		Redis: RedisSettings{
			Address:  v.GetString("REDIS_ADDRESS"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		PubSubProjectId:       projectId,
		PubSubCredentialsJSON: v.GetString("PUBSUB_CREDENTIALS_JSON"),
		PubSubSummaryTopic:    v.GetString("PUBSUB_SUMMARY_TOPIC"),
		GCSBucket:             v.GetString("GCS_BUCKET"),
		GCSCredentialsJSON:    v.GetString("GCS_CREDENTIALS_JSON"),
		Reconcile: ReconcileSettings{
			Workers:          v.GetInt("RECONCILE_WORKERS"),
			QueueSize:        v.GetInt("RECONCILE_QUEUE_SIZE"),
			MaxAttempts:      v.GetInt("RECONCILE_MAX_ATTEMPTS"),
			InitialBackoff:   backoff,
			CascadeBackdated: envBool(v, "CASCADE_BACKDATED_RECONCILE"),
		},
		EnableReportCache: envBool(v, "ENABLE_REPORT_CACHE"),
		ReportCacheTTL:    time.Duration(v.GetInt("REPORT_CACHE_TTL_SECONDS")) * time.Second,
		SkipMigrations:    envBool(v, "SKIP_MIGRATIONS"),
		LogLevel:          v.GetString("LOG_LEVEL"),

		RateLimitEnabled:     envBool(v, "RATE_LIMIT_ENABLED"),
		RateLimitMaxRequests: v.GetInt64("RATE_LIMIT_MAX_REQUESTS"),
		RateLimitWindow:      time.Duration(v.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
	}
	return s, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
