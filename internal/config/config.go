package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Redis     RedisConfig     `yaml:"redis"`
	Blob      BlobConfig      `yaml:"blob"`
	Auth      AuthConfig      `yaml:"auth"`
	Game      GameConfig      `yaml:"game"`
	Log       LogConfig       `yaml:"log"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Emulator forces every backing service to its in-process variant
	// (memory store, memory blobs, in-process change feed).
	Emulator bool `yaml:"emulator" env:"USE_EMULATOR" env-default:"false"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// StoreConfig selects the document store driver and its change feed.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER" env-default:"memory"`
	// Feed is "local" (in-process hub) or "redis".
	Feed string `yaml:"feed" env:"STORE_FEED" env-default:"local"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"2"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// SQLiteConfig holds the local single-node store settings.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"SQLITE_PATH" env-default:"./data/labsim.db"`
}

// RedisConfig holds the change feed connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"     env:"REDIS_ADDR"     env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"REDIS_DB"       env-default:"0"`
	Channel  string `yaml:"channel"  env:"REDIS_CHANNEL"  env-default:"labsim:docs"`
}

// BlobConfig selects where generated QR images are stored.
type BlobConfig struct {
	Driver        string `yaml:"driver"          env:"BLOB_DRIVER"          env-default:"memory"`
	Bucket        string `yaml:"bucket"          env:"BLOB_S3_BUCKET"`
	Region        string `yaml:"region"          env:"BLOB_S3_REGION"       env-default:"us-east-1"`
	Endpoint      string `yaml:"endpoint"        env:"BLOB_S3_ENDPOINT"`
	AccessKey     string `yaml:"access_key"      env:"BLOB_S3_ACCESS_KEY"`
	SecretKey     string `yaml:"secret_key"      env:"BLOB_S3_SECRET_KEY"`
	PathStyle     bool   `yaml:"path_style"      env:"BLOB_S3_PATH_STYLE"   env-default:"false"`
	PublicBaseURL string `yaml:"public_base_url" env:"BLOB_PUBLIC_BASE_URL"`
}

// AuthConfig holds identity token settings.
type AuthConfig struct {
	IdentitySecret string        `yaml:"identity_secret" env:"AUTH_IDENTITY_SECRET" env-required:"true"`
	Issuer         string        `yaml:"issuer"          env:"AUTH_ISSUER"          env-default:"labsim"`
	TokenTTL       time.Duration `yaml:"token_ttl"       env:"AUTH_TOKEN_TTL"       env-default:"1h"`
}

// GameConfig holds gameplay-adjacent persistence settings.
type GameConfig struct {
	StartingBudget   int           `yaml:"starting_budget"   env:"GAME_STARTING_BUDGET"   env-default:"10000"`
	AutosaveDebounce time.Duration `yaml:"autosave_debounce" env:"GAME_AUTOSAVE_DEBOUNCE" env-default:"1s"`
	AutosaveInterval time.Duration `yaml:"autosave_interval" env:"GAME_AUTOSAVE_INTERVAL" env-default:"5m"`
	QRMaxAge         time.Duration `yaml:"qr_max_age"        env:"GAME_QR_MAX_AGE"        env-default:"24h"`
	LeaderboardLimit int           `yaml:"leaderboard_limit" env:"GAME_LEADERBOARD_LIMIT" env-default:"10"`
}

// CORSConfig holds CORS settings for the browser client.
type CORSConfig struct {
	AllowedOrigins   string `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"*"`
	AllowedMethods   string `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowedHeaders   string `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"Authorization,Content-Type,X-Request-Id"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"true"`
	MaxAge           int    `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"86400"`
}

// RateLimitConfig bounds the endpoints that can be brute-forced or spammed.
// Zero disables a limit.
type RateLimitConfig struct {
	JoinPerMinute   int           `yaml:"join_per_minute"   env:"RATE_LIMIT_JOIN_PER_MINUTE"   env-default:"10"`
	ScansPerMinute  int           `yaml:"scans_per_minute"  env:"RATE_LIMIT_SCANS_PER_MINUTE"  env-default:"120"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"  env:"RATE_LIMIT_CLEANUP_INTERVAL"  env-default:"5m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// Address returns host:port for http.Server.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
