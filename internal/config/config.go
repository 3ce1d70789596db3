package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Email     EmailConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
}

type DatabaseConfig struct {
	URL               string // overrides the discrete settings when set
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectAttempts   int
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret       string
	TokenExpiry     time.Duration
	CleanupInterval time.Duration

	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string

	TimingDelayBaseMs   int
	TimingDelayRandomMs int

	MaxFailedLoginsPerEmail int
	MaxFailedLoginsPerIP    int
	LoginLockoutWindow      time.Duration
	RouteRequestsPerMinute  int
	UserRequestsPerMinute   int

	// ForgotPasswordUniformResponse answers unknown emails exactly like known ones.
	ForgotPasswordUniformResponse bool

	// Bootstrap admin, created at startup when no account has the email yet.
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

type EmailConfig struct {
	AWSRegion    string
	FromAddress  string
	ResetURLBase string
}

type StorageConfig struct {
	S3Bucket        string
	S3Region        string
	S3Endpoint      string // set for MinIO or other S3-compatible hosts
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	UsePathStyle    bool
	MaxAvatarBytes  int64
}

type RedisConfig struct {
	Addr     string // empty selects in-process counters
	Password string
	DB       int
}

type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string // empty disables trace export
	OTLPInsecure bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			URL:               getEnv("DATABASE_URL", ""),
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "roster"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			ConnectAttempts:   getEnvAsInt("DB_CONNECT_ATTEMPTS", 5),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:                     jwtSecret,
			TokenExpiry:                   getEnvAsDuration("TOKEN_EXPIRY", 7*24*time.Hour),
			CleanupInterval:               getEnvAsDuration("RESET_TOKEN_CLEANUP_INTERVAL", 15*time.Minute),
			CookieDomain:                  getEnv("COOKIE_DOMAIN", ""),
			CookieSecure:                  getEnvAsBool("COOKIE_SECURE", env == "production"),
			CookieSameSite:                getEnv("COOKIE_SAMESITE", "lax"),
			TimingDelayBaseMs:             getEnvAsInt("AUTH_TIMING_DELAY_BASE_MS", 100),
			TimingDelayRandomMs:           getEnvAsInt("AUTH_TIMING_DELAY_RANDOM_MS", 50),
			MaxFailedLoginsPerEmail:       getEnvAsInt("AUTH_MAX_FAILED_LOGINS_PER_EMAIL", 5),
			MaxFailedLoginsPerIP:          getEnvAsInt("AUTH_MAX_FAILED_LOGINS_PER_IP", 20),
			LoginLockoutWindow:            getEnvAsDuration("AUTH_LOGIN_LOCKOUT_WINDOW", 15*time.Minute),
			RouteRequestsPerMinute:        getEnvAsInt("AUTH_ROUTE_REQUESTS_PER_MINUTE", 20),
			UserRequestsPerMinute:         getEnvAsInt("AUTH_USER_REQUESTS_PER_MINUTE", 60),
			ForgotPasswordUniformResponse: getEnvAsBool("FORGOT_PASSWORD_UNIFORM_RESPONSE", false),
			AdminName:                     getEnv("ADMIN_NAME", "Administrator"),
			AdminEmail:                    getEnv("ADMIN_EMAIL", ""),
			AdminPassword:                 getEnv("ADMIN_PASSWORD", ""),
		},
		Email: EmailConfig{
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "noreply@localhost"),
			ResetURLBase: strings.TrimRight(getEnv("RESET_URL_BASE", "http://localhost:3000/reset-password"), "/"),
		},
		Storage: StorageConfig{
			S3Bucket:        getEnv("S3_BUCKET", "avatars"),
			S3Region:        getEnv("S3_REGION", getEnv("AWS_REGION", "us-east-1")),
			S3Endpoint:      getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			PublicBaseURL:   strings.TrimRight(getEnv("S3_PUBLIC_BASE_URL", ""), "/"),
			UsePathStyle:    getEnvAsBool("S3_USE_PATH_STYLE", false),
			MaxAvatarBytes:  int64(getEnvAsInt("AVATAR_MAX_BYTES", 5<<20)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "roster"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		},
	}

	if cfg.Database.URL == "" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if cfg.Auth.TokenExpiry <= 0 {
		return nil, fmt.Errorf("TOKEN_EXPIRY must be positive")
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example", "secretkey",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if strings.Trim(secretLower, "0123456789!-_") == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// IsProduction reports whether the server runs with production defaults.
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if origins := splitList(getEnv("ALLOWED_ORIGINS", "")); len(origins) > 0 {
		return origins
	}
	if env == "production" {
		return []string{}
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
