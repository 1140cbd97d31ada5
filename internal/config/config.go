package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"time"

	"github.com/joho/godotenv" // optional .env file support for local runs
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Secrets and connection settings are required;
// token lifetimes and tuning knobs fall back to defaults.
type Config struct {
	Env      string // application environment (e.g. "dev", "production")
	Port     string // HTTP port to listen on
	LogLevel string // zap level: debug, info, warn, error

	DBUser      string // database username
	DBPass      string // database password (optional)
	DBHost      string // database host address
	DBPort      string // database port number
	DBName      string // database name
	AutoMigrate bool   // apply the embedded schema at startup

	JWTSecret       string        // secret used to sign access tokens
	JWTIssuer       string        // iss claim written to and required on access tokens
	AccessTTL       time.Duration // access token lifetime
	RefreshTTL      time.Duration // refresh session lifetime
	VerificationTTL time.Duration // email verification token lifetime
	ResetTTL        time.Duration // password reset token lifetime
	BcryptCost      int           // bcrypt cost for password hashing

	AMQPURL    string // broker used for outbound email events; empty disables publishing
	EmailQueue string // queue name for email events

	RoleCacheTTL time.Duration // lifetime of cached role rows in Redis
}

// Load reads configuration values from the environment, after merging an
// optional .env file.  Required variables are enforced by must() and missing
// values cause the program to exit with a fatal log message, so a process
// without a signing secret never starts.
func Load() Config {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	return Config{
		Env:      envStr("APP_ENV", "dev"),
		Port:     must("APP_PORT"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		DBUser:      must("DB_USER"),
		DBPass:      os.Getenv("DB_PASS"), // empty allowed
		DBHost:      must("DB_HOST"),
		DBPort:      must("DB_PORT"),
		DBName:      must("DB_NAME"),
		AutoMigrate: envBool("DB_AUTO_MIGRATE", false),

		JWTSecret:       must("JWT_SECRET"),
		JWTIssuer:       envStr("JWT_ISSUER", "account-authority"),
		AccessTTL:       time.Duration(envInt("ACCESS_TOKEN_TTL_MIN", 60)) * time.Minute,
		RefreshTTL:      time.Duration(envInt("REFRESH_TOKEN_TTL_DAYS", 7)) * 24 * time.Hour,
		VerificationTTL: envDur("VERIFICATION_TOKEN_TTL", 24*time.Hour),
		ResetTTL:        envDur("RESET_TOKEN_TTL", 24*time.Hour),
		BcryptCost:      envInt("BCRYPT_COST", 10),

		AMQPURL:    amqpURL(),
		EmailQueue: envStr("EMAIL_QUEUE", "auth.email"),

		RoleCacheTTL: envDur("ROLE_CACHE_TTL", 10*time.Minute),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// MailerConfig is the subset read by the email worker, which never touches
// the database.
type MailerConfig struct {
	Env        string
	LogLevel   string
	AMQPURL    string
	EmailQueue string
	OutboxPath string // file the default deliverer appends to
}

// LoadMailer reads the worker configuration. The broker URL is required.
func LoadMailer() MailerConfig {
	_ = godotenv.Load()

	url := amqpURL()
	if url == "" {
		url = must("RABBITMQ_URL")
	}
	return MailerConfig{
		Env:        envStr("APP_ENV", "dev"),
		LogLevel:   envStr("LOG_LEVEL", "info"),
		AMQPURL:    url,
		EmailQueue: envStr("EMAIL_QUEUE", "auth.email"),
		OutboxPath: envStr("MAILER_OUTBOX", "logs/email.log"),
	}
}
