package config // package config loads application configuration from environment variables

import (
	"log"  // log is used to report configuration errors and halt execution
	"os"   // os provides access to environment variables
	"time" // time parses duration-valued settings
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for
// time-based settings.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to verify access tokens

	PayPalMode      string // "sandbox" or "live"
	PayPalClientID  string // PayPal REST client id
	PayPalSecret    string // PayPal REST secret
	FrontendURL     string // web frontend base URL for cancel redirects
	PaymentDeepLink string // mobile deep link for payment result redirects
	BackendURL      string // this server's public base URL, used to build PayPal return URLs

	PendingTTL     time.Duration // how long a booking may stay pending and unpaid
	ReaperInterval time.Duration // how often stale pending bookings are swept

	LogLevel  string // zap log level ("debug", "info", ...)
	LogFormat string // "json" or "console"
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),      // environment (dev/test/prod)
		Port:      must("APP_PORT"),     // port to bind the HTTP server
		DBUser:    must("DB_USER"),      // database user
		DBPass:    os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:    must("DB_HOST"),      // database host
		DBPort:    must("DB_PORT"),      // database port
		DBName:    must("DB_NAME"),      // database name
		JWTSecret: must("JWT_SECRET"),   // secret used to verify access tokens

		PayPalMode:      envStr("PAYPAL_MODE", "sandbox"),
		PayPalClientID:  must("PAYPAL_CLIENT_ID"),
		PayPalSecret:    must("PAYPAL_CLIENT_SECRET"),
		FrontendURL:     envStr("FRONTEND_URL", "http://localhost:3000"),
		PaymentDeepLink: envStr("PAYMENT_DEEP_LINK", "movieticketapp://payment"),
		BackendURL:      must("BACKEND_URL"),

		PendingTTL:     mustDur("BOOKING_PENDING_TTL"), // e.g. "15m"
		ReaperInterval: envDur("REAPER_INTERVAL", time.Minute),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),
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

// mustDur is like must() but parses the value as a time.Duration.
func mustDur(key string) time.Duration {
	s := must(key)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		log.Fatalf("invalid duration for %s: %q", key, s)
	}
	return d
}
