package config // package config loads application configuration from environment variables

import (
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  It is built once at startup and handed by value
// to the components that need it; nothing mutates it afterwards.
type Config struct {
	Env              string // application environment (e.g. "dev", "prod")
	Port             string // HTTP port to listen on
	DBUser           string // database username
	DBPass           string // database password (optional)
	DBHost           string // database host address
	DBPort           string // database port number
	DBName           string // database name
	JWTAccessSecret  string // secret used to sign access tokens
	JWTRefreshSecret string // separate secret used to sign refresh tokens
	AccessTTLMin     int    // access token time-to-live in minutes
	RefreshTTLDays   int    // refresh token time-to-live in days
	PasswordPepper   string // server-side pepper mixed into every password hash
	BcryptCost       int    // bcrypt work factor

	CORSOrigin    string // storefront origin allowed to send credentials
	CookieSecure  bool   // mark the refresh cookie Secure (HTTPS only)
	AdminIdentity string // optional admin account seeded at startup
	AdminPassword string
}

// AccessTTL returns the access token lifetime.
func (c Config) AccessTTL() time.Duration { return time.Duration(c.AccessTTLMin) * time.Minute }

// RefreshTTL returns the refresh token lifetime.
func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// terminate the process: a server without signing secrets must never start.
func Load() Config {
	return Config{
		Env:              must("APP_ENV"),
		Port:             must("APP_PORT"),
		DBUser:           must("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"), // empty allowed
		DBHost:           must("DB_HOST"),
		DBPort:           must("DB_PORT"),
		DBName:           must("DB_NAME"),
		JWTAccessSecret:  must("JWT_ACCESS_SECRET"),
		JWTRefreshSecret: must("JWT_REFRESH_SECRET"),
		AccessTTLMin:     mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays:   mustInt("REFRESH_TOKEN_TTL_DAYS"),
		PasswordPepper:   must("PASSWORD_PEPPER"),
		BcryptCost:       mustInt("BCRYPT_COST"),
		CORSOrigin:       envStr("CORS_ORIGIN", "http://localhost:3000"),
		CookieSecure:     envBool("COOKIE_SECURE", false),
		AdminIdentity:    os.Getenv("ADMIN_IDENTITY"),
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatal().Str("key", key).Msg("missing required env var")
	}
	return v
}

// mustInt is like must() but converts the retrieved string into a positive
// integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		log.Fatal().Str("key", key).Str("value", s).Msg("invalid positive int")
	}
	return n
}
