// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	configPath     = pflag.String("config", "config.toml", "Path to the config file")
	validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}
	validEnvs      = []string{"development", "production", "test"}
	validDBTypes   = []string{"sqlite", "postgres", "memory"}

	ErrNoSecret = errors.New("no jwt secret provided")
)

const minSecretLength = 32

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	err := Load(*configPath)
	if errors.Is(err, ErrNoSecret) {
		fmt.Println("WARNING: You haven't set a JWT secret, so it has been generated for you. Please set it as an environment variable or in the config.toml file.\nYour random JWT secret:\n\n" + genSecret() + "\n\nPaste it into your config.toml file.")
		os.Exit(0)
	}

	return err
}

// Load reads the config file at path, applies env overrides and defaults
// and validates the result
func Load(path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs()
	setDefaults()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); ok || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s file is missing", path)
		}

		return fmt.Errorf("failed to read config file, %w", err)
	}

	return validate()
}

func bindEnvs() {
	v.BindEnv("app.env", "app_env")
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.domain", "host_domain")
	v.BindEnv("host.cors", "host_cors")

	v.BindEnv("host.ssl.enabled", "host_ssl_enabled")
	v.BindEnv("host.ssl.certificate_path", "host_ssl_certificate_path")
	v.BindEnv("host.ssl.certificate_key_path", "host_ssl_certificate_key_path")

	v.BindEnv("db.type", "db_type")
	v.BindEnv("db.path", "db_path")
	v.BindEnv("db.dsn", "db_dsn")

	v.BindEnv("jwt.secret", "jwt_secret")
	v.BindEnv("jwt.issuer", "jwt_issuer")

	v.BindEnv("session.max_age", "session_max_age")
	v.BindEnv("session.absolute_max_age", "session_absolute_max_age")

	v.BindEnv("tokens.verification_ttl", "tokens_verification_ttl")
	v.BindEnv("tokens.reset_ttl", "tokens_reset_ttl")
	v.BindEnv("tokens.cleanup_schedule", "tokens_cleanup_schedule")

	v.BindEnv("ratelimit.max", "ratelimit_max")
	v.BindEnv("ratelimit.window", "ratelimit_window")
	v.BindEnv("ratelimit.resend_cooldown", "ratelimit_resend_cooldown")

	v.BindEnv("redis.addr", "redis_addr")
	v.BindEnv("redis.password", "redis_password")
	v.BindEnv("redis.db", "redis_db")

	v.BindEnv("mail.enabled", "mail_enabled")
	v.BindEnv("mail.host", "mail_host")
	v.BindEnv("mail.port", "mail_port")
	v.BindEnv("mail.username", "mail_username")
	v.BindEnv("mail.password", "mail_password")
	v.BindEnv("mail.sender", "mail_sender")

	v.BindEnv("oauth.google.enabled", "oauth_google_enabled")
	v.BindEnv("oauth.google.client_id", "oauth_google_client_id")

	v.BindEnv("turnstile.enabled", "turnstile_enabled")
	v.BindEnv("turnstile.secret_token", "turnstile_secret_token")
}

func setDefaults() {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.domain", "localhost")
	v.SetDefault("host.cors", []string{"http://localhost:3000"})
	v.SetDefault("host.ssl.enabled", false)
	v.SetDefault("host.max_body_size", 1<<20)

	v.SetDefault("db.type", "sqlite")
	v.SetDefault("db.path", "learnhub.db")

	v.SetDefault("jwt.issuer", "learnhub")

	v.SetDefault("session.max_age", "720h")
	v.SetDefault("session.absolute_max_age", "2160h")

	v.SetDefault("tokens.verification_ttl", "1h")
	v.SetDefault("tokens.reset_ttl", "1h")
	v.SetDefault("tokens.cleanup_schedule", "@every 1h")

	v.SetDefault("security.argon.memory", 64*1024)
	v.SetDefault("security.argon.iterations", 3)
	v.SetDefault("security.argon.parallelism", 2)
	v.SetDefault("security.argon.salt_length", 16)
	v.SetDefault("security.argon.key_length", 32)

	v.SetDefault("ratelimit.max", 5)
	v.SetDefault("ratelimit.window", "15m")
	v.SetDefault("ratelimit.resend_cooldown", "1m")
	v.SetDefault("ratelimit.ip_max", 120)

	v.SetDefault("redis.db", 0)

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.port", 587)

	v.SetDefault("oauth.google.enabled", false)

	v.SetDefault("turnstile.enabled", false)

	v.SetDefault("auth.default_redirect", "/dashboard")
}

func validate() error {
	if !slices.Contains(validEnvs, v.GetString("app.env")) {
		return errors.New("invalid app env provided")
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if v.GetBool("host.ssl.enabled") {
		if v.GetString("host.ssl.certificate_path") == "" {
			return errors.New("no ssl certificate path provided")
		}

		if v.GetString("host.ssl.certificate_key_path") == "" {
			return errors.New("no ssl certificate key path provided")
		}
	}

	switch dbType := v.GetString("db.type"); {
	case !slices.Contains(validDBTypes, dbType):
		return errors.New("invalid database type provided")
	case dbType == "postgres" && v.GetString("db.dsn") == "":
		return errors.New("no postgres dsn provided")
	case dbType == "sqlite" && v.GetString("db.path") == "":
		return errors.New("no sqlite path provided")
	}

	secret := v.GetString("jwt.secret")
	if secret == "" {
		return ErrNoSecret
	}

	if len(secret) < minSecretLength {
		return fmt.Errorf("jwt secret must be at least %d characters long", minSecretLength)
	}

	for _, key := range []string{
		"session.max_age",
		"tokens.verification_ttl",
		"tokens.reset_ttl",
		"ratelimit.window",
		"ratelimit.resend_cooldown",
	} {
		if v.GetDuration(key) <= 0 {
			return fmt.Errorf("%s must be a duration bigger than 0", key)
		}
	}

	if abs := v.GetDuration("session.absolute_max_age"); abs != 0 && abs < v.GetDuration("session.max_age") {
		return errors.New("session.absolute_max_age can't be shorter than session.max_age")
	}

	if v.GetString("tokens.cleanup_schedule") == "" {
		return errors.New("no token cleanup schedule provided")
	}

	if v.GetInt("ratelimit.max") <= 0 {
		return errors.New("ratelimit.max must be bigger than 0")
	}

	if v.GetUint32("security.argon.memory") == 0 || v.GetUint32("security.argon.iterations") == 0 ||
		v.GetUint("security.argon.parallelism") == 0 || v.GetUint32("security.argon.key_length") == 0 {
		return errors.New("argon parameters must be bigger than 0")
	}

	if v.GetUint("security.argon.parallelism") > 255 {
		return errors.New("security.argon.parallelism must be at most 255")
	}

	if v.GetBool("mail.enabled") {
		if v.GetString("mail.host") == "" {
			return errors.New("no mail host provided")
		}

		if v.GetInt("mail.port") <= 0 {
			return errors.New("invalid mail port provided")
		}

		if v.GetString("mail.sender") == "" {
			return errors.New("no mail sender address provided")
		}
	}

	if v.GetBool("oauth.google.enabled") && v.GetString("oauth.google.client_id") == "" {
		return errors.New("no google client id provided")
	}

	if v.GetBool("turnstile.enabled") && v.GetString("turnstile.secret_token") == "" {
		return errors.New("turnstile secret token is missing")
	}

	return nil
}

// Production reports whether the app runs with app.env = production
func Production() bool {
	return v.GetString("app.env") == "production"
}

// SecureCookies reports whether cookies must carry the Secure attribute
func SecureCookies() bool {
	return v.GetBool("host.ssl.enabled") || Production()
}

// SessionCookieMaxAge outlives the token's own expiry up to the absolute
// ceiling so an expired token still reaches the server to be renewed
func SessionCookieMaxAge() time.Duration {
	if abs := v.GetDuration("session.absolute_max_age"); abs > 0 {
		return abs
	}

	return v.GetDuration("session.max_age")
}

// BaseURL is the public origin mail links point at
func BaseURL() string {
	scheme := "http"
	if SecureCookies() {
		scheme = "https"
	}

	domain := v.GetString("host.domain")
	if domain == "localhost" {
		return fmt.Sprintf("%s://localhost:%d", scheme, v.GetInt("host.port"))
	}

	return fmt.Sprintf("%s://%s", scheme, domain)
}
