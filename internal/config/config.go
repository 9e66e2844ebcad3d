package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the token service process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Token     TokenConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Env  string
	Port int

	// ReconcileInterval controls how often the orphaned-secret sweep runs.
	ReconcileInterval time.Duration
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

// TokenConfig holds signing key material and token lifetimes.
// The signing key is injected explicitly into the signer constructor;
// nothing reads it from ambient state.
type TokenConfig struct {
	SigningSecret string
	Issuer        string
	Audience      string

	// AccessTTL bounds the short-lived signed access credential.
	AccessTTL time.Duration

	// DefaultGrantDays / MaxGrantDays bound the outer (refresh) lifetime.
	DefaultGrantDays int
	MaxGrantDays     int
}

// RateLimitConfig holds fixed-window limits per operation kind.
// Issue/revoke/list windows key on caller identity; refresh keys on source IP.
type RateLimitConfig struct {
	Window       time.Duration
	IssueLimit   int
	RefreshLimit int
	RevokeLimit  int
	ListLimit    int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	{
		d, err := optDuration("RECONCILE_INTERVAL")
		d, parseErrs = appendDurationErr(parseErrs, d, err)
		c.App.ReconcileInterval = d
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Token.SigningSecret = os.Getenv("TOKEN_SIGNING_SECRET")
	c.Token.Issuer = strings.TrimSpace(os.Getenv("TOKEN_ISSUER"))
	c.Token.Audience = strings.TrimSpace(os.Getenv("TOKEN_AUDIENCE"))
	// Duration/limit env vars are optional (defaults applied in Validate())
	// but a malformed value is still a config error, never a silent default.
	{
		d, err := optDuration("TOKEN_ACCESS_TTL")
		d, parseErrs = appendDurationErr(parseErrs, d, err)
		c.Token.AccessTTL = d
	}
	{
		n, err := optInt("TOKEN_DEFAULT_GRANT_DAYS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Token.DefaultGrantDays = n
	}
	{
		n, err := optInt("TOKEN_MAX_GRANT_DAYS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Token.MaxGrantDays = n
	}

	{
		d, err := optDuration("RATE_LIMIT_WINDOW")
		d, parseErrs = appendDurationErr(parseErrs, d, err)
		c.RateLimit.Window = d
	}
	{
		n, err := optInt("RATE_LIMIT_ISSUE")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.RateLimit.IssueLimit = n
	}
	{
		n, err := optInt("RATE_LIMIT_REFRESH")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.RateLimit.RefreshLimit = n
	}
	{
		n, err := optInt("RATE_LIMIT_REVOKE")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.RateLimit.RevokeLimit = n
	}
	{
		n, err := optInt("RATE_LIMIT_LIST")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.RateLimit.ListLimit = n
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.ReconcileInterval <= 0 {
		c.App.ReconcileInterval = 15 * time.Minute
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Token.SigningSecret == "" {
		errs = append(errs, errors.New("TOKEN_SIGNING_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Token.Issuer == "" {
			errs = append(errs, errors.New("TOKEN_ISSUER is required in production"))
		}
		if c.Token.Audience == "" {
			errs = append(errs, errors.New("TOKEN_AUDIENCE is required in production"))
		}
	}

	if c.Token.AccessTTL <= 0 {
		// Default: short-lived access credentials.
		c.Token.AccessTTL = time.Hour
	}
	if c.Token.DefaultGrantDays <= 0 {
		c.Token.DefaultGrantDays = 30
	}
	if c.Token.MaxGrantDays <= 0 {
		c.Token.MaxGrantDays = 365
	}
	if c.Token.DefaultGrantDays > c.Token.MaxGrantDays {
		errs = append(errs, fmt.Errorf("TOKEN_DEFAULT_GRANT_DAYS (%d) must not exceed TOKEN_MAX_GRANT_DAYS (%d)", c.Token.DefaultGrantDays, c.Token.MaxGrantDays))
	}

	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.RateLimit.IssueLimit <= 0 {
		c.RateLimit.IssueLimit = 10
	}
	if c.RateLimit.RefreshLimit <= 0 {
		c.RateLimit.RefreshLimit = 60
	}
	if c.RateLimit.RevokeLimit <= 0 {
		c.RateLimit.RevokeLimit = 30
	}
	if c.RateLimit.ListLimit <= 0 {
		c.RateLimit.ListLimit = 60
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// optInt treats an unset key as 0 (defaulted later) but rejects
// malformed values.
func optInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// optDuration treats an unset key as 0 (defaulted later) but rejects
// malformed values.
func optDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 1h or 30s, got %q", key, v)
	}
	return d, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func appendDurationErr(errs []error, d time.Duration, err error) (time.Duration, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return d, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
