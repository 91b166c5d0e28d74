package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	ScanRateLimit ScanRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	Membership    MembershipConfig
	Stripe        StripeConfig
	Brevo         BrevoConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Membership.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"UMMATI_APP_ENV" required:"true"`
	Port         string `envconfig:"UMMATI_APP_PORT" required:"true"`
	FrontendURL  string `envconfig:"UMMATI_FRONTEND_URL" required:"true"`
	LogLevel     string `envconfig:"UMMATI_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"UMMATI_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"UMMATI_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"UMMATI_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"UMMATI_DB_DSN"`

	LegacyHost     string `envconfig:"UMMATI_DB_HOST"`
	LegacyPort     int    `envconfig:"UMMATI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"UMMATI_DB_USER"`
	LegacyPassword string `envconfig:"UMMATI_DB_PASSWORD"`
	LegacyName     string `envconfig:"UMMATI_DB_NAME"`
	LegacySSLMode  string `envconfig:"UMMATI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"UMMATI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"UMMATI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"UMMATI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"UMMATI_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"UMMATI_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"UMMATI_REDIS_URL"`
	Address      string        `envconfig:"UMMATI_REDIS_ADDR"`
	Password     string        `envconfig:"UMMATI_REDIS_PASSWORD"`
	DB           int           `envconfig:"UMMATI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"UMMATI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"UMMATI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"UMMATI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"UMMATI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"UMMATI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"UMMATI_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"UMMATI_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"UMMATI_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"UMMATI_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"UMMATI_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"UMMATI_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"UMMATI_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"UMMATI_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"UMMATI_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"UMMATI_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"UMMATI_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"UMMATI_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"UMMATI_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"UMMATI_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"UMMATI_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// ScanRateLimitConfig throttles the unauthenticated QR verification endpoints.
type ScanRateLimitConfig struct {
	Window  time.Duration `envconfig:"UMMATI_SCAN_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit int           `envconfig:"UMMATI_SCAN_RATE_LIMIT_IP_LIMIT" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"UMMATI_AUTO_MIGRATE" default:"false"`
	SeedTiers   bool `envconfig:"UMMATI_SEED_TIERS" default:"true"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL   time.Duration `envconfig:"UMMATI_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
	ProcessedEventRetention time.Duration `envconfig:"UMMATI_PROCESSED_EVENT_RETENTION" default:"720h"`
}

// MembershipConfig holds the billing lifecycle knobs.
type MembershipConfig struct {
	GracePeriod       time.Duration `envconfig:"UMMATI_MEMBERSHIP_GRACE_PERIOD" default:"168h"`
	MaxFailedPayments int           `envconfig:"UMMATI_MEMBERSHIP_MAX_FAILED_PAYMENTS" default:"3"`
	FreePeriod        time.Duration `envconfig:"UMMATI_MEMBERSHIP_FREE_PERIOD" default:"8760h"`
	QRCodeTTL         time.Duration `envconfig:"UMMATI_QR_CODE_TTL" default:"10m"`
}

func (m MembershipConfig) validate() error {
	if m.GracePeriod <= 0 {
		return fmt.Errorf("%s must be positive", EnvMembershipGracePeriod)
	}
	if m.MaxFailedPayments <= 0 {
		return fmt.Errorf("%s must be positive", EnvMembershipMaxFailedPayments)
	}
	if m.FreePeriod <= 0 {
		return fmt.Errorf("%s must be positive", EnvMembershipFreePeriod)
	}
	if m.QRCodeTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvQRCodeTTL)
	}
	return nil
}

type StripeConfig struct {
	APIKey         string `envconfig:"UMMATI_STRIPE_API_KEY"`
	Secret         string `envconfig:"UMMATI_STRIPE_SECRET"`
	Env            string `envconfig:"UMMATI_STRIPE_ENV" default:"test"`
	MonthlyPriceID string `envconfig:"UMMATI_STRIPE_MONTHLY_PRICE_ID"`
	MonthlyProduct string `envconfig:"UMMATI_STRIPE_MONTHLY_PRODUCT_ID"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type BrevoConfig struct {
	APIKey     string `envconfig:"UMMATI_BREVO_API_KEY"`
	SenderName string `envconfig:"UMMATI_BREVO_SENDER_NAME" default:"Ummati Community"`
	SenderMail string `envconfig:"UMMATI_BREVO_SENDER_EMAIL"`
}

// Enabled reports whether transactional email can be delivered.
func (b BrevoConfig) Enabled() bool {
	return strings.TrimSpace(b.APIKey) != "" && strings.TrimSpace(b.SenderMail) != ""
}

type CronConfig struct {
	Interval time.Duration `envconfig:"UMMATI_CRON_INTERVAL" default:"5m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
