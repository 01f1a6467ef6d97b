package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Pricing      PricingConfig
	Quota        QuotaConfig
	Retry        RetryConfig
	Payment      PaymentConfig
	StoreAPI     StoreAPIConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ClientConfig is the subset a checkout client needs. It carries no
// database, Redis or signing secrets.
type ClientConfig struct {
	LogLevel  string `envconfig:"MAPFINDERZ_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"MAPFINDERZ_LOG_FORMAT" default:"json"`
	Debug     bool   `envconfig:"MAPFINDERZ_CHECKOUT_DEBUG" default:"false"`
	Pricing   PricingConfig
	Retry     RetryConfig
	StoreAPI  StoreAPIConfig
}

// LoadClient reads the checkout client configuration.
func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	if strings.TrimSpace(cfg.StoreAPI.BaseURL) == "" {
		return nil, fmt.Errorf("%s is required", EnvStoreAPIBaseURL)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MAPFINDERZ_APP_ENV" required:"true"`
	Port         string `envconfig:"MAPFINDERZ_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MAPFINDERZ_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"MAPFINDERZ_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"MAPFINDERZ_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"MAPFINDERZ_DB_DSN"`
	Driver     string `envconfig:"MAPFINDERZ_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"MAPFINDERZ_DB_SQLITE_PATH" default:"mapfinderz.db"`

	LegacyHost     string `envconfig:"MAPFINDERZ_DB_HOST"`
	LegacyPort     int    `envconfig:"MAPFINDERZ_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MAPFINDERZ_DB_USER"`
	LegacyPassword string `envconfig:"MAPFINDERZ_DB_PASSWORD"`
	LegacyName     string `envconfig:"MAPFINDERZ_DB_NAME"`
	LegacySSLMode  string `envconfig:"MAPFINDERZ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MAPFINDERZ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MAPFINDERZ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MAPFINDERZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MAPFINDERZ_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"MAPFINDERZ_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MAPFINDERZ_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MAPFINDERZ_REDIS_ADDR"`
	Password     string        `envconfig:"MAPFINDERZ_REDIS_PASSWORD"`
	DB           int           `envconfig:"MAPFINDERZ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MAPFINDERZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MAPFINDERZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MAPFINDERZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MAPFINDERZ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MAPFINDERZ_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"MAPFINDERZ_REDIS_KEY_PREFIX" default:"mf"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MAPFINDERZ_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MAPFINDERZ_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MAPFINDERZ_JWT_EXPIRATION_MINUTES" required:"true"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MAPFINDERZ_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MAPFINDERZ_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MAPFINDERZ_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MAPFINDERZ_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MAPFINDERZ_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MAPFINDERZ_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MAPFINDERZ_AUTO_MIGRATE" default:"false"`
}

// PricingConfig controls survey code resolution and the default tier list.
type PricingConfig struct {
	FallbackSurveyType string `envconfig:"MAPFINDERZ_PRICING_FALLBACK_SURVEY_TYPE" default:"RS"`
	DefaultTierKind    string `envconfig:"MAPFINDERZ_PRICING_DEFAULT_TIER_KIND" default:"regular"`
}

// QuotaConfig controls the daily free-unit counter kept in Redis.
type QuotaConfig struct {
	Timezone          string        `envconfig:"MAPFINDERZ_QUOTA_TIMEZONE" default:"Asia/Dhaka"`
	CounterTTL        time.Duration `envconfig:"MAPFINDERZ_QUOTA_COUNTER_TTL" default:"48h"`
	DefaultDailyUnits int           `envconfig:"MAPFINDERZ_QUOTA_DEFAULT_DAILY_UNITS" default:"0"`
}

// Location resolves the configured timezone, falling back to UTC.
func (q QuotaConfig) Location() *time.Location {
	tz := strings.TrimSpace(q.Timezone)
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

type RetryConfig struct {
	MaxAttempts int           `envconfig:"MAPFINDERZ_RETRY_MAX_ATTEMPTS" default:"3"`
	BaseDelay   time.Duration `envconfig:"MAPFINDERZ_RETRY_BASE_DELAY" default:"200ms"`
	MaxDelay    time.Duration `envconfig:"MAPFINDERZ_RETRY_MAX_DELAY" default:"2s"`
}

type PaymentConfig struct {
	RedirectBaseURL string `envconfig:"MAPFINDERZ_PAYMENT_REDIRECT_BASE_URL" default:"https://pay.mapfinderz.local/checkout"`
}

type StoreAPIConfig struct {
	BaseURL string        `envconfig:"MAPFINDERZ_STOREAPI_BASE_URL" default:"http://localhost:8080"`
	Timeout time.Duration `envconfig:"MAPFINDERZ_STOREAPI_TIMEOUT" default:"10s"`
}

// RateLimitConfig throttles login and order submission per IP and per email.
type RateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"MAPFINDERZ_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit    int           `envconfig:"MAPFINDERZ_RATE_LIMIT_LOGIN_IP" default:"20"`
	LoginEmailLimit int           `envconfig:"MAPFINDERZ_RATE_LIMIT_LOGIN_EMAIL" default:"5"`
	OrderWindow     time.Duration `envconfig:"MAPFINDERZ_RATE_LIMIT_ORDER_WINDOW" default:"1m"`
	OrderIPLimit    int           `envconfig:"MAPFINDERZ_RATE_LIMIT_ORDER_IP" default:"30"`
	OrderEmailLimit int           `envconfig:"MAPFINDERZ_RATE_LIMIT_ORDER_EMAIL" default:"10"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"MAPFINDERZ_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// CronConfig drives the background worker that cancels unpaid orders.
type CronConfig struct {
	Interval          time.Duration `envconfig:"MAPFINDERZ_CRON_INTERVAL" default:"15m"`
	LockTTL           time.Duration `envconfig:"MAPFINDERZ_CRON_LOCK_TTL" default:"10m"`
	PendingPaymentTTL time.Duration `envconfig:"MAPFINDERZ_ORDERS_PENDING_PAYMENT_TTL" default:"48h"`
	BatchSize         int           `envconfig:"MAPFINDERZ_CRON_BATCH_SIZE" default:"200"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
