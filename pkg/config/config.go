package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Store         StoreConfig
	MercadoPago   MercadoPagoConfig
	PubSub        PubSubConfig
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
	if _, err := cfg.Store.Fee(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ACAI_APP_ENV" required:"true"`
	Port         string `envconfig:"ACAI_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ACAI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ACAI_LOG_WARN_STACK" default:"false"`
	LogCaller    bool   `envconfig:"ACAI_LOG_CALLER" default:"false"`
	CORSOrigins  string `envconfig:"ACAI_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ACAI_DB_DSN"`
	Driver string `envconfig:"ACAI_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"ACAI_DB_HOST"`
	Port     int    `envconfig:"ACAI_DB_PORT" default:"5432"`
	User     string `envconfig:"ACAI_DB_USER"`
	Password string `envconfig:"ACAI_DB_PASSWORD"`
	Name     string `envconfig:"ACAI_DB_NAME"`
	SSLMode  string `envconfig:"ACAI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ACAI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ACAI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ACAI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ACAI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ACAI_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ACAI_REDIS_ADDR"`
	Password     string        `envconfig:"ACAI_REDIS_PASSWORD"`
	DB           int           `envconfig:"ACAI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ACAI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ACAI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ACAI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ACAI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ACAI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                string `envconfig:"ACAI_JWT_SECRET" required:"true"`
	Issuer                string `envconfig:"ACAI_JWT_ISSUER" required:"true"`
	ExpirationMinutes     int    `envconfig:"ACAI_JWT_EXPIRATION_MINUTES" required:"true"`
	AnonExpirationMinutes int    `envconfig:"ACAI_JWT_ANON_EXPIRATION_MINUTES" default:"43200"`
}

// AnonTTL returns how long an anonymous identity token stays valid.
func (j JWTConfig) AnonTTL() time.Duration {
	if j.AnonExpirationMinutes <= 0 {
		return time.Duration(j.ExpirationMinutes) * time.Minute
	}
	return time.Duration(j.AnonExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"ACAI_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"ACAI_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"ACAI_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"ACAI_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"ACAI_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"ACAI_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"ACAI_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"ACAI_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"ACAI_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"ACAI_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"ACAI_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	APIWindow          time.Duration `envconfig:"ACAI_API_RATE_LIMIT_WINDOW" default:"1m"`
	APIRequestLimit    int           `envconfig:"ACAI_API_RATE_LIMIT_REQUESTS" default:"120"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ACAI_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ACAI_AUTO_MIGRATE" default:"false"`
}

// StoreConfig describes the storefront tenant served by this deployment.
type StoreConfig struct {
	Scope          string        `envconfig:"ACAI_STORE_SCOPE" default:"default-app-id"`
	Driver         string        `envconfig:"ACAI_STORE_DRIVER" default:"sql"`
	AdminEmail     string        `envconfig:"ACAI_STORE_ADMIN_EMAIL"`
	WhatsAppNumber string        `envconfig:"ACAI_STORE_WHATSAPP_NUMBER"`
	DeliveryFee    string        `envconfig:"ACAI_STORE_DELIVERY_FEE" default:"0.00"`
	DraftTTL       time.Duration `envconfig:"ACAI_STORE_DRAFT_TTL" default:"2h"`
	ChangeChannel  string        `envconfig:"ACAI_STORE_CHANGE_CHANNEL" default:"acai:docstore:changes"`
}

// Fee parses the configured delivery fee.
func (s StoreConfig) Fee() (decimal.Decimal, error) {
	raw := strings.TrimSpace(s.DeliveryFee)
	if raw == "" {
		return decimal.Zero, nil
	}
	fee, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", EnvStoreDeliveryFee, err)
	}
	if fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", EnvStoreDeliveryFee)
	}
	return fee, nil
}

type MercadoPagoConfig struct {
	AccessToken string        `envconfig:"ACAI_MERCADOPAGO_ACCESS_TOKEN"`
	Timeout     time.Duration `envconfig:"ACAI_MERCADOPAGO_TIMEOUT" default:"10s"`
	PixExpiry   time.Duration `envconfig:"ACAI_MERCADOPAGO_PIX_EXPIRY" default:"30m"`
}

type PubSubConfig struct {
	ProjectID   string `envconfig:"ACAI_GCP_PROJECT_ID"`
	OrdersTopic string `envconfig:"ACAI_PUBSUB_ORDERS_TOPIC" default:"acai-order-events"`
	// CredentialsJSON wins over ApplicationCredentials; both empty means ADC.
	CredentialsJSON        string `envconfig:"ACAI_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// Enabled reports whether order events should be published.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.ProjectID) != "" && strings.TrimSpace(p.OrdersTopic) != ""
}

type CronConfig struct {
	Interval time.Duration `envconfig:"ACAI_CRON_INTERVAL" default:"1m"`
	PixGrace time.Duration `envconfig:"ACAI_CRON_PIX_GRACE" default:"5m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
