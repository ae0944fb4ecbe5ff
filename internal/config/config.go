package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// TrustedProxies lists the addresses or CIDRs allowed to set
	// X-Forwarded-For. Empty trusts none and uses the peer address.
	TrustedProxies []string
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver string
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	BucketEvents string
	UseSSL       bool
	Region       string
}

type SecurityConfig struct {
	JWTAccessSecret string
	JWTAccessTTL    time.Duration
	JWTRefreshTTL   time.Duration
	JWTIssuer       string
	RefreshGrace    time.Duration
	AdminUsername   string
	AdminPassword   string
	AdminEmail      string
}

type ReservationsConfig struct {
	MinLeadTime time.Duration
}

type UnlockConfig struct {
	MaxAttempts int
	Window      time.Duration
}

type JobsConfig struct {
	// ExpirySchedule is a cron spec; empty disables the sweep.
	ExpirySchedule string
}

type EventsConfig struct {
	Enabled           bool
	Stream            string
	MaxLen            int64
	Group             string
	Consumer          string
	VisibilityTimeout time.Duration
	ClaimInterval     time.Duration
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Database         DatabaseConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Reservations     ReservationsConfig
	Unlock           UnlockConfig
	Jobs             JobsConfig
	Events           EventsConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("LOCKERHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects settings the API cannot run with. Load does not call it so
// the worker can share the file without database settings.
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres":
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not one of postgres, memory", c.Database.Driver))
	}

	if c.Security.JWTAccessSecret == "" && c.Environment != "development" {
		errs = append(errs, errors.New("security.jwtaccesssecret is required outside development"))
	}
	if c.Security.JWTAccessTTL <= 0 || c.Security.JWTRefreshTTL <= 0 {
		errs = append(errs, errors.New("security token ttls must be positive"))
	}
	if c.Security.AdminUsername != "" && len(c.Security.AdminPassword) < 8 {
		errs = append(errs, errors.New("security.adminpassword must be at least 8 characters"))
	}
	if c.Reservations.MinLeadTime < 0 {
		errs = append(errs, errors.New("reservations.minleadtime must not be negative"))
	}
	if c.Unlock.MaxAttempts <= 0 || c.Unlock.Window <= 0 {
		errs = append(errs, errors.New("unlock.maxattempts and unlock.window must be positive"))
	}

	return errors.Join(errs...)
}

func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("allowcorsorigins", []string{})

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.trustedproxies", []string{})

	v.SetDefault("database.driver", "postgres")

	// Keys without a real default are still registered so AutomaticEnv
	// picks them up during Unmarshal.
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.migrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")

	v.SetDefault("storage.bucketevents", "lockerhub-events")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.jwtaccesssecret", "")
	v.SetDefault("security.jwtaccessttl", "1h")
	v.SetDefault("security.jwtrefreshttl", "168h") // 7 days
	v.SetDefault("security.jwtissuer", "lockerhub")
	v.SetDefault("security.refreshgrace", "30s")
	v.SetDefault("security.adminusername", "")
	v.SetDefault("security.adminpassword", "")
	v.SetDefault("security.adminemail", "")

	v.SetDefault("reservations.minleadtime", "5m")

	v.SetDefault("unlock.maxattempts", 5)
	v.SetDefault("unlock.window", "15m")

	v.SetDefault("jobs.expiryschedule", "@every 1m")

	v.SetDefault("events.enabled", true)
	v.SetDefault("events.stream", "lockers:events")
	v.SetDefault("events.maxlen", 100000)
	v.SetDefault("events.group", "event-archivers")
	v.SetDefault("events.consumer", "worker-1")
	v.SetDefault("events.visibilitytimeout", "2m")
	v.SetDefault("events.claiminterval", "10s")

	v.SetDefault("logging.level", "")
}
