// Package settings loads daemon configuration from .env files, an optional
// config file and the environment.
//
// Keys use ':' as the path separator (Jwt:SecretKey). The environment form
// replaces ':' with "__" and is upper case (JWT__SECRETKEY).
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/heartnote/authcore"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingSecret is returned when Jwt:SecretKey is unset.
var ErrMissingSecret = errors.New("settings: Jwt:SecretKey is required")

const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

type Settings struct {
	Jwt       JwtSettings       `mapstructure:"jwt"`
	Lockout   LockoutSettings   `mapstructure:"lockout"`
	Password  PasswordSettings  `mapstructure:"password"`
	Http      HTTPSettings      `mapstructure:"http"`
	Database  DatabaseSettings  `mapstructure:"database"`
	Redis     RedisSettings     `mapstructure:"redis"`
	RateLimit RateLimitSettings `mapstructure:"ratelimit"`
	Sentry    SentrySettings    `mapstructure:"sentry"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Log       LogSettings       `mapstructure:"log"`
}

type JwtSettings struct {
	SecretKey  string        `mapstructure:"secretkey"`
	Issuer     string        `mapstructure:"issuer"`
	Audience   string        `mapstructure:"audience"`
	AccessTTL  time.Duration `mapstructure:"accessttl"`
	RefreshTTL time.Duration `mapstructure:"refreshttl"`
}

type LockoutSettings struct {
	Threshold int           `mapstructure:"threshold"`
	Window    time.Duration `mapstructure:"window"`
	Cooldown  time.Duration `mapstructure:"cooldown"`
}

type PasswordSettings struct {
	Algorithm  string `mapstructure:"algorithm"`
	BcryptCost int    `mapstructure:"bcryptcost"`
}

type HTTPSettings struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"readtimeout"`
	WriteTimeout    time.Duration `mapstructure:"writetimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdowntimeout"`
}

// DatabaseSettings selects the credential store. An empty Url runs the
// in-memory store.
type DatabaseSettings struct {
	Url     string `mapstructure:"url"`
	Migrate bool   `mapstructure:"migrate"`
}

type RedisSettings struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitSettings struct {
	Backend string `mapstructure:"backend"`
}

type SentrySettings struct {
	Dsn         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// KafkaSettings enables the Kafka audit sink when Brokers is non-empty.
type KafkaSettings struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LogSettings struct {
	Env string `mapstructure:"env"`
}

// Options controls where Load looks.
type Options struct {
	// EnvFiles are loaded with godotenv; missing files are skipped. Nil means ".env".
	EnvFiles []string
	// ConfigFile is an optional JSON/YAML/TOML file read before the environment.
	ConfigFile string
}

var keys = []string{
	"jwt:secretkey",
	"jwt:issuer",
	"jwt:audience",
	"jwt:accessttl",
	"jwt:refreshttl",
	"lockout:threshold",
	"lockout:window",
	"lockout:cooldown",
	"password:algorithm",
	"password:bcryptcost",
	"http:addr",
	"http:readtimeout",
	"http:writetimeout",
	"http:shutdowntimeout",
	"database:url",
	"database:migrate",
	"redis:addr",
	"redis:password",
	"redis:db",
	"ratelimit:backend",
	"sentry:dsn",
	"sentry:environment",
	"kafka:brokers",
	"kafka:topic",
	"log:env",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("jwt:issuer", authcore.DefaultIssuer)
	v.SetDefault("jwt:audience", authcore.DefaultAudience)
	v.SetDefault("jwt:accessttl", authcore.DefaultAccessTTL)
	v.SetDefault("jwt:refreshttl", authcore.DefaultRefreshTTL)

	v.SetDefault("lockout:threshold", 5)
	v.SetDefault("lockout:window", "15m")
	v.SetDefault("lockout:cooldown", "15m")

	v.SetDefault("password:algorithm", "bcrypt")
	v.SetDefault("password:bcryptcost", 12)

	v.SetDefault("http:addr", ":8080")
	v.SetDefault("http:readtimeout", "10s")
	v.SetDefault("http:writetimeout", "15s")
	v.SetDefault("http:shutdowntimeout", "10s")

	v.SetDefault("database:migrate", true)
	v.SetDefault("ratelimit:backend", RateLimitMemory)
	v.SetDefault("kafka:topic", "authcore.audit")
	v.SetDefault("log:env", "development")
}

// Load reads settings and fails with ErrMissingSecret when no signing secret
// is configured.
func Load(opts Options) (*Settings, error) {
	files := opts.EnvFiles
	if files == nil {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.NewWithOptions(viper.KeyDelimiter(":"))
	v.SetEnvKeyReplacer(strings.NewReplacer(":", "__"))
	setDefaults(v)
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if strings.TrimSpace(s.Jwt.SecretKey) == "" {
		return nil, ErrMissingSecret
	}
	s.RateLimit.Backend = strings.ToLower(strings.TrimSpace(s.RateLimit.Backend))
	switch s.RateLimit.Backend {
	case RateLimitMemory, RateLimitRedis:
	default:
		return nil, fmt.Errorf("settings: unknown RateLimit:Backend %q", s.RateLimit.Backend)
	}
	if s.RateLimit.Backend == RateLimitRedis && s.Redis.Addr == "" {
		return nil, errors.New("settings: RateLimit:Backend redis requires Redis:Addr")
	}
	return &s, nil
}

// AuthConfig maps the settings onto the library configuration. The result
// still goes through authcore.Config.Validate in Build.
func (s *Settings) AuthConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte(s.Jwt.SecretKey)
	cfg.JWT.Issuer = s.Jwt.Issuer
	cfg.JWT.Audience = s.Jwt.Audience
	cfg.JWT.AccessTTL = s.Jwt.AccessTTL
	cfg.JWT.RefreshTTL = s.Jwt.RefreshTTL

	cfg.Lockout.Threshold = s.Lockout.Threshold
	cfg.Lockout.Window = s.Lockout.Window
	cfg.Lockout.Cooldown = s.Lockout.Cooldown

	cfg.Password.Algorithm = s.Password.Algorithm
	cfg.Password.BcryptCost = s.Password.BcryptCost
	return cfg
}
