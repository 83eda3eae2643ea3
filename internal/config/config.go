package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Auth      AuthConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Code      CodeConfig
	Clicks    ClicksConfig
	Geo       GeoConfig
}

type AppConfig struct {
	Env      string
	Port     string
	BaseURL  string
	LogLevel string
}

// AuthConfig protects the Swagger UI. The management API itself trusts an
// upstream auth layer to supply the owner identity header.
type AuthConfig struct {
	BasicUser     string
	BasicPassword string
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

// RateLimitConfig holds both the management-API limit and the per-code
// redirect limit applied inside the resolver.
type RateLimitConfig struct {
	Requests         int
	Duration         time.Duration
	RedirectRequests int
	RedirectDuration time.Duration
}

type CacheConfig struct {
	TTL          time.Duration
	TombstoneTTL time.Duration
	Timeout      time.Duration
}

type CodeConfig struct {
	Length     int
	MaxRetries int
}

// ClicksConfig carries the classification token lists as data so they can be
// updated without redeploying the resolution logic.
type ClicksConfig struct {
	Workers      int
	QueueSize    int
	SyncInterval time.Duration
	CountBots    bool
	RedirectBots bool
	BotTokens    []string
	MobileTokens []string
	TabletTokens []string
	TVTokens     []string
}

type GeoConfig struct {
	Enabled  bool
	Endpoint string
	Timeout  time.Duration
}

func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults()

	// Read config file (optional, env vars take precedence)
	_ = viper.ReadInConfig()

	cfg := &Config{
		App: AppConfig{
			Env:      viper.GetString("APP_ENV"),
			Port:     viper.GetString("APP_PORT"),
			BaseURL:  viper.GetString("APP_BASE_URL"),
			LogLevel: viper.GetString("APP_LOG_LEVEL"),
		},
		Auth: AuthConfig{
			BasicUser:     viper.GetString("AUTH_BASIC_USER"),
			BasicPassword: viper.GetString("AUTH_BASIC_PASSWORD"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("POSTGRES_HOST"),
			Port:     viper.GetString("POSTGRES_PORT"),
			User:     viper.GetString("POSTGRES_USER"),
			Password: viper.GetString("POSTGRES_PASSWORD"),
			DBName:   viper.GetString("POSTGRES_DB"),
			SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
			MaxConns: viper.GetInt("POSTGRES_MAX_CONNS"),
			MinConns: viper.GetInt("POSTGRES_MIN_CONNS"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
			PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
		},
		RateLimit: RateLimitConfig{
			Requests:         viper.GetInt("RATE_LIMIT_REQUESTS"),
			Duration:         viper.GetDuration("RATE_LIMIT_DURATION"),
			RedirectRequests: viper.GetInt("RATE_LIMIT_REDIRECT_REQUESTS"),
			RedirectDuration: viper.GetDuration("RATE_LIMIT_REDIRECT_DURATION"),
		},
		Cache: CacheConfig{
			TTL:          viper.GetDuration("CACHE_TTL"),
			TombstoneTTL: viper.GetDuration("CACHE_TOMBSTONE_TTL"),
			Timeout:      viper.GetDuration("CACHE_TIMEOUT"),
		},
		Code: CodeConfig{
			Length:     viper.GetInt("SHORT_CODE_LENGTH"),
			MaxRetries: viper.GetInt("SHORT_CODE_MAX_RETRIES"),
		},
		Clicks: ClicksConfig{
			Workers:      viper.GetInt("CLICKS_WORKERS"),
			QueueSize:    viper.GetInt("CLICKS_QUEUE_SIZE"),
			SyncInterval: viper.GetDuration("CLICKS_SYNC_INTERVAL"),
			CountBots:    viper.GetBool("CLICKS_COUNT_BOTS"),
			RedirectBots: viper.GetBool("CLICKS_REDIRECT_BOTS"),
			BotTokens:    viper.GetStringSlice("CLICKS_BOT_TOKENS"),
			MobileTokens: viper.GetStringSlice("CLICKS_MOBILE_TOKENS"),
			TabletTokens: viper.GetStringSlice("CLICKS_TABLET_TOKENS"),
			TVTokens:     viper.GetStringSlice("CLICKS_TV_TOKENS"),
		},
		Geo: GeoConfig{
			Enabled:  viper.GetBool("GEO_ENABLED"),
			Endpoint: viper.GetString("GEO_ENDPOINT"),
			Timeout:  viper.GetDuration("GEO_TIMEOUT"),
		},
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("APP_BASE_URL", "http://localhost")
	viper.SetDefault("APP_LOG_LEVEL", "info")

	viper.SetDefault("AUTH_BASIC_USER", "")
	viper.SetDefault("AUTH_BASIC_PASSWORD", "")

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", "5432")
	viper.SetDefault("POSTGRES_USER", "shortlink")
	viper.SetDefault("POSTGRES_PASSWORD", "shortlink")
	viper.SetDefault("POSTGRES_DB", "shortlink")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("POSTGRES_MAX_CONNS", 25)
	viper.SetDefault("POSTGRES_MIN_CONNS", 5)

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_POOL_SIZE", 10)

	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_DURATION", "1m")
	viper.SetDefault("RATE_LIMIT_REDIRECT_REQUESTS", 60)
	viper.SetDefault("RATE_LIMIT_REDIRECT_DURATION", "1m")

	viper.SetDefault("CACHE_TTL", "1h")
	viper.SetDefault("CACHE_TOMBSTONE_TTL", "30s")
	viper.SetDefault("CACHE_TIMEOUT", "50ms")

	viper.SetDefault("SHORT_CODE_LENGTH", 6)
	viper.SetDefault("SHORT_CODE_MAX_RETRIES", 5)

	viper.SetDefault("CLICKS_WORKERS", 4)
	viper.SetDefault("CLICKS_QUEUE_SIZE", 1024)
	viper.SetDefault("CLICKS_SYNC_INTERVAL", "1h")
	viper.SetDefault("CLICKS_COUNT_BOTS", false)
	viper.SetDefault("CLICKS_REDIRECT_BOTS", true)
	viper.SetDefault("CLICKS_BOT_TOKENS", []string{
		"googlebot", "bingbot", "slurp", "duckduckbot", "baiduspider",
		"yandexbot", "facebookexternalhit", "twitterbot", "linkedinbot",
		"telegrambot", "whatsapp", "discordbot", "slackbot", "applebot",
		"semrushbot", "ahrefsbot", "petalbot", "bot/", "crawler", "spider",
		"curl/", "wget/", "python-requests", "go-http-client", "headlesschrome",
	})
	viper.SetDefault("CLICKS_MOBILE_TOKENS", []string{
		"mobile", "iphone", "ipod", "android", "blackberry", "windows phone",
		"opera mini",
	})
	viper.SetDefault("CLICKS_TABLET_TOKENS", []string{
		"ipad", "tablet", "kindle", "silk", "playbook",
	})
	viper.SetDefault("CLICKS_TV_TOKENS", []string{
		"smart-tv", "smarttv", "googletv", "appletv", "hbbtv", "crkey",
		"roku", "tizen", "webos",
	})

	viper.SetDefault("GEO_ENABLED", false)
	viper.SetDefault("GEO_ENDPOINT", "http://ip-api.com/json")
	viper.SetDefault("GEO_TIMEOUT", "500ms")
}

func (c *PostgresConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}
