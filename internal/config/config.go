package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL   string `env:"DATABASE_URL"`
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"json"`
	DBMaxConns    int    `env:"DB_MAX_CONNS" envDefault:"10"`
	InstanceID    string `env:"INSTANCE_ID"`

	// Redis Config
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass     string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	CacheTTL      time.Duration `env:"INCIDENT_CACHE_TTL" envDefault:"5m"`
	RelayEnabled  bool          `env:"RELAY_ENABLED" envDefault:"false"`
	RelayChannel  string        `env:"RELAY_CHANNEL" envDefault:"sos:events"`
	RedisRequired bool          `env:"REDIS_REQUIRED" envDefault:"true"`

	// Webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// Stats Config
	StatsTimeWindowMinutes int `env:"STATS_TIME_WINDOW_MINUTES" envDefault:"60"`

	// Mission Config
	MissionDefaultTTLMinutes int           `env:"MISSION_DEFAULT_TTL_MINUTES" envDefault:"120"`
	MissionMaxTTLMinutes     int           `env:"MISSION_MAX_TTL_MINUTES" envDefault:"1440"`
	MissionSweepInterval     time.Duration `env:"MISSION_SWEEP_INTERVAL" envDefault:"10m"`

	// Dispatch Config
	DispatchDefaultRadiusKm float64 `env:"DISPATCH_DEFAULT_RADIUS_KM" envDefault:"6"`

	// External registries
	IdentityRegistryURL string        `env:"IDENTITY_REGISTRY_URL"`
	CityRegistryURL     string        `env:"CITY_REGISTRY_URL"`
	DirectoryTimeout    time.Duration `env:"DIRECTORY_TIMEOUT" envDefault:"3s"`

	// Realtime Config
	RealtimeBufferSize        int           `env:"REALTIME_BUFFER_SIZE" envDefault:"64"`
	RealtimeHeartbeatInterval time.Duration `env:"REALTIME_HEARTBEAT_INTERVAL" envDefault:"25s"`

	// Rate limit для пингов местоположения
	LocationRatePerSecond float64 `env:"LOCATION_RATE_PER_SECOND" envDefault:"2"`
	LocationRateBurst     int     `env:"LOCATION_RATE_BURST" envDefault:"5"`

	// JWT внешнего провайдера идентификации
	JWTSecret   string `env:"JWT_SECRET"`
	JWTIssuer   string `env:"JWT_ISSUER"`
	JWTAudience string `env:"JWT_AUDIENCE"`

	// API Keys for authentication
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	hostname, _ := os.Hostname()

	cfg := &Config{
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		StorageDriver:             getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		HTTPPort:                  getEnv("HTTP_PORT", "8080"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		LogFormat:                 getEnv("LOG_FORMAT", "json"),
		DBMaxConns:                getEnvAsInt("DB_MAX_CONNS", 10),
		InstanceID:                getEnv("INSTANCE_ID", hostname),
		RedisAddr:                 getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:                 os.Getenv("REDIS_PASSWORD"),
		RedisDB:                   getEnvAsInt("REDIS_DB", 0),
		RedisPoolSize:             getEnvAsInt("REDIS_POOL_SIZE", 10),
		CacheTTL:                  getEnvAsDuration("INCIDENT_CACHE_TTL", 5*time.Minute),
		RelayEnabled:              getEnvAsBool("RELAY_ENABLED", false),
		RelayChannel:              getEnv("RELAY_CHANNEL", "sos:events"),
		RedisRequired:             getEnvAsBool("REDIS_REQUIRED", true),
		WebhookURL:                os.Getenv("WEBHOOK_URL"),
		WebhookSecret:             os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:            getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:         getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:          getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
		StatsTimeWindowMinutes:    getEnvAsInt("STATS_TIME_WINDOW_MINUTES", 60),
		MissionDefaultTTLMinutes:  getEnvAsInt("MISSION_DEFAULT_TTL_MINUTES", 120),
		MissionMaxTTLMinutes:      getEnvAsInt("MISSION_MAX_TTL_MINUTES", 1440),
		MissionSweepInterval:      getEnvAsDuration("MISSION_SWEEP_INTERVAL", 10*time.Minute),
		DispatchDefaultRadiusKm:   getEnvAsFloat("DISPATCH_DEFAULT_RADIUS_KM", 6),
		IdentityRegistryURL:       os.Getenv("IDENTITY_REGISTRY_URL"),
		CityRegistryURL:           os.Getenv("CITY_REGISTRY_URL"),
		DirectoryTimeout:          getEnvAsDuration("DIRECTORY_TIMEOUT", 3*time.Second),
		RealtimeBufferSize:        getEnvAsInt("REALTIME_BUFFER_SIZE", 64),
		RealtimeHeartbeatInterval: getEnvAsDuration("REALTIME_HEARTBEAT_INTERVAL", 25*time.Second),
		LocationRatePerSecond:     getEnvAsFloat("LOCATION_RATE_PER_SECOND", 2),
		LocationRateBurst:         getEnvAsInt("LOCATION_RATE_BURST", 5),
		JWTSecret:                 os.Getenv("JWT_SECRET"),
		JWTIssuer:                 os.Getenv("JWT_ISSUER"),
		JWTAudience:               os.Getenv("JWT_AUDIENCE"),
	}

	// Загрузка API ключей
	cfg.APIKeys = getEnvAsList("API_KEYS")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.MissionDefaultTTLMinutes <= 0 || c.MissionMaxTTLMinutes < c.MissionDefaultTTLMinutes {
		return fmt.Errorf("mission TTL settings are inconsistent: default=%d max=%d", c.MissionDefaultTTLMinutes, c.MissionMaxTTLMinutes)
	}
	if c.DispatchDefaultRadiusKm <= 0 {
		return fmt.Errorf("DISPATCH_DEFAULT_RADIUS_KM must be positive")
	}
	return nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat возвращает значение переменной окружения как float64 или значение по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsBool возвращает значение переменной окружения как bool или значение по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}

// getEnvAsList разбирает список через запятую, пустые элементы отбрасываются
func getEnvAsList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
