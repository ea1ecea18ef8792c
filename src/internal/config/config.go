package config

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Configuration struct {
	Logs         LogsSettings       `mapstructure:"logs"`
	App          Application        `mapstructure:"app"`
	Database     Database           `mapstructure:"database"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Redis        Redis              `mapstructure:"redis"`
	Security     SecuritySettings   `mapstructure:"security"`
	Server       ServerSettings     `mapstructure:"server"`
	Assignment   AssignmentConfig   `mapstructure:"assignment"`
	Verification VerificationConfig `mapstructure:"verification"`
	Cache        CacheConfig        `mapstructure:"cache"`
}

type LogsSettings struct {
	Level            string `mapstructure:"level"`
	Path             string `mapstructure:"log-path"`
	EnableJSONOutput bool   `mapstructure:"enable-json-output"`
}

type Application struct {
	Name     string `mapstructure:"name"`
	Timeout  int    `mapstructure:"timeout"`
	Version  string `mapstructure:"version"`
	HostLink string `mapstructure:"host-link"`
}

type Database struct {
	Url                  string `mapstructure:"url"`
	DbName               string `mapstructure:"dbname"`
	SessionCollection    string `mapstructure:"session-collection"`
	CounsellorCollection string `mapstructure:"counsellor-collection"`
	AttendanceCollection string `mapstructure:"attendance-collection"`
	Timeout              int    `mapstructure:"timeout"`
}

// AssignmentConfig bounds the nearest-counsellor search.
type AssignmentConfig struct {
	MaxSearchRadiusKm float64 `mapstructure:"max-search-radius-km"`
}

// VerificationConfig controls how attendance photos are checked against the
// visit location. RequireVerified switches off the fail-open policy: when
// true, unverified uploads are rejected instead of recorded.
type VerificationConfig struct {
	RadiusKm        float64 `mapstructure:"radius-km"`
	RequireVerified bool    `mapstructure:"require-verified"`
	ListLimit       int     `mapstructure:"list-limit"`
}

type QueueConfig struct {
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

type RabbitMQConfig struct {
	Url            string `mapstructure:"url"`
	Exchange       string `mapstructure:"exchange"`
	ExchangeType   string `mapstructure:"exchange-type"`
	OfferQueue     string `mapstructure:"offer-queue"`
	RoutingKey     string `mapstructure:"routing-key"`
	ReconnectDelay int    `mapstructure:"reconnect-delay"`
	Timeout        int    `mapstructure:"timeout"`
	Durable        bool   `mapstructure:"durable"`
	AutoDelete     bool   `mapstructure:"auto-delete"`
	Internal       bool   `mapstructure:"internal"`
	NoWait         bool   `mapstructure:"no-wait"`
}

type Redis struct {
	Url      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	Db       int    `mapstructure:"db"`
}

type SecuritySettings struct {
	JwtKey string `mapstructure:"jwt-key"`
}

type ServerSettings struct {
	Port         string `mapstructure:"port"`
	Mode         string `mapstructure:"mode"`
	ReadTimeout  int    `mapstructure:"read-timeout"`
	WriteTimeout int    `mapstructure:"write-timeout"`
	IdleTimeout  int    `mapstructure:"idle-timeout"`
}

type CacheConfig struct {
	StatsKey               string `mapstructure:"stats-key"`
	StatsExpirationMinutes int    `mapstructure:"stats-expiration-minutes"`
	ListExpirationMinutes  int    `mapstructure:"list-expiration-minutes"`
}

func Load() *Configuration {
	cfg := read()
	logrus.Info("Configuration loaded")

	// Override with environment variables
	mongoUri := os.Getenv("MONGODB_URL")
	if mongoUri != "" {
		cfg.Database.Url = mongoUri
	}

	dbName := os.Getenv("DB_NAME")
	if dbName != "" {
		cfg.Database.DbName = dbName
	}

	redisUrl := os.Getenv("REDIS_URL")
	if redisUrl != "" {
		cfg.Redis.Url = redisUrl
	}

	redisDB := os.Getenv("REDIS_DB")
	if redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			cfg.Redis.Db = db
		}
	}

	rabbitmqUrl := os.Getenv("RABBITMQ_URL")
	if rabbitmqUrl != "" {
		cfg.Queue.RabbitMQ.Url = rabbitmqUrl
	}

	jwtKey := os.Getenv("JWT_KEY")
	if jwtKey != "" {
		cfg.Security.JwtKey = jwtKey
	}

	applyDefaults(cfg)

	return cfg
}

func applyDefaults(cfg *Configuration) {
	if cfg.Assignment.MaxSearchRadiusKm <= 0 {
		cfg.Assignment.MaxSearchRadiusKm = 50
	}
	if cfg.Verification.RadiusKm <= 0 {
		cfg.Verification.RadiusKm = 1.0
	}
	if cfg.Verification.ListLimit <= 0 {
		cfg.Verification.ListLimit = 100
	}
}

func read() *Configuration {
	viper.SetConfigFile("src/internal/config/cfg.yml")
	viper.AutomaticEnv()
	viper.SetConfigType("yml")

	var config Configuration

	err := viper.ReadInConfig()
	if err != nil {
		logrus.Panic("Error reading config file, %s", err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		logrus.Panic("Error unmarshalling config file, %s", err)
	}

	return &config
}
