package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Operating modes. Raw one-time codes are echoed back to callers in every
// mode except production.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

type Config struct {
	Env        string `yaml:"env" env:"APP_ENV" env-default:"development"`
	BcryptCost int    `yaml:"bcrypt_cost" env-default:"10"`
	Tokens     `yaml:"tokens"`
	Otp        `yaml:"otp"`
	RateLimit  `yaml:"rate_limit"`
	Delivery   `yaml:"delivery"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
	RabbitMQ   `yaml:"rabbitmq"`
	SMTP       `yaml:"smtp"`
	HTTPServer `yaml:"http_server"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Postgres struct {
	Host     string `yaml:"host" env-default:"postgres"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"password" env-required:"true"`
	DBName   string `yaml:"dbname" env-required:"true"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

type Redis struct {
	Address  string `yaml:"address" env-default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" env-default:"0"`
}

type RabbitMQ struct {
	URL       string `yaml:"url"`
	QueueName string `yaml:"queue_name" env-default:"otp_messages"`
}

type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" env-default:"587"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type Tokens struct {
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env-default:"168h"`
	Secret          string        `yaml:"secret" env:"JWT_SECRET" env-required:"true"`
}

type Otp struct {
	TTL         time.Duration `yaml:"ttl" env-default:"10m"`
	MaxAttempts int           `yaml:"max_attempts" env-default:"5"`
	SendWindow  time.Duration `yaml:"send_window" env-default:"60s"`
	SendMax     int           `yaml:"send_max" env-default:"3"`
}

type RateLimit struct {
	// Backend selects the counter strategy: local, postgres or redis.
	Backend string        `yaml:"backend" env-default:"local"`
	Window  time.Duration `yaml:"window" env-default:"60s"`
	Max     int           `yaml:"max" env-default:"30"`
}

type Delivery struct {
	// Backend selects the dispatch channel: console, smtp or rabbitmq.
	Backend string `yaml:"backend" env-default:"console"`
	From    string `yaml:"from" env-default:"no-reply@localhost"`
}

func MustLoad(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("Config file does not exist" + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("Failed to read config" + err.Error())
	}

	return &cfg
}
