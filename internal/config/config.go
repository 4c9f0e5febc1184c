// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"
	// Встроенная база часовых поясов: контейнеры часто собираются без tzdata.
	_ "time/tzdata"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string  `yaml:"env" env-default:"local"`
	Timezone                string  `yaml:"timezone" env-default:"UTC"`
	StorageKind             string  `yaml:"storage_kind" env-default:"postgres"`
	StorageConnectionString string  `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string  `yaml:"migrations_path" env-default:"./migrations"`
	Admins                  []int64 `yaml:"admins" env:"ADMIN_IDS" env-separator:","`
	Telegram                `yaml:"telegram"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	Notifications           `yaml:"notifications"`
	Scheduler               `yaml:"scheduler"`
	HTTPServer              `yaml:"http_server"`
}

// Telegram структура для настройки клиента Bot API
type Telegram struct {
	BotToken      string        `yaml:"bot_token" env:"BOT_TOKEN"`
	GroupID       int64         `yaml:"group_id" env:"GROUP_ID"`
	InviteLink    string        `yaml:"invite_link"`
	APITimeout    time.Duration `yaml:"api_timeout" env-default:"10s"`
	RatePerSecond float64       `yaml:"rate_per_second" env-default:"25"`
	PollTimeout   int           `yaml:"poll_timeout" env-default:"60"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
	LockTTL      time.Duration `yaml:"lock_ttl" env-default:"60s"`
	CacheTTL     time.Duration `yaml:"cache_ttl" env-default:"1h"`
}

// RabbitMQ структура для подключения к брокеру уведомлений
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// Notifications режим доставки уведомлений: direct (сразу в Telegram) или queue (через RabbitMQ)
type Notifications struct {
	Mode    string        `yaml:"mode" env-default:"direct"`
	Timeout time.Duration `yaml:"timeout" env-default:"15s"`
}

// Scheduler настройки периодической проверки подписок
type Scheduler struct {
	Interval time.Duration `yaml:"interval" env-default:"24h"`
	RunOnce  bool          `yaml:"run_once"`
	Workers  int           `yaml:"workers" env-default:"4"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// Load читает конфиг из файла, переменные окружения перекрывают значения из файла.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if minTTL := cfg.MinLockTTL(); cfg.LockTTL < minTTL {
		return nil, fmt.Errorf("lock_ttl %s is shorter than the removal worst case %s", cfg.LockTTL, minTTL)
	}
	return &cfg, nil
}

// lockMargin запас на ожидание лимитера запросов к Bot API.
const lockMargin = 5 * time.Second

// MinLockTTL самое долгое удержание блокировки: уведомление об исключении,
// ban и unban в группе.
func (c *Config) MinLockTTL() time.Duration {
	return c.Notifications.Timeout + 2*c.APITimeout + lockMargin
}

// Location возвращает часовой пояс, в котором считается "сегодня".
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Timezone: %s\n"+
			"StorageKind: %s\n"+
			"Admins: %d\n"+
			"Telegram:\n"+
			"  GroupID: %d\n"+
			"  APITimeout: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"  LockTTL: %s\n"+
			"Notifications:\n"+
			"  Mode: %s\n"+
			"Scheduler:\n"+
			"  Interval: %s\n"+
			"  Workers: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n",
		c.Env,
		c.Timezone,
		c.StorageKind,
		len(c.Admins),
		c.GroupID,
		c.APITimeout,
		c.AddressRedis,
		c.DB,
		c.LockTTL,
		c.Mode,
		c.Interval,
		c.Workers,
		c.AddressHTTP,
	)
}
