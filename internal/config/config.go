package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath — путь к конфигу, если CONFIG_PATH не задан
const DefaultPath = "config/config.yaml"

// Config определяет структуру конфигурации всего приложения целиком
type Config struct {
	HTTPServer `yaml:"http_server"`
	Remote     `yaml:"remote"`
	Auth       `yaml:"auth"`
	Snapshot   `yaml:"snapshot"`
	Scheduler  `yaml:"scheduler"`
	Logger     `yaml:"logger"`
	Kafka      `yaml:"kafka"`
	Postgres   `yaml:"postgres"`
}

// HTTPServer содержит конфигурацию для HTTP-сервера
type HTTPServer struct {
	Port    string        `yaml:"port" validate:"required"`
	Timeout time.Duration `yaml:"timeout"`
}

// Remote содержит адрес и ключ внешнего API заказов
// оба значения передаются в запросы как есть
type Remote struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	APIKey  string `yaml:"api_key" validate:"required"`
}

// Auth содержит единственную пару логин/пароль для Basic-авторизации
type Auth struct {
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password" validate:"required"`
}

// Snapshot содержит путь к файлу снапшота
type Snapshot struct {
	Path string `yaml:"path" validate:"required"`
}

// Scheduler управляет ежедневной синхронизацией
type Scheduler struct {
	Enabled bool `yaml:"enabled"`
}

// Logger содержит конфигурацию для логгера
type Logger struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Kafka содержит конфигурацию публикации событий о новом снапшоте
// если задан RequestTopic, сервис ещё и слушает запросы на синхронизацию
type Kafka struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers" validate:"required_if=Enabled true"`
	Topic        string   `yaml:"topic" validate:"required_if=Enabled true"`
	RequestTopic string   `yaml:"request_topic"`
	GroupID      string   `yaml:"group_id" validate:"required_with=RequestTopic"`
}

// Postgres содержит конфигурацию зеркала снапшота в базе данных
type Postgres struct {
	Enabled  bool   `yaml:"enabled"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host" validate:"required_if=Enabled true"`
	Port     string `yaml:"port"`
	DBName   string `yaml:"db_name" validate:"required_if=Enabled true"`
	SSLMode  string `yaml:"ssl_mode"`

	MaxConns        int32         `yaml:"max_conns" validate:"gte=0"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// DSN собирает строку подключения для pgx
func (p Postgres) DSN() string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}

var validate = validator.New()

// MustLoad загружает конфигурацию из файла по указанному пути
// в случае ошибки программа завершается с фатальной ошибкой
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}
	return cfg
}

// Load читает YAML-файл, применяет переопределения из окружения и проверяет результат
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, errors.New("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ResolvePath возвращает путь к конфигу из CONFIG_PATH или путь по умолчанию
func ResolvePath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// applyEnv переопределяет значения из переменных окружения
// секреты (ключ API, пароль) удобнее держать в окружении, а не в файле
func (c *Config) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"API_URL", &c.Remote.BaseURL},
		{"API_KEY", &c.Remote.APIKey},
		{"HTTP_PORT", &c.HTTPServer.Port},
		{"ADMIN_USERNAME", &c.Auth.Username},
		{"ADMIN_PASSWORD", &c.Auth.Password},
		{"SNAPSHOT_PATH", &c.Snapshot.Path},
	}

	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			*o.dst = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.HTTPServer.Port == "" {
		c.HTTPServer.Port = ":3000"
	}
	if c.HTTPServer.Timeout == 0 {
		c.HTTPServer.Timeout = 30 * time.Second
	}
	if c.Snapshot.Path == "" {
		c.Snapshot.Path = "data/orders.json"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	// зеркалу хватает пары соединений: одна транзакция на запуск
	if c.Postgres.MaxConns == 0 {
		c.Postgres.MaxConns = 4
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 5 * time.Minute
	}
	if c.Postgres.ConnectTimeout == 0 {
		c.Postgres.ConnectTimeout = 5 * time.Second
	}
}
