package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/xela07ax/mmonit-hub/internal/domain"
)

const (
	EnvPrefix     = "MMONIT_HUB"
	EnvConfigPath = "MMONIT_HUB_CONFIG"
	DefaultConfig = "mmonit-hub.conf"
)

// Config — корневая структура конфигурации хаба.
// Верхний уровень совпадает с исторически сложившимся JSON-форматом (port, users, instances...),
// необязательные секции server/hub/auth/logger расширяют его.
type Config struct {
	Port               int                 `mapstructure:"port" validate:"min=1,max=65535"`
	SecretKey          string              `mapstructure:"secret_key"`
	AutoRefreshSeconds int                 `mapstructure:"auto_refresh_seconds" validate:"min=0"`
	Users              []domain.Principal  `mapstructure:"users" validate:"dive"`
	Instances          []domain.Instance   `mapstructure:"instances" validate:"dive"`
	UIThresholds       domain.UIThresholds `mapstructure:"ui_thresholds"`

	Server ServerConfig `mapstructure:"server"`
	Hub    HubConfig    `mapstructure:"hub"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Logger LoggerConfig `mapstructure:"logger"`

	// Откуда загружен конфиг: cli, env, cwd, home, default
	Path   string `mapstructure:"-"`
	Source string `mapstructure:"-"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsAddr     string        `mapstructure:"metrics_addr"` // Пусто — /metrics не поднимаем
}

// HubConfig — параметры опроса upstream.
type HubConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	MaxHosts       int           `mapstructure:"max_hosts" validate:"gt=0"`
	TenantWorkers  int           `mapstructure:"tenant_workers" validate:"gt=0"`
	HostWorkers    int           `mapstructure:"host_workers" validate:"gt=0"`
	UpstreamRPS    float64       `mapstructure:"upstream_rps" validate:"min=0"` // 0 — без ограничения
	UpstreamBurst  int           `mapstructure:"upstream_burst" validate:"min=0"`
	Breaker        BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig — предохранитель на арендатора
type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// AuthConfig — выдача и проверка сессионных токенов.
type AuthConfig struct {
	TokenTTL     time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json console"`
	File       string `mapstructure:"file"` // Пусто — только stderr
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ConfigError — единственный фатальный класс ошибок: процесс не стартует.
type ConfigError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Path, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// AuthRequired — в конфиге есть пользователи, анонимного доступа нет
func (c *Config) AuthRequired() bool {
	return len(c.Users) > 0
}

// Addr — адрес HTTP-сервера дашборда
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Port)
}

// InsecureInstances — арендаторы с отключенной проверкой сертификата
func (c *Config) InsecureInstances() []string {
	var names []string
	for _, inst := range c.Instances {
		if !inst.VerifySSL {
			names = append(names, inst.Name)
		}
		if inst.Healthchecks.Active() {
			for _, p := range inst.Healthchecks.Projects {
				if !p.TLSVerify() {
					names = append(names, inst.Name+"/"+p.Label())
				}
			}
		}
	}
	return names
}

// ResolveConfigPath выбирает файл конфигурации:
// флаг → MMONIT_HUB_CONFIG → ./mmonit-hub.conf → ~/.mmonit-hub.conf → ~/.config/mmonit-hub/mmonit-hub.conf.
// Если ничего не найдено — ./mmonit-hub.conf, чтобы загрузка упала с понятной ошибкой.
func ResolveConfigPath(cliPath string, getenv func(string) string) (string, string) {
	if cliPath != "" {
		return absPath(cliPath), "cli"
	}
	if env := getenv(EnvConfigPath); env != "" {
		return absPath(env), "env"
	}

	if isFile(DefaultConfig) {
		return absPath(DefaultConfig), "cwd"
	}

	if home, err := os.UserHomeDir(); err == nil {
		for _, p := range []string{
			filepath.Join(home, ".mmonit-hub.conf"),
			filepath.Join(home, ".config", "mmonit-hub", DefaultConfig),
		} {
			if isFile(p) {
				return p, "home"
			}
		}
	}

	return absPath(DefaultConfig), "default"
}

// LoadConfig читает JSON-конфиг, накладывает ENV (MMONIT_HUB_*) и валидирует результат.
func LoadConfig(cliPath string) (*Config, error) {
	path, source := ResolveConfigPath(cliPath, os.Getenv)
	return loadFrom(path, source)
}

func loadFrom(path, source string) (*Config, error) {
	v := viper.New()

	// 1. Файл задан явно, формат — JSON вне зависимости от расширения (.conf)
	v.SetConfigFile(path)
	v.SetConfigType("json")

	// 2. Переменные окружения: MMONIT_HUB_HUB_REQUEST_TIMEOUT перекроет hub.request_timeout
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла: в отличие от прошлых версий, без файла не стартуем
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigError{Path: path, Reason: "file not found (use --config or " + EnvConfigPath + ")", Err: err}
		}
		return nil, &ConfigError{Path: path, Reason: "invalid JSON", Err: err}
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Path: path, Reason: "unable to decode", Err: err}
	}
	cfg.Path = path
	cfg.Source = source

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("auto_refresh_seconds", 30)
	v.SetDefault("ui_thresholds.disk_warning_pct", 80)
	v.SetDefault("ui_thresholds.disk_error_pct", 90)

	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("hub.request_timeout", 12*time.Second)
	v.SetDefault("hub.max_hosts", 1000)
	v.SetDefault("hub.tenant_workers", 16)
	v.SetDefault("hub.host_workers", 16)
	v.SetDefault("hub.upstream_rps", 0)
	v.SetDefault("hub.upstream_burst", 10)
	v.SetDefault("hub.breaker.enabled", false)
	v.SetDefault("hub.breaker.max_failures", 5)
	v.SetDefault("hub.breaker.open_timeout", 30*time.Second)

	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 30)
}

// Validate проверяет теги структуры и связи между полями
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return &ConfigError{Path: cfg.Path, Reason: "validation failed", Err: err}
	}

	seen := make(map[string]struct{}, len(cfg.Instances))
	for _, inst := range cfg.Instances {
		if _, dup := seen[inst.Name]; dup {
			return &ConfigError{Path: cfg.Path, Reason: fmt.Sprintf("duplicate instance name %q", inst.Name)}
		}
		seen[inst.Name] = struct{}{}
	}

	users := make(map[string]struct{}, len(cfg.Users))
	for _, u := range cfg.Users {
		if _, dup := users[u.Username]; dup {
			return &ConfigError{Path: cfg.Path, Reason: fmt.Sprintf("duplicate user %q", u.Username)}
		}
		users[u.Username] = struct{}{}
	}

	if cfg.AuthRequired() && strings.TrimSpace(cfg.SecretKey) == "" {
		return &ConfigError{Path: cfg.Path, Reason: "secret_key is required when users are configured"}
	}

	if t := cfg.UIThresholds; t.DiskWarningPct > t.DiskErrorPct {
		return &ConfigError{Path: cfg.Path, Reason: "ui_thresholds.disk_warning_pct must not exceed disk_error_pct"}
	}

	return nil
}

func absPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func isFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}
