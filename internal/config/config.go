package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

// envPattern находит подстановки формата ${VAR} и ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvWithDefaults расширяет переменные окружения с поддержкой дефолтных значений
// Формат: ${VAR:-default}
func expandEnvWithDefaults(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		matches := envPattern.FindStringSubmatch(match)
		if len(matches) < 2 {
			return match
		}

		varName := matches[1]
		defaultValue := ""
		if len(matches) > 2 {
			defaultValue = matches[2]
		}

		// Пустая переменная окружения считается неустановленной
		value := os.Getenv(varName)
		if value == "" {
			return defaultValue
		}
		return value
	})
}

// InitConfig читает конфигурационный файл и возвращает экземпляр конфигурации
// Использует generic для работы с произвольным типом конфигурации
func InitConfig[C any](configFile string) (*C, error) {
	v := viper.New()
	ext := strings.TrimLeft(filepath.Ext(configFile), ".")

	v.SetConfigFile(configFile)
	v.SetConfigType(ext)
	err := v.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("v.ReadInConfig: %w", err)
	}

	// Заменяем переменные окружения формата ${VAR:-default} на их значения
	for _, k := range v.AllKeys() {
		value := v.GetString(k)
		if value == "" {
			continue
		}
		expanded := expandEnvWithDefaults(value)

		// Числа и boolean после подстановки приводим к их типам
		if expanded == "true" || expanded == "false" {
			boolValue, _ := strconv.ParseBool(expanded)
			v.Set(k, boolValue)
		} else if intValue, err := strconv.Atoi(expanded); err == nil {
			v.Set(k, intValue)
		} else {
			v.Set(k, expanded)
		}
	}

	cfg := new(C)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("v.Unmarshal: %w", err)
	}

	return cfg, nil
}

// Load читает конфигурацию сервиса, заполняет незаданные поля значениями по умолчанию и проверяет её
func Load(configFile string) (*Config, error) {
	cfg, err := InitConfig[Config](configFile)
	if err != nil {
		return nil, err
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("defaults.Set: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default возвращает конфигурацию только из значений по умолчанию
func Default() *Config {
	cfg := new(Config)
	_ = defaults.Set(cfg)
	return cfg
}

// Validate проверяет перечислимые значения и диапазоны
func (c *Config) Validate() error {
	if err := oneOf("storage.driver", c.Storage.Driver, "memory", "sqlite", "postgres", "mysql"); err != nil {
		return err
	}
	if c.Storage.Driver != "memory" && c.Storage.DSN == "" {
		return fmt.Errorf("config: storage.dsn is required for driver %q", c.Storage.Driver)
	}
	if err := oneOf("channel.driver", c.Channel.Driver, "kafka", "memory"); err != nil {
		return err
	}
	if err := oneOf("channel.on_connect_failure", c.Channel.OnConnectFailure, "fail", "degrade"); err != nil {
		return err
	}
	if err := oneOf("cache.driver", c.Cache.Driver, "memory", "redis", "none"); err != nil {
		return err
	}
	if err := oneOf("search.driver", c.Search.Driver, "memory", "elastic"); err != nil {
		return err
	}
	if c.Channel.Topic == "" {
		return fmt.Errorf("config: channel.topic cannot be empty")
	}
	if c.Channel.PublishRetryCount() < 0 {
		return fmt.Errorf("config: channel.publish_retries cannot be negative")
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("config: cache.ttl_seconds must be positive")
	}
	return nil
}

func intValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("config: %s must be one of %s, got %q", key, strings.Join(allowed, "|"), value)
}

// ConnectRetryDelay задержка между попытками подключения к брокеру
func (c ConfigChannel) ConnectRetryDelay() time.Duration {
	return time.Duration(intValue(c.ConnectRetryDelayMS)) * time.Millisecond
}

// PublishTimeout таймаут одной попытки отправки
func (c ConfigChannel) PublishTimeout() time.Duration {
	return time.Duration(c.PublishTimeoutMS) * time.Millisecond
}

// PublishBackoff пауза между повторными отправками
func (c ConfigChannel) PublishBackoff() time.Duration {
	return time.Duration(intValue(c.PublishBackoffMS)) * time.Millisecond
}

// PublishRetryCount число повторных отправок после первой неудачной. 0 - без повторов.
func (c ConfigChannel) PublishRetryCount() int {
	return intValue(c.PublishRetries)
}

// ProjectorRetryWait пауза перед повтором проекции после ошибки индекса
func (c ConfigChannel) ProjectorRetryWait() time.Duration {
	return time.Duration(c.ProjectorRetryWaitMS) * time.Millisecond
}

// TTL время жизни записей кэша
func (c ConfigCache) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// AddressList адреса узлов Elasticsearch
func (c ConfigSearch) AddressList() []string {
	var out []string
	for _, a := range strings.Split(c.Addresses, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
