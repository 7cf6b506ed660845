package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from environment variables, applies defaults
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with a custom variable source.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct populates tagged fields of v, recursing into nested structs.
// Tags: env (variable name), envAlt (fallback name), default, required.
func loadStruct(v reflect.Value, lookup func(string) (string, bool)) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal, lookup); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value, _ := lookup(envName)
		if value == "" {
			if alt := field.Tag.Get("envAlt"); alt != "" {
				value, _ = lookup(alt)
			}
		}

		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField parses value into field according to its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		field.Set(reflect.ValueOf(splitList(value)))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			add("DATABASE_URL is required when DB_DRIVER=postgres")
		}
		if c.Database.MaxConns <= 0 {
			add("DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			add("DB_MIN_CONNS must be non-negative")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			add("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	case "sqlite":
		if strings.TrimSpace(c.Database.SQLitePath) == "" {
			add("SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
	default:
		add("DB_DRIVER (%q) must be one of: postgres, sqlite", c.Database.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		add("SERVER_READ_TIMEOUT and SERVER_WRITE_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		add("SERVER_REQUEST_TIMEOUT must be positive")
	}

	if c.Import.ChunkSize <= 0 {
		add("IMPORT_CHUNK_SIZE must be positive")
	}
	if c.Import.MaxFileSize <= 0 {
		add("IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.MaxConcurrent <= 0 {
		add("IMPORT_MAX_CONCURRENT must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		add("IMPORT_MAX_WAIT_TIME must be positive")
	}
	if c.Import.Timeout <= 0 {
		add("IMPORT_TIMEOUT must be positive")
	}

	if c.Alert.LookupTimeout < 0 {
		add("ALERT_LOOKUP_TIMEOUT must be non-negative")
	}
	if c.Alert.PublishTimeout <= 0 {
		add("ALERT_PUBLISH_TIMEOUT must be positive")
	}

	switch c.Queue.Backend {
	case "memory":
		if c.Queue.Buffer <= 0 {
			add("QUEUE_BUFFER must be positive")
		}
	case "redis":
		if c.Queue.RedisAddr == "" {
			add("REDIS_ADDR is required when QUEUE_BACKEND=redis")
		}
	case "kafka":
		if len(c.Queue.KafkaBrokers) == 0 {
			add("KAFKA_BROKERS is required when QUEUE_BACKEND=kafka")
		}
		if c.Queue.KafkaTopic == "" || c.Queue.KafkaGroupID == "" {
			add("KAFKA_TOPIC and KAFKA_GROUP_ID are required when QUEUE_BACKEND=kafka")
		}
	default:
		add("QUEUE_BACKEND (%q) must be one of: memory, redis, kafka", c.Queue.Backend)
	}
	if c.Queue.Workers <= 0 {
		add("QUEUE_WORKERS must be positive")
	}
	if c.Queue.SendTimeout <= 0 {
		add("QUEUE_SEND_TIMEOUT must be positive")
	}

	switch c.SMS.Provider {
	case "log":
	case "http":
		if c.SMS.URL == "" {
			add("SMS_API_URL is required when SMS_PROVIDER=http")
		}
	default:
		add("SMS_PROVIDER (%q) must be one of: log, http", c.SMS.Provider)
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		add("REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	if c.Rate.Enabled {
		if c.Rate.RequestsPerMinute <= 0 || c.Rate.ImportsPerMinute <= 0 {
			add("RATE_LIMIT_REQUESTS_PER_MINUTE and RATE_LIMIT_IMPORTS must be positive when rate limiting is enabled")
		}
		if c.Rate.Burst <= 0 {
			add("RATE_LIMIT_BURST must be positive when rate limiting is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		add("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		add("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if c.History.Enabled && (c.History.Retention <= 0 || c.History.CheckInterval <= 0) {
		add("HISTORY_RETENTION and HISTORY_CHECK_INTERVAL must be positive when history is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String renders every setting for logging. Fields tagged secret:"true"
// are masked when set.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	writeStruct(&b, reflect.ValueOf(*c))
	b.WriteString("}")
	return b.String()
}

func writeStruct(b *strings.Builder, v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		field := t.Field(i)
		fieldVal := v.Field(i)
		b.WriteString(field.Name)
		b.WriteString(": ")

		switch {
		case field.Type.Kind() == reflect.Struct:
			b.WriteString("{")
			writeStruct(b, fieldVal)
			b.WriteString("}")
		case field.Tag.Get("secret") == "true":
			if fieldVal.IsZero() {
				b.WriteString(`""`)
			} else {
				b.WriteString("[MASKED]")
			}
		case field.Type.Kind() == reflect.String:
			fmt.Fprintf(b, "%q", fieldVal.String())
		default:
			fmt.Fprintf(b, "%v", fieldVal.Interface())
		}
	}
}
