package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Reservation ReservationConfig `yaml:"reservation"`
	Cleanup     CleanupConfig     `yaml:"cleanup"`
	Auth        AuthConfig        `yaml:"auth"`
	Email       EmailConfig       `yaml:"email"`
	Log         LogConfig         `yaml:"log"`
}

type HTTPConfig struct {
	Address             string `yaml:"address"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
}

func (h HTTPConfig) ReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeoutSeconds) * time.Second
}

func (h HTTPConfig) WriteTimeout() time.Duration {
	return time.Duration(h.WriteTimeoutSeconds) * time.Second
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN prefers an explicit URL over the discrete connection fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers                []string `yaml:"brokers"`
	ReservationEventsTopic string   `yaml:"reservation_events_topic"`
	NotificationsTopic     string   `yaml:"notifications_topic"`
	GroupID                string   `yaml:"group_id"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type ReservationConfig struct {
	ConfirmationEndpoint   string `yaml:"confirmation_endpoint"`
	SerializeAdmissions    bool   `yaml:"serialize_admissions"`
	AdmissionLockSeconds   int    `yaml:"admission_lock_seconds"`
	FlightsCacheTTLSeconds int    `yaml:"flights_cache_ttl_seconds"`
}

func (r ReservationConfig) AdmissionLockTTL() time.Duration {
	return time.Duration(r.AdmissionLockSeconds) * time.Second
}

func (r ReservationConfig) FlightsCacheTTL() time.Duration {
	return time.Duration(r.FlightsCacheTTLSeconds) * time.Second
}

type CleanupConfig struct {
	CheckIntervalMinutes int `yaml:"check_interval_minutes"`
	ExpiryHours          int `yaml:"expiry_hours"`
}

func (c CleanupConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMinutes) * time.Minute
}

func (c CleanupConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	AccessTTLMinutes int    `yaml:"access_ttl_minutes"`
	BcryptCost       int    `yaml:"bcrypt_cost"`
	OwnerEmail       string `yaml:"owner_email"`
	OwnerUserName    string `yaml:"owner_username"`
	OwnerPassword    string `yaml:"owner_password"`
}

func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTTLMinutes) * time.Minute
}

const (
	EmailModeDev        = "dev"
	EmailModeMailerSend = "mailersend"
)

type EmailConfig struct {
	Mode      string `yaml:"mode"`
	Queue     bool   `yaml:"queue"`
	APIKey    string `yaml:"api_key"`
	FromName  string `yaml:"from_name"`
	FromEmail string `yaml:"from_email"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, fills defaults and applies environment overrides.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ReadTimeoutSeconds == 0 {
		c.HTTP.ReadTimeoutSeconds = 5
	}
	if c.HTTP.WriteTimeoutSeconds == 0 {
		c.HTTP.WriteTimeoutSeconds = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Kafka.ReservationEventsTopic == "" {
		c.Kafka.ReservationEventsTopic = "reservation-events"
	}
	if c.Kafka.NotificationsTopic == "" {
		c.Kafka.NotificationsTopic = "reservation-notifications"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "flightmanager-worker"
	}
	if c.Reservation.AdmissionLockSeconds == 0 {
		c.Reservation.AdmissionLockSeconds = 10
	}
	if c.Reservation.FlightsCacheTTLSeconds == 0 {
		c.Reservation.FlightsCacheTTLSeconds = 30
	}
	if c.Cleanup.CheckIntervalMinutes == 0 {
		c.Cleanup.CheckIntervalMinutes = 10
	}
	if c.Cleanup.ExpiryHours == 0 {
		c.Cleanup.ExpiryHours = 48
	}
	if c.Auth.AccessTTLMinutes == 0 {
		c.Auth.AccessTTLMinutes = 60
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}
	if c.Email.Mode == "" {
		c.Email.Mode = EmailModeDev
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "FlightManager"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("MAILERSEND_API_KEY"); v != "" {
		c.Email.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	switch c.Email.Mode {
	case EmailModeDev:
	case EmailModeMailerSend:
		if c.Email.APIKey == "" || c.Email.FromEmail == "" {
			errs = append(errs, errors.New("email: mailersend mode requires api_key and from_email"))
		}
	default:
		errs = append(errs, fmt.Errorf("email.mode: unknown mode %q", c.Email.Mode))
	}
	if c.Email.Queue && !c.Kafka.Enabled() {
		errs = append(errs, errors.New("email.queue requires kafka.brokers"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Cleanup.CheckIntervalMinutes < 0 || c.Cleanup.ExpiryHours < 0 {
		errs = append(errs, errors.New("cleanup: intervals must not be negative"))
	}
	return errors.Join(errs...)
}
