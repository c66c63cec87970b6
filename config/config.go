package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Booking      BookingConfig
	Reminder     ReminderConfig
	Notification NotificationConfig
	Push         PushConfig
	Messaging    MessagingConfig
	Telemetry    TelemetryConfig
}

type AppConfig struct {
	Port        string
	Env         string
	Timezone    string
	LogLevel    string
	CORSOrigins string // comma separated, "*" allows any origin
}

type DBConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	AutoMigrate bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret       string
	AccessExpiry time.Duration
}

type BookingConfig struct {
	SlotGranularity time.Duration
	Buffer          time.Duration
	MaxRangeDays    int
	EventChannels   []string
}

// ReminderWindowConfig is one "remind <Offset> before start on <Channels>" rule.
type ReminderWindowConfig struct {
	Offset   time.Duration
	Channels []string
}

type ReminderConfig struct {
	Enabled             bool
	Interval            time.Duration
	ClaimTTL            time.Duration
	BatchSize           int
	Workers             int
	MaxOverlappingTicks int
	Windows             []ReminderWindowConfig
}

type NotificationConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Timeout         time.Duration
	BulkConcurrency int
}

type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             int
}

type MessagingConfig struct {
	Provider     string // kafka | webhook | noop
	KafkaBrokers string
	KafkaTopic   string
	WebhookURL   string
	WebhookToken string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	SampleRatio  float64
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Running from plain environment variables is fine; a broken .env is not.
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, err
		}
	}

	windows, err := ParseReminderWindows(viper.GetString("REMINDER_WINDOWS"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		App: AppConfig{
			Port:        viper.GetString("APP_PORT"),
			Env:         viper.GetString("APP_ENV"),
			Timezone:    viper.GetString("APP_TIMEZONE"),
			LogLevel:    viper.GetString("LOG_LEVEL"),
			CORSOrigins: viper.GetString("CORS_ALLOWED_ORIGINS"),
		},
		DB: DBConfig{
			Host:        viper.GetString("DB_HOST"),
			Port:        viper.GetString("DB_PORT"),
			User:        viper.GetString("DB_USER"),
			Password:    viper.GetString("DB_PASSWORD"),
			Name:        viper.GetString("DB_NAME"),
			AutoMigrate: viper.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:       viper.GetString("JWT_SECRET"),
			AccessExpiry: durationOr("JWT_ACCESS_EXPIRY", 15*time.Minute),
		},
		Booking: BookingConfig{
			SlotGranularity: durationOr("BOOKING_SLOT_GRANULARITY", 30*time.Minute),
			Buffer:          durationOr("BOOKING_BUFFER", 0),
			MaxRangeDays:    viper.GetInt("BOOKING_MAX_RANGE_DAYS"),
			EventChannels:   splitList(viper.GetString("BOOKING_EVENT_CHANNELS")),
		},
		Reminder: ReminderConfig{
			Enabled:             viper.GetBool("REMINDER_ENABLED"),
			Interval:            durationOr("REMINDER_INTERVAL", time.Minute),
			ClaimTTL:            durationOr("REMINDER_CLAIM_TTL", 5*time.Minute),
			BatchSize:           viper.GetInt("REMINDER_BATCH_SIZE"),
			Workers:             viper.GetInt("REMINDER_WORKERS"),
			MaxOverlappingTicks: viper.GetInt("REMINDER_MAX_OVERLAPPING_TICKS"),
			Windows:             windows,
		},
		Notification: NotificationConfig{
			MaxRetries:      viper.GetInt("NOTIFICATION_MAX_RETRIES"),
			InitialInterval: durationOr("NOTIFICATION_RETRY_INITIAL", 500*time.Millisecond),
			MaxInterval:     durationOr("NOTIFICATION_RETRY_MAX", 10*time.Second),
			Timeout:         durationOr("NOTIFICATION_TIMEOUT", 30*time.Second),
			BulkConcurrency: viper.GetInt("NOTIFICATION_BULK_CONCURRENCY"),
		},
		Push: PushConfig{
			VAPIDPublicKey:  viper.GetString("PUSH_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: viper.GetString("PUSH_VAPID_PRIVATE_KEY"),
			Subscriber:      viper.GetString("PUSH_SUBSCRIBER"),
			TTL:             viper.GetInt("PUSH_TTL"),
		},
		Messaging: MessagingConfig{
			Provider:     strings.ToLower(viper.GetString("MESSAGING_PROVIDER")),
			KafkaBrokers: viper.GetString("KAFKA_BROKERS"),
			KafkaTopic:   viper.GetString("MESSAGING_KAFKA_TOPIC"),
			WebhookURL:   viper.GetString("MESSAGING_WEBHOOK_URL"),
			WebhookToken: viper.GetString("MESSAGING_WEBHOOK_TOKEN"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      viper.GetBool("OTEL_ENABLED"),
			ServiceName:  viper.GetString("OTEL_SERVICE_NAME"),
			OTLPEndpoint: viper.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			SampleRatio:  viper.GetFloat64("OTEL_SAMPLING_RATIO"),
		},
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_TIMEZONE", "Asia/Jakarta")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("DB_AUTO_MIGRATE", true)
	viper.SetDefault("BOOKING_MAX_RANGE_DAYS", 31)
	viper.SetDefault("BOOKING_EVENT_CHANNELS", "in_app,push")
	viper.SetDefault("REMINDER_ENABLED", true)
	viper.SetDefault("REMINDER_BATCH_SIZE", 200)
	viper.SetDefault("REMINDER_WORKERS", 8)
	viper.SetDefault("REMINDER_MAX_OVERLAPPING_TICKS", 2)
	viper.SetDefault("REMINDER_WINDOWS", "24h=in_app|push,30m=push|messaging")
	viper.SetDefault("NOTIFICATION_MAX_RETRIES", 3)
	viper.SetDefault("NOTIFICATION_BULK_CONCURRENCY", 8)
	viper.SetDefault("PUSH_TTL", 3600)
	viper.SetDefault("MESSAGING_PROVIDER", "noop")
	viper.SetDefault("MESSAGING_KAFKA_TOPIC", "notification.messaging.requested.v1")
	viper.SetDefault("OTEL_ENABLED", false)
	viper.SetDefault("OTEL_SERVICE_NAME", "clinic-scheduling")
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	viper.SetDefault("OTEL_SAMPLING_RATIO", 1.0)
}

// ParseReminderWindows parses "24h=in_app|push,30m=push" into windows sorted
// from the widest offset to the narrowest.
func ParseReminderWindows(raw string) ([]ReminderWindowConfig, error) {
	var windows []ReminderWindowConfig
	seen := make(map[time.Duration]bool)
	for _, part := range splitList(raw) {
		offsetRaw, channelsRaw, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("reminder window %q: expected <offset>=<channel>|<channel>", part)
		}
		offset, err := time.ParseDuration(strings.TrimSpace(offsetRaw))
		if err != nil || offset <= 0 {
			return nil, fmt.Errorf("reminder window %q: invalid offset", part)
		}
		if seen[offset] {
			return nil, fmt.Errorf("reminder window %q: duplicate offset", part)
		}
		seen[offset] = true

		var channels []string
		for _, ch := range strings.Split(channelsRaw, "|") {
			if ch = strings.TrimSpace(ch); ch != "" {
				channels = append(channels, strings.ToLower(ch))
			}
		}
		if len(channels) == 0 {
			return nil, fmt.Errorf("reminder window %q: no channels", part)
		}
		windows = append(windows, ReminderWindowConfig{Offset: offset, Channels: channels})
	}

	sort.Slice(windows, func(i, j int) bool { return windows[i].Offset > windows[j].Offset })
	return windows, nil
}

func durationOr(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
