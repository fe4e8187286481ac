package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	ArchiveBucket  string // empty disables archiving of purged notifications

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	PushProvider    string // "expo" | "sns"
	ExpoPushURL     string
	ExpoAccessToken string
	SNSRegion       string
	PushRatePerSec  int
	PushTimeout     time.Duration

	Delivery Delivery
	Schedule Schedule

	RedisAddr     string // empty falls back to an in-process sweep lock
	RedisPassword string
	SweepLockTTL  time.Duration

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string
	Notifications string
	DeliveryLogs  string
	Timetable     string
	Attendance    string
}

// Delivery tunes the due-notification pipeline.
type Delivery struct {
	BatchSize    int
	Concurrency  int
	DuePageSize  int32
	RetryPage    int32
	MaxRetries   int
	RetryBackoff time.Duration
}

// Schedule holds the periodic trigger cadences and retention windows.
type Schedule struct {
	SweepInterval    time.Duration
	ReminderInterval time.Duration
	CleanupInterval  time.Duration
	RetentionDays    int
	LogRetentionDays int
	Timezone         string // IANA zone class times are written in
	TimetableTTL     time.Duration
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("APP_PORT", "3000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			Notifications: getEnv("DYNAMO_TABLE_NOTIFICATIONS", "scheduled_notifications"),
			DeliveryLogs:  getEnv("DYNAMO_TABLE_DELIVERY_LOGS", "delivery_logs"),
			Timetable:     getEnv("DYNAMO_TABLE_TIMETABLE", "timetable_entries"),
			Attendance:    getEnv("DYNAMO_TABLE_ATTENDANCE", "attendance_records"),
		},
		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", ""),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 168)) * time.Hour,

		PushProvider:    strings.ToLower(getEnv("PUSH_PROVIDER", "expo")),
		ExpoPushURL:     getEnv("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send"),
		ExpoAccessToken: getEnv("EXPO_ACCESS_TOKEN", ""),
		SNSRegion:       getEnv("SNS_REGION", "us-east-1"),
		PushRatePerSec:  getEnvInt("PUSH_RATE_PER_SEC", 600),
		PushTimeout:     getEnvDuration("PUSH_TIMEOUT", 30*time.Second),

		Delivery: Delivery{
			BatchSize:    getEnvInt("NOTIFICATION_BATCH_SIZE", 100),
			Concurrency:  getEnvInt("DELIVERY_CONCURRENCY", 4),
			DuePageSize:  int32(getEnvInt("DUE_PAGE_SIZE", 100)),
			RetryPage:    int32(getEnvInt("RETRY_PAGE_SIZE", 50)),
			MaxRetries:   getEnvInt("MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("RETRY_BACKOFF", 5*time.Minute),
		},
		Schedule: Schedule{
			SweepInterval:    getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
			ReminderInterval: getEnvDuration("REMINDER_INTERVAL", time.Hour),
			CleanupInterval:  getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour),
			RetentionDays:    getEnvInt("RETENTION_DAYS", 30),
			LogRetentionDays: getEnvInt("LOG_RETENTION_DAYS", 90),
			Timezone:         getEnv("TIMEZONE", "UTC"),
			TimetableTTL:     getEnvDuration("TIMETABLE_CACHE_TTL", 15*time.Minute),
		},

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SweepLockTTL:  getEnvDuration("SWEEP_LOCK_TTL", 4*time.Minute),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "5m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
