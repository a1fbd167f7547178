package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	ServerPort string

	// Database
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int

	// Gemini
	GeminiAPIKey    string
	ClassifierModel string
	NarrativeModel  string
	ChatModel       string
	LLMTimeout      time.Duration

	// Cohorts
	CohortBandCount  int
	CohortSchedule   string
	SchedulerEnabled bool

	// Reports and chat
	TimeZone            string
	ReportCacheDegraded bool
	ChatHistoryLimit    int

	// AMQP, publishing is disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
}

func Load() *Config {
	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "password"),
		DBName:         getEnv("DB_NAME", "finmate"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		ClassifierModel: getEnv("CLASSIFIER_MODEL", "gemini-2.5-flash"),
		NarrativeModel:  getEnv("NARRATIVE_MODEL", "gemini-2.5-flash"),
		ChatModel:       getEnv("CHAT_MODEL", "gemini-2.5-flash"),
		LLMTimeout:      getEnvDuration("LLM_TIMEOUT", 30*time.Second),

		CohortBandCount:  getEnvInt("COHORT_BAND_COUNT", 5),
		CohortSchedule:   getEnv("COHORT_SCHEDULE", "0 0 1 * *"),
		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),

		TimeZone:            getEnv("TIMEZONE", "Asia/Seoul"),
		ReportCacheDegraded: getEnvBool("REPORT_CACHE_DEGRADED", true),
		ChatHistoryLimit:    getEnvInt("CHAT_HISTORY_LIMIT", 6),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finmate"),
	}
}

// Validate validates the configuration and returns an error listing every problem
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.ServerPort); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.ServerPort))
	} else if port < 0 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 0 and 65535", port))
	}

	if c.DBHost == "" || c.DBName == "" || c.DBUser == "" {
		errors = append(errors, "DB_HOST, DB_NAME and DB_USER are required")
	}

	if c.DBMaxOpenConns < 1 {
		errors = append(errors, fmt.Sprintf("invalid DB_MAX_OPEN_CONNS %d: must be at least 1", c.DBMaxOpenConns))
	}

	if c.CohortBandCount < 1 {
		errors = append(errors, fmt.Sprintf("invalid COHORT_BAND_COUNT %d: must be at least 1", c.CohortBandCount))
	}

	if _, err := cron.ParseStandard(c.CohortSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid COHORT_SCHEDULE '%s': %v", c.CohortSchedule, err))
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid TIMEZONE '%s': %v", c.TimeZone, err))
	}

	if c.ChatHistoryLimit < 0 {
		errors = append(errors, fmt.Sprintf("invalid CHAT_HISTORY_LIMIT %d: must not be negative", c.ChatHistoryLimit))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// GetDBConnectionString returns the lib/pq connection string
func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// GetDBURL returns the connection as a postgres:// URL, the form golang-migrate expects
func (c *Config) GetDBURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// Location returns the zone month boundaries are computed in. It falls back to
// UTC when TimeZone cannot be loaded; Validate reports that case.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) LLMEnabled() bool {
	return c.GeminiAPIKey != ""
}

func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
