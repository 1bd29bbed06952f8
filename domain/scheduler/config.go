package scheduler

import (
	"os"
	"strconv"
	"time"
)

// Config holds scheduler configuration
type Config struct {
	// Enabled controls whether the scheduler runs
	Enabled bool

	// MetricsReportInterval is the interval for logging loader performance reports
	MetricsReportInterval time.Duration

	// GraphPurgeInterval is the interval for purging soft-deleted graph rows
	GraphPurgeInterval time.Duration

	// GraphPurgeRetentionHours is how long soft-deleted rows stay recoverable
	GraphPurgeRetentionHours int

	// Cron schedule overrides (take precedence over intervals when set)
	// Standard cron format: "minute hour day-of-month month day-of-week"
	// Examples: "*/5 * * * *" (every 5 min), "0 2 * * *" (daily at 2am)
	MetricsReportSchedule string
	GraphPurgeSchedule    string
}

// NewConfig creates a new Config from environment variables
func NewConfig() *Config {
	return &Config{
		Enabled:                  getEnvBool("SCHEDULER_ENABLED", true),
		MetricsReportInterval:    getEnvDuration("METRICS_REPORT_INTERVAL_MS", 15*time.Minute),
		GraphPurgeInterval:       getEnvDuration("GRAPH_PURGE_INTERVAL_MS", time.Hour),
		GraphPurgeRetentionHours: getEnvInt("GRAPH_PURGE_RETENTION_HOURS", 168),
		// Cron schedule overrides (empty string means use interval)
		MetricsReportSchedule: getEnvString("METRICS_REPORT_SCHEDULE", ""),
		GraphPurgeSchedule:    getEnvString("GRAPH_PURGE_SCHEDULE", ""),
	}
}

// getEnvBool returns a boolean from an environment variable
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvInt returns an integer from an environment variable
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration returns a duration from an environment variable (in milliseconds)
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}

// getEnvString returns a string from an environment variable
func getEnvString(key string, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
