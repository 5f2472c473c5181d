package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout and tuning values.
// These values can be customized via environment variables.
type Timeouts struct {
	Request           time.Duration // Timeout for a single non-streaming API request
	Connect           time.Duration // Timeout for establishing a connection
	JobStart          time.Duration // How long 'job run --wait-start' waits for a job to leave pending
	PollInitialDelay  time.Duration // First delay between status polls
	PollMaxDelay      time.Duration // Upper bound for the poll delay
	TokenRefreshAhead time.Duration // Refresh the access token this long before it expires
	ChunkSize         int           // Transfer chunk size in bytes
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - APOLO_TIMEOUT_REQUEST (default: 60s)
//   - APOLO_TIMEOUT_CONNECT (default: 10s)
//   - APOLO_TIMEOUT_JOB_START (default: 15m)
//   - APOLO_POLL_INITIAL_DELAY (default: 1s)
//   - APOLO_POLL_MAX_DELAY (default: 10s)
//   - APOLO_TOKEN_REFRESH_AHEAD (default: 1m)
//   - APOLO_TRANSFER_CHUNK_SIZE (default: 4194304)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Request:           parseDuration("APOLO_TIMEOUT_REQUEST", 60*time.Second),
		Connect:           parseDuration("APOLO_TIMEOUT_CONNECT", 10*time.Second),
		JobStart:          parseDuration("APOLO_TIMEOUT_JOB_START", 15*time.Minute),
		PollInitialDelay:  parseDuration("APOLO_POLL_INITIAL_DELAY", 1*time.Second),
		PollMaxDelay:      parseDuration("APOLO_POLL_MAX_DELAY", 10*time.Second),
		TokenRefreshAhead: parseDuration("APOLO_TOKEN_REFRESH_AHEAD", 1*time.Minute),
		ChunkSize:         parseInt("APOLO_TRANSFER_CHUNK_SIZE", 4*1024*1024),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses a positive integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil || i <= 0 {
		return defaultVal
	}

	return i
}
