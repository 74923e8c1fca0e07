// Package config loads the coordinator's environment-variable surface
// (spec §6 "Config surface"), using the teacher's requireEnv/getEnvOrDefault
// pattern from cmd/engine/main.go rather than a config library — the
// teacher carries no config parser of its own, so none is introduced here.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config is every tunable spec §6 names, plus the connection settings the
// coordinator's store and settlement client need.
type Config struct {
	DatabaseURL string
	Port        string
	Host        string

	CheckinDurationSeconds    int
	PregameDurationSeconds    int
	ZoneGraceSeconds          int
	KillProximityMeters       float64
	HeartbeatProximityMeters  float64
	HeartbeatIntervalSeconds  int
	HeartbeatDisableThreshold int
	BLERequired               bool

	PollingIntervalMs int
	LogLevel          string

	RPCURL             string
	RPCWSURL           string
	ContractAddress    string
	OperatorPrivateKey string

	SignatureSkew time.Duration
}

// Load reads every field from the environment, exiting the process if a
// required value is missing (the teacher's requireEnv behavior).
func Load() Config {
	return Config{
		DatabaseURL: requireEnv("DATABASE_URL"),
		Port:        getEnvOrDefault("PORT", "8080"),
		Host:        getEnvOrDefault("HOST", "0.0.0.0"),

		CheckinDurationSeconds:    getEnvInt("CHECKIN_DURATION_SECONDS", 120),
		PregameDurationSeconds:    getEnvInt("PREGAME_DURATION_SECONDS", 30),
		ZoneGraceSeconds:          getEnvInt("ZONE_GRACE_SECONDS", 60),
		KillProximityMeters:       getEnvFloat("KILL_PROXIMITY_METERS", 50),
		HeartbeatProximityMeters:  getEnvFloat("HEARTBEAT_PROXIMITY_METERS", 50),
		HeartbeatIntervalSeconds:  getEnvInt("HEARTBEAT_INTERVAL_SECONDS", 3600),
		HeartbeatDisableThreshold: getEnvInt("HEARTBEAT_DISABLE_THRESHOLD", 2),
		BLERequired:               getEnvBool("BLE_REQUIRED", true),

		PollingIntervalMs: getEnvInt("POLLING_INTERVAL_MS", 3000),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),

		RPCURL:             requireEnv("RPC_URL"),
		RPCWSURL:           getEnvOrDefault("RPC_WS_URL", ""),
		ContractAddress:    requireEnv("CONTRACT_ADDRESS"),
		OperatorPrivateKey: requireEnv("OPERATOR_PRIVATE_KEY"),

		SignatureSkew: time.Duration(getEnvInt("SIGNATURE_SKEW_SECONDS", 60)) * time.Second,
	}
}

// requireEnv reads a required environment variable and exits if it is not
// set, matching the teacher's fail-fast startup behavior.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: required environment variable %s is not set", key)
	}
	return val
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("[Config] invalid int for %s=%q, using default %d", key, val, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Printf("[Config] invalid float for %s=%q, using default %f", key, val, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		log.Printf("[Config] invalid bool for %s=%q, using default %t", key, val, fallback)
		return fallback
	}
	return b
}
