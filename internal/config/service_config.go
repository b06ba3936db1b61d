// Package config assembles the service configuration from the environment.
// Every knob has a default so a bare process comes up in a usable state;
// the environment only overrides.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Service is the full runtime configuration.
type Service struct {
	Logger LoggerServer
	Store  StoreServer
	Auth   AuthServer
	Reader ReaderServer
}

// LoggerServer configures the zerolog root logger.
type LoggerServer struct {
	Level              string `json:"level"`
	PrettyPrintConsole bool   `json:"pretty_print_console"`
}

// StoreServer configures the wallet slot store.
type StoreServer struct {
	Path       string `json:"path"`
	Passphrase string `json:"-"`
}

// AuthServer configures the card authentication engine.
type AuthServer struct {
	InactivityTimeout time.Duration `json:"inactivity_timeout"`
	ConfirmRequired   bool          `json:"confirm_required"`
}

// ReaderServer configures the PC/SC reader bridge.
type ReaderServer struct {
	Reader string `json:"reader"`
}

// DefaultServiceConfigFromEnv returns the configuration with every field
// resolved against the current environment.
func DefaultServiceConfigFromEnv() Service {
	return Service{
		Logger: LoggerServer{
			Level:              getEnv("WALLETCORE_LOGGER_LEVEL", zerolog.LevelInfoValue),
			PrettyPrintConsole: getEnvAsBool("WALLETCORE_LOGGER_PRETTY_PRINT_CONSOLE", false),
		},
		Store: StoreServer{
			Path:       getEnv("WALLETCORE_STORE_PATH", "/var/lib/walletcore/wallets"),
			Passphrase: getEnv("WALLETCORE_STORE_PASSPHRASE", ""),
		},
		Auth: AuthServer{
			InactivityTimeout: getEnvAsDuration("WALLETCORE_AUTH_INACTIVITY_TIMEOUT", 5*time.Minute),
			ConfirmRequired:   getEnvAsBool("WALLETCORE_AUTH_CONFIRM_REQUIRED", true),
		},
		Reader: ReaderServer{
			Reader: getEnv("WALLETCORE_READER_NAME", ""),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	strVal, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	val, err := strconv.ParseBool(strVal)
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	strVal, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	val, err := time.ParseDuration(strVal)
	if err != nil {
		return defaultVal
	}
	return val
}
