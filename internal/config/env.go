package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names read by the commands.
const (
	EnvConfig       = "FEATURESTATE_CONFIG"
	EnvBroker       = "FEATURESTATE_BROKER"
	EnvBaseTopic    = "FEATURESTATE_BASE_TOPIC"
	EnvHTTPAddr     = "FEATURESTATE_HTTP"
	EnvHistoryDB    = "FEATURESTATE_HISTORY_DB"
	EnvPoll         = "FEATURESTATE_POLL"
	EnvHeartbeat    = "FEATURESTATE_HEARTBEAT"
	EnvMQTTUsername = "MQTT_USERNAME"
	EnvMQTTPassword = "MQTT_PASSWORD"
	EnvMQTTClientID = "MQTT_CLIENT_ID"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		log.Printf("config: loaded %s", p)
	}
	return nil
}

// String returns the variable or def when unset.
func String(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// Duration returns the parsed variable or def when unset or invalid.
func Duration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: %s=%q is not a duration, using %v", key, v, def)
		return def
	}
	return d
}
