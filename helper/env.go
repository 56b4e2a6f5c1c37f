package helper

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv loads a .env file from the working directory if one exists.
// Variables already present in the environment are not overwritten.
func LoadEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// EnvString returns the value of key or def if it is unset or empty
func EnvString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// EnvInt returns the integer value of key or def if it is unset or malformed
func EnvInt(key string, def int) int {
	v, err := strconv.Atoi(EnvString(key, ""))
	if err != nil {
		return def
	}
	return v
}

// EnvFloat returns the float value of key or def if it is unset or malformed
func EnvFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(EnvString(key, ""), 64)
	if err != nil {
		return def
	}
	return v
}

// EnvBool returns the boolean value of key or def if it is unset or malformed
func EnvBool(key string, def bool) bool {
	v, err := strconv.ParseBool(EnvString(key, ""))
	if err != nil {
		return def
	}
	return v
}

// EnvDuration returns the duration value of key or def if it is unset or malformed
func EnvDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(EnvString(key, ""))
	if err != nil {
		return def
	}
	return v
}
