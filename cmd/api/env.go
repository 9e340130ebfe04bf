package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// defaultEnvFile is read when CHECKBOOK_ENV_FILE is unset.
const defaultEnvFile = ".env"

// loadDotEnv loads CHECKBOOK_* and OTEL_* variables from the env file before
// config.Load applies them. A missing file is fine. Variables already set in
// the process environment win.
func loadDotEnv() (string, error) {
	path := os.Getenv("CHECKBOOK_ENV_FILE")
	if path == "" {
		path = defaultEnvFile
	}

	err := godotenv.Load(path)
	if err == nil {
		return path, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	return "", fmt.Errorf("load %s: %w", path, err)
}
