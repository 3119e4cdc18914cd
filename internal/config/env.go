package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// envPaths lists the dotenv files consulted before the config file is parsed.
var envPaths = []string{".env", ".env.local"}

// loadEnvFile loads environment variables from the first existing dotenv file.
// Existing process environment variables are not overwritten.
func loadEnvFile() error {
	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load %s: %w", envPath, err)
		}
		fmt.Fprintf(os.Stderr, "Loaded environment variables from %s\n", envPath)
		return nil
	}
	return fmt.Errorf("no .env file found")
}
