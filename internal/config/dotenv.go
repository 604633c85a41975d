package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

// loadDotEnvFile copies variables from a dotenv file into the environment.
// Variables that are already set win, and empty values are skipped.
func loadDotEnvFile(path string, setenv func(string, string) error, getenv func(string) string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		return err
	}
	for k, v := range vars {
		if v == "" || getenv(k) != "" {
			continue
		}
		if err := setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}
