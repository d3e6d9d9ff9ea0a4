package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads .env files in order of precedence. Missing files
// are fine; credentials may come from the real environment instead.
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // local overrides (highest precedence)
		".env",       // main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	// Also walk up the directory tree so the CLI works from subdirectories
	if path, err := findEnvFile(); err == nil {
		godotenv.Load(path)
	}

	// And the per-user config directory
	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".graphvault", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// findEnvFile searches for .env in current and parent directories
func findEnvFile() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	searchPath := cwd
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(searchPath, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}

		parent := filepath.Dir(searchPath)
		if parent == searchPath {
			break
		}
		searchPath = parent
	}

	return "", os.ErrNotExist
}
