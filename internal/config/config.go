package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/graphvault/graphvault-go/internal/errors"
)

// Config holds all configuration settings
type Config struct {
	// Neo4j target
	Neo4j Neo4jConfig `yaml:"neo4j"`

	// Backup engine settings
	Backup BackupConfig `yaml:"backup"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type BackupConfig struct {
	Directory        string        `yaml:"directory"`
	PageSize         int           `yaml:"page_size"`         // export pagination
	BatchSize        int           `yaml:"batch_size"`        // restore batching
	OperationTimeout time.Duration `yaml:"operation_timeout"` // per database round-trip
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Backup: BackupConfig{
			Directory:        filepath.Join(homeDir, ".graphvault", "backups"),
			PageSize:         200,
			BatchSize:        500,
			OperationTimeout: 30 * time.Second,
		},
	}
}

// Load loads configuration from file, environment, and defaults
func Load(path string) (*Config, error) {
	// Load .env files first so env overrides see them
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("neo4j", cfg.Neo4j)
	v.SetDefault("backup", cfg.Backup)

	v.SetEnvPrefix("GRAPHVAULT")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".graphvault")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".graphvault"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to config.
// The NEO4J_* names match what the driver ecosystem and docker images use.
func applyEnvOverrides(cfg *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USERNAME"); user != "" {
		cfg.Neo4j.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		cfg.Neo4j.Password = pass
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.Neo4j.Database = db
	}

	if dir := os.Getenv("GRAPHVAULT_BACKUP_DIR"); dir != "" {
		cfg.Backup.Directory = expandPath(dir)
	}
	if size := os.Getenv("GRAPHVAULT_PAGE_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n > 0 {
			cfg.Backup.PageSize = n
		}
	}
	if size := os.Getenv("GRAPHVAULT_BATCH_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n > 0 {
			cfg.Backup.BatchSize = n
		}
	}
	if timeout := os.Getenv("GRAPHVAULT_OP_TIMEOUT_SECONDS"); timeout != "" {
		if n, err := strconv.Atoi(timeout); err == nil && n > 0 {
			cfg.Backup.OperationTimeout = time.Duration(n) * time.Second
		}
	}
}

// Validate checks that the configuration can actually reach a target
func (c *Config) Validate() error {
	if c.Neo4j.URI == "" {
		return apperrors.ConfigError("neo4j uri is not set (NEO4J_URI)")
	}
	if c.Neo4j.Username == "" {
		return apperrors.ConfigError("neo4j username is not set (NEO4J_USERNAME)")
	}
	if c.Neo4j.Password == "" {
		return apperrors.ConfigError("neo4j password is not set (NEO4J_PASSWORD)")
	}
	if c.Backup.Directory == "" {
		return apperrors.ConfigError("backup directory is not set (GRAPHVAULT_BACKUP_DIR)")
	}
	if c.Backup.PageSize <= 0 {
		return apperrors.ConfigErrorf("page size must be positive, got %d", c.Backup.PageSize)
	}
	if c.Backup.BatchSize <= 0 {
		return apperrors.ConfigErrorf("batch size must be positive, got %d", c.Backup.BatchSize)
	}
	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
