// Package config loads the typed configuration for the reconciliation
// engine from environment variables. Every recognized key is enumerated
// below; there is no ad-hoc options map — unknown environment variables
// are simply inert, matching Go's normal os.Getenv semantics.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the full set of knobs the orchestrator, matching engine, and
// break classifier read at startup.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Matching MatchingConfig
	Ingest   IngestConfig
	Logging  LoggingConfig

	// MLModelPath is the optional path to a pluggable scorer artifact; an
	// empty value means no external scorer is wired in.
	MLModelPath string

	// AliasTable maps a counterparty name to the set of names considered
	// equivalent, used by the auto-resolver's counterparty-alias rule.
	// Loaded from a JSON file since it is a map, not an inline env value.
	AliasTable AliasTable

	// ExternalFeeds lists the broker/custodian feed adapters the
	// orchestrator fans out to alongside the internal book of record.
	// Loaded from a JSON file for the same reason as AliasTable.
	ExternalFeeds []ExternalFeedConfig

	// ForceRerun allows a run to supersede an already-completed run for
	// the same trade date.
	ForceRerun bool
}

// ExternalFeedConfig names one external feed adapter to construct via
// feed.New. SourceTag identifies the feed in matching/classification
// output; Kind/FilePath/Delimiter/ColumnMapping map directly onto
// feed.Config's fields for the corresponding adapter kind.
type ExternalFeedConfig struct {
	SourceTag     string            `json:"source_tag"`
	Kind          string            `json:"kind"`
	FilePath      string            `json:"file_path"`
	Delimiter     string            `json:"delimiter"`
	ColumnMapping map[string]string `json:"column_mapping"`
}

// ServerConfig configures the operator HTTP surface.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig configures the Postgres connection used by the storage
// adapter and the internal-feed query adapter.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// MatchingConfig configures the matching engine's tolerances and gates,
// exactly the keys enumerated in the external interfaces table.
type MatchingConfig struct {
	PriceTolerancePercent    float64
	PriceToleranceAbsolute   float64
	QuantityTolerancePercent float64
	TimeWindowHours          int
	MinMatchScore            float64
	MLMinConfidence          float64
}

// IngestConfig configures feed ingestion concurrency and timeouts.
type IngestConfig struct {
	WorkerPoolSize     int
	FeedTimeoutSeconds int
}

// LoggingConfig selects the zap encoder and level.
type LoggingConfig struct {
	Level  string
	Format string
}

// AliasTable is a symmetric alias lookup: Aliases checks both directions,
// so a pair need only be listed under one of its two names. Validate does
// not inspect the table.
type AliasTable map[string][]string

// Load reads Config from the environment. AliasTable is read from the
// file named by ALIAS_TABLE_PATH, if set; a missing or empty path yields
// an empty (non-nil) table.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "reconciler"),
			User:     getEnv("DB_USER", "reconciler"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Matching: MatchingConfig{
			PriceTolerancePercent:    getEnvAsFloat("PRICE_TOLERANCE_PERCENT", 0.01),
			PriceToleranceAbsolute:   getEnvAsFloat("PRICE_TOLERANCE_ABSOLUTE", 0.01),
			QuantityTolerancePercent: getEnvAsFloat("QUANTITY_TOLERANCE_PERCENT", 0.001),
			TimeWindowHours:          getEnvAsInt("TIME_WINDOW_HOURS", 24),
			MinMatchScore:            getEnvAsFloat("MIN_MATCH_SCORE", 0.85),
			MLMinConfidence:          getEnvAsFloat("ML_MIN_CONFIDENCE", 0.90),
		},
		Ingest: IngestConfig{
			WorkerPoolSize:     getEnvAsInt("INGEST_WORKER_POOL_SIZE", 5),
			FeedTimeoutSeconds: getEnvAsInt("FEED_TIMEOUT_SECONDS", 300),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		MLModelPath: getEnv("ML_MODEL_PATH", ""),
		ForceRerun:  getEnvAsBool("FORCE_RERUN", false),
	}

	aliases, err := loadAliasTable(getEnv("ALIAS_TABLE_PATH", ""))
	if err != nil {
		return nil, fmt.Errorf("loading alias table: %w", err)
	}
	cfg.AliasTable = aliases

	feeds, err := loadExternalFeeds(getEnv("EXTERNAL_FEEDS_PATH", ""))
	if err != nil {
		return nil, fmt.Errorf("loading external feed config: %w", err)
	}
	cfg.ExternalFeeds = feeds

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects missing or out-of-range known keys. It does not
// reject unrecognized environment variables — those were never read.
func (c *Config) Validate() error {
	if c.Matching.MinMatchScore < 0 || c.Matching.MinMatchScore > 1 {
		return fmt.Errorf("min_match_score must be in [0,1], got %v", c.Matching.MinMatchScore)
	}
	if c.Matching.TimeWindowHours <= 0 {
		return fmt.Errorf("time_window_hours must be positive, got %d", c.Matching.TimeWindowHours)
	}
	if c.Ingest.WorkerPoolSize <= 0 {
		return fmt.Errorf("ingest_worker_pool_size must be positive, got %d", c.Ingest.WorkerPoolSize)
	}
	if c.Ingest.FeedTimeoutSeconds <= 0 {
		return fmt.Errorf("feed_timeout_seconds must be positive, got %d", c.Ingest.FeedTimeoutSeconds)
	}
	return nil
}

func loadAliasTable(path string) (AliasTable, error) {
	if path == "" {
		return AliasTable{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := AliasTable{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	table := AliasTable{}
	for k, v := range raw {
		table[strings.ToUpper(k)] = v
	}
	return table, nil
}

func loadExternalFeeds(path string) ([]ExternalFeedConfig, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var feeds []ExternalFeedConfig
	if err := json.Unmarshal(data, &feeds); err != nil {
		return nil, err
	}
	return feeds, nil
}

// Aliases reports whether a and b are known aliases of each other. The
// lookup is symmetric: it checks both a's entry for b and b's entry for
// a, so the table need only be populated on one side.
func (t AliasTable) Aliases(a, b string) bool {
	a, b = strings.ToUpper(a), strings.ToUpper(b)
	if a == b {
		return true
	}
	for _, name := range t[a] {
		if strings.ToUpper(name) == b {
			return true
		}
	}
	for _, name := range t[b] {
		if strings.ToUpper(name) == a {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
