package extension

import "time"

// Config holds the Credits extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.credits" or "credits" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for credits routes (default: "/credits").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// AuditBatchSize is the number of audit records to buffer before
	// flushing to the store (default: 100).
	AuditBatchSize int `json:"audit_batch_size" mapstructure:"audit_batch_size" yaml:"audit_batch_size"`

	// AuditFlushInterval is how frequently the audit buffer is flushed
	// even if the batch size has not been reached (default: 5s).
	AuditFlushInterval time.Duration `json:"audit_flush_interval" mapstructure:"audit_flush_interval" yaml:"audit_flush_interval"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the application is expected to provide the matching store
	// backend (postgres/sqlite/mongo) built from that database.
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		AuditBatchSize:     100,
		AuditFlushInterval: 5 * time.Second,
	}
}
