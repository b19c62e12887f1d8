package audit

// AuditConfig defines the configuration for audit logging.
type AuditConfig struct {
	// Enabled determines whether audit logging is active.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// OutputFile is the path to the audit log file.
	// If empty and Log is false, entries are written to stdout.
	OutputFile string `json:"outputFile,omitempty" yaml:"output_file,omitempty" mapstructure:"output_file"`

	// Log also sends every entry through the application logger, and so to
	// Loki when log.loki_url is set.
	Log bool `json:"log,omitempty" yaml:"log,omitempty" mapstructure:"log"`
}

// DefaultAuditConfig returns an AuditConfig with audit logging disabled.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{}
}

// Validate checks that the configuration is valid.
func (c *AuditConfig) Validate() error {
	if c.Enabled {
		return nil
	}
	if c.OutputFile != "" {
		return &ConfigError{Field: "output_file", Message: "is set but audit.enabled is false"}
	}
	if c.Log {
		return &ConfigError{Field: "log", Message: "is set but audit.enabled is false"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "audit." + e.Field + ": " + e.Message
}
