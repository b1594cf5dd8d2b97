// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Wizard        WizardConfig       `mapstructure:"wizard"`
	Workflow      WorkflowConfig     `mapstructure:"workflow"`
	AutoApproval  AutoApprovalConfig `mapstructure:"auto_approval"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Roles         RolesConfig        `mapstructure:"roles"`
	Search        SearchConfig       `mapstructure:"search"`
	Server        ServerConfig       `mapstructure:"server"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// --- Specific Configuration Sections ---

// WizardConfig holds settings for the registration wizard.
type WizardConfig struct {
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	DraftKeyPrefix string        `mapstructure:"draft_key_prefix"`
}

// WorkflowConfig holds settings for the approval workflow engine.
type WorkflowConfig struct {
	// Applications stuck in submitted/pending longer than ExpiryWindow are
	// moved to expired by the maintenance sweep.
	ExpiryWindow  time.Duration `mapstructure:"expiry_window"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// AutoApprovalConfig holds settings for the trust-score auto-approval sweep.
type AutoApprovalConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	MinOwnerRating float64       `mapstructure:"min_owner_rating"`
	SystemActor    string        `mapstructure:"system_actor"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

// NotificationConfig holds settings for the notification dispatcher.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	Managers struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"managers"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// RolesConfig holds settings for the role/group admin API.
type RolesConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// SearchConfig holds settings for the customer-facing restaurant index.
type SearchConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

// ServerConfig holds settings for the metrics/debug HTTP endpoint.
type ServerConfig struct {
	MetricsAddress string `mapstructure:"metrics_address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
