package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Export    ExportConfig    `mapstructure:"export"`
	Location  LocationConfig  `mapstructure:"location"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Prompt    PromptConfig    `mapstructure:"prompt"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL             string `mapstructure:"url"`
	LocationSubject string `mapstructure:"location_subject"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ExportConfig holds the document defaults applied when a call leaves an
// option empty.
type ExportConfig struct {
	LineColor        string  `mapstructure:"line_color"`
	LineWidth        float64 `mapstructure:"line_width"`
	TrackName        string  `mapstructure:"track_name"`
	TrackDescription string  `mapstructure:"track_description"`
	OutputDir        string  `mapstructure:"output_dir"`
	MapsBaseURL      string  `mapstructure:"maps_base_url"`
}

type LocationConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaximumAge   time.Duration `mapstructure:"maximum_age"`
	HighAccuracy bool          `mapstructure:"high_accuracy"`
}

// SnapshotConfig names the map layers a PNG export touches.
type SnapshotConfig struct {
	Width           int      `mapstructure:"width"`
	Height          int      `mapstructure:"height"`
	RouteSource     string   `mapstructure:"route_source"`
	TrailLayers     []string `mapstructure:"trail_layers"`
	ProgressLayer   string   `mapstructure:"progress_layer"`
	OverlayLayers   []string `mapstructure:"overlay_layers"`
	TrailWidth      float64  `mapstructure:"trail_width"`
	ProgressWidth   float64  `mapstructure:"progress_width"`
	PaddingRatio    float64  `mapstructure:"padding_ratio"`
	FallbackDataset string   `mapstructure:"fallback_dataset"`
}

type PromptConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "trails")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "trailexport")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.location_subject", "trailexport.location.request")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.task_queue", "trail-export-queue")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("export.line_color", "#FF0000")
	v.SetDefault("export.line_width", 3)
	v.SetDefault("export.track_name", "Trail Route")
	v.SetDefault("export.track_description", "Exported trail route")
	v.SetDefault("export.output_dir", "exports")
	v.SetDefault("export.maps_base_url", "https://www.google.com/maps/dir/")
	v.SetDefault("location.ttl", 5*time.Minute)
	v.SetDefault("location.timeout", 10*time.Second)
	v.SetDefault("location.maximum_age", 5*time.Minute)
	v.SetDefault("location.high_accuracy", true)
	v.SetDefault("snapshot.width", 1280)
	v.SetDefault("snapshot.height", 960)
	v.SetDefault("snapshot.route_source", "trails")
	v.SetDefault("snapshot.trail_layers", []string{"trail-line-casing", "trail-line"})
	v.SetDefault("snapshot.progress_layer", "trail-progress")
	v.SetDefault("snapshot.overlay_layers", []string{
		"trail-progress-animated", "trail-progress", "admin-boundaries", "admin-boundaries-labels",
	})
	v.SetDefault("snapshot.trail_width", 6)
	v.SetDefault("snapshot.progress_width", 7)
	v.SetDefault("snapshot.padding_ratio", 0.08)
	v.SetDefault("snapshot.fallback_dataset", `{"type":"FeatureCollection","features":[]}`)
	v.SetDefault("prompt.timeout", 2*time.Minute)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: TRAILEXPORT_DATABASE_HOST → database.host
	v.SetEnvPrefix("TRAILEXPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Export.LineWidth <= 0 {
		errs = append(errs, "export.line_width must be positive")
	}
	if c.Location.TTL <= 0 {
		errs = append(errs, "location.ttl must be positive")
	}
	if c.Location.Timeout <= 0 {
		errs = append(errs, "location.timeout must be positive")
	}
	if c.Snapshot.PaddingRatio < 0 || c.Snapshot.PaddingRatio >= 0.5 {
		errs = append(errs, fmt.Sprintf("snapshot.padding_ratio must be in [0, 0.5), got %v", c.Snapshot.PaddingRatio))
	}
	if len(c.Snapshot.TrailLayers) == 0 {
		errs = append(errs, "snapshot.trail_layers must name at least one layer")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
