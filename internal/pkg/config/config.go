package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/geowhisper/towers/internal/core/usecases"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Session   SessionConfig   `mapstructure:"session"`
	Proximity ProximityConfig `mapstructure:"proximity"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Log       LogConfig       `mapstructure:"log"`
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
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// GeocoderConfig configures reverse geocoding. An empty token disables it.
type GeocoderConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a geocoding token is configured.
func (g GeocoderConfig) Enabled() bool {
	return g.Token != ""
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// ProximityConfig holds the default radii (meters) and limits of proximity queries.
type ProximityConfig struct {
	NearbyPostsRadius float64       `mapstructure:"nearby_posts_radius_m"`
	NearbyPostsLimit  int           `mapstructure:"nearby_posts_limit"`
	MaxCandidates     int           `mapstructure:"max_candidates"`
	NearbyZonesRadius float64       `mapstructure:"nearby_zones_radius_m"`
	MaxPostsPerZone   int           `mapstructure:"max_posts_per_zone"`
	HotZoneCount      int           `mapstructure:"hot_zone_count"`
	HotZoneRadius     float64       `mapstructure:"hot_zone_radius_m"`
	HotZoneMinCount   int           `mapstructure:"hot_zone_min_count"`
	RecentWindowHours int           `mapstructure:"recent_window_hours"`
	CurrentZoneRadius float64       `mapstructure:"current_zone_radius_m"`
	ZonesCacheTTL     time.Duration `mapstructure:"zones_cache_ttl"`
}

// Usecase converts the section to the service configuration.
func (p ProximityConfig) Usecase() usecases.ProximityConfig {
	return usecases.ProximityConfig{
		NearbyPostsRadius: p.NearbyPostsRadius,
		NearbyPostsLimit:  p.NearbyPostsLimit,
		MaxCandidates:     p.MaxCandidates,
		NearbyZonesRadius: p.NearbyZonesRadius,
		MaxPostsPerZone:   p.MaxPostsPerZone,
		HotZoneCount:      p.HotZoneCount,
		HotZoneRadius:     p.HotZoneRadius,
		HotZoneMinCount:   p.HotZoneMinCount,
		RecentWindowHours: p.RecentWindowHours,
		CurrentZoneRadius: p.CurrentZoneRadius,
		ZonesCacheTTL:     p.ZonesCacheTTL,
	}
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from .env, an optional config file and
// environment variables, in increasing priority.
func Load(service string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: GEOWHISPER_DATABASE_HOST → database.host
	v.SetEnvPrefix("GEOWHISPER")
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

func setDefaults(v *viper.Viper, service string) {
	d := usecases.DefaultProximityConfig()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "geowhisper")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "geowhisper")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("geocoder.base_url", "https://api.mapbox.com")
	v.SetDefault("geocoder.token", "")
	v.SetDefault("geocoder.timeout", 5*time.Second)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("proximity.nearby_posts_radius_m", d.NearbyPostsRadius)
	v.SetDefault("proximity.nearby_posts_limit", d.NearbyPostsLimit)
	v.SetDefault("proximity.max_candidates", d.MaxCandidates)
	v.SetDefault("proximity.nearby_zones_radius_m", d.NearbyZonesRadius)
	v.SetDefault("proximity.max_posts_per_zone", d.MaxPostsPerZone)
	v.SetDefault("proximity.hot_zone_count", d.HotZoneCount)
	v.SetDefault("proximity.hot_zone_radius_m", d.HotZoneRadius)
	v.SetDefault("proximity.hot_zone_min_count", d.HotZoneMinCount)
	v.SetDefault("proximity.recent_window_hours", d.RecentWindowHours)
	v.SetDefault("proximity.current_zone_radius_m", d.CurrentZoneRadius)
	v.SetDefault("proximity.zones_cache_ttl", d.ZonesCacheTTL)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "zone-labels")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
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
	if c.Geocoder.Timeout <= 0 {
		errs = append(errs, "geocoder.timeout must be positive")
	}
	if c.Session.TTL < 0 {
		errs = append(errs, "session.ttl must not be negative")
	}

	p := c.Proximity
	for name, v := range map[string]float64{
		"proximity.nearby_posts_radius_m": p.NearbyPostsRadius,
		"proximity.nearby_zones_radius_m": p.NearbyZonesRadius,
		"proximity.hot_zone_radius_m":     p.HotZoneRadius,
		"proximity.current_zone_radius_m": p.CurrentZoneRadius,
	} {
		if v <= 0 {
			errs = append(errs, name+" must be positive")
		}
	}
	for name, v := range map[string]int{
		"proximity.nearby_posts_limit":  p.NearbyPostsLimit,
		"proximity.max_candidates":      p.MaxCandidates,
		"proximity.max_posts_per_zone":  p.MaxPostsPerZone,
		"proximity.hot_zone_count":      p.HotZoneCount,
		"proximity.recent_window_hours": p.RecentWindowHours,
	} {
		if v <= 0 {
			errs = append(errs, name+" must be positive")
		}
	}
	if p.HotZoneMinCount < 0 {
		errs = append(errs, "proximity.hot_zone_min_count must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
