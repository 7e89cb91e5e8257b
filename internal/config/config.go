package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/gravitas-games/sortshift/internal/floor"
	"github.com/gravitas-games/sortshift/pkg/models"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Config holds all server configuration
type Config struct {
	Server   ServerConfig               `yaml:"server"`
	JWT      JWTConfig                  `yaml:"jwt"`
	Redis    RedisConfig                `yaml:"redis"`
	Storage  StorageConfig              `yaml:"storage"`
	Relay    RelayConfig                `yaml:"relay"`
	Log      LogConfig                  `yaml:"log"`
	Session  SessionConfig              `yaml:"session"`
	Game     GameConfig                 `yaml:"game"`
	Floor    floor.Layout               `yaml:"floor"`
	Catalog  []models.ItemRecord        `yaml:"catalog"`
	Comments map[string][]string        `yaml:"comments"` // Keyed by item name
	Upgrades []models.UpgradeDefinition `yaml:"upgrades"`
	Tutorial TutorialConfig             `yaml:"tutorial"`
}

// ServerConfig holds server-specific settings
type ServerConfig struct {
	Host           string   `yaml:"host" env:"SORTSHIFT_HOST"`
	Port           int      `yaml:"port" env:"SORTSHIFT_PORT"`
	TickRate       int      `yaml:"tick_rate" env:"SORTSHIFT_TICK_RATE"` // Hz
	AllowedOrigins []string `yaml:"allowed_origins" env:"SORTSHIFT_ALLOWED_ORIGINS" envSeparator:","`
}

// JWTConfig holds JWT authentication settings
type JWTConfig struct {
	Issuer              string `yaml:"issuer" env:"SORTSHIFT_JWT_ISSUER"`
	PublicKeyURL        string `yaml:"public_key_url" env:"SORTSHIFT_JWT_PUBLIC_KEY_URL"`
	PublicKeyRefreshHrs int    `yaml:"public_key_refresh_hours"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address         string `yaml:"address" env:"SORTSHIFT_REDIS_ADDRESS"`
	Password        string `yaml:"password" env:"SORTSHIFT_REDIS_PASSWORD"`
	DB              int    `yaml:"db" env:"SORTSHIFT_REDIS_DB"`
	BlacklistPrefix string `yaml:"blacklist_prefix"`
	KeyPrefix       string `yaml:"key_prefix"` // Prefix for save data keys
}

// StorageConfig selects where save data lives
type StorageConfig struct {
	Driver        string        `yaml:"driver" env:"SORTSHIFT_STORAGE_DRIVER"` // memory, redis or sqlite
	SQLitePath    string        `yaml:"sqlite_path" env:"SORTSHIFT_SQLITE_PATH"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// RelayConfig holds the optional NATS event relay settings
type RelayConfig struct {
	Enabled       bool   `yaml:"enabled" env:"SORTSHIFT_RELAY_ENABLED"`
	URL           string `yaml:"url" env:"SORTSHIFT_NATS_URL"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level" env:"SORTSHIFT_LOG_LEVEL"`
}

// SessionConfig holds connection limits for the shift
type SessionConfig struct {
	MaxPlayers   int     `yaml:"max_players"`
	CommandRate  float64 `yaml:"command_rate"` // commands per second per connection
	CommandBurst int     `yaml:"command_burst"`
	CommandQueue int     `yaml:"command_queue"` // pending commands the game loop buffers
}

// GameConfig holds the rules of a shift
type GameConfig struct {
	Seed             int64         `yaml:"seed" env:"SORTSHIFT_SEED"` // 0 picks a seed at startup
	Stations         int           `yaml:"stations"`
	DeliveryDuration time.Duration `yaml:"delivery_duration"`
	LowTimeThreshold time.Duration `yaml:"low_time_threshold"`
	ScanDuration     time.Duration `yaml:"scan_duration"`
	PostAcceptDelay  time.Duration `yaml:"post_accept_delay"`
	RejectDelay      time.Duration `yaml:"reject_delay"`
	SkipDelay        time.Duration `yaml:"skip_delay"`
	FallbackPrice    int           `yaml:"fallback_price"`
	StartingBalance  int           `yaml:"starting_balance"`
	CrateCapacity    int           `yaml:"crate_capacity"`
	Wholesale        float64       `yaml:"wholesale"`
	EjectForce       float64       `yaml:"eject_force"`
	RequestQuota     int           `yaml:"request_quota"` // 0 disables ending a round early
	GeneratingText   string        `yaml:"generating_text"`
}

// TutorialConfig describes the first-shift walkthrough
type TutorialConfig struct {
	Enabled  bool   `yaml:"enabled" env:"SORTSHIFT_TUTORIAL"`
	Prompt   string `yaml:"prompt"`
	Item     string `yaml:"item"`
	ItemName string `yaml:"item_name"`
}

// Load reads configuration from a YAML file, then applies environment
// overrides and defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	// Set defaults if not provided
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.TickRate == 0 {
		cfg.Server.TickRate = 20
	}
	if cfg.JWT.PublicKeyRefreshHrs == 0 {
		cfg.JWT.PublicKeyRefreshHrs = 24
	}
	if cfg.Redis.BlacklistPrefix == "" {
		cfg.Redis.BlacklistPrefix = "blacklist:"
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "sortshift:"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverMemory
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "./data/sortshift.db"
	}
	if cfg.Storage.FlushInterval == 0 {
		cfg.Storage.FlushInterval = 30 * time.Second
	}
	if cfg.Relay.SubjectPrefix == "" {
		cfg.Relay.SubjectPrefix = "sortshift.events"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Session.MaxPlayers == 0 {
		cfg.Session.MaxPlayers = 8
	}
	if cfg.Session.CommandRate == 0 {
		cfg.Session.CommandRate = 30
	}
	if cfg.Session.CommandBurst == 0 {
		cfg.Session.CommandBurst = 60
	}
	if cfg.Session.CommandQueue == 0 {
		cfg.Session.CommandQueue = 256
	}

	g := &cfg.Game
	if g.Stations == 0 {
		g.Stations = 1
	}
	if g.DeliveryDuration == 0 {
		g.DeliveryDuration = 60 * time.Second
	}
	if g.LowTimeThreshold == 0 {
		g.LowTimeThreshold = 10 * time.Second
	}
	if g.ScanDuration == 0 {
		g.ScanDuration = 1500 * time.Millisecond
	}
	if g.PostAcceptDelay == 0 {
		g.PostAcceptDelay = time.Second
	}
	if g.RejectDelay == 0 {
		g.RejectDelay = 1500 * time.Millisecond
	}
	if g.SkipDelay == 0 {
		g.SkipDelay = 2 * time.Second
	}
	if g.FallbackPrice == 0 {
		g.FallbackPrice = 10
	}
	if g.StartingBalance == 0 {
		g.StartingBalance = 100
	}
	if g.CrateCapacity == 0 {
		g.CrateCapacity = 5
	}
	if g.Wholesale == 0 {
		g.Wholesale = 0.5
	}
	if g.EjectForce == 0 {
		g.EjectForce = 6
	}
	if g.GeneratingText == "" {
		g.GeneratingText = "Generating new request..."
	}

	if len(cfg.Upgrades) == 0 {
		cfg.Upgrades = DefaultUpgrades()
	}
	if cfg.Tutorial.Prompt == "" {
		cfg.Tutorial.Prompt = "Welcome! Bring the marked box to the scanner."
	}
}

// Validate rejects settings the server cannot run with
func (cfg *Config) Validate() error {
	if cfg.Server.TickRate < 1 || cfg.Server.TickRate > 240 {
		return fmt.Errorf("server.tick_rate must be between 1 and 240, got %d", cfg.Server.TickRate)
	}
	switch cfg.Storage.Driver {
	case DriverMemory, DriverRedis, DriverSQLite:
	default:
		return fmt.Errorf("storage.driver %q is not one of memory, redis, sqlite", cfg.Storage.Driver)
	}
	if cfg.Storage.Driver == DriverRedis && cfg.Redis.Address == "" {
		return fmt.Errorf("storage.driver is redis but redis.address is empty")
	}
	if cfg.Game.Stations < 1 {
		return fmt.Errorf("game.stations must be at least 1")
	}
	if cfg.Game.LowTimeThreshold > cfg.Game.DeliveryDuration {
		return fmt.Errorf("game.low_time_threshold exceeds game.delivery_duration")
	}
	for _, u := range cfg.Upgrades {
		if u.ID == "" || u.MaxLevel < 1 {
			return fmt.Errorf("upgrade %q needs an id and max_level >= 1", u.Name)
		}
	}
	for name := range cfg.Comments {
		if !models.ParseItemType(name).Valid() {
			return fmt.Errorf("comments: unknown item %q", name)
		}
	}
	if cfg.Tutorial.Item != "" && !models.ParseItemType(cfg.Tutorial.Item).Valid() {
		return fmt.Errorf("tutorial.item: unknown item %q", cfg.Tutorial.Item)
	}
	return nil
}

// CommentLines returns the comment bank keyed by item type
func (cfg *Config) CommentLines() map[models.ItemType][]string {
	out := make(map[models.ItemType][]string, len(cfg.Comments))
	for name, lines := range cfg.Comments {
		t := models.ParseItemType(strings.TrimSpace(name))
		if t.Valid() {
			out[t] = append(out[t], lines...)
		}
	}
	return out
}

// Addr returns host:port for the listener
func (cfg *Config) Addr() string {
	return fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
}

// DefaultUpgrades is the upgrade shop used when none are configured
func DefaultUpgrades() []models.UpgradeDefinition {
	return []models.UpgradeDefinition{
		{ID: "arm", Name: "Stronger Arm", Kind: models.UpgradeThrowStrength, MaxLevel: 5, BaseCost: 50, CostMultiplier: 1.5},
		{ID: "boots", Name: "Running Shoes", Kind: models.UpgradeMoveSpeed, MaxLevel: 5, BaseCost: 40, CostMultiplier: 1.5},
		{ID: "clock", Name: "Overtime", Kind: models.UpgradeDeliveryTimeBonus, MaxLevel: 3, BaseCost: 80, CostMultiplier: 2},
		{ID: "scanner", Name: "Laser Scanner", Kind: models.UpgradeScanSpeed, MaxLevel: 4, BaseCost: 60, CostMultiplier: 1.75},
	}
}
