package infra

import (
	"fmt"
	"os"

	"fxlink/internal/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// InstrumentConfig declares one simulated instrument. Unset decimal
// fields are filled with defaults by the simulator.
type InstrumentConfig struct {
	Symbol            string          `yaml:"symbol"`
	Digits            int             `yaml:"digits"`
	BasePrice         decimal.Decimal `yaml:"base_price"`
	SpreadPoints      int64           `yaml:"spread_points"`
	Volatility        decimal.Decimal `yaml:"volatility"` // per-tick relative step, e.g. 0.0001
	ContractSize      decimal.Decimal `yaml:"contract_size"`
	TickValue         decimal.Decimal `yaml:"tick_value"`
	TickValueProfit   decimal.Decimal `yaml:"tick_value_profit"`
	TickValueLoss     decimal.Decimal `yaml:"tick_value_loss"`
	VolumeMin         decimal.Decimal `yaml:"volume_min"`
	VolumeMax         decimal.Decimal `yaml:"volume_max"`
	VolumeStep        decimal.Decimal `yaml:"volume_step"`
	MarginInitial     decimal.Decimal `yaml:"margin_initial"`
	MarginMaintenance decimal.Decimal `yaml:"margin_maintenance"`
	StopsLevel        int64           `yaml:"stops_level"`
	FreezeLevel       int64           `yaml:"freeze_level"`
}

// Config holds the full application configuration. Values are loaded
// from YAML, then sensitive entries are overridden from the environment.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Terminal struct {
		Mode string `yaml:"mode"` // "sim" or "bridge"

		Bridge struct {
			WSURL         string `yaml:"ws_url"`
			AuthToken     string `yaml:"auth_token"`
			ReqTimeoutMS  int    `yaml:"req_timeout_ms"`
			PingInterval  int    `yaml:"ping_interval_sec"`
			ReadTimeout   int    `yaml:"read_timeout_sec"`
			MaxRetrySlots int    `yaml:"max_retry_slots"`
		} `yaml:"bridge"`

		Sim struct {
			TickIntervalMS int                `yaml:"tick_interval_ms"`
			Seed           int64              `yaml:"seed"` // 0 = time-based
			Instruments    []InstrumentConfig `yaml:"instruments"`
		} `yaml:"sim"`

		Symbols []string `yaml:"symbols"`
	} `yaml:"terminal"`

	Watch struct {
		Timeframe          string `yaml:"timeframe"` // "M1", "H1", ...
		HistoryLimit       int    `yaml:"history_limit"`
		SnapshotIntervalMS int    `yaml:"snapshot_interval_ms"`
		MaxSpreadPoints    int64  `yaml:"max_spread_points"`
		StaleAfterSec      int    `yaml:"stale_after_sec"`
		MaxFailStreak      int    `yaml:"max_fail_streak"`
		SignalPeriod       int    `yaml:"signal_period"`
		RefreshIntervalSec int    `yaml:"refresh_interval_sec"`
	} `yaml:"watch"`

	Storage struct {
		Enabled       bool   `yaml:"enabled"`
		Path          string `yaml:"path"`
		RecentPreload int    `yaml:"recent_preload"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	switch c.Terminal.Mode {
	case "sim":
		if len(c.Terminal.Sim.Instruments) == 0 {
			return fmt.Errorf("sim mode requires at least one instrument")
		}
		if c.Terminal.Sim.TickIntervalMS <= 0 {
			return fmt.Errorf("sim tick interval must be positive")
		}
	case "bridge":
		url := c.Terminal.Bridge.WSURL
		if url == "" || (!hasPrefix(url, "ws://") && !hasPrefix(url, "wss://")) {
			return fmt.Errorf("invalid bridge WS URL: %s", url)
		}
	default:
		return fmt.Errorf("unknown terminal mode: %q", c.Terminal.Mode)
	}

	if len(c.Terminal.Symbols) == 0 {
		return fmt.Errorf("at least one watched symbol is required")
	}

	if c.Watch.Timeframe != "" {
		if _, err := domain.ParseTimeframe(c.Watch.Timeframe); err != nil {
			return err
		}
	}

	if c.Watch.SnapshotIntervalMS < 0 {
		return fmt.Errorf("snapshot interval must not be negative")
	}
	if c.Watch.HistoryLimit < 0 {
		return fmt.Errorf("history limit must not be negative")
	}

	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment variable overrides when present
func overrideWithEnv(cfg *Config) {
	if mode := os.Getenv("FXLINK_TERMINAL_MODE"); mode != "" {
		cfg.Terminal.Mode = mode
	}
	if url := os.Getenv("FXLINK_BRIDGE_URL"); url != "" {
		cfg.Terminal.Bridge.WSURL = url
	}
	if token := os.Getenv("FXLINK_BRIDGE_TOKEN"); token != "" {
		cfg.Terminal.Bridge.AuthToken = token
	}
	if level := os.Getenv("FXLINK_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if path := os.Getenv("FXLINK_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
}
