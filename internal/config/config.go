package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SourceCSV   = "csv"
	SourceMySQL = "mysql"

	// MinHorizon and MaxHorizon bound the forecast horizon in days.
	MinHorizon = 1
	MaxHorizon = 90

	dateLayout = "2006-01-02"
)

var (
	instance *Config
	once     sync.Once
)

// Config is the service configuration read from config.yaml
type Config struct {
	Dataset struct {
		Source string `yaml:"source"`
		Path   string `yaml:"path"`
	} `yaml:"dataset"`
	Dashboard struct {
		DefaultStart string `yaml:"default_start"`
		DefaultEnd   string `yaml:"default_end"`
	} `yaml:"dashboard"`
	Forecast struct {
		DefaultHorizon int      `yaml:"default_horizon"`
		Series         []string `yaml:"series"`
	} `yaml:"forecast"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Stream   string `yaml:"stream"`
	} `yaml:"redis"`
}

func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		instance = &Config{}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file %s: %w", configPath, readErr)
			return
		}

		if parseErr := yaml.Unmarshal(data, instance); parseErr != nil {
			err = fmt.Errorf("failed to parse config: %w", parseErr)
			return
		}

		instance.applyDefaults()

		if validateErr := instance.validate(); validateErr != nil {
			err = validateErr
			return
		}
	})

	return instance, err
}

func Get() *Config {
	if instance == nil {
		panic("config not loaded - call config.Load() first")
	}
	return instance
}

func (c *Config) applyDefaults() {
	if c.Dataset.Source == "" {
		c.Dataset.Source = SourceCSV
	}
	if c.Forecast.DefaultHorizon == 0 {
		c.Forecast.DefaultHorizon = 30
	}
	if len(c.Forecast.Series) == 0 {
		c.Forecast.Series = []string{"First_Time_Visits", "Returning_Visits"}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Redis.Stream == "" {
		c.Redis.Stream = "forecast_runs"
	}
}

func (c *Config) validate() error {
	switch c.Dataset.Source {
	case SourceCSV:
		if c.Dataset.Path == "" {
			return fmt.Errorf("dataset.path cannot be empty for the csv source")
		}
	case SourceMySQL:
	default:
		return fmt.Errorf("dataset.source must be %q or %q, got %q", SourceCSV, SourceMySQL, c.Dataset.Source)
	}

	if c.Forecast.DefaultHorizon < MinHorizon || c.Forecast.DefaultHorizon > MaxHorizon {
		return fmt.Errorf("forecast.default_horizon must be between %d and %d, got %d",
			MinHorizon, MaxHorizon, c.Forecast.DefaultHorizon)
	}

	start, end, err := c.DefaultRange()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return fmt.Errorf("dashboard.default_start %s is after dashboard.default_end %s",
			c.Dashboard.DefaultStart, c.Dashboard.DefaultEnd)
	}
	return nil
}

// DefaultRange parses the dashboard default dates. Unset dates come back as zero times.
func (c *Config) DefaultRange() (start, end time.Time, err error) {
	if c.Dashboard.DefaultStart != "" {
		start, err = time.Parse(dateLayout, c.Dashboard.DefaultStart)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid dashboard.default_start: %w", err)
		}
	}
	if c.Dashboard.DefaultEnd != "" {
		end, err = time.Parse(dateLayout, c.Dashboard.DefaultEnd)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid dashboard.default_end: %w", err)
		}
	}
	return start, end, nil
}
