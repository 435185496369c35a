package config

import (
	"time"

	"github.com/dmitrijs2005/rosterkeeper/internal/common"
)

type Config struct {
	DatabasePath  string
	LogLevel      string
	AutoLockAfter time.Duration
}

func (c *Config) LoadDefaults() {
	c.DatabasePath = common.DefaultDatabaseFile
	c.LogLevel = "warn"
	c.AutoLockAfter = 10 * time.Minute
}

// LoadConfig applies defaults, then the JSON file named in args, then the
// flags in args. args excludes the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
