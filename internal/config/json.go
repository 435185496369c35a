package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/rosterkeeper/internal/flagx"
	"github.com/dmitrijs2005/rosterkeeper/internal/timex"
)

// JsonConfig mirrors Config for unmarshalling. Pointer fields distinguish
// "absent" from a zero value.
type JsonConfig struct {
	DatabasePath  *string         `json:"database_path"`
	LogLevel      *string         `json:"log_level"`
	AutoLockAfter *timex.Duration `json:"auto_lock_after"`
}

func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.DatabasePath != nil {
		cfg.DatabasePath = *jc.DatabasePath
	}
	if jc.LogLevel != nil {
		cfg.LogLevel = *jc.LogLevel
	}
	if jc.AutoLockAfter != nil {
		cfg.AutoLockAfter = jc.AutoLockAfter.Duration
	}
	return nil
}
