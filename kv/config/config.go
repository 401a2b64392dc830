package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
)

type Config struct {
	LogLevel string `toml:"log-level"`
	Engine   Engine `toml:"engine"` // Engine options.
	Txn      Txn    `toml:"txn"`    // Transaction layer options.
}

type Engine struct {
	DBPath         string `toml:"db-path"`         // Directory to store the data in. Should exist and be writable.
	ValueThreshold int    `toml:"value-threshold"` // If value size >= this threshold, only store value offsets in tree.
	MaxTableSize   int64  `toml:"max-table-size"`  // Each table is at most this size.
	NumMemTables   int    `toml:"num-mem-tables"`  // Maximum number of tables to keep in memory, before stalling.
	NumL0Tables    int    `toml:"num-L0-tables"`   // Maximum number of Level 0 tables before we start compacting.
	VlogFileSize   int64  `toml:"vlog-file-size"`  // Value log file size.
	SyncWrite      bool   `toml:"sync-write"`      // Sync all writes to disk.
	NumCompactors  int    `toml:"num-compactors"`
}

type Txn struct {
	// CollapseRollback enables replacing a previous standalone rollback record
	// with one folded into a later write, to bound history size.
	CollapseRollback bool `toml:"collapse-rollback"`
}

const MB = 1024 * 1024

var DefaultConf = Config{
	LogLevel: "info",
	Engine: Engine{
		DBPath:         "/tmp/mistkv",
		ValueThreshold: 256,
		MaxTableSize:   64 * MB,
		NumMemTables:   3,
		NumL0Tables:    4,
		VlogFileSize:   256 * MB,
		SyncWrite:      true,
		NumCompactors:  1,
	},
	Txn: Txn{
		CollapseRollback: true,
	},
}

// NewDefaultConfig returns a copy of the default configuration.
func NewDefaultConfig() *Config {
	conf := DefaultConf
	return &conf
}

// Load reads a TOML config file over the defaults. Keys absent from the file
// keep their default values.
func Load(path string) (*Config, error) {
	conf := NewDefaultConfig()
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, errors.WithStack(err)
	}
	return conf, nil
}
