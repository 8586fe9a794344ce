// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/mysqlx/lib/util/errors"
	"github.com/pingcap/mysqlx/pkg/proto"
	"github.com/pingcap/mysqlx/pkg/result"
)

var (
	ErrUnsupportedCompression = errors.New("unsupported compression algorithm")
	ErrInvalidConfigValue     = errors.New("invalid config value")
)

type Config struct {
	Client Client `yaml:"client,omitempty" toml:"client,omitempty" json:"client,omitempty"`
	Log    Log    `yaml:"log,omitempty" toml:"log,omitempty" json:"log,omitempty"`
}

type Client struct {
	// PrefetchSize is the number of rows pulled from the wire per batch.
	PrefetchSize uint64 `yaml:"prefetch-size,omitempty" toml:"prefetch-size,omitempty" json:"prefetch-size,omitempty"`
	// Compression selects the wire compression algorithm; empty disables it.
	Compression string `yaml:"compression,omitempty" toml:"compression,omitempty" json:"compression,omitempty"`
	// CompressionThreshold is the minimum frame size worth compressing.
	CompressionThreshold int    `yaml:"compression-threshold,omitempty" toml:"compression-threshold,omitempty" json:"compression-threshold,omitempty"`
	ConnBufferSize       int    `yaml:"conn-buffer-size,omitempty" toml:"conn-buffer-size,omitempty" json:"conn-buffer-size,omitempty"`
	DefaultSchema        string `yaml:"default-schema,omitempty" toml:"default-schema,omitempty" json:"default-schema,omitempty"`
	// PreparedStatements enables the server-side prepared statement lifecycle
	// for repeatedly executed statements.
	PreparedStatements bool `yaml:"prepared-statements,omitempty" toml:"prepared-statements,omitempty" json:"prepared-statements,omitempty"`
	// SkipErrors lists server error codes that are logged and swallowed
	// instead of failing the statement.
	SkipErrors []uint32 `yaml:"skip-errors,omitempty" toml:"skip-errors,omitempty" json:"skip-errors,omitempty"`
}

type Log struct {
	Encoder string  `yaml:"encoder,omitempty" toml:"encoder,omitempty" json:"encoder,omitempty"`
	Level   string  `yaml:"level,omitempty" toml:"level,omitempty" json:"level,omitempty"`
	LogFile LogFile `yaml:"log-file,omitempty" toml:"log-file,omitempty" json:"log-file,omitempty"`
}

type LogFile struct {
	Filename   string `yaml:"filename,omitempty" toml:"filename,omitempty" json:"filename,omitempty"`
	MaxSize    int    `yaml:"max-size,omitempty" toml:"max-size,omitempty" json:"max-size,omitempty"`
	MaxDays    int    `yaml:"max-days,omitempty" toml:"max-days,omitempty" json:"max-days,omitempty"`
	MaxBackups int    `yaml:"max-backups,omitempty" toml:"max-backups,omitempty" json:"max-backups,omitempty"`
}

func NewConfig() *Config {
	var cfg Config

	cfg.Client.PrefetchSize = result.DefaultPrefetch
	cfg.Client.CompressionThreshold = 1000

	cfg.Log.Level = "info"
	cfg.Log.LogFile.MaxSize = 300
	cfg.Log.LogFile.MaxDays = 3
	cfg.Log.LogFile.MaxBackups = 3

	return &cfg
}

// FromBytes parses a TOML document on top of the defaults.
func FromBytes(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Clone() *Config {
	newCfg := *cfg
	newCfg.Client.SkipErrors = make([]uint32, len(cfg.Client.SkipErrors))
	copy(newCfg.Client.SkipErrors, cfg.Client.SkipErrors)
	return &newCfg
}

func (cfg *Config) Check() error {
	switch cfg.Client.Compression {
	case "", proto.CompressionDeflate, proto.CompressionZstd:
	default:
		return errors.Wrapf(ErrUnsupportedCompression, "%s", cfg.Client.Compression)
	}

	if cfg.Client.CompressionThreshold < 0 {
		return errors.Wrapf(ErrInvalidConfigValue, "compression-threshold must not be negative")
	}

	if cfg.Client.ConnBufferSize > 0 && (cfg.Client.ConnBufferSize > 16*1024*1024 || cfg.Client.ConnBufferSize < 1024) {
		return errors.Wrapf(ErrInvalidConfigValue, "conn-buffer-size must be between 1K and 16M")
	}

	if cfg.Client.PrefetchSize == 0 {
		cfg.Client.PrefetchSize = result.DefaultPrefetch
	}

	return nil
}

func (cfg *Config) ToBytes() ([]byte, error) {
	b := new(bytes.Buffer)
	err := toml.NewEncoder(b).Encode(cfg)
	return b.Bytes(), errors.WithStack(err)
}
