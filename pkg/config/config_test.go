// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Check())
	require.EqualValues(t, 16, cfg.Client.PrefetchSize)
	require.Equal(t, 1000, cfg.Client.CompressionThreshold)
	require.Empty(t, cfg.Client.Compression)
}

func TestConfigFromBytes(t *testing.T) {
	data := `
[client]
prefetch-size = 64
compression = "zstd_stream"
default-schema = "sales"
skip-errors = [1051, 1146]

[log]
level = "debug"
`
	cfg, err := FromBytes([]byte(data))
	require.NoError(t, err)
	require.EqualValues(t, 64, cfg.Client.PrefetchSize)
	require.Equal(t, "zstd_stream", cfg.Client.Compression)
	require.Equal(t, "sales", cfg.Client.DefaultSchema)
	require.Equal(t, []uint32{1051, 1146}, cfg.Client.SkipErrors)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestConfigCheck(t *testing.T) {
	tests := []struct {
		mutate func(*Config)
		err    error
	}{
		{
			mutate: func(cfg *Config) { cfg.Client.Compression = "lz4_message" },
			err:    ErrUnsupportedCompression,
		},
		{
			mutate: func(cfg *Config) { cfg.Client.CompressionThreshold = -1 },
			err:    ErrInvalidConfigValue,
		},
		{
			mutate: func(cfg *Config) { cfg.Client.ConnBufferSize = 100 },
			err:    ErrInvalidConfigValue,
		},
		{
			mutate: func(cfg *Config) { cfg.Client.ConnBufferSize = 32 * 1024 * 1024 },
			err:    ErrInvalidConfigValue,
		},
	}
	for i, test := range tests {
		cfg := NewConfig()
		test.mutate(cfg)
		require.ErrorIs(t, cfg.Check(), test.err, "%dth test failed", i)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Client.Compression = "deflate_stream"
	cfg.Client.SkipErrors = []uint32{1064}
	data, err := cfg.ToBytes()
	require.NoError(t, err)
	parsed, err := FromBytes(data)
	require.NoError(t, err)
	require.Equal(t, cfg, parsed)
}

func TestConfigClone(t *testing.T) {
	cfg := NewConfig()
	cfg.Client.SkipErrors = []uint32{1064}
	clone := cfg.Clone()
	clone.Client.SkipErrors[0] = 9999
	require.Equal(t, []uint32{1064}, cfg.Client.SkipErrors)
}
