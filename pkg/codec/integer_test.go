// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	sintFmt = Format{Type: TypeInteger}
	uintFmt = Format{Type: TypeInteger, Unsigned: true}
)

func TestIntegerRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 127, -128, 32767, -32768, math.MaxInt64, math.MinInt64} {
		data, err := EncodeInt(sintFmt, v)
		require.NoError(t, err)
		out, err := DecodeInt64(sintFmt, data)
		require.NoError(t, err)
		require.Equal(t, v, out)
	}
	for _, v := range []uint64{0, 255, 65535, math.MaxUint32, math.MaxUint64} {
		data, err := EncodeUint(uintFmt, v)
		require.NoError(t, err)
		out, err := DecodeUint64(uintFmt, data)
		require.NoError(t, err)
		require.Equal(t, v, out)
	}
}

func TestIntegerWidthOverflow(t *testing.T) {
	encode := func(v int64) []byte {
		data, err := EncodeInt(sintFmt, v)
		require.NoError(t, err)
		return data
	}

	v, err := DecodeInt8(sintFmt, encode(127))
	require.NoError(t, err)
	require.Equal(t, int8(127), v)
	_, err = DecodeInt8(sintFmt, encode(128))
	require.ErrorIs(t, err, ErrValueOverflow)
	_, err = DecodeInt8(sintFmt, encode(-129))
	require.ErrorIs(t, err, ErrValueOverflow)

	_, err = DecodeInt16(sintFmt, encode(32768))
	require.ErrorIs(t, err, ErrValueOverflow)
	_, err = DecodeInt32(sintFmt, encode(math.MaxInt32+1))
	require.ErrorIs(t, err, ErrValueOverflow)

	// signed source into unsigned targets
	_, err = DecodeUint64(sintFmt, encode(-1))
	require.ErrorIs(t, err, ErrValueOverflow)
	u8, err := DecodeUint8(sintFmt, encode(255))
	require.NoError(t, err)
	require.Equal(t, uint8(255), u8)
	_, err = DecodeUint8(sintFmt, encode(256))
	require.ErrorIs(t, err, ErrValueOverflow)

	// unsigned source into signed target
	big, err := EncodeUint(uintFmt, math.MaxInt64+1)
	require.NoError(t, err)
	_, err = DecodeInt64(uintFmt, big)
	require.ErrorIs(t, err, ErrValueOverflow)

	// encoding side
	_, err = EncodeInt(uintFmt, -1)
	require.ErrorIs(t, err, ErrValueOverflow)
	_, err = EncodeUint(sintFmt, math.MaxInt64+1)
	require.ErrorIs(t, err, ErrValueOverflow)
}

func TestIntegerMalformed(t *testing.T) {
	// truncated varint
	_, err := DecodeInt64(sintFmt, []byte{0x80})
	require.ErrorIs(t, err, ErrMalformedValue)
	// trailing garbage after the varint
	_, err = DecodeInt64(sintFmt, []byte{0x01, 0x01})
	require.ErrorIs(t, err, ErrMalformedValue)
	// wrong format
	_, err = DecodeInt64(Format{Type: TypeFloat}, []byte{0x01})
	require.ErrorIs(t, err, ErrTypeMismatch)
}
