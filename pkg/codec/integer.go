// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"math"

	"github.com/pingcap/mysqlx/lib/util/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Integer values travel as protobuf varints: zig-zag encoded for signed
// columns, plain for unsigned ones. A value that does not fit the requested
// target width is an error, never a silent wrap.

func consumeFullVarint(data []byte) (uint64, error) {
	v, n := protowire.ConsumeVarint(data)
	if n < 0 || n != len(data) {
		return 0, errors.WithStack(ErrMalformedValue)
	}
	return v, nil
}

func DecodeInt64(f Format, data []byte) (int64, error) {
	if f.Type != TypeInteger {
		return 0, errors.WithStack(ErrTypeMismatch)
	}
	raw, err := consumeFullVarint(data)
	if err != nil {
		return 0, err
	}
	if f.Unsigned {
		if raw > math.MaxInt64 {
			return 0, errors.WithStack(ErrValueOverflow)
		}
		return int64(raw), nil
	}
	return protowire.DecodeZigZag(raw), nil
}

func DecodeInt32(f Format, data []byte) (int32, error) {
	v, err := DecodeInt64(f, data)
	if err != nil {
		return 0, err
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, errors.WithStack(ErrValueOverflow)
	}
	return int32(v), nil
}

func DecodeInt16(f Format, data []byte) (int16, error) {
	v, err := DecodeInt64(f, data)
	if err != nil {
		return 0, err
	}
	if v < math.MinInt16 || v > math.MaxInt16 {
		return 0, errors.WithStack(ErrValueOverflow)
	}
	return int16(v), nil
}

func DecodeInt8(f Format, data []byte) (int8, error) {
	v, err := DecodeInt64(f, data)
	if err != nil {
		return 0, err
	}
	if v < math.MinInt8 || v > math.MaxInt8 {
		return 0, errors.WithStack(ErrValueOverflow)
	}
	return int8(v), nil
}

func DecodeUint64(f Format, data []byte) (uint64, error) {
	if f.Type != TypeInteger {
		return 0, errors.WithStack(ErrTypeMismatch)
	}
	raw, err := consumeFullVarint(data)
	if err != nil {
		return 0, err
	}
	if f.Unsigned {
		return raw, nil
	}
	v := protowire.DecodeZigZag(raw)
	if v < 0 {
		return 0, errors.WithStack(ErrValueOverflow)
	}
	return uint64(v), nil
}

func DecodeUint32(f Format, data []byte) (uint32, error) {
	v, err := DecodeUint64(f, data)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, errors.WithStack(ErrValueOverflow)
	}
	return uint32(v), nil
}

func DecodeUint16(f Format, data []byte) (uint16, error) {
	v, err := DecodeUint64(f, data)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint16 {
		return 0, errors.WithStack(ErrValueOverflow)
	}
	return uint16(v), nil
}

func DecodeUint8(f Format, data []byte) (uint8, error) {
	v, err := DecodeUint64(f, data)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint8 {
		return 0, errors.WithStack(ErrValueOverflow)
	}
	return uint8(v), nil
}

func EncodeInt(f Format, v int64) ([]byte, error) {
	if f.Type != TypeInteger {
		return nil, errors.WithStack(ErrTypeMismatch)
	}
	if f.Unsigned {
		if v < 0 {
			return nil, errors.WithStack(ErrValueOverflow)
		}
		return protowire.AppendVarint(nil, uint64(v)), nil
	}
	return protowire.AppendVarint(nil, protowire.EncodeZigZag(v)), nil
}

func EncodeUint(f Format, v uint64) ([]byte, error) {
	if f.Type != TypeInteger {
		return nil, errors.WithStack(ErrTypeMismatch)
	}
	if f.Unsigned {
		return protowire.AppendVarint(nil, v), nil
	}
	if v > math.MaxInt64 {
		return nil, errors.WithStack(ErrValueOverflow)
	}
	return protowire.AppendVarint(nil, protowire.EncodeZigZag(int64(v))), nil
}
