// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/pingcap/mysqlx/lib/util/errors"
)

// FLOAT and DOUBLE travel as little-endian IEEE-754. DECIMAL is packed BCD:
// one scale byte, then two digits per byte, closed by a sign nibble 0xC
// (positive) or 0xD (negative), with a 0x0 filler nibble when the digit
// count is even.

func DecodeFloat64(f Format, data []byte) (float64, error) {
	if f.Type != TypeFloat {
		return 0, errors.WithStack(ErrTypeMismatch)
	}
	switch f.Fmt {
	case FloatKindDouble:
		if len(data) != 8 {
			return 0, errors.WithStack(ErrMalformedValue)
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(data)), nil
	case FloatKindFloat:
		if len(data) != 4 {
			return 0, errors.WithStack(ErrMalformedValue)
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data))), nil
	case FloatKindDecimal:
		s, err := DecimalString(data)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errors.Wrap(ErrMalformedValue, err)
		}
		return v, nil
	}
	return 0, errors.WithStack(ErrTypeMismatch)
}

func DecodeFloat32(f Format, data []byte) (float32, error) {
	if f.Type != TypeFloat {
		return 0, errors.WithStack(ErrTypeMismatch)
	}
	switch f.Fmt {
	case FloatKindFloat:
		if len(data) != 4 {
			return 0, errors.WithStack(ErrMalformedValue)
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(data)), nil
	case FloatKindDouble:
		// converting DOUBLE down to float32 loses precision
		return 0, errors.Wrapf(ErrValueOverflow, "DOUBLE value requested as float32")
	case FloatKindDecimal:
		s, err := DecimalString(data)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return 0, errors.Wrap(ErrMalformedValue, err)
		}
		return float32(v), nil
	}
	return 0, errors.WithStack(ErrTypeMismatch)
}

func EncodeFloat32(f Format, v float32) ([]byte, error) {
	if f.Type != TypeFloat {
		return nil, errors.WithStack(ErrTypeMismatch)
	}
	switch f.Fmt {
	case FloatKindFloat:
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(v)), nil
	case FloatKindDouble:
		return binary.LittleEndian.AppendUint64(nil, math.Float64bits(float64(v))), nil
	}
	return nil, errors.WithStack(ErrTypeMismatch)
}

func EncodeFloat64(f Format, v float64) ([]byte, error) {
	if f.Type != TypeFloat {
		return nil, errors.WithStack(ErrTypeMismatch)
	}
	switch f.Fmt {
	case FloatKindDouble:
		return binary.LittleEndian.AppendUint64(nil, math.Float64bits(v)), nil
	case FloatKindFloat:
		return nil, errors.Wrapf(ErrValueOverflow, "float64 value does not fit a FLOAT column")
	}
	return nil, errors.WithStack(ErrTypeMismatch)
}

// DecimalString renders a packed BCD decimal as its textual form, e.g.
// "-123.45". Malformed inputs (no sign nibble, digits after the sign,
// scale beyond the digit count) are rejected.
func DecimalString(data []byte) (string, error) {
	if len(data) < 2 {
		return "", errors.WithStack(ErrMalformedValue)
	}
	scale := int(data[0])
	var digits strings.Builder
	var sign byte
	for _, b := range data[1:] {
		for _, nib := range [2]byte{b >> 4, b & 0x0f} {
			if sign != 0 {
				if nib != 0 {
					return "", errors.WithStack(ErrMalformedValue)
				}
				continue
			}
			switch {
			case nib <= 9:
				digits.WriteByte('0' + nib)
			case nib == 0x0c || nib == 0x0d:
				sign = nib
			default:
				return "", errors.WithStack(ErrMalformedValue)
			}
		}
	}
	if sign == 0 {
		return "", errors.WithStack(ErrMalformedValue)
	}
	ds := digits.String()
	if scale > len(ds) {
		return "", errors.WithStack(ErrMalformedValue)
	}
	var out strings.Builder
	if sign == 0x0d {
		out.WriteByte('-')
	}
	intPart := ds[:len(ds)-scale]
	if intPart == "" {
		intPart = "0"
	}
	out.WriteString(intPart)
	if scale > 0 {
		out.WriteByte('.')
		out.WriteString(ds[len(ds)-scale:])
	}
	return out.String(), nil
}
