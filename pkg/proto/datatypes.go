// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package proto

import (
	"github.com/pingcap/mysqlx/lib/util/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Scalar value types.
const (
	ScalarSInt   uint32 = 1
	ScalarUInt   uint32 = 2
	ScalarNull   uint32 = 3
	ScalarOctets uint32 = 4
	ScalarDouble uint32 = 5
	ScalarFloat  uint32 = 6
	ScalarBool   uint32 = 7
	ScalarString uint32 = 8
)

// Scalar is a tagged literal value, used in notices and statement arguments.
// Only the member selected by Type is meaningful.
type Scalar struct {
	Type uint32
	SInt int64
	UInt uint64
	Bool bool
	Str  []byte
}

// AsUint coerces integer-typed scalars to uint64.
func (s *Scalar) AsUint() (uint64, bool) {
	switch s.Type {
	case ScalarUInt:
		return s.UInt, true
	case ScalarSInt:
		if s.SInt < 0 {
			return 0, false
		}
		return uint64(s.SInt), true
	}
	return 0, false
}

// AsString coerces string- and octets-typed scalars.
func (s *Scalar) AsString() (string, bool) {
	if s.Type == ScalarString || s.Type == ScalarOctets {
		return string(s.Str), true
	}
	return "", false
}

func AppendScalar(b []byte, s *Scalar) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Type))
	switch s.Type {
	case ScalarSInt:
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(s.SInt))
	case ScalarUInt:
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, s.UInt)
	case ScalarOctets:
		octets := protowire.AppendTag(nil, 1, protowire.BytesType)
		octets = protowire.AppendBytes(octets, s.Str)
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, octets)
	case ScalarBool:
		v := uint64(0)
		if s.Bool {
			v = 1
		}
		b = protowire.AppendTag(b, 8, protowire.VarintType)
		b = protowire.AppendVarint(b, v)
	case ScalarString:
		str := protowire.AppendTag(nil, 1, protowire.BytesType)
		str = protowire.AppendBytes(str, s.Str)
		b = protowire.AppendTag(b, 9, protowire.BytesType)
		b = protowire.AppendBytes(b, str)
	}
	return b
}

func decodeScalarValue(b []byte) ([]byte, error) {
	// both String and Octets carry the value in field 1
	var out []byte
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.WithStack(ErrMalformedMessage)
		}
		b = b[n:]
		if num == 1 && typ == protowire.BytesType {
			if out, b, err = consumeBytes(b); err != nil {
				return nil, err
			}
			continue
		}
		if b, err = skipField(num, typ, b); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func DecodeScalar(b []byte) (*Scalar, error) {
	s := &Scalar{}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.WithStack(ErrMalformedMessage)
		}
		b = b[n:]
		switch num {
		case 1:
			var v uint64
			if v, b, err = consumeVarint(b); err != nil {
				return nil, err
			}
			s.Type = uint32(v)
		case 2:
			var v uint64
			if v, b, err = consumeVarint(b); err != nil {
				return nil, err
			}
			s.SInt = protowire.DecodeZigZag(v)
		case 3:
			if s.UInt, b, err = consumeVarint(b); err != nil {
				return nil, err
			}
		case 5, 9:
			var v []byte
			if v, b, err = consumeBytes(b); err != nil {
				return nil, err
			}
			if s.Str, err = decodeScalarValue(v); err != nil {
				return nil, err
			}
		case 8:
			var v uint64
			if v, b, err = consumeVarint(b); err != nil {
				return nil, err
			}
			s.Bool = v != 0
		default:
			if b, err = skipField(num, typ, b); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// Any wraps a Scalar for statement arguments (type SCALAR only).
func AppendAnyScalar(b []byte, s *Scalar) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, AppendScalar(nil, s))
	return b
}

// AnyString builds a string statement argument.
func AnyString(v string) []byte {
	return AppendAnyScalar(nil, &Scalar{Type: ScalarString, Str: []byte(v)})
}

// AnyInt builds a signed integer statement argument.
func AnyInt(v int64) []byte {
	return AppendAnyScalar(nil, &Scalar{Type: ScalarSInt, SInt: v})
}

// AnyUint builds an unsigned integer statement argument.
func AnyUint(v uint64) []byte {
	return AppendAnyScalar(nil, &Scalar{Type: ScalarUInt, UInt: v})
}
