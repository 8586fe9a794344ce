// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package proto

import (
	"github.com/pingcap/mysqlx/lib/util/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

var ErrMalformedMessage = errors.New("malformed protocol message")

func consumeVarint(b []byte) (uint64, []byte, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, nil, errors.WithStack(ErrMalformedMessage)
	}
	return v, b[n:], nil
}

func consumeBytes(b []byte) ([]byte, []byte, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, nil, errors.WithStack(ErrMalformedMessage)
	}
	return v, b[n:], nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return nil, errors.WithStack(ErrMalformedMessage)
	}
	return b[n:], nil
}

// Ok is the reply to messages that produce no result, e.g. Prepare.
type Ok struct {
	Msg string
}

func AppendOk(b []byte, m *Ok) []byte {
	if len(m.Msg) > 0 {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.Msg)
	}
	return b
}

func DecodeOk(b []byte) (*Ok, error) {
	m := &Ok{}
	var err error
	for len(b) > 0 {
		var num protowire.Number
		var typ protowire.Type
		var n int
		num, typ, n = protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.WithStack(ErrMalformedMessage)
		}
		b = b[n:]
		switch num {
		case 1:
			var v []byte
			if v, b, err = consumeBytes(b); err != nil {
				return nil, err
			}
			m.Msg = string(v)
		default:
			if b, err = skipField(num, typ, b); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Wire severities of the Error message.
const (
	ErrorSeverityError uint64 = 0
	ErrorSeverityFatal uint64 = 1
)

// Error is the server error message closing a reply.
type Error struct {
	Fatal    bool
	Code     uint32
	Msg      string
	SQLState string
}

func AppendError(b []byte, m *Error) []byte {
	sev := ErrorSeverityError
	if m.Fatal {
		sev = ErrorSeverityFatal
	}
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, sev)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Code))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendString(b, m.Msg)
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendString(b, m.SQLState)
	return b
}

func DecodeError(b []byte) (*Error, error) {
	m := &Error{}
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
			m.Fatal = v == ErrorSeverityFatal
		case 2:
			var v uint64
			if v, b, err = consumeVarint(b); err != nil {
				return nil, err
			}
			m.Code = uint32(v)
		case 3:
			var v []byte
			if v, b, err = consumeBytes(b); err != nil {
				return nil, err
			}
			m.Msg = string(v)
		case 4:
			var v []byte
			if v, b, err = consumeBytes(b); err != nil {
				return nil, err
			}
			m.SQLState = string(v)
		default:
			if b, err = skipField(num, typ, b); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// ColumnMetaData describes one column of a result set.
type ColumnMetaData struct {
	Type             uint32
	Name             string
	OriginalName     string
	Table            string
	OriginalTable    string
	Schema           string
	Catalog          string
	Collation        uint64
	FractionalDigits uint32
	Length           uint32
	Flags            uint32
	ContentType      uint32
}

func AppendColumnMetaData(b []byte, m *ColumnMetaData) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Type))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, m.Name)
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendString(b, m.OriginalName)
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendString(b, m.Table)
	b = protowire.AppendTag(b, 5, protowire.BytesType)
	b = protowire.AppendString(b, m.OriginalTable)
	b = protowire.AppendTag(b, 6, protowire.BytesType)
	b = protowire.AppendString(b, m.Schema)
	b = protowire.AppendTag(b, 7, protowire.BytesType)
	b = protowire.AppendString(b, m.Catalog)
	b = protowire.AppendTag(b, 8, protowire.VarintType)
	b = protowire.AppendVarint(b, m.Collation)
	b = protowire.AppendTag(b, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.FractionalDigits))
	b = protowire.AppendTag(b, 10, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Length))
	b = protowire.AppendTag(b, 11, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Flags))
	if m.ContentType != 0 {
		b = protowire.AppendTag(b, 12, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.ContentType))
	}
	return b
}

func DecodeColumnMetaData(b []byte) (*ColumnMetaData, error) {
	m := &ColumnMetaData{}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.WithStack(ErrMalformedMessage)
		}
		b = b[n:]
		if typ == protowire.VarintType {
			var v uint64
			if v, b, err = consumeVarint(b); err != nil {
				return nil, err
			}
			switch num {
			case 1:
				m.Type = uint32(v)
			case 8:
				m.Collation = v
			case 9:
				m.FractionalDigits = uint32(v)
			case 10:
				m.Length = uint32(v)
			case 11:
				m.Flags = uint32(v)
			case 12:
				m.ContentType = uint32(v)
			}
			continue
		}
		if typ == protowire.BytesType {
			var v []byte
			if v, b, err = consumeBytes(b); err != nil {
				return nil, err
			}
			switch num {
			case 2:
				m.Name = string(v)
			case 3:
				m.OriginalName = string(v)
			case 4:
				m.Table = string(v)
			case 5:
				m.OriginalTable = string(v)
			case 6:
				m.Schema = string(v)
			case 7:
				m.Catalog = string(v)
			}
			continue
		}
		if b, err = skipField(num, typ, b); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AppendRow encodes one result row. A nil field stands for NULL and becomes
// a zero-length entry on the wire.
func AppendRow(b []byte, fields [][]byte) []byte {
	for _, f := range fields {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, f)
	}
	return b
}

// DecodeRow returns the raw per-column buffers of one row in column order.
// Zero-length entries decode to nil, meaning NULL.
func DecodeRow(b []byte) ([][]byte, error) {
	var fields [][]byte
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.WithStack(ErrMalformedMessage)
		}
		b = b[n:]
		if num != 1 || typ != protowire.BytesType {
			if b, err = skipField(num, typ, b); err != nil {
				return nil, err
			}
			continue
		}
		var v []byte
		if v, b, err = consumeBytes(b); err != nil {
			return nil, err
		}
		if len(v) == 0 {
			fields = append(fields, nil)
		} else {
			fields = append(fields, v)
		}
	}
	return fields, nil
}
