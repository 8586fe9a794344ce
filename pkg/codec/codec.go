// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package codec converts between raw X Protocol column values and Go types,
// driven by per-column format descriptors derived from result-set metadata.
package codec

import (
	"github.com/pingcap/mysqlx/lib/util/errors"
)

var (
	ErrValueOverflow      = errors.New("value does not fit into the target type")
	ErrTypeMismatch       = errors.New("value type does not match the column format")
	ErrMalformedValue     = errors.New("malformed column value")
	ErrCharacterEncoding  = errors.New("value is not valid in the column character set")
	ErrUnsupportedCharset = errors.New("unsupported character set")
)

// Column wire types as sent in ColumnMetaData.
const (
	ColSInt     uint32 = 1
	ColUInt     uint32 = 2
	ColDouble   uint32 = 5
	ColFloat    uint32 = 6
	ColBytes    uint32 = 7
	ColTime     uint32 = 10
	ColDatetime uint32 = 12
	ColSet      uint32 = 15
	ColEnum     uint32 = 16
	ColBit      uint32 = 17
	ColDecimal  uint32 = 18
)

// Column content types, refining ColBytes.
const (
	ContentGeometry uint32 = 1
	ContentJSON     uint32 = 2
	ContentXML      uint32 = 3
)

// Column flags.
const (
	// FlagNotNull marks NOT NULL columns.
	FlagNotNull uint32 = 0x10
	// FlagBytesRightPad asks for zero padding up to the column length.
	FlagBytesRightPad uint32 = 0x01
	// FlagDatetimeTimestamp distinguishes TIMESTAMP from DATETIME.
	FlagDatetimeTimestamp uint32 = 0x01
	// FlagUintZerofill marks ZEROFILL unsigned columns.
	FlagUintZerofill uint32 = 0x01
)

// Type is the generic value type of a column, derived from the wire type,
// the collation and the content type.
type Type int

const (
	TypeInteger Type = iota + 1
	TypeFloat
	TypeString
	TypeBytes
	TypeDatetime
	TypeDocument
	TypeGeometry
	TypeXML
)

func (t Type) String() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeString:
		return "STRING"
	case TypeBytes:
		return "BYTES"
	case TypeDatetime:
		return "DATETIME"
	case TypeDocument:
		return "DOCUMENT"
	case TypeGeometry:
		return "GEOMETRY"
	case TypeXML:
		return "XML"
	}
	return "UNKNOWN"
}

// FloatKind selects the wire encoding of a TypeFloat column.
type FloatKind int

const (
	FloatKindFloat FloatKind = iota + 1
	FloatKindDouble
	FloatKindDecimal
)

// StringKind refines TypeString columns.
type StringKind int

const (
	StringKindPlain StringKind = iota
	StringKindSet
	StringKindEnum
)

// Format describes how the raw values of one column are encoded. Only the
// fields relevant to Type are meaningful.
type Format struct {
	Type Type

	// integer
	Unsigned bool

	// float
	Fmt FloatKind

	// string
	Charset Charset
	Kind    StringKind

	// bytes and string padding
	PadWidth uint64

	// datetime
	HasTime     bool
	IsTimestamp bool

	Length   uint32
	Decimals uint32
}

// FormatInfo is implemented by metadata objects that can describe the value
// format of a column.
type FormatInfo interface {
	// ForType reports whether values can be read as the given generic type.
	ForType(Type) bool
	// Info returns the format descriptor.
	Info() Format
}
