// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package codec

// ColumnMeta is the accumulated metadata of one result-set column.
type ColumnMeta struct {
	Pos              uint32
	WireType         uint32
	Name             string
	OriginalName     string
	Table            string
	OriginalTable    string
	Schema           string
	Catalog          string
	Collation        uint64
	Length           uint32
	FractionalDigits uint32
	Flags            uint32
	ContentType      uint32
}

var _ FormatInfo = (*ColumnMeta)(nil)

// Type maps the wire type to the generic value type. BYTES columns are
// refined by content type and collation.
func (m *ColumnMeta) Type() Type {
	switch m.WireType {
	case ColSInt, ColUInt:
		return TypeInteger
	case ColFloat, ColDouble, ColDecimal:
		return TypeFloat
	case ColTime, ColDatetime:
		return TypeDatetime
	case ColBytes:
		switch m.ContentType {
		case ContentJSON:
			return TypeDocument
		case ContentGeometry:
			return TypeGeometry
		case ContentXML:
			return TypeXML
		}
		if m.Collation != BinaryCollationID {
			return TypeString
		}
		return TypeBytes
	case ColSet, ColEnum:
		return TypeString
	}
	// BIT and anything unknown is exposed as raw bytes
	return TypeBytes
}

func (m *ColumnMeta) ForType(t Type) bool {
	return m.Type() == t
}

// Info derives the value format from the metadata.
func (m *ColumnMeta) Info() Format {
	f := Format{
		Type:     m.Type(),
		Length:   m.Length,
		Decimals: m.FractionalDigits,
	}
	switch f.Type {
	case TypeInteger:
		f.Unsigned = m.WireType == ColUInt
	case TypeFloat:
		switch m.WireType {
		case ColFloat:
			f.Fmt = FloatKindFloat
		case ColDouble:
			f.Fmt = FloatKindDouble
		case ColDecimal:
			f.Fmt = FloatKindDecimal
		}
	case TypeString:
		f.Charset = CharsetOf(m.Collation)
		switch m.WireType {
		case ColSet:
			f.Kind = StringKindSet
		case ColEnum:
			f.Kind = StringKindEnum
		}
		if m.Flags&FlagBytesRightPad != 0 {
			f.PadWidth = uint64(m.Length)
		}
	case TypeBytes:
		if m.Flags&FlagBytesRightPad != 0 {
			f.PadWidth = uint64(m.Length)
		}
	case TypeDatetime:
		// DATETIME values with length > 10 carry a time part
		f.HasTime = m.WireType == ColTime || m.Length > 10
		f.IsTimestamp = m.WireType == ColDatetime && m.Flags&FlagDatetimeTimestamp != 0
	}
	return f
}
