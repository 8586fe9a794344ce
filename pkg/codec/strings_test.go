// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		fmt  Format
		in   string
	}{
		{"utf8", Format{Type: TypeString, Charset: CharsetUTF8}, "héllo wörld"},
		{"utf16be", Format{Type: TypeString, Charset: CharsetUTF16BE}, "héllo wörld \U0001F600"},
		{"ucs4be", Format{Type: TypeString, Charset: CharsetUCS4BE}, "héllo wörld"},
		{"ascii", Format{Type: TypeString, Charset: CharsetASCII}, "plain ascii"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeString(tt.fmt, tt.in)
			require.NoError(t, err)
			require.Equal(t, byte(0x00), data[len(data)-1])
			out, err := DecodeString(tt.fmt, data)
			require.NoError(t, err)
			require.Equal(t, tt.in, out)
		})
	}
}

func TestStringEmptyVsNull(t *testing.T) {
	f := Format{Type: TypeString, Charset: CharsetUTF8}
	data, err := EncodeString(f, "")
	require.NoError(t, err)
	// an empty string still occupies one byte on the wire
	require.Equal(t, []byte{0x00}, data)
	out, err := DecodeString(f, data)
	require.NoError(t, err)
	require.Equal(t, "", out)

	// a zero-length buffer is NULL, the codec never sees it
	_, err = DecodeString(f, nil)
	require.ErrorIs(t, err, ErrMalformedValue)
	// missing terminator
	_, err = DecodeString(f, []byte{'a'})
	require.ErrorIs(t, err, ErrMalformedValue)
}

func TestStringASCIIRejects8Bit(t *testing.T) {
	f := Format{Type: TypeString, Charset: CharsetASCII}
	_, err := DecodeString(f, []byte{0xc3, 0xa9, 0x00})
	require.ErrorIs(t, err, ErrCharacterEncoding)
	_, err = EncodeString(f, "é")
	require.ErrorIs(t, err, ErrCharacterEncoding)
}

func TestCharsetOf(t *testing.T) {
	require.Equal(t, CharsetBinary, CharsetOf(63))
	require.Equal(t, CharsetUTF8, CharsetOf(0))
	require.Equal(t, CharsetUTF8, CharsetOf(255))
	require.Equal(t, CharsetUTF16BE, CharsetOf(54))
	require.Equal(t, CharsetUTF16BE, CharsetOf(101))
	require.Equal(t, CharsetUCS4BE, CharsetOf(60))
	require.Equal(t, CharsetUCS4BE, CharsetOf(160))
	require.Equal(t, CharsetASCII, CharsetOf(11))
}

func TestBytesPadding(t *testing.T) {
	f := Format{Type: TypeBytes, PadWidth: 6}
	out, err := DecodeBytes(f, []byte{0x01, 0x02, 0x03, 0x00})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x00, 0x00, 0x00}, out)

	// no padding configured
	out, err = DecodeBytes(Format{Type: TypeBytes}, []byte{0x01, 0x02, 0x00})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, out)

	// truncating encode
	f = Format{Type: TypeBytes, Length: 2}
	data, err := EncodeBytes(f, []byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x00}, data)
}

func TestDecodeDocument(t *testing.T) {
	f := Format{Type: TypeDocument}
	doc, err := DecodeDocument(f, append([]byte(`{"a": 1}`), 0x00))
	require.NoError(t, err)
	require.Equal(t, `{"a": 1}`, doc)

	_, err = DecodeDocument(Format{Type: TypeString}, []byte{0x00})
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestColumnMetaTypeMapping(t *testing.T) {
	tests := []struct {
		meta ColumnMeta
		want Type
	}{
		{ColumnMeta{WireType: ColSInt}, TypeInteger},
		{ColumnMeta{WireType: ColUInt}, TypeInteger},
		{ColumnMeta{WireType: ColFloat}, TypeFloat},
		{ColumnMeta{WireType: ColDouble}, TypeFloat},
		{ColumnMeta{WireType: ColDecimal}, TypeFloat},
		{ColumnMeta{WireType: ColTime}, TypeDatetime},
		{ColumnMeta{WireType: ColDatetime}, TypeDatetime},
		{ColumnMeta{WireType: ColSet}, TypeString},
		{ColumnMeta{WireType: ColEnum}, TypeString},
		{ColumnMeta{WireType: ColBytes, Collation: 255}, TypeString},
		{ColumnMeta{WireType: ColBytes, Collation: BinaryCollationID}, TypeBytes},
		{ColumnMeta{WireType: ColBytes, ContentType: ContentJSON}, TypeDocument},
		{ColumnMeta{WireType: ColBytes, ContentType: ContentGeometry}, TypeGeometry},
		{ColumnMeta{WireType: ColBytes, ContentType: ContentXML}, TypeXML},
		{ColumnMeta{WireType: ColBit}, TypeBytes},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.meta.Type(), "wire type %d", tt.meta.WireType)
		require.True(t, tt.meta.ForType(tt.want))
	}
}

func TestColumnMetaInfo(t *testing.T) {
	m := &ColumnMeta{WireType: ColUInt, Length: 10}
	f := m.Info()
	require.Equal(t, TypeInteger, f.Type)
	require.True(t, f.Unsigned)

	m = &ColumnMeta{WireType: ColDecimal, Length: 10, FractionalDigits: 2}
	f = m.Info()
	require.Equal(t, FloatKindDecimal, f.Fmt)
	require.Equal(t, uint32(2), f.Decimals)

	m = &ColumnMeta{WireType: ColBytes, Collation: BinaryCollationID, Length: 16, Flags: FlagBytesRightPad}
	f = m.Info()
	require.Equal(t, TypeBytes, f.Type)
	require.Equal(t, uint64(16), f.PadWidth)

	// length beyond 10 means the value carries a time part
	m = &ColumnMeta{WireType: ColDatetime, Length: 19, Flags: FlagDatetimeTimestamp}
	f = m.Info()
	require.True(t, f.HasTime)
	require.True(t, f.IsTimestamp)
	m = &ColumnMeta{WireType: ColDatetime, Length: 10}
	f = m.Info()
	require.False(t, f.HasTime)
	require.False(t, f.IsTimestamp)
}
