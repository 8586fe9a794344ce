// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"github.com/pingcap/mysqlx/lib/util/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// BinaryCollationID is the collation of binary (non-text) BYTES columns.
const BinaryCollationID uint64 = 63

// Charset is the character set a string column is encoded in on the wire.
type Charset int

const (
	CharsetUTF8 Charset = iota
	CharsetUTF16BE
	CharsetUCS4BE
	CharsetASCII
	CharsetBinary
)

// CharsetOf maps a MySQL collation id to the wire character set. Unknown
// collations default to utf8, which is also what the server reports for
// computed columns (collation 0).
func CharsetOf(collation uint64) Charset {
	switch {
	case collation == BinaryCollationID:
		return CharsetBinary
	case collation == 11 || collation == 65:
		return CharsetASCII
	// ucs2 and utf16 are both big-endian 16-bit encodings
	case collation == 35 || collation == 90 ||
		(collation >= 128 && collation <= 151) || collation == 159:
		return CharsetUTF16BE
	case collation == 54 || collation == 55 ||
		(collation >= 101 && collation <= 124):
		return CharsetUTF16BE
	case collation == 60 || collation == 61 ||
		(collation >= 160 && collation <= 183):
		return CharsetUCS4BE
	}
	return CharsetUTF8
}

func charsetEncoding(cs Charset) encoding.Encoding {
	switch cs {
	case CharsetUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case CharsetUCS4BE:
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)
	}
	return nil
}

// stripTerminator removes the single NUL byte the protocol appends to
// octet values. The terminator is what distinguishes an empty string
// (one byte) from NULL (zero bytes, handled before the codec).
func stripTerminator(data []byte) ([]byte, error) {
	if len(data) == 0 || data[len(data)-1] != 0x00 {
		return nil, errors.WithStack(ErrMalformedValue)
	}
	return data[:len(data)-1], nil
}

// DecodeString converts a raw string value to UTF-8 text.
func DecodeString(f Format, data []byte) (string, error) {
	if f.Type != TypeString {
		return "", errors.WithStack(ErrTypeMismatch)
	}
	raw, err := stripTerminator(data)
	if err != nil {
		return "", err
	}
	switch f.Charset {
	case CharsetUTF8, CharsetBinary:
		return string(raw), nil
	case CharsetASCII:
		for _, b := range raw {
			if b >= 0x80 {
				return "", errors.WithStack(ErrCharacterEncoding)
			}
		}
		return string(raw), nil
	}
	enc := charsetEncoding(f.Charset)
	if enc == nil {
		return "", errors.WithStack(ErrUnsupportedCharset)
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", errors.Wrap(ErrCharacterEncoding, err)
	}
	return string(out), nil
}

// EncodeString converts UTF-8 text to the column character set and appends
// the protocol terminator.
func EncodeString(f Format, s string) ([]byte, error) {
	if f.Type != TypeString {
		return nil, errors.WithStack(ErrTypeMismatch)
	}
	var raw []byte
	switch f.Charset {
	case CharsetUTF8, CharsetBinary:
		raw = []byte(s)
	case CharsetASCII:
		for i := 0; i < len(s); i++ {
			if s[i] >= 0x80 {
				return nil, errors.WithStack(ErrCharacterEncoding)
			}
		}
		raw = []byte(s)
	default:
		enc := charsetEncoding(f.Charset)
		if enc == nil {
			return nil, errors.WithStack(ErrUnsupportedCharset)
		}
		var err error
		if raw, err = enc.NewEncoder().Bytes([]byte(s)); err != nil {
			return nil, errors.Wrap(ErrCharacterEncoding, err)
		}
	}
	return append(raw, 0x00), nil
}

// DecodeBytes strips the protocol terminator and restores right padding.
func DecodeBytes(f Format, data []byte) ([]byte, error) {
	if f.Type != TypeBytes {
		return nil, errors.WithStack(ErrTypeMismatch)
	}
	raw, err := stripTerminator(data)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	for uint64(len(out)) < f.PadWidth {
		out = append(out, 0x00)
	}
	return out, nil
}

// EncodeBytes appends the protocol terminator. Values longer than the
// column length are truncated to it.
func EncodeBytes(f Format, data []byte) ([]byte, error) {
	if f.Type != TypeBytes {
		return nil, errors.WithStack(ErrTypeMismatch)
	}
	if f.Length > 0 && uint32(len(data)) > f.Length {
		data = data[:f.Length]
	}
	out := make([]byte, 0, len(data)+1)
	out = append(out, data...)
	return append(out, 0x00), nil
}

// DecodeDocument returns the raw JSON text of a document column. Parsing
// the document is left to the caller.
func DecodeDocument(f Format, data []byte) (string, error) {
	if f.Type != TypeDocument {
		return "", errors.WithStack(ErrTypeMismatch)
	}
	raw, err := stripTerminator(data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
