// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package proto

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pingcap/mysqlx/lib/util/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Compression algorithm names as negotiated in capabilities.
const (
	CompressionDeflate = "deflate_stream"
	CompressionZstd    = "zstd_stream"
)

var ErrUnknownAlgorithm = errors.New("unknown compression algorithm")

// Compressor compresses and decompresses the payloads of Compression frames.
type Compressor struct {
	algorithm string
	zstdEnc   *zstd.Encoder
	zstdDec   *zstd.Decoder
}

func NewCompressor(algorithm string) (*Compressor, error) {
	c := &Compressor{algorithm: algorithm}
	switch algorithm {
	case CompressionDeflate:
	case CompressionZstd:
		var err error
		if c.zstdEnc, err = zstd.NewWriter(nil); err != nil {
			return nil, errors.WithStack(err)
		}
		if c.zstdDec, err = zstd.NewReader(nil); err != nil {
			return nil, errors.WithStack(err)
		}
	default:
		return nil, errors.Wrapf(ErrUnknownAlgorithm, "%q", algorithm)
	}
	return c, nil
}

func (c *Compressor) Algorithm() string {
	return c.algorithm
}

func (c *Compressor) Compress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case CompressionZstd:
		return c.zstdEnc.EncodeAll(data, nil), nil
	default:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, errors.WithStack(err)
		}
		if err := w.Close(); err != nil {
			return nil, errors.WithStack(err)
		}
		return buf.Bytes(), nil
	}
}

func (c *Compressor) Decompress(data []byte, uncompressedSize uint64) ([]byte, error) {
	switch c.algorithm {
	case CompressionZstd:
		out, err := c.zstdDec.DecodeAll(data, make([]byte, 0, uncompressedSize))
		return out, errors.WithStack(err)
	default:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		defer r.Close()
		out := bytes.NewBuffer(make([]byte, 0, uncompressedSize))
		if _, err := io.Copy(out, r); err != nil {
			return nil, errors.WithStack(err)
		}
		return out.Bytes(), nil
	}
}

// Compression is the envelope message of a compressed frame. The payload is
// one or more complete frames, concatenated.
type Compression struct {
	UncompressedSize uint64
	Payload          []byte
}

func AppendCompression(b []byte, m *Compression) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, m.UncompressedSize)
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Payload)
	return b
}

func DecodeCompression(b []byte) (*Compression, error) {
	m := &Compression{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.WithStack(ErrMalformedMessage)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errors.WithStack(ErrMalformedMessage)
			}
			m.UncompressedSize, b = v, b[n:]
		case 4:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errors.WithStack(ErrMalformedMessage)
			}
			m.Payload, b = v, b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.WithStack(ErrMalformedMessage)
			}
			b = b[n:]
		}
	}
	return m, nil
}

func (p *FrameIO) wrapCompressed(f Frame) (Frame, error) {
	inner := make([]byte, 0, frameHeaderSize+len(f.Payload))
	length := uint32(len(f.Payload)) + 1
	inner = append(inner, byte(length), byte(length>>8), byte(length>>16), byte(length>>24), f.Type)
	inner = append(inner, f.Payload...)
	compressed, err := p.compressor.Compress(inner)
	if err != nil {
		return Frame{}, err
	}
	payload := AppendCompression(nil, &Compression{
		UncompressedSize: uint64(len(inner)),
		Payload:          compressed,
	})
	return Frame{Type: ClientCompression, Payload: payload}, nil
}

func (p *FrameIO) unwrapCompressed(payload []byte) ([]Frame, error) {
	m, err := DecodeCompression(payload)
	if err != nil {
		return nil, err
	}
	raw, err := p.compressor.Decompress(m.Payload, m.UncompressedSize)
	if err != nil {
		return nil, err
	}
	var frames []Frame
	for len(raw) > 0 {
		if len(raw) < frameHeaderSize {
			return nil, errors.WithStack(ErrMalformedMessage)
		}
		length := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
		if length == 0 || uint64(length-1) > uint64(len(raw)-frameHeaderSize) {
			return nil, errors.WithStack(ErrMalformedMessage)
		}
		frames = append(frames, Frame{Type: raw[4], Payload: raw[frameHeaderSize : frameHeaderSize+length-1]})
		raw = raw[frameHeaderSize+length-1:]
	}
	return frames, nil
}
