// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package proto

import (
	"bufio"
	"io"
	"net"

	"github.com/pingcap/mysqlx/lib/util/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	ErrReadConn  = errors.New("failed to read the connection")
	ErrWriteConn = errors.New("failed to write the connection")
	ErrFlushConn = errors.New("failed to flush the connection")
	ErrCloseConn = errors.New("failed to close the connection")

	ErrFrameTooLarge = errors.New("frame exceeds the maximum allowed size")
	ErrEmptyFrame    = errors.New("frame misses the type byte")
)

const (
	defaultReaderSize = 16 * 1024
	defaultWriterSize = 16 * 1024

	// maxFrameSize bounds a single frame. The server caps messages at
	// mysqlx_max_allowed_packet, 1GB is its hard maximum.
	maxFrameSize = 1 << 30

	frameHeaderSize = 5
)

// FrameIO reads and writes X Protocol frames over a connection, with
// buffering, byte accounting and optional frame-level compression.
// It is not safe for concurrent use.
type FrameIO struct {
	logger   *zap.Logger
	rawConn  net.Conn
	rw       *bufio.ReadWriter
	inBytes  atomic.Uint64
	outBytes atomic.Uint64

	compressor *Compressor
	threshold  int
	// decompressed frames not yet delivered, in wire order
	embedded []Frame
}

func NewFrameIO(conn net.Conn, lg *zap.Logger) *FrameIO {
	return &FrameIO{
		logger:  lg,
		rawConn: conn,
		rw: bufio.NewReadWriter(
			bufio.NewReaderSize(conn, defaultReaderSize),
			bufio.NewWriterSize(conn, defaultWriterSize)),
	}
}

// EnableCompression turns on compression for both directions. Frames smaller
// than threshold are still sent uncompressed.
func (p *FrameIO) EnableCompression(algorithm string, threshold int) error {
	c, err := NewCompressor(algorithm)
	if err != nil {
		return err
	}
	p.compressor = c
	p.threshold = threshold
	return nil
}

func (p *FrameIO) readOneFrame() (Frame, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(p.rw, header[:]); err != nil {
		return Frame{}, errors.Wrap(ErrReadConn, err)
	}
	p.inBytes.Add(frameHeaderSize)
	length := uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16 | uint32(header[3])<<24
	if length == 0 {
		return Frame{}, errors.WithStack(ErrEmptyFrame)
	}
	if length > maxFrameSize {
		return Frame{}, errors.Wrapf(ErrFrameTooLarge, "%d bytes", length)
	}
	f := Frame{Type: header[4]}
	if length > 1 {
		f.Payload = make([]byte, length-1)
		if _, err := io.ReadFull(p.rw, f.Payload); err != nil {
			return Frame{}, errors.Wrap(ErrReadConn, err)
		}
		p.inBytes.Add(uint64(length - 1))
	}
	return f, nil
}

// ReadFrame returns the next frame, transparently unwrapping compressed ones.
func (p *FrameIO) ReadFrame() (Frame, error) {
	if len(p.embedded) > 0 {
		f := p.embedded[0]
		p.embedded = p.embedded[1:]
		return f, nil
	}
	f, err := p.readOneFrame()
	if err != nil {
		return Frame{}, err
	}
	if f.Type != ServerCompression {
		return f, nil
	}
	if p.compressor == nil {
		return Frame{}, errors.New("received a compressed frame but compression is not enabled")
	}
	frames, err := p.unwrapCompressed(f.Payload)
	if err != nil {
		return Frame{}, err
	}
	if len(frames) == 0 {
		return Frame{}, errors.New("compressed frame carries no messages")
	}
	p.embedded = frames[1:]
	return frames[0], nil
}

func (p *FrameIO) writeOneFrame(f Frame) error {
	length := uint32(len(f.Payload)) + 1
	var header [frameHeaderSize]byte
	header[0] = byte(length)
	header[1] = byte(length >> 8)
	header[2] = byte(length >> 16)
	header[3] = byte(length >> 24)
	header[4] = f.Type
	if _, err := p.rw.Write(header[:]); err != nil {
		return errors.Wrap(ErrWriteConn, err)
	}
	if _, err := p.rw.Write(f.Payload); err != nil {
		return errors.Wrap(ErrWriteConn, err)
	}
	p.outBytes.Add(uint64(frameHeaderSize + len(f.Payload)))
	return nil
}

// WriteFrame queues a frame for sending. Call Flush once the pipeline of a
// command is fully written.
func (p *FrameIO) WriteFrame(f Frame) error {
	if p.compressor != nil && len(f.Payload)+frameHeaderSize >= p.threshold {
		wrapped, err := p.wrapCompressed(f)
		if err != nil {
			return err
		}
		return p.writeOneFrame(wrapped)
	}
	return p.writeOneFrame(f)
}

func (p *FrameIO) Flush() error {
	if err := p.rw.Flush(); err != nil {
		return errors.WithStack(errors.Wrap(ErrFlushConn, err))
	}
	return nil
}

func (p *FrameIO) InBytes() uint64 {
	return p.inBytes.Load()
}

func (p *FrameIO) OutBytes() uint64 {
	return p.outBytes.Load()
}

func (p *FrameIO) LocalAddr() net.Addr {
	return p.rawConn.LocalAddr()
}

func (p *FrameIO) RemoteAddr() net.Addr {
	return p.rawConn.RemoteAddr()
}

func (p *FrameIO) Close() error {
	if err := p.rawConn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Wrap(ErrCloseConn, err)
	}
	return nil
}
