// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package proto implements the client side of the X Protocol wire format:
// frames, message payload codecs, and frame I/O with optional compression.
//
// A frame is a 4-byte little-endian length, one type byte, and a payload of
// length-1 bytes. Payloads are protobuf messages, encoded and decoded here
// field by field with protowire instead of generated code.
package proto

// Server-to-client frame types.
const (
	ServerOk                      byte = 0
	ServerError                   byte = 1
	ServerNotice                  byte = 11
	ServerColumnMetaData          byte = 12
	ServerRow                     byte = 13
	ServerFetchDone               byte = 14
	ServerFetchSuspended          byte = 15
	ServerFetchDoneMoreResultsets byte = 16
	ServerStmtExecuteOk           byte = 17
	ServerFetchDoneMoreOutParams  byte = 18
	ServerCompression             byte = 19
)

// Client-to-server frame types.
const (
	ClientCapabilitiesGet   byte = 1
	ClientCapabilitiesSet   byte = 2
	ClientConnClose         byte = 3
	ClientStmtExecute       byte = 12
	ClientExpectOpen        byte = 24
	ClientExpectClose       byte = 25
	ClientPrepare           byte = 40
	ClientPrepareExecute    byte = 41
	ClientPrepareDeallocate byte = 42
	ClientCompression       byte = 46
)

// Frame is one protocol unit: a type byte and its message payload.
type Frame struct {
	Type    byte
	Payload []byte
}

// Command is a pipelined sequence of client frames forming one statement.
// The sender calls Next until ok is false; all frames of a command are
// written before any part of the reply is read.
type Command interface {
	Next() (f Frame, ok bool, err error)
}

// RowProcessor receives the rows of one result set as they are decoded
// from the wire. Column positions are 0-based. A false return from RowBegin
// skips delivery of that row's fields, the row still counts.
type RowProcessor interface {
	RowBegin(row uint64) bool
	ColNull(pos uint32)
	ColData(pos uint32, data []byte)
	RowEnd(row uint64)
	EndOfData()
}
