// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package testkit provides an in-memory scripted X Protocol server for
// tests: one goroutine plays the server side of a connection, asserting the
// frames it receives and producing the reply a test prescribes.
package testkit

import (
	"net"
	"testing"

	"github.com/pingcap/mysqlx/lib/util/logger"
	"github.com/pingcap/mysqlx/lib/util/waitgroup"
	"github.com/pingcap/mysqlx/pkg/proto"
	"github.com/stretchr/testify/require"
)

// Server is the scripted peer of one connection.
type Server struct {
	t  *testing.T
	io *proto.FrameIO
}

// StartServer wires a client FrameIO to a scripted server running in its
// own goroutine. The returned cleanup waits for the script to finish.
func StartServer(t *testing.T, script func(*Server)) (*proto.FrameIO, func()) {
	lg, _ := logger.CreateLoggerForTest(t)
	cli, srv := net.Pipe()
	if ddl, ok := t.Deadline(); ok {
		require.NoError(t, cli.SetDeadline(ddl))
		require.NoError(t, srv.SetDeadline(ddl))
	}
	clientIO := proto.NewFrameIO(cli, lg)
	serverIO := proto.NewFrameIO(srv, lg)
	var wg waitgroup.WaitGroup
	wg.Run(func() {
		script(&Server{t: t, io: serverIO})
		_ = serverIO.Close()
	})
	return clientIO, func() {
		_ = clientIO.Close()
		wg.Wait()
	}
}

// IO exposes the raw frame stream for scripts with unusual needs.
func (s *Server) IO() *proto.FrameIO {
	return s.io
}

// Recv reads one frame and asserts its type.
func (s *Server) Recv(wantType byte) proto.Frame {
	f, err := s.io.ReadFrame()
	require.NoError(s.t, err)
	require.Equal(s.t, wantType, f.Type)
	return f
}

// RecvStmtExecute reads and decodes a StmtExecute message.
func (s *Server) RecvStmtExecute() *proto.StmtExecute {
	f := s.Recv(proto.ClientStmtExecute)
	m, err := proto.DecodeStmtExecute(f.Payload)
	require.NoError(s.t, err)
	return m
}

// RecvPrepare reads and decodes a Prepare message.
func (s *Server) RecvPrepare() *proto.Prepare {
	f := s.Recv(proto.ClientPrepare)
	m, err := proto.DecodePrepare(f.Payload)
	require.NoError(s.t, err)
	return m
}

// RecvPrepareExecute reads and decodes a PrepareExecute message.
func (s *Server) RecvPrepareExecute() *proto.PrepareExecute {
	f := s.Recv(proto.ClientPrepareExecute)
	m, err := proto.DecodePrepareExecute(f.Payload)
	require.NoError(s.t, err)
	return m
}

// RecvPrepareDeallocate reads and decodes a PrepareDeallocate message.
func (s *Server) RecvPrepareDeallocate() *proto.PrepareDeallocate {
	f := s.Recv(proto.ClientPrepareDeallocate)
	m, err := proto.DecodePrepareDeallocate(f.Payload)
	require.NoError(s.t, err)
	return m
}

func (s *Server) write(typ byte, payload []byte) {
	require.NoError(s.t, s.io.WriteFrame(proto.Frame{Type: typ, Payload: payload}))
	require.NoError(s.t, s.io.Flush())
}

func (s *Server) WriteOk() {
	s.write(proto.ServerOk, nil)
}

func (s *Server) WriteError(code uint32, sqlState, msg string) {
	s.write(proto.ServerError, proto.AppendError(nil, &proto.Error{Code: code, SQLState: sqlState, Msg: msg}))
}

func (s *Server) WriteColumn(md *proto.ColumnMetaData) {
	s.write(proto.ServerColumnMetaData, proto.AppendColumnMetaData(nil, md))
}

func (s *Server) WriteRow(fields ...[]byte) {
	s.write(proto.ServerRow, proto.AppendRow(nil, fields))
}

func (s *Server) WriteFetchDone() {
	s.write(proto.ServerFetchDone, nil)
}

func (s *Server) WriteFetchDoneMoreResultsets() {
	s.write(proto.ServerFetchDoneMoreResultsets, nil)
}

func (s *Server) WriteStmtOk() {
	s.write(proto.ServerStmtExecuteOk, nil)
}

func (s *Server) writeStateChange(scope uint32, ssc *proto.SessionStateChange) {
	payload := proto.AppendNotice(nil, &proto.Notice{
		Type:    proto.NoticeSessionStateChanged,
		Scope:   scope,
		Payload: proto.AppendSessionStateChange(nil, ssc),
	})
	s.write(proto.ServerNotice, payload)
}

// WriteStmtStat sends a statement-scoped counter notice such as
// StateRowsAffected or StateGeneratedInsertID.
func (s *Server) WriteStmtStat(param uint32, v uint64) {
	s.writeStateChange(proto.NoticeScopeLocal, &proto.SessionStateChange{
		Param:  param,
		Values: []proto.Scalar{{Type: proto.ScalarUInt, UInt: v}},
	})
}

// WriteGeneratedIDs sends the document ids generated for an insert.
func (s *Server) WriteGeneratedIDs(ids ...string) {
	values := make([]proto.Scalar, 0, len(ids))
	for _, id := range ids {
		values = append(values, proto.Scalar{Type: proto.ScalarOctets, Str: []byte(id)})
	}
	s.writeStateChange(proto.NoticeScopeLocal, &proto.SessionStateChange{
		Param:  proto.StateGeneratedDocumentIDs,
		Values: values,
	})
}

// WriteClientID sends the connection id assignment notice.
func (s *Server) WriteClientID(id uint64) {
	s.writeStateChange(proto.NoticeScopeGlobal, &proto.SessionStateChange{
		Param:  proto.StateClientIDAssigned,
		Values: []proto.Scalar{{Type: proto.ScalarUInt, UInt: id}},
	})
}

// WriteSchemaChange sends a current-schema change notice.
func (s *Server) WriteSchemaChange(schema string) {
	s.writeStateChange(proto.NoticeScopeGlobal, &proto.SessionStateChange{
		Param:  proto.StateCurrentSchema,
		Values: []proto.Scalar{{Type: proto.ScalarString, Str: []byte(schema)}},
	})
}

// WriteAccountExpired flags the session account as expired.
func (s *Server) WriteAccountExpired() {
	s.writeStateChange(proto.NoticeScopeGlobal, &proto.SessionStateChange{
		Param: proto.StateAccountExpired,
	})
}

// WriteWarning sends a warning notice; local selects the statement scope.
func (s *Server) WriteWarning(level, code uint32, msg string, local bool) {
	scope := proto.NoticeScopeGlobal
	if local {
		scope = proto.NoticeScopeLocal
	}
	payload := proto.AppendNotice(nil, &proto.Notice{
		Type:    proto.NoticeWarning,
		Scope:   scope,
		Payload: proto.AppendWarning(nil, &proto.Warning{Level: level, Code: code, Msg: msg}),
	})
	s.write(proto.ServerNotice, payload)
}

// AnswerClose completes a ConnClose handshake.
func (s *Server) AnswerClose() {
	s.Recv(proto.ClientConnClose)
	s.WriteOk()
}
