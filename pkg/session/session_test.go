// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"testing"

	"github.com/pingcap/mysqlx/lib/util/logger"
	"github.com/pingcap/mysqlx/pkg/proto"
	"github.com/pingcap/mysqlx/pkg/testkit"
	"github.com/stretchr/testify/require"
)

// testCommand replays a fixed pipeline of frames.
type testCommand struct {
	frames []proto.Frame
}

func (c *testCommand) Next() (proto.Frame, bool, error) {
	if len(c.frames) == 0 {
		return proto.Frame{}, false, nil
	}
	f := c.frames[0]
	c.frames = c.frames[1:]
	return f, true, nil
}

func execCmd(stmt string) proto.Command {
	return &testCommand{frames: []proto.Frame{{
		Type:    proto.ClientStmtExecute,
		Payload: proto.AppendStmtExecute(nil, &proto.StmtExecute{Stmt: []byte(stmt)}),
	}}}
}

func prepareExecCmd(id uint32, stmt string) proto.Command {
	return &testCommand{frames: []proto.Frame{
		{
			Type:    proto.ClientPrepare,
			Payload: proto.AppendPrepare(nil, &proto.Prepare{StmtID: id, Stmt: proto.StmtExecute{Stmt: []byte(stmt)}}),
		},
		{
			Type:    proto.ClientPrepareExecute,
			Payload: proto.AppendPrepareExecute(nil, &proto.PrepareExecute{StmtID: id}),
		},
	}}
}

func newTestSession(t *testing.T, script func(*testkit.Server)) (*Session, func()) {
	lg, _ := logger.CreateLoggerForTest(t)
	fio, clean := testkit.StartServer(t, script)
	return NewSession(fio, lg), clean
}

// rowCollector keeps every delivered row as raw field buffers.
type rowCollector struct {
	rows [][][]byte
	cur  [][]byte
	eod  int
}

func (r *rowCollector) RowBegin(uint64) bool {
	r.cur = nil
	return true
}

func (r *rowCollector) ColNull(uint32) {
	r.cur = append(r.cur, nil)
}

func (r *rowCollector) ColData(_ uint32, data []byte) {
	d := make([]byte, len(data))
	copy(d, data)
	r.cur = append(r.cur, d)
}

func (r *rowCollector) RowEnd(uint64) {
	r.rows = append(r.rows, r.cur)
}

func (r *rowCollector) EndOfData() {
	r.eod++
}

func intCol(name string) *proto.ColumnMetaData {
	return &proto.ColumnMetaData{Type: 1, Name: name, Collation: 0, Length: 11}
}

func strCol(name string) *proto.ColumnMetaData {
	return &proto.ColumnMetaData{Type: 7, Name: name, Collation: 255, Length: 1024}
}

func TestSimpleStatement(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		m := srv.RecvStmtExecute()
		require.Equal(t, "INSERT INTO t VALUES (1)", string(m.Stmt))
		srv.WriteStmtStat(proto.StateRowsAffected, 1)
		srv.WriteStmtStat(proto.StateGeneratedInsertID, 42)
		srv.WriteStmtOk()
	})
	defer clean()

	op := sess.NewStmtOp(execCmd("INSERT INTO t VALUES (1)"), false, 0)
	require.NoError(t, op.Wait(context.Background()))
	require.NoError(t, op.Error())
	require.Equal(t, StateDone, op.State())

	hasResults, err := op.CheckResults(context.Background())
	require.NoError(t, err)
	require.False(t, hasResults)

	affected, err := op.AffectedRows()
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)
	insertID, err := op.LastInsertID()
	require.NoError(t, err)
	require.EqualValues(t, 42, insertID)
}

func TestStatsPending(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvStmtExecute()
		srv.WriteStmtOk()
	})
	defer clean()

	op := sess.NewStmtOp(execCmd("DELETE FROM t"), false, 0)
	_, err := op.AffectedRows()
	require.ErrorIs(t, err, ErrStatsPending)

	require.NoError(t, op.Wait(context.Background()))
	_, err = op.AffectedRows()
	require.NoError(t, err)
}

func TestQuerySingleResultSet(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvStmtExecute()
		srv.WriteColumn(intCol("id"))
		srv.WriteColumn(strCol("name"))
		srv.WriteRow([]byte{0x02}, []byte("ann\x00"))
		srv.WriteRow([]byte{0x04}, nil)
		srv.WriteFetchDone()
		srv.WriteStmtStat(proto.StateRowsFound, 2)
		srv.WriteStmtOk()
	})
	defer clean()

	op := sess.NewStmtOp(execCmd("SELECT id, name FROM t"), true, 0)
	cur, err := NewCursor(context.Background(), op)
	require.NoError(t, err)
	require.EqualValues(t, 2, cur.ColCount())
	col, err := cur.Column(1)
	require.NoError(t, err)
	require.Equal(t, "name", col.Name)
	_, err = cur.Column(2)
	require.Error(t, err)

	var prc rowCollector
	require.NoError(t, cur.GetRows(context.Background(), &prc, 0))
	require.Equal(t, 1, prc.eod)
	require.Len(t, prc.rows, 2)
	require.Equal(t, []byte{0x02}, prc.rows[0][0])
	require.Equal(t, []byte("ann\x00"), prc.rows[0][1])
	require.Nil(t, prc.rows[1][1])

	// the result set is exhausted, further reads only signal end of data
	delivered, err := cur.GetRow(context.Background(), &prc)
	require.NoError(t, err)
	require.False(t, delivered)

	require.NoError(t, cur.Close(context.Background()))
	require.NoError(t, op.Wait(context.Background()))
	require.Equal(t, StateDone, op.State())
	found, err := op.FoundRows()
	require.NoError(t, err)
	require.EqualValues(t, 2, found)
}

func TestQueryRowLimit(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvStmtExecute()
		srv.WriteColumn(intCol("id"))
		srv.WriteRow([]byte{0x02})
		srv.WriteRow([]byte{0x04})
		srv.WriteRow([]byte{0x06})
		srv.WriteFetchDone()
		srv.WriteStmtOk()
	})
	defer clean()

	op := sess.NewStmtOp(execCmd("SELECT id FROM t"), true, 0)
	cur, err := NewCursor(context.Background(), op)
	require.NoError(t, err)

	var prc rowCollector
	require.NoError(t, cur.GetRows(context.Background(), &prc, 2))
	require.Len(t, prc.rows, 2)
	require.Zero(t, prc.eod)

	delivered, err := cur.GetRow(context.Background(), &prc)
	require.NoError(t, err)
	require.True(t, delivered)
	delivered, err = cur.GetRow(context.Background(), &prc)
	require.NoError(t, err)
	require.False(t, delivered)
	require.Equal(t, 1, prc.eod)

	require.NoError(t, cur.Close(context.Background()))
	require.NoError(t, op.Wait(context.Background()))
}

func TestEmptyResultSet(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvStmtExecute()
		srv.WriteColumn(intCol("id"))
		srv.WriteFetchDone()
		srv.WriteStmtOk()
	})
	defer clean()

	op := sess.NewStmtOp(execCmd("SELECT id FROM t WHERE 0"), true, 0)
	cur, err := NewCursor(context.Background(), op)
	require.NoError(t, err)

	var prc rowCollector
	require.NoError(t, cur.GetRows(context.Background(), &prc, 0))
	require.Empty(t, prc.rows)
	require.Equal(t, 1, prc.eod)
	require.NoError(t, cur.Close(context.Background()))
	require.NoError(t, op.Wait(context.Background()))
	require.Equal(t, StateDone, op.State())
}

func TestNoResults(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvStmtExecute()
		srv.WriteStmtOk()
	})
	defer clean()

	op := sess.NewStmtOp(execCmd("SET @a = 1"), false, 0)
	_, err := NewCursor(context.Background(), op)
	require.ErrorIs(t, err, ErrNoResults)
}

func TestMultiResultSets(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvStmtExecute()
		srv.WriteColumn(intCol("a"))
		srv.WriteRow([]byte{0x02})
		srv.WriteFetchDoneMoreResultsets()
		srv.WriteColumn(strCol("b"))
		srv.WriteRow([]byte("x\x00"))
		srv.WriteRow([]byte("y\x00"))
		srv.WriteFetchDone()
		srv.WriteStmtOk()
	})
	defer clean()

	op := sess.NewStmtOp(execCmd("CALL p()"), true, 0)
	cur, err := NewCursor(context.Background(), op)
	require.NoError(t, err)
	var first rowCollector
	require.NoError(t, cur.GetRows(context.Background(), &first, 0))
	require.Len(t, first.rows, 1)
	require.NoError(t, cur.Close(context.Background()))

	hasResults, err := op.CheckResults(context.Background())
	require.NoError(t, err)
	require.True(t, hasResults)

	ok, err := op.NextResult(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b", op.Meta()[0].Name)

	cur, err = NewCursor(context.Background(), op)
	require.NoError(t, err)
	var second rowCollector
	require.NoError(t, cur.GetRows(context.Background(), &second, 0))
	require.Len(t, second.rows, 2)
	require.NoError(t, cur.Close(context.Background()))

	ok, err = op.NextResult(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, StateDone, op.State())
}

func TestServerError(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvStmtExecute()
		srv.WriteError(1146, "42S02", "Table 't' doesn't exist")
	})
	defer clean()

	op := sess.NewStmtOp(execCmd("SELECT * FROM t"), true, 0)
	require.NoError(t, op.Wait(context.Background()))
	require.Equal(t, StateError, op.State())

	var srvErr *ServerError
	require.ErrorAs(t, op.Error(), &srvErr)
	require.EqualValues(t, 1146, srvErr.Code)
	require.Equal(t, "42S02", srvErr.SQLState)

	_, err := NewCursor(context.Background(), op)
	require.Error(t, err)
}

func TestReplyBlocked(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvStmtExecute()
		srv.WriteColumn(intCol("a"))
		srv.WriteRow([]byte{0x02})
		srv.RecvStmtExecute()
		srv.WriteRow([]byte{0x04})
		srv.WriteFetchDone()
		srv.WriteStmtOk()
		srv.WriteStmtOk()
	})
	defer clean()

	op1 := sess.NewStmtOp(execCmd("SELECT a FROM t"), true, 0)
	require.NoError(t, op1.Wait(context.Background()))
	require.Equal(t, StateRows, op1.State())

	// op1 paused at its rows: op2 cannot read its reply yet
	op2 := sess.NewStmtOp(execCmd("SET @a = 1"), false, 0)
	require.ErrorIs(t, op2.Wait(context.Background()), ErrReplyBlocked)

	// dropping op1's reply unblocks op2
	require.NoError(t, op1.Discard())
	require.NoError(t, op1.Wait(context.Background()))
	require.Equal(t, StateDone, op1.State())
	require.NoError(t, op2.Wait(context.Background()))
	require.Equal(t, StateDone, op2.State())
}

func TestDiscardSpansResultSets(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvStmtExecute()
		srv.WriteColumn(intCol("a"))
		srv.WriteRow([]byte{0x02})
		srv.WriteRow([]byte{0x04})
		srv.WriteFetchDoneMoreResultsets()
		srv.WriteColumn(intCol("b"))
		srv.WriteRow([]byte{0x06})
		srv.WriteFetchDone()
		srv.WriteStmtStat(proto.StateRowsAffected, 0)
		srv.WriteStmtOk()
	})
	defer clean()

	op := sess.NewStmtOp(execCmd("CALL p()"), true, 0)
	require.NoError(t, op.Wait(context.Background()))
	require.Equal(t, StateRows, op.State())
	require.NoError(t, op.Discard())
	require.NoError(t, op.Wait(context.Background()))
	require.Equal(t, StateDone, op.State())
}

func TestDiscardResults(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvStmtExecute()
		srv.RecvStmtExecute()
		srv.WriteColumn(intCol("a"))
		srv.WriteRow([]byte{0x02})
		srv.WriteFetchDone()
		srv.WriteStmtOk()
		srv.WriteStmtOk()
	})
	defer clean()

	op1 := sess.NewStmtOp(execCmd("SELECT a FROM t"), true, 0)
	op2 := sess.NewStmtOp(execCmd("SET @a = 1"), false, 0)
	// op1 is still unsent; op2's wait phase pushes it onto the wire first
	require.ErrorIs(t, op2.Wait(context.Background()), ErrReplyBlocked)

	require.NoError(t, sess.DiscardResults(context.Background()))
	require.Equal(t, StateDone, op1.State())
	require.Equal(t, StateDone, op2.State())
}

func TestPipelinedPrepare(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		p := srv.RecvPrepare()
		require.Equal(t, "SELECT ?", string(p.Stmt.Stmt))
		pe := srv.RecvPrepareExecute()
		require.Equal(t, p.StmtID, pe.StmtID)
		srv.WriteOk()
		srv.WriteColumn(intCol("a"))
		srv.WriteRow([]byte{0x02})
		srv.WriteFetchDone()
		srv.WriteStmtOk()
	})
	defer clean()

	op := sess.NewStmtOp(prepareExecCmd(sess.NextStmtID(), "SELECT ?"), true, 1)
	cur, err := NewCursor(context.Background(), op)
	require.NoError(t, err)
	require.Nil(t, op.PrepareFailed())
	var prc rowCollector
	require.NoError(t, cur.GetRows(context.Background(), &prc, 0))
	require.Len(t, prc.rows, 1)
	require.NoError(t, cur.Close(context.Background()))
	require.NoError(t, op.Wait(context.Background()))
	require.Equal(t, StateDone, op.State())
}

func TestPipelinedPrepareFailed(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvPrepare()
		srv.RecvPrepareExecute()
		// prepare is rejected, then the dependent execute fails as well
		srv.WriteError(1295, "HY000", "statement not supported in prepared mode")
		srv.WriteError(5110, "HY000", "statement was not prepared")
	})
	defer clean()

	op := sess.NewStmtOp(prepareExecCmd(sess.NextStmtID(), "CREATE TABLE t (a INT)"), true, 1)
	require.NoError(t, op.Wait(context.Background()))
	require.Equal(t, StateError, op.State())

	prepErr := op.PrepareFailed()
	require.NotNil(t, prepErr)
	require.EqualValues(t, 1295, prepErr.Code)

	var srvErr *ServerError
	require.ErrorAs(t, op.Error(), &srvErr)
	require.EqualValues(t, 5110, srvErr.Code)
}

func TestWarningRouting(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvStmtExecute()
		srv.WriteWarning(proto.WarningLevelWarning, 1364, "field has no default value", true)
		srv.WriteWarning(proto.WarningLevelNote, 1051, "unknown table", false)
		srv.WriteStmtOk()
	})
	defer clean()

	op := sess.NewStmtOp(execCmd("INSERT INTO t () VALUES ()"), false, 0)
	require.NoError(t, op.Wait(context.Background()))
	require.Equal(t, 1, op.Diag().Count(SeverityWarning))
	require.Equal(t, 0, op.Diag().Count(SeverityError))
	require.Equal(t, 1, sess.Diag().Count(SeverityInfo))

	warns := op.Diag().Entries(SeverityWarning)
	require.Len(t, warns, 1)
	var srvErr *ServerError
	require.ErrorAs(t, warns[0], &srvErr)
	require.EqualValues(t, 1364, srvErr.Code)
}

func TestSessionStateNotices(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvStmtExecute()
		srv.WriteClientID(77)
		srv.WriteSchemaChange("sales")
		srv.WriteAccountExpired()
		srv.WriteGeneratedIDs("doc-1", "doc-2")
		srv.WriteStmtOk()
	})
	defer clean()

	op := sess.NewStmtOp(execCmd("USE sales"), false, 0)
	require.NoError(t, op.Wait(context.Background()))
	require.EqualValues(t, 77, sess.ClientID())
	require.Equal(t, "sales", sess.CurrentSchema())
	require.True(t, sess.Expired())

	ids, err := op.GeneratedIDs()
	require.NoError(t, err)
	require.Equal(t, []string{"doc-1", "doc-2"}, ids)
}

func TestCursorExclusive(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvStmtExecute()
		srv.WriteColumn(intCol("a"))
		srv.WriteRow([]byte{0x02})
		srv.WriteFetchDone()
		srv.WriteStmtOk()
	})
	defer clean()

	op := sess.NewStmtOp(execCmd("SELECT a FROM t"), true, 0)
	cur, err := NewCursor(context.Background(), op)
	require.NoError(t, err)

	_, err = NewCursor(context.Background(), op)
	require.ErrorIs(t, err, ErrCursorExists)
	require.ErrorIs(t, op.Discard(), ErrCursorInUse)

	require.NoError(t, cur.Close(context.Background()))
	require.NoError(t, op.Wait(context.Background()))
	require.Equal(t, StateDone, op.State())

	var prc rowCollector
	require.ErrorIs(t, cur.GetRows(context.Background(), &prc, 0), ErrCursorClosed)
}

func TestSessionClose(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvStmtExecute()
		srv.WriteStmtOk()
		srv.AnswerClose()
	})
	defer clean()

	op := sess.NewStmtOp(execCmd("SET @a = 1"), false, 0)
	require.NoError(t, op.Wait(context.Background()))
	require.NoError(t, sess.Close(context.Background()))
	// closing twice is a no-op
	require.NoError(t, sess.Close(context.Background()))
}

func TestSessionCloseDrainsReplies(t *testing.T) {
	sess, clean := newTestSession(t, func(srv *testkit.Server) {
		srv.RecvStmtExecute()
		srv.WriteColumn(intCol("a"))
		srv.WriteRow([]byte{0x02})
		srv.WriteFetchDone()
		srv.WriteStmtOk()
		srv.AnswerClose()
	})
	defer clean()

	op := sess.NewStmtOp(execCmd("SELECT a FROM t"), true, 0)
	require.NoError(t, op.Wait(context.Background()))
	require.Equal(t, StateRows, op.State())
	require.NoError(t, sess.Close(context.Background()))
	require.Equal(t, StateDone, op.State())
}
