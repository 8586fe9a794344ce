// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"

	glist "github.com/bahlo/generic-list-go"
	"github.com/pingcap/mysqlx/lib/util/errors"
	"github.com/pingcap/mysqlx/pkg/codec"
	"github.com/pingcap/mysqlx/pkg/proto"
	"go.uber.org/zap"
)

// State of a statement's execution and reply processing.
//
// The reply grammar is
//
//	reply ::= pipeline-Ok* (rset more)? StmtExecuteOk
//	more  ::= FetchDone | FetchDoneMoreResultsets rset? more
//	rset  ::= MetaData+ Row*
//
// with Error and Notice possible at any point.
type State int

const (
	// StateWait blocks until the previous statement in the queue is sent.
	StateWait State = iota
	// StateSend writes the command pipeline, one frame per step.
	StateSend
	// StateOK consumes pipelined Ok replies and detects the reply shape.
	StateOK
	// StateMeta accumulates the column metadata of one result set.
	StateMeta
	// StateRows has rows pending for a cursor. The op is completed here.
	StateRows
	// StateDiscard drains rows nobody wants.
	StateDiscard
	// StateNext waits for NextResult after FetchDoneMoreResultsets.
	StateNext
	// StateFinish expects the closing StmtExecuteOk.
	StateFinish
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateWait:
		return "WAIT"
	case StateSend:
		return "SEND"
	case StateOK:
		return "OK"
	case StateMeta:
		return "MDATA"
	case StateRows:
		return "ROWS"
	case StateDiscard:
		return "DISCARD"
	case StateNext:
		return "NEXT"
	case StateFinish:
		return "FINISH"
	case StateDone:
		return "DONE"
	case StateError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Stats are the execution statistics delivered through state notices.
type Stats struct {
	AffectedRows uint64
	FoundRows    uint64
	MatchedRows  uint64
	LastInsertID uint64
	GeneratedIDs []string
}

// StmtOp processes one statement: sending its command pipeline and walking
// its reply. Step consumes at most one protocol message, so processing can
// be interleaved cooperatively; Wait loops Step until the op completes.
type StmtOp struct {
	sess   *Session
	logger *zap.Logger
	cmd    proto.Command
	query  bool
	okOnly bool

	state   State
	discard bool
	elem    *glist.Element[*StmtOp]

	// Ok replies expected from pipelined messages before the reply proper
	pipelineOks   int
	prepareFailed *ServerError

	meta   []*codec.ColumnMeta
	cursor *Cursor
	stats  Stats
	diag   Diagnostics
	ioErr  error
}

// NewStmtOp queues a statement. Query statements may produce result sets;
// pipelineOks is the number of plain Ok replies the command pipeline yields
// before the statement reply itself (e.g. 1 for prepare+execute).
func (s *Session) NewStmtOp(cmd proto.Command, query bool, pipelineOks int) *StmtOp {
	op := &StmtOp{
		sess:        s,
		logger:      s.logger,
		cmd:         cmd,
		query:       query,
		pipelineOks: pipelineOks,
	}
	s.register(op)
	return op
}

// NewOkOp queues a command whose reply is plain Ok messages only, with no
// statement reply, e.g. PrepareDeallocate.
func (s *Session) NewOkOp(cmd proto.Command, oks int) *StmtOp {
	op := &StmtOp{
		sess:        s,
		logger:      s.logger,
		cmd:         cmd,
		okOnly:      true,
		pipelineOks: oks,
	}
	s.register(op)
	return op
}

func (op *StmtOp) State() State {
	return op.state
}

// Diag returns the statement-scoped diagnostics.
func (op *StmtOp) Diag() *Diagnostics {
	return &op.diag
}

// Error returns the error that failed the op, if any.
func (op *StmtOp) Error() error {
	if op.ioErr != nil {
		return op.ioErr
	}
	return op.diag.FirstError()
}

// PrepareFailed returns the suppressed error of a pipelined prepare, if the
// server rejected it.
func (op *StmtOp) PrepareFailed() *ServerError {
	return op.prepareFailed
}

// Meta returns the column metadata of the current result set.
func (op *StmtOp) Meta() []*codec.ColumnMeta {
	return op.meta
}

func (op *StmtOp) sent() bool {
	return op.state != StateWait && op.state != StateSend
}

// Completed reports whether Step has nothing left to do: the reply is fully
// processed, failed, or paused at a result set waiting for its consumer.
func (op *StmtOp) Completed() bool {
	switch op.state {
	case StateDone, StateError:
		return true
	case StateRows, StateNext:
		return !op.discard
	}
	return false
}

func (op *StmtOp) fail(err error) error {
	op.ioErr = err
	op.complete(StateError)
	return err
}

func (op *StmtOp) protocolErr(f proto.Frame) error {
	return op.fail(errors.Wrapf(ErrProtocol, "message type %d in state %s", f.Type, op.state))
}

func (op *StmtOp) complete(st State) {
	op.state = st
	op.sess.deregister(op)
}

func (op *StmtOp) enterMeta() {
	op.meta = nil
	op.state = StateMeta
}

// endOfRows handles FetchDone (more=false) and FetchDoneMoreResultsets
// (more=true). A discarded reply drains the next result set right away.
func (op *StmtOp) endOfRows(more bool) {
	if !more {
		op.state = StateFinish
		return
	}
	if op.discard {
		op.enterMeta()
	} else {
		op.state = StateNext
	}
}

// Step makes one unit of progress and reports whether the op completed.
// It consumes at most one message from the connection.
func (op *StmtOp) Step(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.WithStack(err)
	}
	switch op.state {
	case StateDone, StateError:
		return true, nil
	case StateWait:
		if prev := op.sess.prevOf(op); prev != nil && !prev.sent() {
			_, err := prev.Step(ctx)
			return false, err
		}
		op.state = StateSend
		return false, nil
	case StateSend:
		return false, op.stepSend()
	}

	// reading our reply requires every previous reply to be off the wire
	if prev := op.sess.prevOf(op); prev != nil {
		done, err := prev.Step(ctx)
		if err != nil {
			return false, err
		}
		if !done {
			return false, nil
		}
		if prev.elem != nil {
			// completed but still holding unconsumed results: the
			// consumer must drain or discard it before this reply
			// can be read
			return false, errors.WithStack(ErrReplyBlocked)
		}
		return false, nil
	}

	if op.discard && op.state == StateRows {
		op.state = StateDiscard
		return false, nil
	}

	switch op.state {
	case StateOK:
		return false, op.stepOK()
	case StateMeta:
		return false, op.stepMeta()
	case StateRows:
		return true, nil
	case StateDiscard:
		return false, op.stepDiscard()
	case StateNext:
		if op.discard {
			op.enterMeta()
			return false, nil
		}
		return true, nil
	case StateFinish:
		return false, op.stepFinish()
	}
	return false, errors.Wrapf(ErrProtocol, "bad op state %s", op.state)
}

// Wait drives Step until the op completes. Completion includes pausing at
// an unconsumed result set; use a Cursor to read it.
func (op *StmtOp) Wait(ctx context.Context) error {
	for {
		done, err := op.Step(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (op *StmtOp) stepSend() error {
	f, ok, err := op.cmd.Next()
	if err != nil {
		return op.fail(err)
	}
	if ok {
		if err := op.sess.fio.WriteFrame(f); err != nil {
			return op.fail(err)
		}
		return nil
	}
	if err := op.sess.fio.Flush(); err != nil {
		return op.fail(err)
	}
	op.stats = Stats{}
	op.state = StateOK
	return nil
}

func (op *StmtOp) recv() (proto.Frame, error) {
	f, err := op.sess.recv()
	if err != nil {
		return proto.Frame{}, op.fail(err)
	}
	return f, nil
}

func (op *StmtOp) serverError(f proto.Frame) error {
	e, err := proto.DecodeError(f.Payload)
	if err != nil {
		return op.fail(err)
	}
	srvErr := &ServerError{Code: e.Code, SQLState: e.SQLState, Msg: e.Msg, Fatal: e.Fatal}
	if op.pipelineOks > 0 && !op.okOnly {
		// a failed pipelined prepare; the reply of the execute that
		// follows will fail as well, keep reading it
		op.pipelineOks--
		if op.prepareFailed == nil {
			op.prepareFailed = srvErr
		}
		return nil
	}
	op.diag.add(SeverityError, srvErr)
	if srvErr.Fatal {
		op.logger.Warn("fatal server error", zap.Uint32("code", srvErr.Code), zap.String("msg", srvErr.Msg))
	}
	op.complete(StateError)
	return nil
}

func (op *StmtOp) stepOK() error {
	f, err := op.recv()
	if err != nil {
		return err
	}
	switch f.Type {
	case proto.ServerNotice:
		return op.sess.handleNotice(f.Payload, op)
	case proto.ServerError:
		return op.serverError(f)
	case proto.ServerOk:
		if op.pipelineOks > 0 {
			op.pipelineOks--
			if op.pipelineOks == 0 && op.okOnly {
				op.complete(StateDone)
			}
			return nil
		}
		return op.protocolErr(f)
	case proto.ServerColumnMetaData:
		if op.pipelineOks > 0 || !op.query {
			return op.protocolErr(f)
		}
		op.sess.unread(f)
		op.enterMeta()
		return nil
	case proto.ServerStmtExecuteOk:
		if op.pipelineOks > 0 {
			return op.protocolErr(f)
		}
		op.complete(StateDone)
		return nil
	}
	return op.protocolErr(f)
}

func (op *StmtOp) stepMeta() error {
	f, err := op.recv()
	if err != nil {
		return err
	}
	switch f.Type {
	case proto.ServerNotice:
		return op.sess.handleNotice(f.Payload, op)
	case proto.ServerError:
		return op.serverError(f)
	case proto.ServerColumnMetaData:
		md, err := proto.DecodeColumnMetaData(f.Payload)
		if err != nil {
			return op.fail(err)
		}
		op.meta = append(op.meta, &codec.ColumnMeta{
			Pos:              uint32(len(op.meta)),
			WireType:         md.Type,
			Name:             md.Name,
			OriginalName:     md.OriginalName,
			Table:            md.Table,
			OriginalTable:    md.OriginalTable,
			Schema:           md.Schema,
			Catalog:          md.Catalog,
			Collation:        md.Collation,
			Length:           md.Length,
			FractionalDigits: md.FractionalDigits,
			Flags:            md.Flags,
			ContentType:      md.ContentType,
		})
		return nil
	case proto.ServerRow:
		if len(op.meta) == 0 {
			return op.protocolErr(f)
		}
		op.sess.unread(f)
		op.state = StateRows
		return nil
	case proto.ServerFetchDone:
		if len(op.meta) == 0 {
			// an empty tail after FetchDoneMoreResultsets
			op.state = StateFinish
			return nil
		}
		op.sess.unread(f)
		op.state = StateRows
		return nil
	case proto.ServerFetchDoneMoreResultsets, proto.ServerFetchDoneMoreOutParams:
		if len(op.meta) == 0 {
			// still no result set, but more may follow
			return nil
		}
		op.sess.unread(f)
		op.state = StateRows
		return nil
	case proto.ServerStmtExecuteOk:
		if len(op.meta) > 0 {
			return op.protocolErr(f)
		}
		op.sess.unread(f)
		op.state = StateFinish
		return nil
	}
	return op.protocolErr(f)
}

func (op *StmtOp) stepDiscard() error {
	f, err := op.recv()
	if err != nil {
		return err
	}
	switch f.Type {
	case proto.ServerRow:
		return nil
	case proto.ServerNotice:
		return op.sess.handleNotice(f.Payload, op)
	case proto.ServerError:
		return op.serverError(f)
	case proto.ServerFetchDone:
		op.endOfRows(false)
		return nil
	case proto.ServerFetchDoneMoreResultsets, proto.ServerFetchDoneMoreOutParams:
		op.endOfRows(true)
		return nil
	}
	return op.protocolErr(f)
}

func (op *StmtOp) stepFinish() error {
	f, err := op.recv()
	if err != nil {
		return err
	}
	switch f.Type {
	case proto.ServerNotice:
		return op.sess.handleNotice(f.Payload, op)
	case proto.ServerError:
		return op.serverError(f)
	case proto.ServerStmtExecuteOk:
		op.complete(StateDone)
		return nil
	}
	return op.protocolErr(f)
}

// CheckResults waits for the op and reports whether result sets remain.
func (op *StmtOp) CheckResults(ctx context.Context) (bool, error) {
	if err := op.Wait(ctx); err != nil {
		return false, err
	}
	return op.state == StateRows || op.state == StateNext, nil
}

// NextResult moves to the next result set. It returns false when the
// current one has not been fully consumed yet or no result set follows.
func (op *StmtOp) NextResult(ctx context.Context) (bool, error) {
	ok, err := op.CheckResults(ctx)
	if err != nil || !ok {
		return false, err
	}
	if op.state != StateNext {
		return false, nil
	}
	op.enterMeta()
	if err := op.Wait(ctx); err != nil {
		return false, err
	}
	return op.state == StateRows, nil
}

// DiscardResult drops the remaining rows of the current result set, moving
// on to the next one. Later result sets are still delivered.
func (op *StmtOp) DiscardResult() {
	if op.state == StateRows {
		op.state = StateDiscard
	}
}

// Discard drops the whole remaining reply, rows of all pending result sets
// included. It fails while a cursor is open.
func (op *StmtOp) Discard() error {
	if op.cursor != nil {
		return errors.WithStack(ErrCursorInUse)
	}
	op.DiscardResult()
	op.discard = true
	return nil
}

func (op *StmtOp) statsValue(v uint64) (uint64, error) {
	if op.state != StateDone {
		return 0, errors.WithStack(ErrStatsPending)
	}
	return v, nil
}

// AffectedRows is valid once the reply is fully processed.
func (op *StmtOp) AffectedRows() (uint64, error) {
	return op.statsValue(op.stats.AffectedRows)
}

func (op *StmtOp) FoundRows() (uint64, error) {
	return op.statsValue(op.stats.FoundRows)
}

func (op *StmtOp) MatchedRows() (uint64, error) {
	return op.statsValue(op.stats.MatchedRows)
}

func (op *StmtOp) LastInsertID() (uint64, error) {
	return op.statsValue(op.stats.LastInsertID)
}

// GeneratedIDs returns the document ids generated by the server, in
// insertion order.
func (op *StmtOp) GeneratedIDs() ([]string, error) {
	if op.state != StateDone {
		return nil, errors.WithStack(ErrStatsPending)
	}
	return op.stats.GeneratedIDs, nil
}
