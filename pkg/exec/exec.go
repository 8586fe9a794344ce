// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package exec runs SQL statements on a session. Repeatedly executed
// statements are transparently prepared on the server; when the server
// refuses to prepare, execution silently falls back to plain statements.
package exec

import (
	"context"
	"time"

	"github.com/pingcap/mysqlx/lib/util/errors"
	"github.com/pingcap/mysqlx/pkg/config"
	"github.com/pingcap/mysqlx/pkg/metrics"
	"github.com/pingcap/mysqlx/pkg/proto"
	"github.com/pingcap/mysqlx/pkg/result"
	"github.com/pingcap/mysqlx/pkg/session"
	"go.uber.org/zap"
)

// PrepareState tracks the prepared lifecycle of a statement.
type PrepareState int

const (
	// PSExecute executes the statement directly.
	PSExecute PrepareState = iota
	// PSPrepareExecute prepares and executes in one pipeline on the next run.
	PSPrepareExecute
	// PSExecutePrepared runs the statement already prepared on the server.
	PSExecutePrepared
)

// Executor runs statements on one session.
type Executor struct {
	logger *zap.Logger
	sess   *session.Session
	cfg    config.Client
	skip   map[uint32]struct{}

	// set when the server rejected a prepare; no statement of this
	// session is prepared afterwards
	noPrepare bool
}

func NewExecutor(sess *session.Session, cfg config.Client, lg *zap.Logger) *Executor {
	skip := make(map[uint32]struct{}, len(cfg.SkipErrors))
	for _, code := range cfg.SkipErrors {
		skip[code] = struct{}{}
	}
	return &Executor{
		logger: lg,
		sess:   sess,
		cfg:    cfg,
		skip:   skip,
	}
}

func (e *Executor) Session() *session.Session {
	return e.sess
}

// ExecuteSQL runs one statement without a prepared lifecycle. Args are
// pre-encoded values, see proto.AnyString and friends. A skipped server
// error yields a nil result.
func (e *Executor) ExecuteSQL(ctx context.Context, stmt string, args ...[]byte) (*result.Result, error) {
	op := e.sess.NewStmtOp(executeCmd(proto.NamespaceSQL, stmt, args), true, 0)
	return e.dispatch(ctx, metrics.TypeExecute, op)
}

// dispatch waits for the reply of op to take shape and wraps it in a
// Result. Server errors on the configured skip list are swallowed, leaving
// a nil result.
func (e *Executor) dispatch(ctx context.Context, typ string, op *session.StmtOp) (*result.Result, error) {
	start := time.Now()
	err := op.Wait(ctx)
	metrics.StmtDurationHistogram.WithLabelValues(typ).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StmtTotalCounter.WithLabelValues(typ, metrics.LblError).Inc()
		return nil, err
	}
	if opErr := op.Error(); opErr != nil {
		metrics.StmtTotalCounter.WithLabelValues(typ, metrics.LblError).Inc()
		var srvErr *session.ServerError
		if errors.As(opErr, &srvErr) {
			if _, ok := e.skip[srvErr.Code]; ok {
				e.logger.Warn("ignoring server error",
					zap.Uint32("code", srvErr.Code), zap.String("msg", srvErr.Msg))
				op.Diag().Clear()
				return nil, nil
			}
		}
		return nil, opErr
	}
	metrics.StmtTotalCounter.WithLabelValues(typ, metrics.LblOK).Inc()
	return result.New(op, e.logger, e.cfg.PrefetchSize), nil
}

// Stmt is a statement that may get prepared on the server when executed
// repeatedly.
type Stmt struct {
	exec  *Executor
	ns    string
	text  string
	id    uint32
	state PrepareState
}

// Statement wraps a statement text for repeated execution.
func (e *Executor) Statement(text string) *Stmt {
	return &Stmt{
		exec: e,
		ns:   proto.NamespaceSQL,
		text: text,
	}
}

func (s *Stmt) State() PrepareState {
	return s.state
}

// StmtID returns the server-side prepared statement id, 0 if not prepared.
func (s *Stmt) StmtID() uint32 {
	return s.id
}

// Execute runs the statement. The first run executes it directly, the
// second one prepares it pipelined with the execution, and later runs
// execute the prepared statement. A rejected prepare falls back to direct
// execution without surfacing the error.
func (s *Stmt) Execute(ctx context.Context, args ...[]byte) (*result.Result, error) {
	e := s.exec
	if !e.cfg.PreparedStatements || e.noPrepare {
		op := e.sess.NewStmtOp(executeCmd(s.ns, s.text, args), true, 0)
		return e.dispatch(ctx, metrics.TypeExecute, op)
	}

	switch s.state {
	case PSPrepareExecute:
		s.id = e.sess.NextStmtID()
		op := e.sess.NewStmtOp(prepareExecuteCmd(s.id, s.ns, s.text, args), true, 1)
		res, err := e.dispatch(ctx, metrics.TypePrepareExecute, op)
		if prepErr := op.PrepareFailed(); prepErr != nil {
			// the execute reply failed together with the prepare;
			// run the original statement directly instead
			metrics.PreparedRetryCounter.Inc()
			e.noPrepare = true
			s.state = PSExecute
			s.id = 0
			e.logger.Warn("server rejected prepare, executing directly",
				zap.Uint32("code", prepErr.Code), zap.String("msg", prepErr.Msg))
			op = e.sess.NewStmtOp(executeCmd(s.ns, s.text, args), true, 0)
			return e.dispatch(ctx, metrics.TypeExecute, op)
		}
		if err == nil {
			s.state = PSExecutePrepared
		}
		return res, err
	case PSExecutePrepared:
		op := e.sess.NewStmtOp(executePreparedCmd(s.id, args), true, 0)
		return e.dispatch(ctx, metrics.TypeExecutePrepared, op)
	default:
		op := e.sess.NewStmtOp(executeCmd(s.ns, s.text, args), true, 0)
		res, err := e.dispatch(ctx, metrics.TypeExecute, op)
		if err == nil {
			s.state = PSPrepareExecute
		}
		return res, err
	}
}

// Close deallocates the prepared statement on the server, if there is one.
func (s *Stmt) Close(ctx context.Context) error {
	if s.state != PSExecutePrepared || s.id == 0 {
		s.state = PSExecute
		s.id = 0
		return nil
	}
	op := s.exec.sess.NewOkOp(deallocateCmd(s.id), 1)
	s.state = PSExecute
	s.id = 0
	if err := op.Wait(ctx); err != nil {
		metrics.StmtTotalCounter.WithLabelValues(metrics.TypeDeallocate, metrics.LblError).Inc()
		return err
	}
	if opErr := op.Error(); opErr != nil {
		metrics.StmtTotalCounter.WithLabelValues(metrics.TypeDeallocate, metrics.LblError).Inc()
		return opErr
	}
	metrics.StmtTotalCounter.WithLabelValues(metrics.TypeDeallocate, metrics.LblOK).Inc()
	return nil
}
