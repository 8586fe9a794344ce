// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package exec

import (
	"context"
	"strings"

	"github.com/pingcap/mysqlx/lib/util/errors"
	"github.com/pingcap/mysqlx/pkg/proto"
)

var ErrEmptySavepoint = errors.New("savepoint name cannot be empty")

// simpleExec runs a statement that produces no result set and waits for it.
func (e *Executor) simpleExec(ctx context.Context, stmt string) error {
	op := e.sess.NewStmtOp(executeCmd(proto.NamespaceSQL, stmt, nil), false, 0)
	if err := op.Wait(ctx); err != nil {
		return err
	}
	return op.Error()
}

func (e *Executor) Begin(ctx context.Context) error {
	return e.simpleExec(ctx, "BEGIN")
}

func (e *Executor) Commit(ctx context.Context) error {
	return e.simpleExec(ctx, "COMMIT")
}

func (e *Executor) Rollback(ctx context.Context) error {
	return e.simpleExec(ctx, "ROLLBACK")
}

func quoteName(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// SavepointSet creates or moves a named savepoint in the open transaction.
func (e *Executor) SavepointSet(ctx context.Context, name string) error {
	if len(name) == 0 {
		return errors.WithStack(ErrEmptySavepoint)
	}
	return e.simpleExec(ctx, "SAVEPOINT "+quoteName(name))
}

// SavepointRemove drops a named savepoint.
func (e *Executor) SavepointRemove(ctx context.Context, name string) error {
	if len(name) == 0 {
		return errors.WithStack(ErrEmptySavepoint)
	}
	return e.simpleExec(ctx, "RELEASE SAVEPOINT "+quoteName(name))
}

// RollbackTo rolls the open transaction back to a named savepoint.
func (e *Executor) RollbackTo(ctx context.Context, name string) error {
	if len(name) == 0 {
		return errors.WithStack(ErrEmptySavepoint)
	}
	return e.simpleExec(ctx, "ROLLBACK TO "+quoteName(name))
}
