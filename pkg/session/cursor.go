// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"

	"github.com/pingcap/mysqlx/lib/util/errors"
	"github.com/pingcap/mysqlx/pkg/codec"
	"github.com/pingcap/mysqlx/pkg/proto"
)

// Cursor reads the rows of one result set and forwards them to a
// RowProcessor. At most one cursor can be open on a reply at a time.
// Creating the cursor implicitly advances the reply to its next result set
// if the current one was already consumed.
type Cursor struct {
	op       *StmtOp
	meta     []*codec.ColumnMeta
	closed   bool
	moreRows bool
	rowCount uint64
}

// NewCursor waits for the reply to produce a result set and attaches to it.
// A reply that failed re-raises its error here; a reply without result sets
// yields ErrNoResults.
func NewCursor(ctx context.Context, op *StmtOp) (*Cursor, error) {
	if op.cursor != nil {
		return nil, errors.WithStack(ErrCursorExists)
	}
	if err := op.Wait(ctx); err != nil {
		return nil, err
	}
	if err := op.Error(); err != nil {
		return nil, err
	}
	if op.state == StateNext {
		ok, err := op.NextResult(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.WithStack(ErrNoResults)
		}
	}
	if op.state != StateRows {
		return nil, errors.WithStack(ErrNoResults)
	}
	c := &Cursor{op: op, meta: op.meta, moreRows: true}
	op.cursor = c
	return c, nil
}

// ColCount returns the number of columns of the attached result set.
func (c *Cursor) ColCount() uint32 {
	return uint32(len(c.meta))
}

// Meta returns the column metadata snapshot taken when the cursor attached.
func (c *Cursor) Meta() []*codec.ColumnMeta {
	return c.meta
}

// Column returns the metadata of one column.
func (c *Cursor) Column(pos uint32) (*codec.ColumnMeta, error) {
	if pos >= uint32(len(c.meta)) {
		return nil, errors.Errorf("no metadata for column %d", pos)
	}
	return c.meta[pos], nil
}

// GetRows reads up to limit rows into prc; limit 0 means all remaining
// rows. When the result set ends, prc.EndOfData is called once and further
// calls deliver nothing.
func (c *Cursor) GetRows(ctx context.Context, prc proto.RowProcessor, limit uint64) error {
	if c.closed {
		return errors.WithStack(ErrCursorClosed)
	}
	if err := c.op.Error(); err != nil {
		return err
	}
	if !c.moreRows || c.op.state != StateRows {
		c.moreRows = false
		prc.EndOfData()
		return nil
	}
	read := uint64(0)
	for {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		if limit != 0 && read == limit {
			return nil
		}
		f, err := c.op.recv()
		if err != nil {
			return err
		}
		switch f.Type {
		case proto.ServerRow:
			fields, err := proto.DecodeRow(f.Payload)
			if err != nil {
				return c.op.fail(err)
			}
			if prc.RowBegin(c.rowCount) {
				for pos, d := range fields {
					if d == nil {
						prc.ColNull(uint32(pos))
					} else {
						prc.ColData(uint32(pos), d)
					}
				}
			}
			prc.RowEnd(c.rowCount)
			c.rowCount++
			read++
		case proto.ServerNotice:
			if err := c.op.sess.handleNotice(f.Payload, c.op); err != nil {
				return err
			}
		case proto.ServerError:
			if err := c.op.serverError(f); err != nil {
				return err
			}
			return c.op.Error()
		case proto.ServerFetchDone:
			c.op.endOfRows(false)
			c.moreRows = false
			prc.EndOfData()
			return nil
		case proto.ServerFetchDoneMoreResultsets, proto.ServerFetchDoneMoreOutParams:
			c.op.endOfRows(true)
			c.moreRows = false
			prc.EndOfData()
			return nil
		default:
			return c.op.protocolErr(f)
		}
	}
}

// GetRow reads a single row and reports whether one was delivered.
func (c *Cursor) GetRow(ctx context.Context, prc proto.RowProcessor) (bool, error) {
	before := c.rowCount
	if err := c.GetRows(ctx, prc, 1); err != nil {
		return false, err
	}
	return c.rowCount > before, nil
}

// Close detaches the cursor, discarding whatever remains of its result set.
// The reply itself stays usable: NextResult still reaches later result sets.
func (c *Cursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.op.cursor = nil
	c.op.DiscardResult()
	return c.op.Wait(ctx)
}
