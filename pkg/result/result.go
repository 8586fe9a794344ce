// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package result buffers the result sets of one statement reply. Rows are
// pulled from the wire in batches and cached in memory, so a reader can hold
// on to a result set while later replies proceed on the connection.
package result

import (
	"context"

	glist "github.com/bahlo/generic-list-go"
	"github.com/pingcap/mysqlx/lib/util/errors"
	"github.com/pingcap/mysqlx/pkg/codec"
	"github.com/pingcap/mysqlx/pkg/metrics"
	"github.com/pingcap/mysqlx/pkg/proto"
	"github.com/pingcap/mysqlx/pkg/session"
	"go.uber.org/zap"
)

// DefaultPrefetch is the number of rows fetched per batch when the reader
// does not configure its own size.
const DefaultPrefetch = 16

var ErrResultClosed = errors.New("result is closed")

// Row is one cached row; fields hold the raw wire value of each column, nil
// meaning NULL.
type Row struct {
	Fields [][]byte
}

// IsNull reports whether the column at pos is NULL.
func (r Row) IsNull(pos uint32) bool {
	return pos >= uint32(len(r.Fields)) || r.Fields[pos] == nil
}

// Meta is the immutable column metadata of one buffered result set.
type Meta struct {
	cols []*codec.ColumnMeta
}

func (m *Meta) ColCount() uint32 {
	return uint32(len(m.cols))
}

func (m *Meta) Columns() []*codec.ColumnMeta {
	return m.cols
}

func (m *Meta) Column(pos uint32) (*codec.ColumnMeta, error) {
	if pos >= uint32(len(m.cols)) {
		return nil, errors.Errorf("no metadata for column %d", pos)
	}
	return m.cols[pos], nil
}

// Result owns the reply of one statement and caches its rows. The two
// queues run in parallel, one entry per buffered result set: metadata and
// the row cache. The front entry is the result set handed out to the
// reader; only the back entry may still be streaming from the wire, through
// the attached cursor.
type Result struct {
	logger   *zap.Logger
	op       *session.StmtOp
	prefetch uint64
	filter   func(Row) bool

	metaQ  []*Meta
	cacheQ []*glist.List[Row]

	cursor *session.Cursor
	inited bool
	closed bool

	// row under assembly by the processor callbacks
	cur      Row
	backDone bool
}

// New wraps the reply of op. A prefetch of 0 selects DefaultPrefetch.
func New(op *session.StmtOp, lg *zap.Logger, prefetch uint64) *Result {
	if prefetch == 0 {
		prefetch = DefaultPrefetch
	}
	return &Result{
		logger:   lg,
		op:       op,
		prefetch: prefetch,
	}
}

// SetRowFilter drops cached rows the filter rejects. It must be configured
// before the first row is read.
func (r *Result) SetRowFilter(f func(Row) bool) {
	r.filter = f
}

// Op exposes the underlying statement operation.
func (r *Result) Op() *session.StmtOp {
	return r.op
}

func (r *Result) init(ctx context.Context) error {
	if r.closed {
		return errors.WithStack(ErrResultClosed)
	}
	if r.inited {
		return nil
	}
	r.inited = true
	_, err := r.openNext(ctx)
	return err
}

// openNext attaches to the next unread result set of the reply, appending a
// queue entry for it.
func (r *Result) openNext(ctx context.Context) (bool, error) {
	hasResults, err := r.op.CheckResults(ctx)
	if err != nil {
		return false, err
	}
	if !hasResults {
		return false, r.op.Error()
	}
	cur, err := session.NewCursor(ctx, r.op)
	if err != nil {
		return false, err
	}
	r.cursor = cur
	r.metaQ = append(r.metaQ, &Meta{cols: cur.Meta()})
	r.cacheQ = append(r.cacheQ, glist.New[Row]())
	metrics.ResultSetCounter.Inc()
	return true, nil
}

// loadMore pulls up to n rows of the streaming result set into the back
// cache entry; n = 0 drains it.
func (r *Result) loadMore(ctx context.Context, n uint64) error {
	if r.cursor == nil {
		return nil
	}
	r.backDone = false
	if err := r.cursor.GetRows(ctx, r, n); err != nil {
		return err
	}
	if r.backDone {
		if err := r.cursor.Close(ctx); err != nil {
			return err
		}
		r.cursor = nil
	}
	return nil
}

func (r *Result) frontIsStreaming() bool {
	return r.cursor != nil && len(r.metaQ) == 1
}

// HasData reports whether the reply produced at least one result set.
func (r *Result) HasData(ctx context.Context) (bool, error) {
	if err := r.init(ctx); err != nil {
		return false, err
	}
	return len(r.metaQ) > 0, nil
}

// Meta returns the column metadata of the current result set, or nil if
// there is none.
func (r *Result) Meta(ctx context.Context) (*Meta, error) {
	if err := r.init(ctx); err != nil {
		return nil, err
	}
	if len(r.metaQ) == 0 {
		return nil, errors.WithStack(session.ErrNoResults)
	}
	return r.metaQ[0], nil
}

// GetRow returns the next row of the current result set, or nil when it is
// exhausted.
func (r *Result) GetRow(ctx context.Context) (*Row, error) {
	if err := r.init(ctx); err != nil {
		return nil, err
	}
	if len(r.metaQ) == 0 {
		return nil, errors.WithStack(session.ErrNoResults)
	}
	cache := r.cacheQ[0]
	for cache.Len() == 0 {
		if !r.frontIsStreaming() {
			return nil, nil
		}
		if err := r.loadMore(ctx, r.prefetch); err != nil {
			return nil, err
		}
	}
	e := cache.Front()
	cache.Remove(e)
	row := e.Value
	return &row, nil
}

// Count buffers the rest of the current result set and returns the number
// of its rows still cached.
func (r *Result) Count(ctx context.Context) (uint64, error) {
	if err := r.init(ctx); err != nil {
		return 0, err
	}
	if len(r.metaQ) == 0 {
		return 0, errors.WithStack(session.ErrNoResults)
	}
	if r.frontIsStreaming() {
		if err := r.loadMore(ctx, 0); err != nil {
			return 0, err
		}
	}
	return uint64(r.cacheQ[0].Len()), nil
}

// NextResult drops what remains of the current result set and moves to the
// next one, reporting whether there is one.
func (r *Result) NextResult(ctx context.Context) (bool, error) {
	if err := r.init(ctx); err != nil {
		return false, err
	}
	if len(r.metaQ) > 0 {
		if r.frontIsStreaming() {
			if err := r.cursor.Close(ctx); err != nil {
				return false, err
			}
			r.cursor = nil
		}
		r.metaQ = r.metaQ[1:]
		r.cacheQ = r.cacheQ[1:]
		if len(r.metaQ) > 0 {
			return true, nil
		}
	}
	return r.openNext(ctx)
}

// StoreAll buffers every remaining result set of the reply. Afterwards the
// reply is fully processed and statistics and warnings are final.
func (r *Result) StoreAll(ctx context.Context) error {
	if err := r.init(ctx); err != nil {
		return err
	}
	for {
		if err := r.loadMore(ctx, 0); err != nil {
			return err
		}
		more, err := r.openNext(ctx)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return r.op.Wait(ctx)
}

// WarningCount drains the whole reply and returns the number of warnings the
// statement accumulated.
func (r *Result) WarningCount(ctx context.Context) (int, error) {
	if err := r.StoreAll(ctx); err != nil {
		return 0, err
	}
	return r.op.Diag().Count(session.SeverityWarning), nil
}

// Warnings drains the whole reply and returns the accumulated warnings.
func (r *Result) Warnings(ctx context.Context) ([]error, error) {
	if err := r.StoreAll(ctx); err != nil {
		return nil, err
	}
	return r.op.Diag().Entries(session.SeverityWarning), nil
}

// AffectedRows is valid once the reply is fully processed, see StoreAll.
func (r *Result) AffectedRows() (uint64, error) {
	return r.op.AffectedRows()
}

func (r *Result) FoundRows() (uint64, error) {
	return r.op.FoundRows()
}

func (r *Result) MatchedRows() (uint64, error) {
	return r.op.MatchedRows()
}

func (r *Result) LastInsertID() (uint64, error) {
	return r.op.LastInsertID()
}

func (r *Result) GeneratedIDs() ([]string, error) {
	return r.op.GeneratedIDs()
}

// Close drops the cached rows and discards whatever is left of the reply.
func (r *Result) Close(ctx context.Context) error {
	if r.closed {
		return nil
	}
	r.closed = true
	var errs []error
	if r.cursor != nil {
		if err := r.cursor.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		r.cursor = nil
	}
	r.metaQ = nil
	r.cacheQ = nil
	if err := r.op.Discard(); err != nil {
		errs = append(errs, err)
	} else if err := r.op.Wait(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Collect(session.ErrDiscardResults, errs...)
}

var _ proto.RowProcessor = (*Result)(nil)

// RowBegin starts assembling one row.
func (r *Result) RowBegin(uint64) bool {
	r.cur = Row{}
	return true
}

func (r *Result) ColNull(uint32) {
	r.cur.Fields = append(r.cur.Fields, nil)
}

func (r *Result) ColData(_ uint32, data []byte) {
	// the buffer is only valid during the callback
	d := make([]byte, len(data))
	copy(d, data)
	r.cur.Fields = append(r.cur.Fields, d)
}

func (r *Result) RowEnd(uint64) {
	if r.filter != nil && !r.filter(r.cur) {
		return
	}
	r.cacheQ[len(r.cacheQ)-1].PushBack(r.cur)
	metrics.RowsFetchedCounter.Inc()
}

func (r *Result) EndOfData() {
	r.backDone = true
}
