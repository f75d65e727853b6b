package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"proxylog/internal/model"
	"proxylog/internal/parse"
	"proxylog/internal/util/logx"
)

// Appender is the part of the store the pump writes to.
type Appender interface {
	Append(ctx context.Context, recs ...model.Record) (int, error)
}

// PumpStats summarises one Pump run.
type PumpStats struct {
	Lines   int
	Added   int
	Skipped int
}

const (
	pumpBatch = 256
	pumpIdle  = 200 * time.Millisecond
)

// Pump parses lines into records and appends them to dst in batches. A batch
// is flushed when full or when the source has been idle for a moment, so a
// followed log shows up promptly. Malformed lines are logged and skipped.
// Pump returns when lines is closed or ctx is cancelled; the first source error
// is returned alongside any store error.
func Pump(ctx context.Context, lines <-chan Line, errs <-chan error, dst Appender) (PumpStats, error) {
	var (
		st     PumpStats
		batch  []model.Record
		srcErr error
	)
	noteErr := func(err error) {
		logx.Warnf("ingest: %v", err)
		if srcErr == nil {
			srcErr = err
		}
	}
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := dst.Append(ctx, batch...)
		st.Added += n
		batch = batch[:0]
		return err
	}
	idle := time.NewTicker(pumpIdle)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			noteErr(err)
		case <-idle.C:
			if err := flush(); err != nil {
				return st, err
			}
		case l, ok := <-lines:
			if !ok {
				if errs != nil {
					for err := range errs {
						noteErr(err)
					}
				}
				return st, errors.Join(flush(), srcErr)
			}
			st.Lines++
			rec, err := parse.Record(l.Text)
			if errors.Is(err, parse.ErrEmptyLine) {
				continue
			}
			if err != nil {
				st.Skipped++
				logx.Warnf("ingest: %s line %d: %v", l.Source, st.Lines, err)
				continue
			}
			if rec.UUID == "" {
				rec.UUID = uuid.NewString()
			}
			batch = append(batch, rec)
			if len(batch) >= pumpBatch {
				if err := flush(); err != nil {
					return st, err
				}
			}
		}
	}
}
