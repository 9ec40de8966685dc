package capture

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"

	"sql-profiler/pkg/profile"
)

const startedAtKey = "sqlprofile:started_at"

// Recorder is a gorm plugin that keeps a running log of every statement the
// database handle executes, with its duration in seconds.
type Recorder struct {
	mu      sync.Mutex
	records []profile.RawQueryRecord
}

var (
	_ gorm.Plugin = (*Recorder)(nil)
	_ Source      = (*Recorder)(nil)
)

// NewRecorder creates an empty recorder. Install it with db.Use.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Name() string {
	return "sqlprofile:recorder"
}

// Initialize registers timing callbacks around gorm's statement processors.
func (r *Recorder) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("sqlprofile:before_create", r.start),
		cb.Create().After("gorm:create").Register("sqlprofile:after_create", r.finish),
		cb.Query().Before("gorm:query").Register("sqlprofile:before_query", r.start),
		cb.Query().After("gorm:query").Register("sqlprofile:after_query", r.finish),
		cb.Update().Before("gorm:update").Register("sqlprofile:before_update", r.start),
		cb.Update().After("gorm:update").Register("sqlprofile:after_update", r.finish),
		cb.Delete().Before("gorm:delete").Register("sqlprofile:before_delete", r.start),
		cb.Delete().After("gorm:delete").Register("sqlprofile:after_delete", r.finish),
		cb.Row().Before("gorm:row").Register("sqlprofile:before_row", r.start),
		cb.Row().After("gorm:row").Register("sqlprofile:after_row", r.finish),
		cb.Raw().Before("gorm:raw").Register("sqlprofile:before_raw", r.start),
		cb.Raw().After("gorm:raw").Register("sqlprofile:after_raw", r.finish),
	)
}

func (r *Recorder) start(db *gorm.DB) {
	db.InstanceSet(startedAtKey, time.Now())
}

func (r *Recorder) finish(db *gorm.DB) {
	if db.DryRun || db.Statement == nil || db.Statement.SQL.Len() == 0 {
		return
	}
	v, ok := db.InstanceGet(startedAtKey)
	if !ok {
		return
	}
	startedAt, ok := v.(time.Time)
	if !ok {
		return
	}

	elapsed := time.Since(startedAt)
	sql := db.Dialector.Explain(db.Statement.SQL.String(), db.Statement.Vars...)
	r.add(profile.RawQueryRecord{
		SQL:  sql,
		Time: strconv.FormatFloat(elapsed.Seconds(), 'f', 6, 64),
	})
}

func (r *Recorder) add(rec profile.RawQueryRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// Mark returns the number of statements recorded so far.
func (r *Recorder) Mark() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Since returns a copy of the statements recorded after mark.
func (r *Recorder) Since(mark int) ([]profile.RawQueryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mark < 0 || mark > len(r.records) {
		mark = len(r.records)
	}
	out := make([]profile.RawQueryRecord, len(r.records)-mark)
	copy(out, r.records[mark:])
	return out, nil
}

// Records returns a copy of everything recorded.
func (r *Recorder) Records() []profile.RawQueryRecord {
	out, _ := r.Since(0)
	return out
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}
