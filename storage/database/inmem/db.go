// Package inmemdb is a Record Store kept in memory, used by tests and local runs without Postgres.
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/academic"
	"github.com/trezcool/campus/core/announcement"
	"github.com/trezcool/campus/core/attendance"
	"github.com/trezcool/campus/core/exam"
	"github.com/trezcool/campus/core/fee"
	"github.com/trezcool/campus/core/homework"
	"github.com/trezcool/campus/core/notification"
	"github.com/trezcool/campus/core/roster"
	"github.com/trezcool/campus/core/user"
)

type parentLink struct {
	ParentID  int64
	StudentID int64
}

type tables struct {
	seq map[string]int64

	users         map[int64]user.User
	periods       map[int64]academic.Period
	classes       map[int64]academic.ClassGroup
	sections      map[int64]academic.Section
	subjects      map[int64]academic.Subject
	assignments   map[int64]academic.Assignment
	students      map[int64]roster.Student
	teachers      map[int64]roster.Teacher
	parents       map[int64]roster.Parent
	links         []parentLink
	attendance    map[int64]attendance.Record
	homework      map[int64]homework.Homework
	submissions   map[int64]homework.Submission
	exams         map[int64]exam.Exam
	marks         map[int64]exam.Mark
	feeHeads      map[int64]fee.Head
	studentFees   map[int64]fee.StudentFee
	payments      map[int64]fee.Payment
	announcements map[int64]announcement.Announcement
	notifications map[int64]notification.Notification
}

func newTables() *tables {
	return &tables{
		seq:           make(map[string]int64),
		users:         make(map[int64]user.User),
		periods:       make(map[int64]academic.Period),
		classes:       make(map[int64]academic.ClassGroup),
		sections:      make(map[int64]academic.Section),
		subjects:      make(map[int64]academic.Subject),
		assignments:   make(map[int64]academic.Assignment),
		students:      make(map[int64]roster.Student),
		teachers:      make(map[int64]roster.Teacher),
		parents:       make(map[int64]roster.Parent),
		attendance:    make(map[int64]attendance.Record),
		homework:      make(map[int64]homework.Homework),
		submissions:   make(map[int64]homework.Submission),
		exams:         make(map[int64]exam.Exam),
		marks:         make(map[int64]exam.Mark),
		feeHeads:      make(map[int64]fee.Head),
		studentFees:   make(map[int64]fee.StudentFee),
		payments:      make(map[int64]fee.Payment),
		announcements: make(map[int64]announcement.Announcement),
		notifications: make(map[int64]notification.Notification),
	}
}

// clone copies every table; rows are values so a shallow copy of each map is enough.
func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.seq {
		c.seq[k] = v
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.periods {
		c.periods[k] = v
	}
	for k, v := range t.classes {
		c.classes[k] = v
	}
	for k, v := range t.sections {
		c.sections[k] = v
	}
	for k, v := range t.subjects {
		c.subjects[k] = v
	}
	for k, v := range t.assignments {
		c.assignments[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.teachers {
		c.teachers[k] = v
	}
	for k, v := range t.parents {
		c.parents[k] = v
	}
	c.links = append(c.links, t.links...)
	for k, v := range t.attendance {
		c.attendance[k] = v
	}
	for k, v := range t.homework {
		c.homework[k] = v
	}
	for k, v := range t.submissions {
		c.submissions[k] = v
	}
	for k, v := range t.exams {
		c.exams[k] = v
	}
	for k, v := range t.marks {
		c.marks[k] = v
	}
	for k, v := range t.feeHeads {
		c.feeHeads[k] = v
	}
	for k, v := range t.studentFees {
		c.studentFees[k] = v
	}
	for k, v := range t.payments {
		c.payments[k] = v
	}
	for k, v := range t.announcements {
		c.announcements[k] = v
	}
	for k, v := range t.notifications {
		c.notifications[k] = v
	}
	return c
}

func (t *tables) nextID(table string) int64 {
	t.seq[table]++
	return t.seq[table]
}

// DB holds every table behind one lock.
// Transactions are serialized by txMu; writes made outside a transaction take txMu too,
// so restoring the snapshot of a failed transaction never discards someone else's write.
type DB struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	t    *tables
}

var _ core.Transactor = (*DB)(nil) // interface compliance check

func NewDB() *DB {
	return &DB{t: newTables()}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

// InTx runs fn atomically: if fn fails, every table is restored to its state before the call.
// Nested calls join the outer transaction. Callbacks registered with core.AfterCommit run once the outermost call succeeds.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	db.txMu.Lock()
	db.mu.RLock()
	snapshot := db.t.clone()
	db.mu.RUnlock()

	txCtx, hooks := core.WithTxHooks(context.WithValue(ctx, txKey{}, true))
	if err := fn(txCtx); err != nil {
		db.mu.Lock()
		db.t = snapshot
		db.mu.Unlock()
		db.txMu.Unlock()
		return err
	}
	db.txMu.Unlock()

	hooks.Run()
	return nil
}

func (db *DB) read(fn func(t *tables) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(db.t)
}

func (db *DB) write(ctx context.Context, fn func(t *tables) error) error {
	if !inTx(ctx) {
		db.txMu.Lock()
		defer db.txMu.Unlock()
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(db.t)
}

// Truncate empties every table.
func (db *DB) Truncate() {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	db.mu.Lock()
	db.t = newTables()
	db.mu.Unlock()
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func paginate(n int, page core.Page) (start, end int) {
	start = page.Offset
	if start > n {
		start = n
	}
	end = n
	if page.Limit > 0 && start+page.Limit < n {
		end = start + page.Limit
	}
	return start, end
}
