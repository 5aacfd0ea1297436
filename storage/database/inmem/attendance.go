package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/campus/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) UpsertRecords(ctx context.Context, records []attendance.Record) ([]attendance.Record, error) {
	saved := make([]attendance.Record, 0, len(records))
	err := repo.db.write(ctx, func(t *tables) error {
		for _, r := range records {
			for id, existing := range t.attendance {
				if existing.StudentID == r.StudentID && existing.Date.Equal(r.Date) {
					r.ID = id
					break
				}
			}
			if r.ID == 0 {
				r.ID = t.nextID("attendance")
			}
			t.attendance[r.ID] = r
			saved = append(saved, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, filter attendance.Filter) ([]attendance.Record, error) {
	students := idSet(filter.StudentIDs)
	records := make([]attendance.Record, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, r := range t.attendance {
			if _, ok := students[r.StudentID]; len(students) > 0 && !ok {
				continue
			}
			if !filter.From.IsZero() && r.Date.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && r.Date.After(filter.To) {
				continue
			}
			records = append(records, r)
		}
		return nil
	})
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date.Equal(records[j].Date) {
			return records[i].StudentID < records[j].StudentID
		}
		return records[i].Date.Before(records[j].Date)
	})
	return records, nil
}
