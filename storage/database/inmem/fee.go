package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/fee"
)

type feeRepository struct {
	db *DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) *feeRepository {
	return &feeRepository{db: db}
}

func (t *tables) studentFee(sf fee.StudentFee) fee.StudentFee {
	sf.HeadName = t.feeHeads[sf.HeadID].Name
	return sf
}

func (repo *feeRepository) CreateHead(ctx context.Context, h fee.Head) (fee.Head, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		for _, other := range t.feeHeads {
			if strings.EqualFold(other.Name, h.Name) {
				return fee.ErrHeadExists
			}
		}
		h.ID = t.nextID("fee_head")
		t.feeHeads[h.ID] = h
		return nil
	})
	if err != nil {
		return fee.Head{}, err
	}
	return h, nil
}

func (repo *feeRepository) GetHead(_ context.Context, id int64) (fee.Head, error) {
	var (
		h  fee.Head
		ok bool
	)
	_ = repo.db.read(func(t *tables) error {
		h, ok = t.feeHeads[id]
		return nil
	})
	if !ok {
		return fee.Head{}, fee.ErrHeadNotFound
	}
	return h, nil
}

func (repo *feeRepository) QueryHeads(context.Context) ([]fee.Head, error) {
	heads := make([]fee.Head, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, h := range t.feeHeads {
			heads = append(heads, h)
		}
		return nil
	})
	sort.Slice(heads, func(i, j int) bool { return heads[i].ID < heads[j].ID })
	return heads, nil
}

func (repo *feeRepository) CreateStudentFees(ctx context.Context, fees []fee.StudentFee) ([]fee.StudentFee, error) {
	saved := make([]fee.StudentFee, 0, len(fees))
	err := repo.db.write(ctx, func(t *tables) error {
		for _, sf := range fees {
			sf.ID = t.nextID("student_fee")
			t.studentFees[sf.ID] = sf
			saved = append(saved, t.studentFee(sf))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (repo *feeRepository) GetStudentFee(_ context.Context, id int64) (fee.StudentFee, error) {
	var (
		sf fee.StudentFee
		ok bool
	)
	_ = repo.db.read(func(t *tables) error {
		if sf, ok = t.studentFees[id]; ok {
			sf = t.studentFee(sf)
		}
		return nil
	})
	if !ok {
		return fee.StudentFee{}, fee.ErrNotFound
	}
	return sf, nil
}

func (repo *feeRepository) UpdateStudentFee(ctx context.Context, sf fee.StudentFee) (fee.StudentFee, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.studentFees[sf.ID]; !ok {
			return fee.ErrNotFound
		}
		t.studentFees[sf.ID] = sf
		sf = t.studentFee(sf)
		return nil
	})
	if err != nil {
		return fee.StudentFee{}, err
	}
	return sf, nil
}

func (repo *feeRepository) QueryStudentFees(_ context.Context, filter fee.Filter, page core.Page) ([]fee.StudentFee, error) {
	students := idSet(filter.StudentIDs)
	fees := make([]fee.StudentFee, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, sf := range t.studentFees {
			if _, ok := students[sf.StudentID]; len(students) > 0 && !ok {
				continue
			}
			if (filter.StudentID != 0 && sf.StudentID != filter.StudentID) ||
				(filter.HeadID != 0 && sf.HeadID != filter.HeadID) ||
				(filter.Status != "" && sf.Status != filter.Status) ||
				(filter.Unpaid && sf.Status == fee.StatusPaid) ||
				(!filter.DueBefore.IsZero() && !sf.DueDate.Before(filter.DueBefore)) {
				continue
			}
			fees = append(fees, t.studentFee(sf))
		}
		return nil
	})
	sort.Slice(fees, func(i, j int) bool {
		if fees[i].DueDate.Equal(fees[j].DueDate) {
			return fees[i].ID < fees[j].ID
		}
		return fees[i].DueDate.Before(fees[j].DueDate)
	})
	start, end := paginate(len(fees), page)
	return fees[start:end], nil
}

func (repo *feeRepository) CreatePayment(ctx context.Context, p fee.Payment) (fee.Payment, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.studentFees[p.StudentFeeID]; !ok {
			return fee.ErrNotFound
		}
		p.ID = t.nextID("payment")
		t.payments[p.ID] = p
		return nil
	})
	if err != nil {
		return fee.Payment{}, err
	}
	return p, nil
}

func (repo *feeRepository) QueryPayments(_ context.Context, studentFeeID int64) ([]fee.Payment, error) {
	pmts := make([]fee.Payment, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, p := range t.payments {
			if p.StudentFeeID == studentFeeID {
				pmts = append(pmts, p)
			}
		}
		return nil
	})
	sort.Slice(pmts, func(i, j int) bool { return pmts[i].ID < pmts[j].ID })
	return pmts, nil
}
