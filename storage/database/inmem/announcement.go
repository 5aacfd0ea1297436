package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/announcement"
)

type announcementRepository struct {
	db *DB
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *DB) *announcementRepository {
	return &announcementRepository{db: db}
}

func (repo *announcementRepository) CreateAnnouncement(ctx context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		a.ID = t.nextID("announcement")
		t.announcements[a.ID] = a
		return nil
	})
	return a, err
}

func visibleTo(a announcement.Announcement, audience announcement.Audience, sections, classes map[int64]struct{}) bool {
	if audience.All {
		return true
	}
	switch a.TargetType {
	case announcement.TargetAll:
		return true
	case announcement.TargetRole:
		return a.TargetRole == audience.Role
	case announcement.TargetSection:
		_, ok := sections[a.TargetID]
		return ok
	case announcement.TargetClass:
		_, ok := classes[a.TargetID]
		return ok
	}
	return false
}

func (repo *announcementRepository) QueryAnnouncements(_ context.Context, audience announcement.Audience, page core.Page) ([]announcement.Announcement, error) {
	sections, classes := idSet(audience.SectionIDs), idSet(audience.ClassIDs)
	anns := make([]announcement.Announcement, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, a := range t.announcements {
			if visibleTo(a, audience, sections, classes) {
				anns = append(anns, a)
			}
		}
		return nil
	})
	sort.Slice(anns, func(i, j int) bool { return anns[i].ID > anns[j].ID })
	start, end := paginate(len(anns), page)
	return anns[start:end], nil
}
