package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/announcement"
	"github.com/trezcool/campus/core/user"
)

const announcementColumns = "id, title, message, target_type, target_role, target_id, created_by, created_at"

type announcementRow struct {
	ID         int64       `db:"id"`
	Title      string      `db:"title"`
	Message    string      `db:"message"`
	TargetType string      `db:"target_type"`
	TargetRole null.String `db:"target_role"`
	TargetID   null.Int64  `db:"target_id"`
	CreatedBy  int64       `db:"created_by"`
	CreatedAt  time.Time   `db:"created_at"`
}

func (r announcementRow) announcement() announcement.Announcement {
	return announcement.Announcement{
		ID:         r.ID,
		Title:      r.Title,
		Message:    r.Message,
		TargetType: announcement.TargetType(r.TargetType),
		TargetRole: user.Role(r.TargetRole.String),
		TargetID:   r.TargetID.Int64,
		CreatedBy:  r.CreatedBy,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type announcementRepository struct {
	base
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *sqlx.DB) *announcementRepository {
	return &announcementRepository{base{db}}
}

func (repo *announcementRepository) CreateAnnouncement(ctx context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	q := `INSERT INTO announcements (title, message, target_type, target_role, target_id, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING ` + announcementColumns
	var r announcementRow
	err := getRow(ctx, repo.conn(ctx), &r, q, a.Title, a.Message, string(a.TargetType), nullString(string(a.TargetRole)),
		nullID(a.TargetID), a.CreatedBy, a.CreatedAt.UTC())
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return r.announcement(), nil
}

// audienceWhere ORs together the targets the audience can see.
func audienceWhere(audience announcement.Audience) where {
	var w where
	if audience.All {
		return w
	}

	var (
		anyOf = []string{"target_type = ?"}
		args  = []interface{}{string(announcement.TargetAll)}
	)
	if audience.Role != "" {
		anyOf = append(anyOf, "(target_type = ? AND target_role = ?)")
		args = append(args, string(announcement.TargetRole), string(audience.Role))
	}
	if len(audience.SectionIDs) > 0 {
		anyOf = append(anyOf, "(target_type = ? AND target_id = ANY(?))")
		args = append(args, string(announcement.TargetSection), pq.Array(audience.SectionIDs))
	}
	if len(audience.ClassIDs) > 0 {
		anyOf = append(anyOf, "(target_type = ? AND target_id = ANY(?))")
		args = append(args, string(announcement.TargetClass), pq.Array(audience.ClassIDs))
	}
	w.add("("+strings.Join(anyOf, " OR ")+")", args...)
	return w
}

func (repo *announcementRepository) QueryAnnouncements(ctx context.Context, audience announcement.Audience, page core.Page) ([]announcement.Announcement, error) {
	w := audienceWhere(audience)

	var rows []announcementRow
	q := "SELECT " + announcementColumns + " FROM announcements" + w.String() + " ORDER BY id DESC" + paging(page)
	if err := selectRows(ctx, repo.conn(ctx), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting announcements")
	}
	anns := make([]announcement.Announcement, 0, len(rows))
	for _, r := range rows {
		anns = append(anns, r.announcement())
	}
	return anns, nil
}
