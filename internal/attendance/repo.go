package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/changefeed"
	"rollcall/internal/history"
	"rollcall/internal/model"
	"rollcall/internal/store"
)

// Repository persists meetings and attendance records in Postgres and
// announces every record change on the feed.
type Repository struct {
	db   *sql.DB
	feed changefeed.Feed
}

// NewRepository creates a repo. feed may be nil.
func NewRepository(db *sql.DB, feed changefeed.Feed) *Repository {
	return &Repository{db: db, feed: feed}
}

// ListMeetings returns every meeting in display order.
func (r *Repository) ListMeetings(ctx context.Context) ([]model.Meeting, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, display_order
		FROM meetings
		ORDER BY display_order, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meetings []model.Meeting
	for rows.Next() {
		var m model.Meeting
		if err := rows.Scan(&m.ID, &m.Name, &m.DisplayOrder); err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// ListEntries returns one meeting date joined with people, newest mark
// first. Records whose person vanished are listed under model.UnknownName.
func (r *Repository) ListEntries(ctx context.Context, meetingID, date string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ar.id, ar.meeting_id, ar.person_id, ar.date::text, ar.marked_at,
		       p.id, p.full_name, p.phone, p.notes, p.created_at
		FROM attendance_records ar
		LEFT JOIN people p ON p.id = ar.person_id
		WHERE ar.meeting_id = $1 AND ar.date = $2::date
		ORDER BY ar.marked_at DESC
	`, meetingID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			personID  sql.NullString
			fullName  sql.NullString
			createdAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.MeetingID, &e.PersonID, &e.Date, &e.MarkedAt,
			&personID, &fullName, &e.Person.Phone, &e.Person.Notes, &createdAt); err != nil {
			return nil, err
		}
		e.State = Confirmed
		e.Person.ID = e.PersonID
		e.Person.FullName = model.UnknownName
		if fullName.Valid {
			e.Person.FullName = fullName.String
			e.Person.CreatedAt = createdAt.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListRecords returns records matching f, oldest first.
func (r *Repository) ListRecords(ctx context.Context, f history.RecordFilter) ([]model.Record, error) {
	query := `SELECT id, meeting_id, person_id, date::text, marked_at FROM attendance_records`
	var (
		args    []any
		clauses []string
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.MeetingID != "" {
		add("meeting_id = $%d", f.MeetingID)
	}
	if f.PersonID != "" {
		add("person_id = $%d", f.PersonID)
	}
	if f.Date != "" {
		add("date = $%d::date", f.Date)
	}
	if f.Since != "" {
		add("date >= $%d::date", f.Since)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY date, marked_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var rec model.Record
		if err := rows.Scan(&rec.ID, &rec.MeetingID, &rec.PersonID, &rec.Date, &rec.MarkedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// InsertRecord writes a new attendance record. A second record for the same
// meeting, person and date yields ErrDuplicate.
func (r *Repository) InsertRecord(ctx context.Context, meetingID, personID, date string) (model.Record, error) {
	rec := model.Record{
		ID:        uuid.NewString(),
		MeetingID: meetingID,
		PersonID:  personID,
		Date:      date,
		MarkedAt:  time.Now().UTC(),
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, meeting_id, person_id, date, marked_at)
		VALUES ($1, $2, $3, $4::date, $5)
		RETURNING date::text, marked_at
	`, rec.ID, rec.MeetingID, rec.PersonID, rec.Date, rec.MarkedAt)
	if err := row.Scan(&rec.Date, &rec.MarkedAt); err != nil {
		if store.IsUniqueViolation(err) {
			return model.Record{}, ErrDuplicate
		}
		return model.Record{}, err
	}
	r.publish(ctx, changefeed.Event{Type: changefeed.Insert, New: &rec})
	return rec, nil
}

// DeleteRecord removes a record by id. Deleting a missing record yields
// ErrNotFound.
func (r *Repository) DeleteRecord(ctx context.Context, id string) error {
	return r.deleteWhere(ctx, id, `id = $1`, id)
}

// DeletePersonRecord removes one of a person's records. A record that does
// not exist or belongs to someone else yields ErrNotFound.
func (r *Repository) DeletePersonRecord(ctx context.Context, personID, id string) error {
	return r.deleteWhere(ctx, id, `id = $1 AND person_id = $2`, id, personID)
}

func (r *Repository) deleteWhere(ctx context.Context, id, where string, keys ...string) error {
	args := make([]any, len(keys))
	for i, key := range keys {
		if !store.ValidID(key) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		args[i] = key
	}
	var old model.Record
	row := r.db.QueryRowContext(ctx, `
		DELETE FROM attendance_records WHERE `+where+`
		RETURNING id, meeting_id, person_id, date::text, marked_at
	`, args...)
	if err := row.Scan(&old.ID, &old.MeetingID, &old.PersonID, &old.Date, &old.MarkedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	r.publish(ctx, changefeed.Event{Type: changefeed.Delete, Old: &old})
	return nil
}

// publish is best effort; subscribers resync on their next event.
func (r *Repository) publish(ctx context.Context, evt changefeed.Event) {
	if r.feed == nil {
		return
	}
	if err := r.feed.Publish(context.WithoutCancel(ctx), evt); err != nil {
		slog.Warn("change feed publish failed", "type", evt.Type, "meeting_id", evt.MeetingID(), "error", err)
	}
}
