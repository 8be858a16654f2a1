package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"rollcall/internal/model"
	"rollcall/internal/search"
	"rollcall/internal/store"
)

// Repository persists people in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const personColumns = `id, full_name, phone, notes, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (model.Person, error) {
	var p model.Person
	err := row.Scan(&p.ID, &p.FullName, &p.Phone, &p.Notes, &p.CreatedAt)
	return p, err
}

// ListPeople returns the roster ordered by name.
func (r *Repository) ListPeople(ctx context.Context) ([]model.Person, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+personColumns+` FROM people ORDER BY full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var people []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

// GetPerson loads one person.
func (r *Repository) GetPerson(ctx context.Context, id string) (model.Person, error) {
	if !store.ValidID(id) {
		return model.Person{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p, err := scanPerson(r.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Person{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, err
}

// AttendanceCounts returns the number of records per person id.
func (r *Repository) AttendanceCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT person_id, COUNT(*) FROM attendance_records GROUP BY person_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// CreatePeople inserts people in one transaction. Ids are assigned here.
func (r *Repository) CreatePeople(ctx context.Context, people []model.Person) ([]model.Person, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	created := make([]model.Person, 0, len(people))
	for _, p := range people {
		p.ID = uuid.NewString()
		row := tx.QueryRowContext(ctx, `
			INSERT INTO people (id, full_name, name_key, phone, notes)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`, p.ID, p.FullName, search.Normalize(p.FullName), p.Phone, p.Notes)
		if err := row.Scan(&p.CreatedAt); err != nil {
			if store.IsUniqueViolation(err) {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateName, p.FullName)
			}
			return nil, err
		}
		created = append(created, p)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdatePerson overwrites name, phone and notes.
func (r *Repository) UpdatePerson(ctx context.Context, p model.Person) (model.Person, error) {
	if !store.ValidID(p.ID) {
		return model.Person{}, fmt.Errorf("%w: %s", ErrNotFound, p.ID)
	}
	updated, err := scanPerson(r.db.QueryRowContext(ctx, `
		UPDATE people SET full_name = $2, name_key = $3, phone = $4, notes = $5
		WHERE id = $1
		RETURNING `+personColumns, p.ID, p.FullName, search.Normalize(p.FullName), p.Phone, p.Notes))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.Person{}, fmt.Errorf("%w: %s", ErrNotFound, p.ID)
	case store.IsUniqueViolation(err):
		return model.Person{}, fmt.Errorf("%w: %s", ErrDuplicateName, p.FullName)
	}
	return updated, err
}

// DeletePerson removes a person and, by cascade, their records.
func (r *Repository) DeletePerson(ctx context.Context, id string) error {
	if !store.ValidID(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM people WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
