// Package roster manages the people that can be marked present and keeps
// the in-memory search snapshot in step with the store.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"rollcall/internal/changefeed"
	"rollcall/internal/model"
	"rollcall/internal/search"
)

var (
	ErrEmptyName     = errors.New("name is required")
	ErrDuplicateName = errors.New("a person with this name already exists")
	ErrNotFound      = errors.New("person not found")
)

// Store is the persistence the roster needs.
type Store interface {
	ListPeople(ctx context.Context) ([]model.Person, error)
	GetPerson(ctx context.Context, id string) (model.Person, error)
	AttendanceCounts(ctx context.Context) (map[string]int, error)
	CreatePeople(ctx context.Context, people []model.Person) ([]model.Person, error)
	UpdatePerson(ctx context.Context, p model.Person) (model.Person, error)
	DeletePerson(ctx context.Context, id string) error
}

// Input is the editable part of a person. Blank phone or notes are stored
// as null.
type Input struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Notes    string `json:"notes"`
}

func (in Input) person(id string) (model.Person, error) {
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return model.Person{}, ErrEmptyName
	}
	return model.Person{
		ID:       id,
		FullName: name,
		Phone:    optional(in.Phone),
		Notes:    optional(in.Notes),
	}, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// ImportResult reports a bulk import.
type ImportResult struct {
	Added   []model.Person `json:"added"`
	Skipped int            `json:"skipped"`
}

// Service owns roster writes. Every successful write reloads the search
// snapshot.
type Service struct {
	store  Store
	engine *search.Engine

	// mu serialises writes so the duplicate check and the insert agree.
	mu sync.Mutex
}

// NewService builds a service over engine. Call Sync to load it.
func NewService(store Store, engine *search.Engine) *Service {
	return &Service{store: store, engine: engine}
}

// Engine exposes the search snapshot kept by this service.
func (s *Service) Engine() *search.Engine {
	return s.engine
}

// Sync reloads people and attendance counts into the search engine.
func (s *Service) Sync(ctx context.Context) error {
	people, err := s.store.ListPeople(ctx)
	if err != nil {
		return fmt.Errorf("list people: %w", err)
	}
	counts, err := s.store.AttendanceCounts(ctx)
	if err != nil {
		return fmt.Errorf("count attendance: %w", err)
	}
	s.engine.Replace(people, counts)
	return nil
}

// Watch resyncs whenever an attendance record changes so ranking counts
// stay fresh.
func (s *Service) Watch(ctx context.Context, events <-chan changefeed.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			if err := s.Sync(ctx); err != nil {
				slog.Warn("roster resync failed", "error", err)
			}
		}
	}
}

// List returns the roster from the snapshot.
func (s *Service) List() []model.Person {
	return s.engine.People()
}

// Get loads one person from the store.
func (s *Service) Get(ctx context.Context, id string) (model.Person, error) {
	return s.store.GetPerson(ctx, id)
}

// Create adds one person. Names that match an existing person after
// trimming and case folding are rejected.
func (s *Service) Create(ctx context.Context, in Input) (model.Person, error) {
	p, err := in.person("")
	if err != nil {
		return model.Person{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine.IsDuplicate(p.FullName) {
		return model.Person{}, fmt.Errorf("%w: %s", ErrDuplicateName, p.FullName)
	}
	created, err := s.store.CreatePeople(ctx, []model.Person{p})
	if err != nil {
		return model.Person{}, err
	}
	s.resync(ctx)
	return created[0], nil
}

// Update edits a person. The new name may only collide with the person's
// own current name.
func (s *Service) Update(ctx context.Context, id string, in Input) (model.Person, error) {
	p, err := in.person(id)
	if err != nil {
		return model.Person{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine.Conflicts(p.FullName, id) {
		return model.Person{}, fmt.Errorf("%w: %s", ErrDuplicateName, p.FullName)
	}
	updated, err := s.store.UpdatePerson(ctx, p)
	if err != nil {
		return model.Person{}, err
	}
	s.resync(ctx)
	return updated, nil
}

// Delete removes a person together with their attendance records.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.DeletePerson(ctx, id); err != nil {
		return err
	}
	s.resync(ctx)
	return nil
}

// Import adds every comma separated name in text that is not already on
// the roster. Repeats within text and names already present are skipped.
func (s *Service) Import(ctx context.Context, text string) (ImportResult, error) {
	var names []string
	for _, n := range strings.Split(text, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return ImportResult{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(names))
	var fresh []model.Person
	for _, n := range names {
		key := search.Normalize(n)
		if seen[key] || s.engine.IsDuplicate(n) {
			continue
		}
		seen[key] = true
		fresh = append(fresh, model.Person{FullName: n})
	}

	result := ImportResult{Added: []model.Person{}, Skipped: len(names) - len(fresh)}
	if len(fresh) == 0 {
		return result, nil
	}
	added, err := s.store.CreatePeople(ctx, fresh)
	if err != nil {
		return ImportResult{}, err
	}
	result.Added = added
	s.resync(ctx)
	return result, nil
}

// resync failures leave the snapshot stale until the next write or event.
func (s *Service) resync(ctx context.Context) {
	if err := s.Sync(ctx); err != nil {
		slog.Warn("roster resync failed", "error", err)
	}
}
