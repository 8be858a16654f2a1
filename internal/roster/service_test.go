package roster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"rollcall/internal/changefeed"
	"rollcall/internal/model"
	"rollcall/internal/search"
)

type fakeStore struct {
	people  map[string]model.Person
	counts  map[string]int
	seq     int
	creates int
}

func newFakeStore(names ...string) *fakeStore {
	f := &fakeStore{people: map[string]model.Person{}, counts: map[string]int{}}
	for _, n := range names {
		f.seq++
		id := fmt.Sprintf("p%d", f.seq)
		f.people[id] = model.Person{ID: id, FullName: n}
	}
	return f
}

func (f *fakeStore) ListPeople(context.Context) ([]model.Person, error) {
	out := make([]model.Person, 0, len(f.people))
	for _, p := range f.people {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (f *fakeStore) GetPerson(_ context.Context, id string) (model.Person, error) {
	p, ok := f.people[id]
	if !ok {
		return model.Person{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) AttendanceCounts(context.Context) (map[string]int, error) {
	return f.counts, nil
}

func (f *fakeStore) CreatePeople(_ context.Context, people []model.Person) ([]model.Person, error) {
	f.creates++
	out := make([]model.Person, 0, len(people))
	for _, p := range people {
		for _, existing := range f.people {
			if strings.EqualFold(existing.FullName, p.FullName) {
				return nil, ErrDuplicateName
			}
		}
		f.seq++
		p.ID = fmt.Sprintf("p%d", f.seq)
		f.people[p.ID] = p
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) UpdatePerson(_ context.Context, p model.Person) (model.Person, error) {
	if _, ok := f.people[p.ID]; !ok {
		return model.Person{}, ErrNotFound
	}
	f.people[p.ID] = p
	return p, nil
}

func (f *fakeStore) DeletePerson(_ context.Context, id string) error {
	if _, ok := f.people[id]; !ok {
		return ErrNotFound
	}
	delete(f.people, id)
	return nil
}

func newTestService(t *testing.T, store *fakeStore) *Service {
	t.Helper()
	s := NewService(store, search.NewEngine())
	if err := s.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		wantErr error
	}{
		{"new name", Input{FullName: "  Mina Adel ", Notes: "choir"}, nil},
		{"blank", Input{FullName: "   "}, ErrEmptyName},
		{"duplicate ignoring case", Input{FullName: "john SMITH"}, ErrDuplicateName},
		{"duplicate with spaces", Input{FullName: " John Smith  "}, ErrDuplicateName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore("John Smith")
			s := newTestService(t, store)

			p, err := s.Create(context.Background(), tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if store.creates != 0 {
					t.Error("store called for a rejected name")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if p.FullName != "Mina Adel" || p.Notes == nil || *p.Notes != "choir" || p.Phone != nil {
				t.Errorf("created = %+v", p)
			}
			if !s.Engine().IsDuplicate("mina adel") {
				t.Error("search snapshot not refreshed")
			}
		})
	}
}

func TestUpdateAllowsOwnName(t *testing.T) {
	store := newFakeStore("John Smith", "Jane Doe")
	s := newTestService(t, store)
	var johnID string
	for id, p := range store.people {
		if p.FullName == "John Smith" {
			johnID = id
		}
	}

	if _, err := s.Update(context.Background(), johnID, Input{FullName: "JOHN SMITH", Phone: "555"}); err != nil {
		t.Fatalf("renaming to own name: %v", err)
	}
	if _, err := s.Update(context.Background(), johnID, Input{FullName: "jane doe"}); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("renaming onto another person: %v", err)
	}
	if _, err := s.Update(context.Background(), "missing", Input{FullName: "Nobody"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("updating missing person: %v", err)
	}

	p, _ := s.Engine().Lookup(johnID)
	if p.FullName != "JOHN SMITH" || p.Phone == nil || *p.Phone != "555" {
		t.Errorf("snapshot = %+v", p)
	}
}

func TestDelete(t *testing.T) {
	store := newFakeStore("John Smith")
	s := newTestService(t, store)

	if err := s.Delete(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}
	if len(s.List()) != 0 {
		t.Errorf("snapshot still lists %v", s.List())
	}
	if err := s.Delete(context.Background(), "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v", err)
	}
}

func TestImport(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantAdded   []string
		wantSkipped int
		wantErr     error
	}{
		{"adds new names", "Alice, Bob", []string{"Alice", "Bob"}, 0, nil},
		{"skips existing", "john smith, Alice", []string{"Alice"}, 1, nil},
		{"skips repeats in input", "Alice, alice ,ALICE, Bob", []string{"Alice", "Bob"}, 2, nil},
		{"all existing", "John Smith", []string{}, 1, nil},
		{"ignores empty items", " , Alice,, ", []string{"Alice"}, 0, nil},
		{"nothing to import", " , ,", nil, 0, ErrEmptyName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore("John Smith")
			s := newTestService(t, store)

			res, err := s.Import(context.Background(), tt.text)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			got := make([]string, len(res.Added))
			for i, p := range res.Added {
				got[i] = p.FullName
			}
			if strings.Join(got, "|") != strings.Join(tt.wantAdded, "|") {
				t.Errorf("added = %v, want %v", got, tt.wantAdded)
			}
			if res.Skipped != tt.wantSkipped {
				t.Errorf("skipped = %d, want %d", res.Skipped, tt.wantSkipped)
			}
			if len(tt.wantAdded) == 0 && store.creates != 0 {
				t.Error("store called with nothing to add")
			}
			if len(s.List()) != 1+len(tt.wantAdded) {
				t.Errorf("snapshot has %d people", len(s.List()))
			}
		})
	}
}

func TestWatchRefreshesCounts(t *testing.T) {
	store := newFakeStore("John Smith")
	s := newTestService(t, store)

	store.counts["p1"] = 3
	events := make(chan changefeed.Event, 1)
	events <- changefeed.Event{Type: changefeed.Insert, New: &model.Record{PersonID: "p1"}}
	close(events)
	s.Watch(context.Background(), events)

	if got := s.Engine().Count("p1"); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
}
