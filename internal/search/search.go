// Package search ranks roster members against a free-text query.
package search

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"rollcall/internal/model"
)

// Match classes, highest first.
const (
	ScoreExact     = 100
	ScorePrefix    = 90
	ScoreWordStart = 80
	ScoreSubstring = 70
	ScoreNotes     = 50
)

// Limit caps the number of results returned by Search.
const Limit = 20

// Result is one ranked candidate.
type Result struct {
	Person        model.Person `json:"person"`
	Score         int          `json:"score"`
	AlreadyMarked bool         `json:"already_marked"`
	NotesMatch    bool         `json:"notes_match"`
}

// Engine holds an in-memory roster snapshot. The snapshot is only ever
// swapped as a whole.
type Engine struct {
	mu     sync.RWMutex
	people []model.Person
	counts map[string]int
}

// NewEngine returns an empty engine.
func NewEngine() *Engine {
	return &Engine{counts: map[string]int{}}
}

// Replace installs a new roster and attendance-count snapshot.
func (e *Engine) Replace(people []model.Person, counts map[string]int) {
	p := make([]model.Person, len(people))
	copy(p, people)
	c := make(map[string]int, len(counts))
	for id, n := range counts {
		c[id] = n
	}

	e.mu.Lock()
	e.people = p
	e.counts = c
	e.mu.Unlock()
}

// People returns a copy of the current roster.
func (e *Engine) People() []model.Person {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.Person, len(e.people))
	copy(out, e.people)
	return out
}

// Count returns the historical attendance count of a person.
func (e *Engine) Count(personID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.counts[personID]
}

// Lookup finds a person by id.
func (e *Engine) Lookup(personID string) (model.Person, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, p := range e.people {
		if p.ID == personID {
			return p, true
		}
	}
	return model.Person{}, false
}

// Search ranks the roster against query. marked holds the person ids already
// marked present in the current session.
func (e *Engine) Search(query string, marked map[string]bool) []Result {
	q := strings.TrimSpace(query)
	if q == "" {
		return []Result{}
	}
	q = fold(q)

	e.mu.RLock()
	people := e.people
	counts := e.counts
	e.mu.RUnlock()

	results := make([]Result, 0)
	for _, p := range people {
		s := score(p, q)
		if s == 0 {
			continue
		}
		results = append(results, Result{
			Person:        p,
			Score:         s,
			AlreadyMarked: marked[p.ID],
			NotesMatch:    s <= ScoreNotes,
		})
	}

	coll := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.AlreadyMarked != b.AlreadyMarked {
			return !a.AlreadyMarked
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if ca, cb := counts[a.Person.ID], counts[b.Person.ID]; ca != cb {
			return ca > cb
		}
		return coll.CompareString(a.Person.FullName, b.Person.FullName) < 0
	})

	if len(results) > Limit {
		results = results[:Limit]
	}
	return results
}

// IsDuplicate reports whether name collides with an existing roster entry
// after trimming and case folding.
func (e *Engine) IsDuplicate(name string) bool {
	return e.Conflicts(name, "")
}

// Conflicts is IsDuplicate ignoring the person with id exceptID, for edits.
func (e *Engine) Conflicts(name, exceptID string) bool {
	n := Normalize(name)
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, p := range e.people {
		if p.ID != exceptID && Normalize(p.FullName) == n {
			return true
		}
	}
	return false
}

// Normalize is the comparison key for full names.
func Normalize(name string) string {
	return fold(strings.TrimSpace(name))
}

func score(p model.Person, q string) int {
	name := fold(p.FullName)
	switch {
	case name == q:
		return ScoreExact
	case strings.HasPrefix(name, q):
		return ScorePrefix
	}
	for _, word := range strings.Fields(name) {
		if strings.HasPrefix(word, q) {
			return ScoreWordStart
		}
	}
	if strings.Contains(name, q) {
		return ScoreSubstring
	}
	if p.Notes != nil && strings.Contains(fold(*p.Notes), q) {
		return ScoreNotes
	}
	return 0
}

// fold builds a fresh caser per call; a cases.Caser must not be shared
// between goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}
