package search

import (
	"fmt"
	"testing"

	"rollcall/internal/model"
)

func person(id, name string) model.Person {
	return model.Person{ID: id, FullName: name}
}

func withNotes(p model.Person, notes string) model.Person {
	p.Notes = &notes
	return p
}

func names(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Person.FullName
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSearchTieBreaksOnCountThenName(t *testing.T) {
	e := NewEngine()
	e.Replace([]model.Person{
		person("1", "John Smith"),
		person("2", "Johnny Appleseed"),
		person("3", "Jon Snow"),
	}, map[string]int{"1": 5, "2": 2, "3": 5})

	got := e.Search("jo", nil)
	want := []string{"John Smith", "Jon Snow", "Johnny Appleseed"}
	if !equal(names(got), want) {
		t.Fatalf("order = %v, want %v", names(got), want)
	}
	for _, r := range got {
		if r.Score != got[0].Score {
			t.Errorf("%s scored %d, want all equal to %d", r.Person.FullName, r.Score, got[0].Score)
		}
	}
}

func TestSearchScoreClasses(t *testing.T) {
	e := NewEngine()
	e.Replace([]model.Person{
		person("exact", "Ann"),
		person("prefix", "Annabel Lee"),
		person("word", "Mary Anne"),
		person("sub", "Joanna"),
		withNotes(person("notes", "Zed"), "sister of ann"),
		person("none", "Bob"),
	}, nil)

	got := e.Search("ANN", nil)
	wantNames := []string{"Ann", "Annabel Lee", "Mary Anne", "Joanna", "Zed"}
	wantScores := []int{ScoreExact, ScorePrefix, ScoreWordStart, ScoreSubstring, ScoreNotes}
	if !equal(names(got), wantNames) {
		t.Fatalf("order = %v, want %v", names(got), wantNames)
	}
	for i, r := range got {
		if r.Score != wantScores[i] {
			t.Errorf("%s score = %d, want %d", r.Person.FullName, r.Score, wantScores[i])
		}
		if r.NotesMatch != (wantScores[i] == ScoreNotes) {
			t.Errorf("%s NotesMatch = %v", r.Person.FullName, r.NotesMatch)
		}
	}
}

func TestSearchMarkedSinkToBottom(t *testing.T) {
	e := NewEngine()
	e.Replace([]model.Person{person("1", "Sam"), person("2", "Samantha")}, nil)

	got := e.Search("sam", map[string]bool{"1": true})
	if !equal(names(got), []string{"Samantha", "Sam"}) {
		t.Fatalf("order = %v", names(got))
	}
	if got[0].AlreadyMarked || !got[1].AlreadyMarked {
		t.Errorf("AlreadyMarked flags wrong: %+v", got)
	}
}

func TestSearchNoMatchOrBlank(t *testing.T) {
	e := NewEngine()
	e.Replace([]model.Person{person("1", "John Smith")}, nil)

	for _, q := range []string{"xyz123", "", "   \t"} {
		if got := e.Search(q, nil); len(got) != 0 {
			t.Errorf("Search(%q) = %v, want empty", q, names(got))
		}
	}
}

func TestSearchCapsResults(t *testing.T) {
	var roster []model.Person
	for i := 0; i < 30; i++ {
		roster = append(roster, person(fmt.Sprint(i), fmt.Sprintf("Member %02d", i)))
	}
	e := NewEngine()
	e.Replace(roster, nil)

	got := e.Search("member", nil)
	if len(got) != Limit {
		t.Fatalf("len = %d, want %d", len(got), Limit)
	}
	if got[0].Person.FullName != "Member 00" || got[Limit-1].Person.FullName != "Member 19" {
		t.Errorf("unexpected window %s..%s", got[0].Person.FullName, got[Limit-1].Person.FullName)
	}
}

func TestIsDuplicate(t *testing.T) {
	e := NewEngine()
	e.Replace([]model.Person{person("1", "Mary Jones")}, nil)

	if !e.IsDuplicate("  mary JONES ") {
		t.Error("trimmed case-insensitive match not detected")
	}
	if e.IsDuplicate("Mary Jone") {
		t.Error("partial name flagged as duplicate")
	}
	if e.Conflicts("mary jones", "1") {
		t.Error("editing a person must not conflict with itself")
	}
}

func TestReplaceDoesNotAlias(t *testing.T) {
	roster := []model.Person{person("1", "Alpha")}
	e := NewEngine()
	e.Replace(roster, nil)
	roster[0].FullName = "Beta"

	if got := e.Search("alpha", nil); len(got) != 1 {
		t.Errorf("snapshot changed through caller slice: %v", names(got))
	}
}

func TestNormalizeFoldsCase(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"Straße", " STRASSE "},
		{"  Alice Smith", "alice smith"},
		{"ÉLODIE", "élodie"},
	}
	for _, tt := range tests {
		t.Run(tt.a, func(t *testing.T) {
			if Normalize(tt.a) != Normalize(tt.b) {
				t.Errorf("Normalize(%q) = %q, Normalize(%q) = %q", tt.a, Normalize(tt.a), tt.b, Normalize(tt.b))
			}
		})
	}
}
