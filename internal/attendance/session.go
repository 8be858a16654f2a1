package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/changefeed"
	"rollcall/internal/metrics"
	"rollcall/internal/model"
)

// DefaultUndoWindow is how long a removal can be undone before it is sent to
// the store.
const DefaultUndoWindow = 4 * time.Second

// Store is the part of the attendance store a Session needs.
type Store interface {
	// ListEntries returns the confirmed entries of one meeting date, newest
	// mark first.
	ListEntries(ctx context.Context, meetingID, date string) ([]Entry, error)
	// InsertRecord returns ErrDuplicate when the triple already exists.
	InsertRecord(ctx context.Context, meetingID, personID, date string) (model.Record, error)
	DeleteRecord(ctx context.Context, id string) error
}

// Timer is the handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Session.
type Option func(*Session)

// WithUndoWindow overrides DefaultUndoWindow.
func WithUndoWindow(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithAfterFunc replaces the undo timer.
func WithAfterFunc(f AfterFunc) Option {
	return func(s *Session) { s.afterFunc = f }
}

// WithClock replaces time.Now for optimistic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithIDGenerator replaces the temporary id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) { s.newID = gen }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Snapshot is an immutable copy of a session's visible state.
type Snapshot struct {
	MeetingID   string   `json:"meeting_id"`
	Date        string   `json:"date"`
	Entries     []Entry  `json:"entries"`
	Marked      []string `json:"marked"`
	PendingUndo *Entry   `json:"pending_undo,omitempty"`
}

type pendingUndo struct {
	entry Entry
	timer Timer
}

// Session holds the optimistic attendance state of one meeting date. Local
// mutations are applied before the store is called; the mutex is never held
// across a store call.
type Session struct {
	meetingID string
	date      string
	store     Store
	window    time.Duration
	afterFunc AfterFunc
	now       func() time.Time
	newID     func() string
	log       *slog.Logger
	// bg outlives requests; deferred deletes and reconciles run on it.
	bg context.Context

	mu      sync.Mutex
	entries []Entry
	marked  map[string]bool
	undo    *pendingUndo
	// discard maps temporary ids whose removal was committed before their
	// insert resolved to the person id.
	discard map[string]string
	// tombstones are record ids this session has deleted.
	tombstones map[string]bool
	gen        uint64
	applied    uint64
}

// NewSession creates an empty session. Call Reconcile to load it.
func NewSession(bg context.Context, store Store, meetingID, date string, opts ...Option) *Session {
	s := &Session{
		meetingID:  meetingID,
		date:       date,
		store:      store,
		window:     DefaultUndoWindow,
		afterFunc:  realAfterFunc,
		now:        time.Now,
		newID:      uuid.NewString,
		log:        slog.Default(),
		bg:         bg,
		marked:     make(map[string]bool),
		discard:    make(map[string]string),
		tombstones: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("meeting_id", meetingID, "date", date)
	return s
}

// MeetingID returns the meeting this session tracks.
func (s *Session) MeetingID() string { return s.meetingID }

// Date returns the date this session tracks.
func (s *Session) Date() string { return s.date }

// Mark optimistically adds person and inserts the record. A person already
// marked yields MarkDuplicate without calling the store. Marking the person
// whose removal is waiting in the undo window cancels that removal. A
// uniqueness conflict rolls back, reconciles and yields MarkDuplicate; any
// other store error rolls back and yields MarkFailure with the cause.
func (s *Session) Mark(ctx context.Context, person model.Person) (MarkOutcome, error) {
	s.mu.Lock()
	if s.undo != nil && s.undo.entry.PersonID == person.ID {
		s.restoreLocked()
		s.mu.Unlock()
		metrics.Marks.WithLabelValues(MarkSuccess.String()).Inc()
		return MarkSuccess, nil
	}
	if s.marked[person.ID] {
		s.mu.Unlock()
		metrics.Marks.WithLabelValues(MarkDuplicate.String()).Inc()
		return MarkDuplicate, nil
	}
	tempID := s.newID()
	temp := Entry{
		State:     Pending,
		ID:        tempID,
		MeetingID: s.meetingID,
		PersonID:  person.ID,
		Date:      s.date,
		MarkedAt:  s.now(),
		Person:    person,
	}
	s.entries = append([]Entry{temp}, s.entries...)
	s.marked[person.ID] = true
	s.mu.Unlock()

	rec, err := s.store.InsertRecord(ctx, s.meetingID, person.ID, s.date)
	if err != nil {
		s.mu.Lock()
		s.rollbackLocked(tempID, person.ID)
		s.mu.Unlock()

		if errors.Is(err, ErrDuplicate) {
			metrics.Marks.WithLabelValues(MarkDuplicate.String()).Inc()
			if rerr := s.Reconcile(ctx); rerr != nil {
				s.log.Warn("reconcile after duplicate mark failed", "error", rerr)
			}
			return MarkDuplicate, nil
		}
		metrics.Marks.WithLabelValues(MarkFailure.String()).Inc()
		return MarkFailure, fmt.Errorf("insert attendance: %w", err)
	}

	s.mu.Lock()
	confirmed := Entry{
		State:        Confirmed,
		ID:           rec.ID,
		MeetingID:    rec.MeetingID,
		PersonID:     rec.PersonID,
		Date:         rec.Date,
		MarkedAt:     rec.MarkedAt,
		Person:       person,
		confirmedGen: s.gen,
	}
	var orphan string
	if i := s.indexLocked(tempID); i >= 0 {
		s.entries[i] = confirmed
	} else if s.undo != nil && s.undo.entry.ID == tempID {
		s.undo.entry = confirmed
	} else if _, ok := s.discard[tempID]; ok {
		delete(s.discard, tempID)
		orphan = rec.ID
		s.tombstones[rec.ID] = true
	}
	s.mu.Unlock()

	if orphan != "" {
		// The entry was removed for good before the insert landed.
		s.commitDelete(orphan)
	}
	metrics.Marks.WithLabelValues(MarkSuccess.String()).Inc()
	return MarkSuccess, nil
}

// rollbackLocked undoes the optimistic part of a failed Mark.
func (s *Session) rollbackLocked(tempID, personID string) {
	if i := s.indexLocked(tempID); i >= 0 {
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		if !s.personVisibleLocked(personID) {
			delete(s.marked, personID)
		}
		return
	}
	if s.undo != nil && s.undo.entry.ID == tempID {
		s.undo.timer.Stop()
		s.undo = nil
		return
	}
	delete(s.discard, tempID)
}

// Remove strikes an entry and opens the undo window. A removal already
// waiting in the window is committed first. Temporary ids are valid targets.
func (s *Session) Remove(id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	entry := s.entries[i]
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	delete(s.marked, entry.PersonID)

	var supersededID string
	if s.undo != nil {
		supersededID = s.releaseLocked()
	}
	u := &pendingUndo{entry: entry}
	u.timer = s.afterFunc(s.window, func() { s.expire(u) })
	s.undo = u
	s.mu.Unlock()

	if supersededID != "" {
		s.commitDelete(supersededID)
	}
	return nil
}

// Undo cancels the pending removal and restores the entry in mark-time
// order. It reports whether anything was pending.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.undo == nil {
		return false
	}
	s.restoreLocked()
	return true
}

// restoreLocked cancels the pending removal and puts its entry back.
func (s *Session) restoreLocked() {
	u := s.undo
	u.timer.Stop()
	s.undo = nil
	if s.indexLocked(u.entry.ID) < 0 {
		s.entries = append(s.entries, u.entry)
		sortEntries(s.entries)
	}
	s.marked[u.entry.PersonID] = true
}

// DismissUndo commits the pending removal now.
func (s *Session) DismissUndo() {
	s.mu.Lock()
	var id string
	if s.undo != nil {
		id = s.releaseLocked()
	}
	s.mu.Unlock()
	if id != "" {
		s.commitDelete(id)
	}
}

func (s *Session) expire(u *pendingUndo) {
	s.mu.Lock()
	if s.undo != u {
		// Undone, dismissed or superseded already.
		s.mu.Unlock()
		return
	}
	id := s.releaseLocked()
	s.mu.Unlock()
	if id != "" {
		s.commitDelete(id)
	}
}

// releaseLocked empties the undo slot and returns the record id to delete.
// A still-pending entry is parked in discard so its insert is deleted once
// it resolves. Whoever empties the slot owns the commit, so each removal is
// committed once.
func (s *Session) releaseLocked() string {
	u := s.undo
	s.undo = nil
	u.timer.Stop()
	if u.entry.State == Pending {
		s.discard[u.entry.ID] = u.entry.PersonID
		return ""
	}
	s.tombstones[u.entry.ID] = true
	return u.entry.ID
}

func (s *Session) commitDelete(id string) {
	err := s.store.DeleteRecord(s.bg, id)
	if errors.Is(err, ErrNotFound) {
		// Someone else deleted it first.
		err = nil
	}
	metrics.DeletesCommitted.WithLabelValues(metrics.Result(err)).Inc()
	if err == nil {
		return
	}
	s.log.Warn("delete attendance failed", "record_id", id, "error", err)
	s.mu.Lock()
	delete(s.tombstones, id)
	s.mu.Unlock()
	if rerr := s.Reconcile(s.bg); rerr != nil {
		s.log.Warn("reconcile after failed delete failed", "error", rerr)
	}
}

// Reconcile refetches the meeting date and replaces local state with it.
// Entries removed locally stay hidden and unresolved local inserts are kept.
// Results of overlapping calls are applied in start order.
func (s *Session) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	fetched, err := s.store.ListEntries(ctx, s.meetingID, s.date)
	metrics.Reconciles.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("list attendance: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen < s.applied {
		return nil
	}
	s.applied = gen
	s.applyLocked(fetched, gen)
	return nil
}

func (s *Session) applyLocked(fetched []Entry, gen uint64) {
	hiddenPeople := make(map[string]bool, len(s.discard)+1)
	for _, personID := range s.discard {
		hiddenPeople[personID] = true
	}
	if s.undo != nil {
		hiddenPeople[s.undo.entry.PersonID] = true
	}

	next := make([]Entry, 0, len(fetched)+len(s.entries))
	people := make(map[string]bool, len(fetched))
	ids := make(map[string]bool, len(fetched))
	for _, e := range fetched {
		if s.tombstones[e.ID] || hiddenPeople[e.PersonID] || ids[e.ID] {
			continue
		}
		e.State = Confirmed
		next = append(next, e)
		people[e.PersonID] = true
		ids[e.ID] = true
	}
	for _, e := range s.entries {
		if people[e.PersonID] {
			continue
		}
		switch e.State {
		case Pending:
			next = append(next, e)
		case Confirmed:
			// Confirmed after this fetch started, so the fetch may predate it.
			if e.confirmedGen >= gen {
				next = append(next, e)
			}
		}
	}
	sortEntries(next)

	s.entries = next
	s.marked = make(map[string]bool, len(next))
	for _, e := range next {
		s.marked[e.PersonID] = true
	}
}

// Relevant reports whether a change event concerns this meeting date. A
// delete whose old row carries no date is treated as relevant.
func (s *Session) Relevant(evt changefeed.Event) bool {
	if evt.MeetingID() != s.meetingID {
		return false
	}
	if evt.New != nil && evt.New.Date == s.date {
		return true
	}
	if evt.Old != nil && (evt.Old.Date == s.date || evt.Old.Date == "") {
		return true
	}
	return false
}

// Watch reconciles on every relevant event until events is closed or ctx is
// done.
func (s *Session) Watch(ctx context.Context, events <-chan changefeed.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if !s.Relevant(evt) {
				continue
			}
			if err := s.Reconcile(ctx); err != nil {
				s.log.Warn("reconcile on change event failed", "type", evt.Type, "error", err)
			}
		}
	}
}

// Snapshot copies the visible state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		MeetingID: s.meetingID,
		Date:      s.date,
		Entries:   append([]Entry{}, s.entries...),
		Marked:    make([]string, 0, len(s.marked)),
	}
	for id := range s.marked {
		snap.Marked = append(snap.Marked, id)
	}
	sort.Strings(snap.Marked)
	if s.undo != nil {
		e := s.undo.entry
		snap.PendingUndo = &e
	}
	return snap
}

// MarkedSet copies the set of marked person ids.
func (s *Session) MarkedSet() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.marked))
	for id := range s.marked {
		out[id] = true
	}
	return out
}

// Close stops a pending undo timer and commits its removal.
func (s *Session) Close() {
	s.DismissUndo()
}

func (s *Session) indexLocked(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) personVisibleLocked(personID string) bool {
	for _, e := range s.entries {
		if e.PersonID == personID {
			return true
		}
	}
	return false
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].MarkedAt.After(entries[j].MarkedAt) })
}
