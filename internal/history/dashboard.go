package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"rollcall/internal/changefeed"
	"rollcall/internal/dates"
	"rollcall/internal/model"
	"rollcall/internal/stats"
)

var ErrUnknownMeeting = errors.New("unknown meeting")

// Dashboard bundles every view of the history page for one timeframe.
type Dashboard struct {
	Timeframe Timeframe       `json:"timeframe"`
	Today     string          `json:"today"`
	Since     string          `json:"since,omitempty"`
	Weekly    []WeekPoint     `json:"weekly"`
	Totals    []MeetingTotal  `json:"totals"`
	Top       []AttendeeCount `json:"top_attendees"`
	Streaks   []StreakEntry   `json:"streaks"`
}

// BuildDashboard filters rows to the timeframe and runs every reducer.
func BuildDashboard(meetings []model.Meeting, rows []Row, tf Timeframe, today string) (Dashboard, error) {
	since, _, err := tf.Since(today)
	if err != nil {
		return Dashboard{}, err
	}
	window, err := Filter(rows, tf, today)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Timeframe: tf,
		Today:     today,
		Since:     since,
		Weekly:    WeeklySeries(window),
		Totals:    MeetingTotals(meetings, window),
		Top:       TopAttendees(window),
		Streaks:   StreakLeaderboard(window),
	}, nil
}

// RecordFilter narrows ListRecords. Empty fields do not filter.
type RecordFilter struct {
	MeetingID string
	PersonID  string
	Date      string
	Since     string
}

// Source is the read side of the attendance store.
type Source interface {
	ListMeetings(ctx context.Context) ([]model.Meeting, error)
	ListPeople(ctx context.Context) ([]model.Person, error)
	ListRecords(ctx context.Context, f RecordFilter) ([]model.Record, error)
}

// Service loads rows from a Source and serves reducer views, caching
// dashboards.
type Service struct {
	src   Source
	cache Cache
	loc   *time.Location
	now   func() time.Time
}

// NewService builds a history service. cache may be nil.
func NewService(src Source, cache Cache, loc *time.Location) *Service {
	if cache == nil {
		cache = NewMemoryCache(time.Minute)
	}
	return &Service{src: src, cache: cache, loc: loc, now: time.Now}
}

func (s *Service) today() string {
	return dates.TodayAt(s.now(), s.loc)
}

// Rows loads joined rows matching f.
func (s *Service) Rows(ctx context.Context, f RecordFilter) ([]Row, []model.Meeting, error) {
	meetings, err := s.src.ListMeetings(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list meetings: %w", err)
	}
	people, err := s.src.ListPeople(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list people: %w", err)
	}
	records, err := s.src.ListRecords(ctx, f)
	if err != nil {
		return nil, nil, fmt.Errorf("list records: %w", err)
	}
	return Join(records, meetings, people), meetings, nil
}

// Dashboard returns the cached dashboard for tf, computing it on a miss.
func (s *Service) Dashboard(ctx context.Context, tf Timeframe) (Dashboard, error) {
	today := s.today()
	key := cacheKey(tf, today)

	var d Dashboard
	hit, err := s.cache.Get(ctx, key, &d)
	if err != nil {
		slog.Warn("dashboard cache read failed", "key", key, "error", err)
	}
	if hit {
		return d, nil
	}

	d, err = s.build(ctx, tf, today)
	if err != nil {
		return Dashboard{}, err
	}
	if err := s.cache.Set(ctx, key, d); err != nil {
		slog.Warn("dashboard cache write failed", "key", key, "error", err)
	}
	return d, nil
}

func (s *Service) build(ctx context.Context, tf Timeframe, today string) (Dashboard, error) {
	since, _, err := tf.Since(today)
	if err != nil {
		return Dashboard{}, err
	}
	rows, meetings, err := s.Rows(ctx, RecordFilter{Since: since})
	if err != nil {
		return Dashboard{}, err
	}
	return BuildDashboard(meetings, rows, tf, today)
}

// Refresh drops every cached dashboard and rebuilds them.
func (s *Service) Refresh(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("invalidate dashboards: %w", err)
	}
	today := s.today()
	for _, tf := range []Timeframe{Last4Weeks, Last12Weeks, Last6Months, LastYear, AllTime} {
		d, err := s.build(ctx, tf, today)
		if err != nil {
			return fmt.Errorf("build %s dashboard: %w", tf, err)
		}
		if err := s.cache.Set(ctx, cacheKey(tf, today), d); err != nil {
			return fmt.Errorf("cache %s dashboard: %w", tf, err)
		}
	}
	return nil
}

// Watch drops the cached dashboards on every change event until events is
// closed or ctx is done. The next read rebuilds them.
func (s *Service) Watch(ctx context.Context, events <-chan changefeed.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := s.cache.Invalidate(ctx); err != nil {
				slog.Warn("dashboard invalidation failed", "type", evt.Type, "meeting_id", evt.MeetingID(), "error", err)
			}
		}
	}
}

// Lookup lists who attended a meeting on one date. A date on the wrong
// weekday for the meeting is rejected with dates.ErrWrongWeekday.
func (s *Service) Lookup(ctx context.Context, meetingID, date string) ([]LookupRow, error) {
	meeting, err := s.Meeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if err := dates.ValidateDay(date, meeting.Requirement()); err != nil {
		return nil, err
	}
	rows, _, err := s.Rows(ctx, RecordFilter{MeetingID: meetingID, Date: date})
	if err != nil {
		return nil, err
	}
	return DateLookup(rows, meetingID, date), nil
}

// AllTime ranks every attendee of a meeting.
func (s *Service) AllTime(ctx context.Context, meetingID string) ([]AttendeeCount, error) {
	if _, err := s.Meeting(ctx, meetingID); err != nil {
		return nil, err
	}
	rows, _, err := s.Rows(ctx, RecordFilter{MeetingID: meetingID})
	if err != nil {
		return nil, err
	}
	return AllTimeForMeeting(rows, meetingID), nil
}

// DefaultDate is today snapped back onto the meeting's weekday.
func (s *Service) DefaultDate(ctx context.Context, meetingID string) (string, error) {
	meeting, err := s.Meeting(ctx, meetingID)
	if err != nil {
		return "", err
	}
	return dates.Snap(s.today(), meeting.Requirement())
}

// Profile builds the attendance profile of p.
func (s *Service) Profile(ctx context.Context, p model.Person) (stats.Profile, error) {
	meetings, err := s.src.ListMeetings(ctx)
	if err != nil {
		return stats.Profile{}, fmt.Errorf("list meetings: %w", err)
	}
	records, err := s.src.ListRecords(ctx, RecordFilter{PersonID: p.ID})
	if err != nil {
		return stats.Profile{}, fmt.Errorf("list records: %w", err)
	}
	return stats.BuildProfile(p, meetings, records, s.today()), nil
}

// Meetings lists meetings in display order.
func (s *Service) Meetings(ctx context.Context) ([]model.Meeting, error) {
	meetings, err := s.src.ListMeetings(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(meetings, func(i, j int) bool { return meetings[i].DisplayOrder < meetings[j].DisplayOrder })
	return meetings, nil
}

// Meeting finds a meeting by id.
func (s *Service) Meeting(ctx context.Context, id string) (model.Meeting, error) {
	meetings, err := s.src.ListMeetings(ctx)
	if err != nil {
		return model.Meeting{}, fmt.Errorf("list meetings: %w", err)
	}
	for _, m := range meetings {
		if m.ID == id {
			return m, nil
		}
	}
	return model.Meeting{}, fmt.Errorf("%w %q", ErrUnknownMeeting, id)
}

func cacheKey(tf Timeframe, today string) string {
	return string(tf) + ":" + today
}
