package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	calendarv3 "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/wolfman30/cardio-intake/internal/severity"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

// GoogleConfig configures GoogleCalendar.
type GoogleConfig struct {
	CalendarID      string
	Hours           BusinessHours
	DurationMinutes int
	StepMinutes     int
	// SearchHorizon bounds how far past the lead time slots are searched.
	SearchHorizon time.Duration
}

// GoogleCalendar checks free/busy and books events on a Google calendar.
type GoogleCalendar struct {
	svc    *calendarv3.Service
	cfg    GoogleConfig
	now    func() time.Time
	logger *logging.Logger
}

// NewGoogleService builds the API client from service-account JSON credentials.
func NewGoogleService(ctx context.Context, credentialsJSON string, opts ...option.ClientOption) (*calendarv3.Service, error) {
	if strings.TrimSpace(credentialsJSON) == "" {
		return nil, ErrNotConfigured
	}
	all := append([]option.ClientOption{
		option.WithCredentialsJSON([]byte(credentialsJSON)),
		option.WithScopes(calendarv3.CalendarScope),
	}, opts...)
	svc, err := calendarv3.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create google service: %w", err)
	}
	return svc, nil
}

func NewGoogleCalendar(svc *calendarv3.Service, cfg GoogleConfig, logger *logging.Logger) *GoogleCalendar {
	if svc == nil {
		panic("calendar: google service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.CalendarID) == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.Hours.End <= cfg.Hours.Start {
		cfg.Hours = DefaultBusinessHours()
	}
	if cfg.DurationMinutes <= 0 {
		cfg.DurationMinutes = 30
	}
	if cfg.StepMinutes <= 0 {
		cfg.StepMinutes = 15
	}
	if cfg.SearchHorizon <= 0 {
		cfg.SearchHorizon = 5 * 24 * time.Hour
	}
	return &GoogleCalendar{svc: svc, cfg: cfg, now: time.Now, logger: logger}
}

// NextAvailableSlots returns up to q.Limit free slots starting no earlier
// than the tier's lead time.
func (g *GoogleCalendar) NextAvailableSlots(ctx context.Context, tier severity.Level, q SlotQuery) ([]time.Time, error) {
	q = g.fillQuery(q)
	from := g.now().UTC().Add(LeadTime(tier))
	until := from.Add(g.cfg.SearchHorizon)

	busy, err := g.busy(ctx, from, until)
	if err != nil {
		return nil, err
	}
	return GenerateSlots(from, until, q, g.cfg.Hours, busy), nil
}

// Book creates the event at exactly req.Start.
func (g *GoogleCalendar) Book(ctx context.Context, req EventRequest) (*Booking, error) {
	if req.Duration <= 0 {
		req.Duration = time.Duration(g.cfg.DurationMinutes) * time.Minute
	}
	start := req.Start.UTC()
	end := start.Add(req.Duration)

	event := &calendarv3.Event{
		Summary:     req.Summary(),
		Description: req.Description(g.now()),
		Start:       &calendarv3.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: "UTC"},
		End:         &calendarv3.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: "UTC"},
		Reminders: &calendarv3.EventReminders{
			UseDefault: false,
			Overrides: []*calendarv3.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	created, err := g.svc.Events.Insert(g.cfg.CalendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: insert event: %w", err)
	}
	g.logger.Info("calendar event created", "event_id", created.Id, "start", start.Format(time.RFC3339))

	link := created.HtmlLink
	if link == "" {
		link = created.HangoutLink
	}
	return &Booking{EventID: created.Id, Start: start, Link: link}, nil
}

// BookNextAvailable books the first free slot after the default lead time.
// When free/busy cannot be read it books the grid-aligned lead time itself,
// provided that time is inside business hours. A search that succeeds but
// finds nothing returns ErrNoSlots.
func (g *GoogleCalendar) BookNextAvailable(ctx context.Context, req EventRequest) (*Booking, error) {
	base := AlignToGrid(g.now().UTC().Add(time.Hour), g.cfg.StepMinutes)
	q := g.fillQuery(SlotQuery{Limit: 1})
	until := base.Add(12 * time.Hour)

	busy, err := g.busy(ctx, base, until)
	if err != nil {
		if !g.cfg.Hours.Contains(base, time.Duration(q.DurationMinutes)*time.Minute) {
			return nil, fmt.Errorf("calendar: free/busy failed and %s is outside business hours: %w", base.Format(time.RFC3339), ErrNoSlots)
		}
		g.logger.Warn("calendar free/busy failed, booking base time", "error", err)
		req.Start = base
		return g.Book(ctx, req)
	}
	slots := GenerateSlots(base, until, q, g.cfg.Hours, busy)
	if len(slots) == 0 {
		return nil, fmt.Errorf("calendar: book next available after %s: %w", base.Format(time.RFC3339), ErrNoSlots)
	}
	req.Start = slots[0]
	return g.Book(ctx, req)
}

// CancelEvent deletes a previously created event.
func (g *GoogleCalendar) CancelEvent(ctx context.Context, eventID string) error {
	if err := g.svc.Events.Delete(g.cfg.CalendarID, eventID).Context(ctx).Do(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
			return fmt.Errorf("calendar: delete event %s: %w", eventID, ErrEventNotFound)
		}
		return fmt.Errorf("calendar: delete event %s: %w", eventID, err)
	}
	return nil
}

func (g *GoogleCalendar) fillQuery(q SlotQuery) SlotQuery {
	if q.DurationMinutes <= 0 {
		q.DurationMinutes = g.cfg.DurationMinutes
	}
	if q.StepMinutes <= 0 {
		q.StepMinutes = g.cfg.StepMinutes
	}
	return q
}

func (g *GoogleCalendar) busy(ctx context.Context, from, until time.Time) ([]Interval, error) {
	resp, err := g.svc.Freebusy.Query(&calendarv3.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: until.Format(time.RFC3339),
		Items:   []*calendarv3.FreeBusyRequestItem{{Id: g.cfg.CalendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: freebusy query: %w", err)
	}

	cal, ok := resp.Calendars[g.cfg.CalendarID]
	if !ok {
		cal = resp.Calendars["primary"]
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("calendar: freebusy error for %s: %s", g.cfg.CalendarID, cal.Errors[0].Reason)
	}

	out := make([]Interval, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			continue
		}
		out = append(out, Interval{Start: start, End: end})
	}
	return out, nil
}
