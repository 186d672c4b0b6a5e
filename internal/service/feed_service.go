package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/noah-isme/office-scheduler/internal/calendar"
	"github.com/noah-isme/office-scheduler/internal/models"
)

const (
	feedProductID   = "-//office-scheduler//calendar feed//EN"
	feedDefaultBack = 30
	feedDefaultDays = 180
)

type feedEventReader interface {
	ListActiveInRange(ctx context.Context, from, to calendar.Date) ([]models.Event, error)
}

// FeedService renders active events as an iCalendar feed.
type FeedService struct {
	events feedEventReader
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewFeedService constructs a FeedService.
func NewFeedService(events feedEventReader, logger *zap.Logger, loc *time.Location) *FeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &FeedService{events: events, logger: logger, loc: loc, now: time.Now}
}

// Render builds the feed for [start, end]. Missing bounds default to a window around today.
// Multi-day events become one VEVENT per day since every day repeats the same time window.
func (s *FeedService) Render(ctx context.Context, start, end string) ([]byte, error) {
	today := calendar.Today(s.now(), s.loc)
	from, to := today.AddDays(-feedDefaultBack), today.AddDays(feedDefaultDays)
	var err error
	if strings.TrimSpace(start) != "" {
		if from, err = calendar.ParseDate(start); err != nil {
			return nil, invalidWrap(err, "invalid start")
		}
	}
	if strings.TrimSpace(end) != "" {
		if to, err = calendar.ParseDate(end); err != nil {
			return nil, invalidWrap(err, "invalid end")
		}
	}
	if _, err := calendar.Expand(from, to); err != nil {
		return nil, invalidWrap(err, err.Error())
	}

	events, err := s.events.ListActiveInRange(ctx, from, to)
	if err != nil {
		return nil, internal(err, "failed to load events")
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(feedProductID)
	cal.SetName("Office events")
	cal.SetXWRTimezone(s.loc.String())

	stamp := s.now().UTC()
	for i := range events {
		event := &events[i]
		days, err := event.Days()
		if err != nil {
			s.logger.Warn("skipping event with invalid range", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		for _, day := range days {
			if day.Before(from) || day.After(to) {
				continue
			}
			ve := cal.AddEvent(feedUID(event.ID, day))
			ve.SetDtStampTime(stamp)
			ve.SetCreatedTime(event.CreatedAt)
			ve.SetModifiedAt(event.UpdatedAt)
			ve.SetStartAt(calendar.Combine(day, event.StartTime, s.loc))
			ve.SetEndAt(calendar.Combine(day, event.EndTime, s.loc))
			ve.SetSummary(event.Title)
			ve.SetProperty(ics.ComponentPropertyCategories, strings.ToUpper(string(event.Category)))
			if event.Location != nil {
				ve.SetLocation(*event.Location)
			}
			if event.Description != nil {
				ve.SetDescription(*event.Description)
			}
			if event.Color != nil {
				ve.SetProperty(ics.ComponentPropertyColor, *event.Color)
			}
		}
	}

	s.logger.Debug("calendar feed rendered", zap.String("from", from.String()), zap.String("to", to.String()), zap.Int("events", len(events)))
	return []byte(cal.Serialize()), nil
}

func feedUID(eventID int64, day calendar.Date) string {
	return fmt.Sprintf("event-%d-%s@office-scheduler", eventID, day.Format("20060102"))
}
