package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/drivelink/drivelink-api/internal/models"
	"github.com/drivelink/drivelink-api/pkg/config"
)

type slotLessonRepository interface {
	ListScheduledByInstructorBetween(ctx context.Context, instructorID string, from, to time.Time) ([]models.LessonWithNames, error)
}

// SlotService computes the half-hour booking grid an instructor can still
// take. All window arithmetic happens in the configured school timezone; the
// returned starts are UTC instants.
type SlotService struct {
	lessons slotLessonRepository
	cfg     config.BookingConfig
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time
}

// NewSlotService constructs a SlotService. The booking timezone must be a
// valid IANA zone name.
func NewSlotService(lessons slotLessonRepository, cfg config.BookingConfig, logger *zap.Logger) (*SlotService, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load booking timezone %q: %w", cfg.Timezone, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotService{
		lessons: lessons,
		cfg:     cfg,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Location returns the school timezone.
func (s *SlotService) Location() *time.Location {
	return s.loc
}

// AvailableSlots returns the instructor's free starts for a lesson of the
// given duration, soonest first, capped at the per-reply maximum. Today's
// remaining slots appear while the local time is before the cutoff;
// tomorrow's open once the release hour passes. Sundays are never offered.
func (s *SlotService) AvailableSlots(ctx context.Context, instructorID string, durationMinutes int) ([]time.Time, error) {
	now := s.now().In(s.loc)

	var days []time.Time
	if s.withinTodayWindow(now) {
		days = append(days, dayStart(now))
	}
	if now.Hour() >= s.cfg.TomorrowReleaseHour {
		days = append(days, dayStart(now).AddDate(0, 0, 1))
	}

	var slots []time.Time
	for _, day := range days {
		if day.Weekday() == time.Sunday {
			continue
		}
		daySlots, err := s.slotsForDay(ctx, instructorID, day, durationMinutes, now)
		if err != nil {
			return nil, err
		}
		slots = append(slots, daySlots...)
	}

	if len(slots) > s.cfg.MaxSlotsPerReply {
		slots = slots[:s.cfg.MaxSlotsPerReply]
	}
	return slots, nil
}

// InWindow reports whether the start is bookable right now: in the future,
// on the half-hour grid inside working hours, on an offered day, and inside
// whichever booking window currently applies.
func (s *SlotService) InWindow(start time.Time, durationMinutes int) bool {
	now := s.now().In(s.loc)
	local := start.In(s.loc)

	if !local.After(now) {
		return false
	}
	if !s.onGrid(local, durationMinutes) {
		return false
	}

	switch {
	case sameDay(local, now):
		return s.withinTodayWindow(now)
	case sameDay(local, now.AddDate(0, 0, 1)):
		return now.Hour() >= s.cfg.TomorrowReleaseHour
	default:
		return false
	}
}

func (s *SlotService) slotsForDay(ctx context.Context, instructorID string, day time.Time, durationMinutes int, now time.Time) ([]time.Time, error) {
	open := day.Add(time.Duration(s.cfg.OpenHour) * time.Hour)
	close := day.Add(time.Duration(s.cfg.CloseHour) * time.Hour)

	booked, err := s.lessons.ListScheduledByInstructorBetween(ctx, instructorID, open.UTC(), close.UTC())
	if err != nil {
		return nil, err
	}

	duration := time.Duration(durationMinutes) * time.Minute
	var free []time.Time
	for start := open; !start.Add(duration).After(close); start = start.Add(30 * time.Minute) {
		if !start.After(now) {
			continue
		}
		end := start.Add(duration)
		clash := false
		for i := range booked {
			if booked[i].Overlaps(start.UTC(), end.UTC()) {
				clash = true
				break
			}
		}
		if !clash {
			free = append(free, start.UTC())
		}
	}
	return free, nil
}

// withinTodayWindow reports whether same-day booking is still open: the last
// offerable start is at the cutoff, so past it today yields nothing anyway.
func (s *SlotService) withinTodayWindow(now time.Time) bool {
	if now.Weekday() == time.Sunday {
		return false
	}
	cutoff := dayStart(now).
		Add(time.Duration(s.cfg.TodayCutoffHour) * time.Hour).
		Add(time.Duration(s.cfg.TodayCutoffMinute) * time.Minute)
	return now.Before(cutoff)
}

func (s *SlotService) onGrid(local time.Time, durationMinutes int) bool {
	if local.Weekday() == time.Sunday {
		return false
	}
	if local.Second() != 0 || local.Nanosecond() != 0 {
		return false
	}
	if local.Minute() != 0 && local.Minute() != 30 {
		return false
	}
	open := dayStart(local).Add(time.Duration(s.cfg.OpenHour) * time.Hour)
	close := dayStart(local).Add(time.Duration(s.cfg.CloseHour) * time.Hour)
	end := local.Add(time.Duration(durationMinutes) * time.Minute)
	return !local.Before(open) && !end.After(close)
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
