package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/drivelink/drivelink-api/internal/models"
	"github.com/drivelink/drivelink-api/pkg/config"
)

type reminderLessonRepository interface {
	ListDueReminders(ctx context.Context, from, to time.Time, reminderBit int) ([]models.LessonWithNames, error)
	MarkReminderSent(ctx context.Context, lessonID string, reminderBit int) error
}

type reminderStudentRepository interface {
	ListWithLowBalance(ctx context.Context) ([]models.Student, error)
}

type onceClaimer interface {
	ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type messageQueuer interface {
	Send(to, body string) error
}

const lowBalanceWarningTTL = 24 * time.Hour

// ReminderService periodically sweeps for upcoming lessons and queues the
// day-before and same-day reminders. Each reminder is recorded on the lesson
// before the window closes, so a sweep that runs twice never resends one.
// The sweep also nudges students whose balance no longer covers a lesson, at
// most once a day per student.
type ReminderService struct {
	lessons  reminderLessonRepository
	students reminderStudentRepository
	claims   onceClaimer
	outbound messageQueuer
	cfg      config.RemindersConfig
	loc      *time.Location
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewReminderService constructs a ReminderService. Times in reminder texts
// render in the given location.
func NewReminderService(lessons reminderLessonRepository, students reminderStudentRepository, claims onceClaimer, outbound messageQueuer, cfg config.RemindersConfig, loc *time.Location, metrics *MetricsService, logger *zap.Logger) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderService{
		lessons:  lessons,
		students: students,
		claims:   claims,
		outbound: outbound,
		cfg:      cfg,
		loc:      loc,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps on the configured interval until the context ends.
func (s *ReminderService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	s.logger.Sugar().Infow("reminder sweep started", "interval", s.cfg.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Sugar().Info("reminder sweep stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Sugar().Errorw("reminder sweep failed", "error", err)
			}
		}
	}
}

// Sweep queues all reminders currently due.
func (s *ReminderService) Sweep(ctx context.Context) error {
	now := s.now().UTC()

	if err := s.sweepWindow(ctx, now.Add(24*time.Hour), now.Add(25*time.Hour), models.Reminder24HSent, "24h", s.dayBeforeText, false); err != nil {
		return err
	}
	// The same-day window also tells the instructor who is coming.
	if err := s.sweepWindow(ctx, now.Add(2*time.Hour), now.Add(2*time.Hour+30*time.Minute), models.Reminder2HSent, "2h", s.sameDayText, true); err != nil {
		return err
	}
	return s.sweepLowBalances(ctx)
}

func (s *ReminderService) sweepWindow(ctx context.Context, from, to time.Time, bit int, kind string, text func(*models.LessonWithNames) string, notifyInstructor bool) error {
	due, err := s.lessons.ListDueReminders(ctx, from, to, bit)
	if err != nil {
		return err
	}
	for i := range due {
		lesson := &due[i]
		if err := s.lessons.MarkReminderSent(ctx, lesson.ID, bit); err != nil {
			s.logger.Sugar().Errorw("failed to record reminder", "lesson_id", lesson.ID, "error", err)
			continue
		}
		if err := s.outbound.Send(lesson.StudentPhone, text(lesson)); err != nil {
			s.logger.Sugar().Errorw("failed to queue reminder", "lesson_id", lesson.ID, "error", err)
		} else {
			s.metrics.CountReminder(kind)
		}
		if notifyInstructor {
			s.notifyInstructor(lesson)
		}
	}
	return nil
}

func (s *ReminderService) notifyInstructor(lesson *models.LessonWithNames) {
	if lesson.InstructorPhone == nil || *lesson.InstructorPhone == "" {
		return
	}
	start := lesson.ScheduledDate.In(s.loc)
	body := fmt.Sprintf("Upcoming lesson: %s at %s (%d minutes).", lesson.StudentName, start.Format("15:04"), lesson.DurationMinutes)
	if err := s.outbound.Send(*lesson.InstructorPhone, body); err != nil {
		s.logger.Sugar().Errorw("failed to queue instructor reminder", "lesson_id", lesson.ID, "error", err)
	}
}

func (s *ReminderService) sweepLowBalances(ctx context.Context) error {
	students, err := s.students.ListWithLowBalance(ctx)
	if err != nil {
		return err
	}
	for i := range students {
		student := &students[i]
		first, err := s.claims.ClaimOnce(ctx, "low_balance_"+student.Phone, lowBalanceWarningTTL)
		if err != nil {
			s.logger.Sugar().Errorw("failed to claim low balance warning", "student_id", student.ID, "error", err)
			continue
		}
		if !first {
			continue
		}
		body := fmt.Sprintf("Hi %s, your DriveLink balance is $%.2f, which is below the cost of your next lesson. Please top up to keep booking.", student.Name, student.AccountBalance)
		if err := s.outbound.Send(student.Phone, body); err != nil {
			s.logger.Sugar().Errorw("failed to queue low balance warning", "student_id", student.ID, "error", err)
		} else {
			s.metrics.CountReminder("low_balance")
		}
	}
	return nil
}

func (s *ReminderService) dayBeforeText(lesson *models.LessonWithNames) string {
	start := lesson.ScheduledDate.In(s.loc)
	return fmt.Sprintf("Reminder: you have a %d-minute lesson tomorrow at %s with %s.",
		lesson.DurationMinutes, start.Format("15:04"), lesson.InstructorName)
}

func (s *ReminderService) sameDayText(lesson *models.LessonWithNames) string {
	start := lesson.ScheduledDate.In(s.loc)
	return fmt.Sprintf("Reminder: your %d-minute lesson with %s starts at %s today. See you there!",
		lesson.DurationMinutes, lesson.InstructorName, start.Format("15:04"))
}
