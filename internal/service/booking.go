package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/drivelink/drivelink-api/internal/models"
	appErrors "github.com/drivelink/drivelink-api/pkg/errors"
)

type bookingLessonRepository interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	Book(ctx context.Context, lesson *models.Lesson, dayStart, dayEnd time.Time, maxPerDay int) error
	Complete(ctx context.Context, lessonID string, completedAt time.Time, notes, feedback *string, rating *int) error
	Cancel(ctx context.Context, lessonID string) error
	ListUpcomingByStudent(ctx context.Context, studentID string, after time.Time, limit int) ([]models.LessonWithNames, error)
}

type bookingStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type bookingPricingRepository interface {
	FindByLicenseClass(ctx context.Context, licenseClass string) (*models.LessonPricing, error)
}

type slotChecker interface {
	InWindow(start time.Time, durationMinutes int) bool
	Location() *time.Location
}

// BookingService owns the lesson lifecycle: booking with its ordered
// precondition checks, completion and cancellation.
type BookingService struct {
	lessons    bookingLessonRepository
	students   bookingStudentRepository
	pricing    bookingPricingRepository
	slots      slotChecker
	maxPerDay  int
	cancelLead time.Duration
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// NewBookingService constructs a BookingService.
func NewBookingService(lessons bookingLessonRepository, students bookingStudentRepository, pricing bookingPricingRepository, slots slotChecker, maxPerDay int, cancelLead time.Duration, metrics *MetricsService, logger *zap.Logger) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		lessons:    lessons,
		students:   students,
		pricing:    pricing,
		slots:      slots,
		maxPerDay:  maxPerDay,
		cancelLead: cancelLead,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Book schedules a lesson for the student at the given start. Preconditions
// run in a fixed order so the student always sees the most fundamental
// problem first; the slot and daily-limit checks re-run inside the booking
// transaction, so passing here is advisory only.
func (s *BookingService) Book(ctx context.Context, studentID string, start time.Time, durationMinutes int) (*models.Lesson, error) {
	lesson, err := s.book(ctx, studentID, start, durationMinutes)
	s.metrics.CountBooking(bookingOutcome(err))
	return lesson, err
}

func (s *BookingService) book(ctx context.Context, studentID string, start time.Time, durationMinutes int) (*models.Lesson, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.InstructorID == nil || *student.InstructorID == "" {
		return nil, appErrors.ErrNoInstructor
	}

	pricing, err := s.pricing.FindByLicenseClass(ctx, student.LicenseType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoPricing
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pricing")
	}
	cost := pricing.PriceFor(durationMinutes)
	if student.AccountBalance < cost {
		return nil, appErrors.ErrInsufficientBalance
	}

	if !start.After(s.now()) {
		return nil, appErrors.ErrPastSlot
	}
	if !s.slots.InWindow(start, durationMinutes) {
		return nil, appErrors.ErrOutOfWindow
	}

	local := start.In(s.slots.Location())
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())

	lesson := &models.Lesson{
		StudentID:       student.ID,
		InstructorID:    *student.InstructorID,
		ScheduledDate:   start.UTC(),
		DurationMinutes: durationMinutes,
		LessonType:      "practical",
		Location:        student.CurrentLocation,
		Cost:            cost,
	}
	if err := s.lessons.Book(ctx, lesson, dayStart.UTC(), dayStart.AddDate(0, 0, 1).UTC(), s.maxPerDay); err != nil {
		return nil, err
	}

	s.logger.Sugar().Infow("lesson booked",
		"lesson_id", lesson.ID,
		"student_id", lesson.StudentID,
		"instructor_id", lesson.InstructorID,
		"start", lesson.ScheduledDate,
		"duration_minutes", lesson.DurationMinutes,
	)
	return lesson, nil
}

// bookingOutcome labels a booking result for the outcome counter.
func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "booked"
	case errors.Is(err, appErrors.ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, appErrors.ErrDailyLimit):
		return "daily_limit"
	case errors.Is(err, appErrors.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, appErrors.ErrPastSlot):
		return "past_slot"
	case errors.Is(err, appErrors.ErrOutOfWindow):
		return "out_of_window"
	case errors.Is(err, appErrors.ErrNoInstructor):
		return "no_instructor"
	case errors.Is(err, appErrors.ErrNoPricing):
		return "no_pricing"
	}
	return "error"
}

// Complete marks the lesson completed. Completing twice is a no-op;
// completing a cancelled lesson is an error.
func (s *BookingService) Complete(ctx context.Context, lessonID string, notes, feedback *string, rating *int) (*models.Lesson, error) {
	err := s.lessons.Complete(ctx, lessonID, s.now().UTC(), notes, feedback, rating)
	if err != nil && !errors.Is(err, appErrors.ErrWrongStatus) {
		return nil, err
	}
	if errors.Is(err, appErrors.ErrWrongStatus) {
		lesson, findErr := s.lessons.FindByID(ctx, lessonID)
		if findErr != nil {
			if errors.Is(findErr, sql.ErrNoRows) {
				return nil, appErrors.ErrNotFound
			}
			return nil, appErrors.Wrap(findErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
		}
		if lesson.Status == models.LessonCompleted {
			return lesson, nil
		}
		return nil, appErrors.ErrWrongStatus
	}
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

// CancelAsStudent cancels the student's own scheduled lesson, enforcing the
// cancellation lead time. The debited cost is not refunded.
func (s *BookingService) CancelAsStudent(ctx context.Context, studentID, lessonID string) (*models.Lesson, error) {
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if lesson.StudentID != studentID {
		return nil, appErrors.ErrForbidden
	}
	if lesson.ScheduledDate.Before(s.now().Add(s.cancelLead)) {
		return nil, appErrors.ErrCancelLeadTime
	}
	if err := s.lessons.Cancel(ctx, lessonID); err != nil {
		return nil, err
	}
	lesson.Status = models.LessonCancelled
	s.logger.Sugar().Infow("lesson cancelled", "lesson_id", lessonID, "by", "student")
	return lesson, nil
}

// CancelAsInstructor cancels a scheduled lesson on behalf of the instructor
// who teaches it. Instructors are not bound by the lead time.
func (s *BookingService) CancelAsInstructor(ctx context.Context, instructorID, lessonID string) (*models.Lesson, error) {
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if lesson.InstructorID != instructorID {
		return nil, appErrors.ErrForbidden
	}
	if err := s.lessons.Cancel(ctx, lessonID); err != nil {
		return nil, err
	}
	lesson.Status = models.LessonCancelled
	s.logger.Sugar().Infow("lesson cancelled", "lesson_id", lessonID, "by", "instructor")
	return lesson, nil
}

// UpcomingForStudent returns the student's next scheduled lessons.
func (s *BookingService) UpcomingForStudent(ctx context.Context, studentID string, limit int) ([]models.LessonWithNames, error) {
	return s.lessons.ListUpcomingByStudent(ctx, studentID, s.now().UTC(), limit)
}
