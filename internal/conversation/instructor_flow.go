package conversation

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/drivelink/drivelink-api/internal/models"
)

type instructorBookingService interface {
	CancelAsInstructor(ctx context.Context, instructorID, lessonID string) (*models.Lesson, error)
	Complete(ctx context.Context, lessonID string, notes, feedback *string, rating *int) (*models.Lesson, error)
}

type instructorLessonRepository interface {
	ListScheduledByInstructorBetween(ctx context.Context, instructorID string, from, to time.Time) ([]models.LessonWithNames, error)
}

type instructorStudentRepository interface {
	ListActiveByInstructor(ctx context.Context, instructorID string) ([]models.Student, error)
}

type instructorVehicleRepository interface {
	FindActiveByInstructor(ctx context.Context, instructorID string) (*models.Vehicle, error)
}

// scheduleHorizon bounds how far ahead the lesson listings look.
const scheduleHorizon = 7 * 24 * time.Hour

// InstructorFlow handles the instructor command set. Instructors are
// stateless: every command is a one-shot lookup or an indexed action over
// the upcoming-lesson ordering that `lessons` shows.
type InstructorFlow struct {
	bookings instructorBookingService
	lessons  instructorLessonRepository
	students instructorStudentRepository
	vehicles instructorVehicleRepository
	outbound outboundQueue
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewInstructorFlow constructs an InstructorFlow.
func NewInstructorFlow(bookings instructorBookingService, lessons instructorLessonRepository, students instructorStudentRepository, vehicles instructorVehicleRepository, outbound outboundQueue, loc *time.Location, logger *zap.Logger) *InstructorFlow {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstructorFlow{
		bookings: bookings,
		lessons:  lessons,
		students: students,
		vehicles: vehicles,
		outbound: outbound,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle processes one inbound intent for the instructor.
func (f *InstructorFlow) Handle(ctx context.Context, instructor *models.User, intent Intent) (Reply, error) {
	switch intent.Kind {
	case IntentReset:
		return f.menu(instructor), nil
	case IntentCancelByIndex:
		return f.cancelByIndex(ctx, instructor, intent.N)
	case IntentKeyword:
		switch intent.Keyword {
		case "confirm":
			return f.confirmByIndex(ctx, instructor, intent.N)
		case "complete":
			return f.completeByIndex(ctx, instructor, intent.N)
		}
		return f.handleKeyword(ctx, instructor, intent.Keyword)
	}
	return f.menu(instructor), nil
}

func (f *InstructorFlow) handleKeyword(ctx context.Context, instructor *models.User, keyword string) (Reply, error) {
	switch keyword {
	case CmdStudents:
		return f.listStudents(ctx, instructor)
	case CmdToday:
		return f.listToday(ctx, instructor)
	case CmdVehicle:
		return f.describeVehicle(ctx, instructor)
	case CmdSchedule, CmdLessons:
		return f.listUpcoming(ctx, instructor)
	case CmdGreeting, CmdHelp:
		return f.menu(instructor), nil
	}
	return f.menu(instructor), nil
}

func (f *InstructorFlow) listStudents(ctx context.Context, instructor *models.User) (Reply, error) {
	students, err := f.students.ListActiveByInstructor(ctx, instructor.ID)
	if err != nil {
		return Reply{}, err
	}
	if len(students) == 0 {
		return Text("You have no students assigned yet."), nil
	}

	var b strings.Builder
	b.WriteString("Your students:\n")
	for i := range students {
		b.WriteString(students[i].Name)
		b.WriteString(" (")
		b.WriteString(students[i].LicenseType)
		b.WriteString(")\n")
	}
	return Text(strings.TrimRight(b.String(), "\n")), nil
}

func (f *InstructorFlow) describeVehicle(ctx context.Context, instructor *models.User) (Reply, error) {
	vehicle, err := f.vehicles.FindActiveByInstructor(ctx, instructor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Text("You have no vehicle assigned. Contact the school office."), nil
		}
		return Reply{}, err
	}
	return TextF("Your vehicle: %d %s %s (%s), licensed for %s.",
		vehicle.Year, vehicle.Make, vehicle.Model, vehicle.RegistrationNumber, vehicle.LicenseClass), nil
}

func (f *InstructorFlow) listToday(ctx context.Context, instructor *models.User) (Reply, error) {
	now := f.now().In(f.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, f.loc)
	lessons, err := f.lessons.ListScheduledByInstructorBetween(ctx, instructor.ID, start.UTC(), start.AddDate(0, 0, 1).UTC())
	if err != nil {
		return Reply{}, err
	}
	if len(lessons) == 0 {
		return Text("No lessons today."), nil
	}
	return Text(f.describeLessons("Today's lessons:", lessons, "15:04")), nil
}

func (f *InstructorFlow) listUpcoming(ctx context.Context, instructor *models.User) (Reply, error) {
	lessons, err := f.upcoming(ctx, instructor)
	if err != nil {
		return Reply{}, err
	}
	if len(lessons) == 0 {
		return Text("No upcoming lessons this week."), nil
	}
	body := f.describeLessons("Upcoming lessons:", lessons, "Mon 02 Jan 15:04")
	return Text(body + "\n\nUse 'cancel N', 'confirm N' or 'complete N' with the lesson number."), nil
}

// upcoming returns the instructor's scheduled lessons for the coming week,
// the shared ordering behind every indexed command.
func (f *InstructorFlow) upcoming(ctx context.Context, instructor *models.User) ([]models.LessonWithNames, error) {
	now := f.now().UTC()
	return f.lessons.ListScheduledByInstructorBetween(ctx, instructor.ID, now, now.Add(scheduleHorizon))
}

func (f *InstructorFlow) lessonByIndex(ctx context.Context, instructor *models.User, n int) (*models.LessonWithNames, Reply, bool, error) {
	lessons, err := f.upcoming(ctx, instructor)
	if err != nil {
		return nil, Reply{}, false, err
	}
	if n < 1 || n > len(lessons) {
		return nil, Text("No such lesson number. Send 'lessons' to see the list."), false, nil
	}
	return &lessons[n-1], Reply{}, true, nil
}

func (f *InstructorFlow) cancelByIndex(ctx context.Context, instructor *models.User, n int) (Reply, error) {
	lesson, reply, ok, err := f.lessonByIndex(ctx, instructor, n)
	if err != nil || !ok {
		return reply, err
	}
	if _, err := f.bookings.CancelAsInstructor(ctx, instructor.ID, lesson.ID); err != nil {
		return Reply{}, err
	}

	local := lesson.ScheduledDate.In(f.loc)
	f.notifyStudent(lesson, "Your lesson on "+local.Format("Mon 02 Jan at 15:04")+" was cancelled by your instructor. Send 'book' to reschedule.")
	return TextF("Cancelled the %s lesson with %s. They have been notified.", local.Format("Mon 02 Jan 15:04"), lesson.StudentName), nil
}

func (f *InstructorFlow) confirmByIndex(ctx context.Context, instructor *models.User, n int) (Reply, error) {
	lesson, reply, ok, err := f.lessonByIndex(ctx, instructor, n)
	if err != nil || !ok {
		return reply, err
	}

	local := lesson.ScheduledDate.In(f.loc)
	f.notifyStudent(lesson, "Your lesson on "+local.Format("Mon 02 Jan at 15:04")+" is confirmed. See you there!")
	return TextF("Confirmation sent to %s for %s.", lesson.StudentName, local.Format("Mon 02 Jan 15:04")), nil
}

func (f *InstructorFlow) completeByIndex(ctx context.Context, instructor *models.User, n int) (Reply, error) {
	lesson, reply, ok, err := f.lessonByIndex(ctx, instructor, n)
	if err != nil || !ok {
		return reply, err
	}
	if lesson.InstructorID != instructor.ID {
		return Text("That lesson isn't yours."), nil
	}
	if _, err := f.bookings.Complete(ctx, lesson.ID, nil, nil, nil); err != nil {
		return Reply{}, err
	}

	f.notifyStudent(lesson, "Nice work today! Your lesson has been marked complete.")
	return TextF("Marked the lesson with %s complete.", lesson.StudentName), nil
}

func (f *InstructorFlow) notifyStudent(lesson *models.LessonWithNames, body string) {
	if lesson.StudentPhone == "" {
		return
	}
	if err := f.outbound.Send(lesson.StudentPhone, body); err != nil {
		f.logger.Sugar().Warnw("failed to queue student notification", "lesson_id", lesson.ID, "error", err)
	}
}

func (f *InstructorFlow) describeLessons(header string, lessons []models.LessonWithNames, layout string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for i := range lessons {
		local := lessons[i].ScheduledDate.In(f.loc)
		b.WriteString(local.Format(layout))
		b.WriteString(" ")
		b.WriteString(lessons[i].StudentName)
		b.WriteString(" (")
		b.WriteString(durationLabel(lessons[i].DurationMinutes))
		b.WriteString(")\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (f *InstructorFlow) menu(instructor *models.User) Reply {
	return Text("Hi " + firstName(instructor.FullName()) + "! You can send: 'students' for your student list, 'today' for today's lessons, 'lessons' for the week ahead, 'vehicle' for your car, 'cancel N' / 'confirm N' / 'complete N' to act on a lesson.")
}
