package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/drivelink/drivelink-api/internal/models"
	appErrors "github.com/drivelink/drivelink-api/pkg/errors"
)

type bookingService interface {
	Book(ctx context.Context, studentID string, start time.Time, durationMinutes int) (*models.Lesson, error)
	CancelAsStudent(ctx context.Context, studentID, lessonID string) (*models.Lesson, error)
	UpcomingForStudent(ctx context.Context, studentID string, limit int) ([]models.LessonWithNames, error)
}

type slotLister interface {
	AvailableSlots(ctx context.Context, instructorID string, durationMinutes int) ([]time.Time, error)
	Location() *time.Location
}

type flowStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdateLocation(ctx context.Context, id, location string) error
	UpdateEmail(ctx context.Context, id, email string) error
	UpdateInstructor(ctx context.Context, id, instructorID string) error
}

type flowUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListActiveInstructors(ctx context.Context) ([]models.User, error)
	ListActiveInstructorsByLocation(ctx context.Context, location string) ([]models.User, error)
}

type flowLessonRepository interface {
	ListCompletedByStudent(ctx context.Context, studentID string, limit int) ([]models.Lesson, error)
}

type flowPaymentRepository interface {
	ListRecentByStudent(ctx context.Context, studentID string, limit int) ([]models.Payment, error)
}

type outboundQueue interface {
	Send(to, body string) error
}

const listLimit = 10

var studentMenu = []string{
	"Book a lesson",
	"My schedule",
	"Cancel a lesson",
	"Balance & progress",
	"Help",
}

// StudentFlow handles every conversation state for registered students.
type StudentFlow struct {
	bookings  bookingService
	slots     slotLister
	students  flowStudentRepository
	users     flowUserRepository
	lessons   flowLessonRepository
	payments  flowPaymentRepository
	outbound  outboundQueue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentFlow constructs a StudentFlow.
func NewStudentFlow(bookings bookingService, slots slotLister, students flowStudentRepository, users flowUserRepository, lessons flowLessonRepository, payments flowPaymentRepository, outbound outboundQueue, validate *validator.Validate, logger *zap.Logger) *StudentFlow {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentFlow{
		bookings:  bookings,
		slots:     slots,
		students:  students,
		users:     users,
		lessons:   lessons,
		payments:  payments,
		outbound:  outbound,
		validator: validate,
		logger:    logger,
	}
}

// Handle processes one inbound intent for the student and mutates the
// session to its next state.
func (f *StudentFlow) Handle(ctx context.Context, session *models.Session, student *models.Student, intent Intent) (Reply, error) {
	if intent.Kind == IntentReset {
		resetSession(session)
		return f.mainMenu(student), nil
	}

	switch session.State {
	case models.StateAwaitingDuration:
		return f.handleDuration(ctx, session, student, intent)
	case models.StateAwaitingBookingSlot:
		return f.handleSlotChoice(ctx, session, student, intent)
	case models.StateAwaitingCancelSelect:
		return f.handleCancelChoice(ctx, session, student, intent)
	case models.StateAwaitingLocation:
		return f.handleLocationInput(ctx, session, student, intent)
	case models.StateAwaitingEmail:
		return f.handleEmailInput(ctx, session, student, intent)
	case models.StateAwaitingInstructor:
		return f.handleInstructorChoice(ctx, session, student, intent)
	}

	return f.handleMainMenu(ctx, session, student, intent)
}

func (f *StudentFlow) handleMainMenu(ctx context.Context, session *models.Session, student *models.Student, intent Intent) (Reply, error) {
	switch intent.Kind {
	case IntentMenuChoice:
		return f.handleMenuChoice(ctx, session, student, intent.N)
	case IntentCancelByIndex:
		return f.cancelByFreshIndex(ctx, session, student, intent.N)
	case IntentKeyword:
		return f.handleKeyword(ctx, session, student, intent.Keyword)
	}
	return f.mainMenu(student), nil
}

func (f *StudentFlow) handleMenuChoice(ctx context.Context, session *models.Session, student *models.Student, n int) (Reply, error) {
	switch n {
	case 1:
		return f.startBooking(session), nil
	case 2:
		return f.schedule(ctx, student)
	case 3:
		return f.startCancellation(ctx, session, student)
	case 4:
		return f.balanceAndProgress(student), nil
	case 5:
		return f.helpReply(), nil
	}
	return f.mainMenu(student), nil
}

func (f *StudentFlow) handleKeyword(ctx context.Context, session *models.Session, student *models.Student, keyword string) (Reply, error) {
	switch keyword {
	case CmdGreeting:
		return f.mainMenu(student), nil
	case CmdBook:
		return f.startBooking(session), nil
	case CmdSchedule:
		return f.schedule(ctx, student)
	case CmdLessons:
		return f.lessonHistory(ctx, student)
	case CmdCancel:
		return f.startCancellation(ctx, session, student)
	case CmdProgress, CmdBalance:
		return f.balanceAndProgress(student), nil
	case CmdProfile:
		return f.profile(ctx, student)
	case CmdLocation:
		session.State = models.StateAwaitingLocation
		return Text("What area are you in? Send your suburb or town name."), nil
	case CmdEmail:
		session.State = models.StateAwaitingEmail
		return Text("Send your new email address."), nil
	case CmdInstructors:
		return f.startInstructorSwitch(ctx, session, student)
	case CmdFund:
		return f.fundReply(ctx, student)
	case CmdEmergency:
		return Text("If this is an emergency, call the school office immediately. Your instructor has also been alerted for anything lesson-related."), nil
	case CmdHelp:
		return f.helpReply(), nil
	}
	return f.mainMenu(student), nil
}

func (f *StudentFlow) startBooking(session *models.Session) Reply {
	session.State = models.StateAwaitingDuration
	session.Payload = models.SessionPayload{}
	return Reply{
		Body:    "How long should the lesson be?",
		Options: []string{"30 minutes", "60 minutes", "Back to menu"},
	}
}

func (f *StudentFlow) handleDuration(ctx context.Context, session *models.Session, student *models.Student, intent Intent) (Reply, error) {
	if intent.Kind != IntentDuration {
		return Text("Please reply 1 for 30 minutes, 2 for 60 minutes, or 3 to go back."), nil
	}
	if student.InstructorID == nil || *student.InstructorID == "" {
		resetSession(session)
		return Text("You don't have an instructor assigned yet. Send 'instructors' to choose one."), nil
	}

	slots, err := f.slots.AvailableSlots(ctx, *student.InstructorID, intent.N)
	if err != nil {
		return Reply{}, err
	}
	if len(slots) == 0 {
		resetSession(session)
		return Text("No slots are available right now. Slots for tomorrow open at 18:00, so please check back later."), nil
	}

	session.State = models.StateAwaitingBookingSlot
	session.Payload = models.SessionPayload{DurationMinutes: intent.N, Slots: slots}

	options := make([]string, len(slots))
	for i, slot := range slots {
		options[i] = slot.In(f.slots.Location()).Format("Mon 02 Jan 15:04")
	}
	return Reply{Body: "Pick a time:", Options: options}, nil
}

func (f *StudentFlow) handleSlotChoice(ctx context.Context, session *models.Session, student *models.Student, intent Intent) (Reply, error) {
	if intent.Kind != IntentBookByIndex {
		return Text("Please reply with the number of the slot you want, or 'menu' to start over."), nil
	}
	slots := session.Payload.Slots
	if intent.N > len(slots) {
		return TextF("Please pick a number between 1 and %d.", len(slots)), nil
	}

	start := slots[intent.N-1]
	lesson, err := f.bookings.Book(ctx, student.ID, start, session.Payload.DurationMinutes)
	if err != nil {
		return f.bookingError(session, err)
	}

	resetSession(session)
	fresh, loadErr := f.students.FindByID(ctx, student.ID)
	if loadErr != nil {
		fresh = student
	}
	local := lesson.ScheduledDate.In(f.slots.Location())
	return TextF("Booked! Your %d-minute lesson is on %s. $%.2f was deducted; your balance is now $%.2f.",
		lesson.DurationMinutes, local.Format("Mon 02 Jan at 15:04"), lesson.Cost, fresh.AccountBalance), nil
}

// bookingError maps each booking failure to its user-visible sentence. The
// recoverable ones keep the student on the slot list.
func (f *StudentFlow) bookingError(session *models.Session, err error) (Reply, error) {
	switch {
	case errors.Is(err, appErrors.ErrSlotTaken):
		return Text("That slot was just taken by someone else. Send 'book' to see a fresh list of times."), nil
	case errors.Is(err, appErrors.ErrDailyLimit):
		return Text("You already have 2 lessons scheduled for this day. Pick a time on another day."), nil
	case errors.Is(err, appErrors.ErrInsufficientBalance):
		resetSession(session)
		return Text("Your balance doesn't cover this lesson. Send 'fund' to see how to top up."), nil
	case errors.Is(err, appErrors.ErrPastSlot), errors.Is(err, appErrors.ErrOutOfWindow):
		resetSession(session)
		return Text("That time is no longer available. Send 'book' to see the current times."), nil
	case errors.Is(err, appErrors.ErrNoInstructor):
		resetSession(session)
		return Text("You don't have an instructor assigned yet. Send 'instructors' to choose one."), nil
	case errors.Is(err, appErrors.ErrNoPricing):
		resetSession(session)
		return Text("We can't price lessons for your license class yet. Please contact the school office."), nil
	}
	return Reply{}, err
}

func (f *StudentFlow) startCancellation(ctx context.Context, session *models.Session, student *models.Student) (Reply, error) {
	upcoming, err := f.bookings.UpcomingForStudent(ctx, student.ID, listLimit)
	if err != nil {
		return Reply{}, err
	}
	if len(upcoming) == 0 {
		resetSession(session)
		return Text("You have no upcoming lessons to cancel."), nil
	}

	ids := make([]string, len(upcoming))
	options := make([]string, len(upcoming))
	for i := range upcoming {
		ids[i] = upcoming[i].ID
		local := upcoming[i].ScheduledDate.In(f.slots.Location())
		options[i] = local.Format("Mon 02 Jan 15:04") + " with " + upcoming[i].InstructorName
	}
	session.State = models.StateAwaitingCancelSelect
	session.Payload = models.SessionPayload{LessonIDs: ids}
	return Reply{Body: "Which lesson do you want to cancel?", Options: options}, nil
}

func (f *StudentFlow) handleCancelChoice(ctx context.Context, session *models.Session, student *models.Student, intent Intent) (Reply, error) {
	if intent.Kind != IntentCancelByIndex {
		return Text("Please reply with the number of the lesson to cancel, or 'menu' to go back."), nil
	}
	ids := session.Payload.LessonIDs
	if intent.N > len(ids) {
		return TextF("Please pick a number between 1 and %d.", len(ids)), nil
	}
	return f.cancel(ctx, session, student, ids[intent.N-1])
}

// cancelByFreshIndex serves "cancel N" straight from the main menu, indexing
// into the same upcoming-lesson ordering the list command shows.
func (f *StudentFlow) cancelByFreshIndex(ctx context.Context, session *models.Session, student *models.Student, n int) (Reply, error) {
	upcoming, err := f.bookings.UpcomingForStudent(ctx, student.ID, listLimit)
	if err != nil {
		return Reply{}, err
	}
	if n > len(upcoming) {
		return Text("You don't have that many upcoming lessons. Send 'cancel' to see them."), nil
	}
	return f.cancel(ctx, session, student, upcoming[n-1].ID)
}

func (f *StudentFlow) cancel(ctx context.Context, session *models.Session, student *models.Student, lessonID string) (Reply, error) {
	lesson, err := f.bookings.CancelAsStudent(ctx, student.ID, lessonID)
	switch {
	case errors.Is(err, appErrors.ErrCancelLeadTime):
		return Text("Lessons can only be cancelled at least 2 hours before they start."), nil
	case errors.Is(err, appErrors.ErrWrongStatus):
		resetSession(session)
		return Text("That lesson is no longer scheduled."), nil
	case err != nil:
		return Reply{}, err
	}

	resetSession(session)
	local := lesson.ScheduledDate.In(f.slots.Location())
	return TextF("Your lesson on %s has been cancelled. Note that the lesson fee is not refunded.", local.Format("Mon 02 Jan at 15:04")), nil
}

func (f *StudentFlow) handleLocationInput(ctx context.Context, session *models.Session, student *models.Student, intent Intent) (Reply, error) {
	area := strings.TrimSpace(intent.Text)
	if len(area) < 3 || !containsLetter(area) {
		return Text("That doesn't look like an area name. Send your suburb or town, e.g. 'Avondale'."), nil
	}
	if err := f.students.UpdateLocation(ctx, student.ID, area); err != nil {
		return Reply{}, err
	}
	student.CurrentLocation = &area
	resetSession(session)
	return TextF("Got it, your area is now %s.", area), nil
}

func (f *StudentFlow) handleEmailInput(ctx context.Context, session *models.Session, student *models.Student, intent Intent) (Reply, error) {
	email := strings.TrimSpace(intent.Text)
	if err := f.validator.Var(email, "required,email"); err != nil {
		return Text("That doesn't look like an email address. Try again, e.g. 'name@example.com'."), nil
	}
	if err := f.students.UpdateEmail(ctx, student.ID, email); err != nil {
		return Reply{}, err
	}
	resetSession(session)
	return TextF("Your email is now %s.", email), nil
}

func (f *StudentFlow) startInstructorSwitch(ctx context.Context, session *models.Session, student *models.Student) (Reply, error) {
	if student.CurrentLocation == nil || *student.CurrentLocation == "" {
		session.State = models.StateAwaitingLocation
		return Text("First, what area are you in? Send your suburb or town name."), nil
	}

	instructors, err := f.users.ListActiveInstructorsByLocation(ctx, *student.CurrentLocation)
	if err != nil {
		return Reply{}, err
	}
	if len(instructors) == 0 {
		if instructors, err = f.users.ListActiveInstructors(ctx); err != nil {
			return Reply{}, err
		}
	}
	if len(instructors) == 0 {
		resetSession(session)
		return Text("No instructors are available right now. Please try again later."), nil
	}
	if len(instructors) > listLimit {
		instructors = instructors[:listLimit]
	}

	ids := make([]string, len(instructors))
	options := make([]string, len(instructors))
	for i := range instructors {
		ids[i] = instructors[i].ID
		options[i] = describeInstructor(&instructors[i])
	}
	session.State = models.StateAwaitingInstructor
	session.Payload = models.SessionPayload{InstructorIDs: ids}
	return Reply{Body: "Available instructors:", Options: options}, nil
}

func (f *StudentFlow) handleInstructorChoice(ctx context.Context, session *models.Session, student *models.Student, intent Intent) (Reply, error) {
	if intent.Kind != IntentSelectInstructor {
		return Text("Please reply with the number of the instructor you want, or 'menu' to go back."), nil
	}
	ids := session.Payload.InstructorIDs
	if intent.N > len(ids) {
		return TextF("Please pick a number between 1 and %d.", len(ids)), nil
	}

	instructor, err := f.users.FindByID(ctx, ids[intent.N-1])
	if err != nil {
		return Reply{}, err
	}
	if err := f.students.UpdateInstructor(ctx, student.ID, instructor.ID); err != nil {
		return Reply{}, err
	}
	if instructor.Phone != nil && *instructor.Phone != "" {
		if err := f.outbound.Send(*instructor.Phone, "New student assigned: "+student.Name+". Send 'students' to see your list."); err != nil {
			f.logger.Sugar().Warnw("failed to queue instructor notification", "instructor_id", instructor.ID, "error", err)
		}
	}

	resetSession(session)
	return TextF("You're now with %s. Send 'book' to schedule your next lesson.", instructor.FullName()), nil
}

func (f *StudentFlow) schedule(ctx context.Context, student *models.Student) (Reply, error) {
	upcoming, err := f.bookings.UpcomingForStudent(ctx, student.ID, listLimit)
	if err != nil {
		return Reply{}, err
	}
	if len(upcoming) == 0 {
		return Text("You have no upcoming lessons. Send 'book' to schedule one."), nil
	}

	var b strings.Builder
	b.WriteString("Your upcoming lessons:\n")
	for i := range upcoming {
		local := upcoming[i].ScheduledDate.In(f.slots.Location())
		b.WriteString(local.Format("Mon 02 Jan 15:04"))
		b.WriteString(" (")
		b.WriteString(durationLabel(upcoming[i].DurationMinutes))
		b.WriteString(") with ")
		b.WriteString(upcoming[i].InstructorName)
		b.WriteString("\n")
	}
	return Text(strings.TrimRight(b.String(), "\n")), nil
}

func (f *StudentFlow) lessonHistory(ctx context.Context, student *models.Student) (Reply, error) {
	completed, err := f.lessons.ListCompletedByStudent(ctx, student.ID, 5)
	if err != nil {
		return Reply{}, err
	}
	if len(completed) == 0 {
		return Text("You haven't completed any lessons yet. Send 'book' to schedule your first one."), nil
	}

	var b strings.Builder
	b.WriteString("Your recent lessons:\n")
	for i := range completed {
		local := completed[i].ScheduledDate.In(f.slots.Location())
		b.WriteString(local.Format("Mon 02 Jan"))
		b.WriteString(" (")
		b.WriteString(durationLabel(completed[i].DurationMinutes))
		b.WriteString(")")
		if completed[i].Rating != nil {
			b.WriteString(strings.Repeat(" *", *completed[i].Rating))
		}
		b.WriteString("\n")
	}
	return Text(strings.TrimRight(b.String(), "\n")), nil
}

func (f *StudentFlow) fundReply(ctx context.Context, student *models.Student) (Reply, error) {
	payments, err := f.payments.ListRecentByStudent(ctx, student.ID, 3)
	if err != nil {
		return Reply{}, err
	}

	var b strings.Builder
	b.WriteString("To top up your account, send your payment to the school office and your balance will be updated the same day.")
	if len(payments) > 0 {
		b.WriteString("\n\nYour recent top-ups:\n")
		for i := range payments {
			b.WriteString(payments[i].CreatedAt.Format("02 Jan"))
			b.WriteString(": $")
			b.WriteString(strconv.FormatFloat(payments[i].Amount, 'f', 2, 64))
			b.WriteString("\n")
		}
	}
	return Text(strings.TrimRight(b.String(), "\n")), nil
}

func (f *StudentFlow) balanceAndProgress(student *models.Student) Reply {
	return TextF("Balance: $%.2f\nProgress: %d of %d lessons (%.0f%%)",
		student.AccountBalance, student.LessonsCompleted, student.TotalLessonsRequired, student.ProgressPercentage())
}

func (f *StudentFlow) profile(ctx context.Context, student *models.Student) (Reply, error) {
	var b strings.Builder
	b.WriteString("Your profile:\nName: " + student.Name + "\nLicense: " + student.LicenseType + "\n")
	if student.Email != nil {
		b.WriteString("Email: " + *student.Email + "\n")
	}
	if student.CurrentLocation != nil {
		b.WriteString("Area: " + *student.CurrentLocation + "\n")
	}
	if student.InstructorID != nil && *student.InstructorID != "" {
		if instructor, err := f.users.FindByID(ctx, *student.InstructorID); err == nil {
			b.WriteString("Instructor: " + instructor.FullName() + "\n")
		}
	}
	b.WriteString("Send 'email' or 'location' to update your details.")
	return Text(b.String()), nil
}

func (f *StudentFlow) mainMenu(student *models.Student) Reply {
	return Reply{
		Body:    "Hi " + firstName(student.Name) + ", what would you like to do?",
		Options: studentMenu,
	}
}

func (f *StudentFlow) helpReply() Reply {
	return Text("You can send: 'book' to schedule a lesson, 'schedule' to see upcoming lessons, 'cancel' to cancel one, 'balance' for your balance and progress, 'instructors' to switch instructor, 'profile' for your details, or 'menu' at any time to start over.")
}

func resetSession(session *models.Session) {
	session.State = models.StateMainMenu
	session.Payload = models.SessionPayload{}
}

func durationLabel(minutes int) string {
	if minutes == 60 {
		return "60 min"
	}
	return "30 min"
}

func describeInstructor(u *models.User) string {
	desc := u.FullName()
	if u.BaseLocation != nil && *u.BaseLocation != "" {
		desc += " - " + *u.BaseLocation
	}
	if u.AverageRating != nil {
		desc += " (" + strconv.FormatFloat(*u.AverageRating, 'f', 1, 64) + "/5)"
	}
	return desc
}

func containsLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

func firstName(full string) string {
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i]
	}
	return full
}
