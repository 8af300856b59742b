package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/drivelink/drivelink-api/internal/models"
	"github.com/drivelink/drivelink-api/internal/service"
)

type statsProvider interface {
	Overview(ctx context.Context) (*service.SchoolStats, error)
}

type adminStudentRepository interface {
	ListActive(ctx context.Context, limit int) ([]models.Student, error)
}

type adminUserRepository interface {
	ListActiveInstructors(ctx context.Context) ([]models.User, error)
}

type adminLessonRepository interface {
	ListUpcoming(ctx context.Context, after time.Time, limit int) ([]models.LessonWithNames, error)
}

// AdminFlow serves read-only listings and counts over WhatsApp; writes
// happen on the admin portal.
type AdminFlow struct {
	stats    statsProvider
	students adminStudentRepository
	users    adminUserRepository
	lessons  adminLessonRepository
	loc      *time.Location
	now      func() time.Time
}

// NewAdminFlow constructs an AdminFlow. Lesson times render in the given
// location.
func NewAdminFlow(stats statsProvider, students adminStudentRepository, users adminUserRepository, lessons adminLessonRepository, loc *time.Location) *AdminFlow {
	if loc == nil {
		loc = time.UTC
	}
	return &AdminFlow{
		stats:    stats,
		students: students,
		users:    users,
		lessons:  lessons,
		loc:      loc,
		now:      time.Now,
	}
}

// Handle routes the admin's intent to a listing, falling back to the
// overview snapshot.
func (f *AdminFlow) Handle(ctx context.Context, intent Intent) (Reply, error) {
	if intent.Kind == IntentKeyword {
		switch intent.Keyword {
		case CmdStudents:
			return f.listStudents(ctx)
		case CmdInstructors:
			return f.listInstructors(ctx)
		case CmdLessons, CmdSchedule:
			return f.listLessons(ctx)
		}
	}
	return f.overview(ctx)
}

func (f *AdminFlow) overview(ctx context.Context) (Reply, error) {
	overview, err := f.stats.Overview(ctx)
	if err != nil {
		return Reply{}, err
	}
	return TextF("DriveLink overview:\nActive students: %d\nActive instructors: %d\nTotal lessons: %d\n\nSend 'students', 'instructors' or 'lessons' for a listing. Manage the school from the admin portal.",
		overview.ActiveStudents, overview.ActiveInstructors, overview.TotalLessons), nil
}

// numberedList renders a read-only listing; unlike option replies it carries
// no answer prompt.
func numberedList(title string, lines []string) Reply {
	var b strings.Builder
	b.WriteString(title)
	for i, line := range lines {
		fmt.Fprintf(&b, "\n%d. %s", i+1, line)
	}
	return Text(b.String())
}

func (f *AdminFlow) listStudents(ctx context.Context) (Reply, error) {
	students, err := f.students.ListActive(ctx, listLimit)
	if err != nil {
		return Reply{}, err
	}
	if len(students) == 0 {
		return Text("No active students yet."), nil
	}
	lines := make([]string, len(students))
	for i := range students {
		lines[i] = fmt.Sprintf("%s (%s), balance $%.2f", students[i].Name, students[i].Phone, students[i].AccountBalance)
	}
	return numberedList("Active students:", lines), nil
}

func (f *AdminFlow) listInstructors(ctx context.Context) (Reply, error) {
	instructors, err := f.users.ListActiveInstructors(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(instructors) == 0 {
		return Text("No active instructors yet."), nil
	}
	lines := make([]string, len(instructors))
	for i := range instructors {
		line := instructors[i].FullName()
		if instructors[i].Phone != nil && *instructors[i].Phone != "" {
			line += " (" + *instructors[i].Phone + ")"
		}
		lines[i] = line
	}
	return numberedList("Active instructors:", lines), nil
}

func (f *AdminFlow) listLessons(ctx context.Context) (Reply, error) {
	lessons, err := f.lessons.ListUpcoming(ctx, f.now().UTC(), listLimit)
	if err != nil {
		return Reply{}, err
	}
	if len(lessons) == 0 {
		return Text("No upcoming lessons scheduled."), nil
	}
	lines := make([]string, len(lessons))
	for i := range lessons {
		local := lessons[i].ScheduledDate.In(f.loc)
		lines[i] = fmt.Sprintf("%s: %s with %s", local.Format("Mon 02 Jan 15:04"), lessons[i].StudentName, lessons[i].InstructorName)
	}
	return numberedList("Upcoming lessons:", lines), nil
}
