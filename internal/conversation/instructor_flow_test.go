package conversation

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivelink/drivelink-api/internal/models"
)

type mockInstructorBookings struct {
	cancelledID  string
	completedID  string
	completeErr  error
	cancelledFor string
}

func (m *mockInstructorBookings) CancelAsInstructor(ctx context.Context, instructorID, lessonID string) (*models.Lesson, error) {
	m.cancelledFor = instructorID
	m.cancelledID = lessonID
	return &models.Lesson{ID: lessonID, Status: models.LessonCancelled}, nil
}

func (m *mockInstructorBookings) Complete(ctx context.Context, lessonID string, notes, feedback *string, rating *int) (*models.Lesson, error) {
	if m.completeErr != nil {
		return nil, m.completeErr
	}
	m.completedID = lessonID
	return &models.Lesson{ID: lessonID, Status: models.LessonCompleted}, nil
}

type mockInstructorLessons struct {
	scheduled []models.LessonWithNames
}

func (m *mockInstructorLessons) ListScheduledByInstructorBetween(ctx context.Context, instructorID string, from, to time.Time) ([]models.LessonWithNames, error) {
	var out []models.LessonWithNames
	for _, l := range m.scheduled {
		if !l.ScheduledDate.Before(from) && l.ScheduledDate.Before(to) {
			out = append(out, l)
		}
	}
	return out, nil
}

type mockInstructorStudents struct {
	students []models.Student
}

func (m *mockInstructorStudents) ListActiveByInstructor(ctx context.Context, instructorID string) ([]models.Student, error) {
	return m.students, nil
}

type mockInstructorVehicles struct {
	vehicle *models.Vehicle
}

func (m *mockInstructorVehicles) FindActiveByInstructor(ctx context.Context, instructorID string) (*models.Vehicle, error) {
	if m.vehicle == nil {
		return nil, sql.ErrNoRows
	}
	return m.vehicle, nil
}

func testInstructor() *models.User {
	return &models.User{ID: "in-1", Username: "mbanda", Role: models.RoleInstructor}
}

func weekLesson(id string, start time.Time, studentName, studentPhone string) models.LessonWithNames {
	return models.LessonWithNames{
		Lesson: models.Lesson{
			ID:              id,
			InstructorID:    "in-1",
			ScheduledDate:   start,
			DurationMinutes: 30,
			Status:          models.LessonScheduled,
		},
		StudentName:  studentName,
		StudentPhone: studentPhone,
	}
}

func newTestInstructorFlow(bookings *mockInstructorBookings, lessons *mockInstructorLessons, now time.Time) (*InstructorFlow, *recordingOutbound) {
	outbound := &recordingOutbound{}
	flow := NewInstructorFlow(bookings, lessons, &mockInstructorStudents{}, &mockInstructorVehicles{}, outbound, time.UTC, nil)
	flow.now = func() time.Time { return now }
	return flow, outbound
}

func TestInstructorListsUpcomingWeek(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	lessons := &mockInstructorLessons{scheduled: []models.LessonWithNames{
		weekLesson("l-1", now.Add(2*time.Hour), "Tariro Moyo", "+263771234567"),
		weekLesson("l-2", now.AddDate(0, 0, 2), "Peter Dube", "+263772222222"),
		weekLesson("l-old", now.AddDate(0, 0, 9), "Too Far", "+263773333333"),
	}}
	flow, _ := newTestInstructorFlow(&mockInstructorBookings{}, lessons, now)

	reply, err := flow.Handle(context.Background(), testInstructor(), Intent{Kind: IntentKeyword, Keyword: CmdLessons})
	require.NoError(t, err)
	rendered := reply.Render()
	assert.Contains(t, rendered, "Tariro Moyo")
	assert.Contains(t, rendered, "Peter Dube")
	assert.NotContains(t, rendered, "Too Far", "horizon is one week")
	assert.Contains(t, rendered, "cancel N")
}

func TestInstructorToday(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	lessons := &mockInstructorLessons{scheduled: []models.LessonWithNames{
		weekLesson("l-1", now.Add(2*time.Hour), "Tariro Moyo", "+263771234567"),
		weekLesson("l-2", now.AddDate(0, 0, 1).Add(time.Hour), "Peter Dube", "+263772222222"),
	}}
	flow, _ := newTestInstructorFlow(&mockInstructorBookings{}, lessons, now)

	reply, err := flow.Handle(context.Background(), testInstructor(), Intent{Kind: IntentKeyword, Keyword: "today"})
	require.NoError(t, err)
	assert.Contains(t, reply.Render(), "Tariro Moyo")
	assert.NotContains(t, reply.Render(), "Peter Dube")
}

func TestInstructorCancelNotifiesStudent(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	bookings := &mockInstructorBookings{}
	lessons := &mockInstructorLessons{scheduled: []models.LessonWithNames{
		weekLesson("l-1", now.Add(2*time.Hour), "Tariro Moyo", "+263771234567"),
	}}
	flow, outbound := newTestInstructorFlow(bookings, lessons, now)

	reply, err := flow.Handle(context.Background(), testInstructor(), Intent{Kind: IntentCancelByIndex, N: 1})
	require.NoError(t, err)
	assert.Equal(t, "l-1", bookings.cancelledID)
	assert.Equal(t, "in-1", bookings.cancelledFor)
	assert.Contains(t, reply.Render(), "Tariro Moyo")
	require.Len(t, outbound.sent, 1)
	assert.Equal(t, "+263771234567", outbound.sent[0].To)
	assert.Contains(t, outbound.sent[0].Body, "cancelled by your instructor")
}

func TestInstructorConfirmIsNotificationOnly(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	bookings := &mockInstructorBookings{}
	lessons := &mockInstructorLessons{scheduled: []models.LessonWithNames{
		weekLesson("l-1", now.Add(2*time.Hour), "Tariro Moyo", "+263771234567"),
	}}
	flow, outbound := newTestInstructorFlow(bookings, lessons, now)

	_, err := flow.Handle(context.Background(), testInstructor(), Intent{Kind: IntentKeyword, Keyword: "confirm", N: 1})
	require.NoError(t, err)
	assert.Empty(t, bookings.completedID)
	assert.Empty(t, bookings.cancelledID)
	require.Len(t, outbound.sent, 1)
	assert.Contains(t, outbound.sent[0].Body, "is confirmed")
}

func TestInstructorComplete(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	bookings := &mockInstructorBookings{}
	lessons := &mockInstructorLessons{scheduled: []models.LessonWithNames{
		weekLesson("l-1", now.Add(2*time.Hour), "Tariro Moyo", "+263771234567"),
	}}
	flow, outbound := newTestInstructorFlow(bookings, lessons, now)

	reply, err := flow.Handle(context.Background(), testInstructor(), Intent{Kind: IntentKeyword, Keyword: "complete", N: 1})
	require.NoError(t, err)
	assert.Equal(t, "l-1", bookings.completedID)
	assert.Contains(t, reply.Render(), "complete")
	require.Len(t, outbound.sent, 1)
}

func TestInstructorIndexOutOfRange(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	flow, _ := newTestInstructorFlow(&mockInstructorBookings{}, &mockInstructorLessons{}, now)

	reply, err := flow.Handle(context.Background(), testInstructor(), Intent{Kind: IntentCancelByIndex, N: 3})
	require.NoError(t, err)
	assert.Contains(t, reply.Render(), "No such lesson number")
}

func TestInstructorStudentList(t *testing.T) {
	flow := NewInstructorFlow(&mockInstructorBookings{}, &mockInstructorLessons{}, &mockInstructorStudents{students: []models.Student{
		{Name: "Tariro Moyo", LicenseType: models.LicenseClass4},
	}}, &mockInstructorVehicles{}, &recordingOutbound{}, time.UTC, nil)

	reply, err := flow.Handle(context.Background(), testInstructor(), Intent{Kind: IntentKeyword, Keyword: CmdStudents})
	require.NoError(t, err)
	assert.Contains(t, reply.Render(), "Tariro Moyo")
	assert.Contains(t, reply.Render(), "Class 4")
}

func TestInstructorVehicle(t *testing.T) {
	vehicles := &mockInstructorVehicles{vehicle: &models.Vehicle{
		RegistrationNumber: "AEZ-4821",
		Make:               "Toyota",
		Model:              "Vitz",
		Year:               2018,
		LicenseClass:       models.LicenseClass4,
		IsActive:           true,
	}}
	flow := NewInstructorFlow(&mockInstructorBookings{}, &mockInstructorLessons{}, &mockInstructorStudents{}, vehicles, &recordingOutbound{}, time.UTC, nil)

	reply, err := flow.Handle(context.Background(), testInstructor(), Intent{Kind: IntentKeyword, Keyword: CmdVehicle})
	require.NoError(t, err)
	assert.Contains(t, reply.Render(), "2018 Toyota Vitz (AEZ-4821)")

	flow = NewInstructorFlow(&mockInstructorBookings{}, &mockInstructorLessons{}, &mockInstructorStudents{}, &mockInstructorVehicles{}, &recordingOutbound{}, time.UTC, nil)
	reply, err = flow.Handle(context.Background(), testInstructor(), Intent{Kind: IntentKeyword, Keyword: CmdVehicle})
	require.NoError(t, err)
	assert.Contains(t, reply.Render(), "no vehicle assigned")
}
