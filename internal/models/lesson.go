package models

import "time"

// Lesson statuses.
const (
	LessonScheduled = "scheduled"
	LessonCompleted = "completed"
	LessonCancelled = "cancelled"
)

// Reminder bits recorded on a lesson so the sweep emits each reminder
// at most once.
const (
	Reminder24HSent = 1 << 0
	Reminder2HSent  = 1 << 1
)

// Lesson links one student and one instructor at a scheduled instant.
// Cost is frozen at booking time and never recomputed.
type Lesson struct {
	ID              string     `db:"id" json:"id"`
	StudentID       string     `db:"student_id" json:"student_id"`
	InstructorID    string     `db:"instructor_id" json:"instructor_id"`
	VehicleID       *string    `db:"vehicle_id" json:"vehicle_id,omitempty"`
	ScheduledDate   time.Time  `db:"scheduled_date" json:"scheduled_date"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	LessonType      string     `db:"lesson_type" json:"lesson_type"`
	Location        *string    `db:"location" json:"location,omitempty"`
	Cost            float64    `db:"cost" json:"cost"`
	Status          string     `db:"status" json:"status"`
	CompletedDate   *time.Time `db:"completed_date" json:"completed_date,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	Feedback        *string    `db:"feedback" json:"feedback,omitempty"`
	Rating          *int       `db:"rating" json:"rating,omitempty"`
	RemindersSent   int        `db:"reminders_sent" json:"reminders_sent"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// End returns the instant at which the lesson finishes.
func (l *Lesson) End() time.Time {
	return l.ScheduledDate.Add(time.Duration(l.DurationMinutes) * time.Minute)
}

// Overlaps reports whether the lesson intersects [start, end).
func (l *Lesson) Overlaps(start, end time.Time) bool {
	return l.ScheduledDate.Before(end) && start.Before(l.End())
}

// LessonWithNames is a lesson joined with its student and instructor
// display names for conversation replies.
type LessonWithNames struct {
	Lesson
	StudentName     string  `db:"student_name" json:"student_name"`
	InstructorName  string  `db:"instructor_name" json:"instructor_name"`
	StudentPhone    string  `db:"student_phone" json:"student_phone"`
	InstructorPhone *string `db:"instructor_phone" json:"instructor_phone,omitempty"`
}
