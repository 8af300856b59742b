package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/drivelink/drivelink-api/internal/models"
	appErrors "github.com/drivelink/drivelink-api/pkg/errors"
)

const lessonColumns = `id, student_id, instructor_id, vehicle_id, scheduled_date, duration_minutes,
	lesson_type, location, cost, status, completed_date, notes, feedback, rating,
	reminders_sent, created_at, updated_at`

const instructorNameExpr = `COALESCE(NULLIF(TRIM(CONCAT(u.first_name, ' ', u.last_name)), ''), u.username)`

// serializationFailure is the PostgreSQL SQLSTATE raised when a serializable
// transaction must be retried.
const serializationFailure = "40001"

const bookingRetries = 3

// LessonRepository manages persistence for lessons, including the atomic
// check-and-insert that booking relies on.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs a LessonRepository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// FindByID fetches a lesson by ID.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons WHERE id = $1`, lessonColumns)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ListUpcomingByStudent returns the student's scheduled lessons starting
// after the given instant, soonest first.
func (r *LessonRepository) ListUpcomingByStudent(ctx context.Context, studentID string, after time.Time, limit int) ([]models.LessonWithNames, error) {
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.phone AS student_phone, u.phone AS instructor_phone, %s AS instructor_name
		FROM lessons l
		JOIN students s ON s.id = l.student_id
		JOIN users u ON u.id = l.instructor_id
		WHERE l.student_id = $1 AND l.status = $2 AND l.scheduled_date > $3
		ORDER BY l.scheduled_date
		LIMIT $4`, prefixColumns("l", lessonColumns), instructorNameExpr)
	var lessons []models.LessonWithNames
	if err := r.db.SelectContext(ctx, &lessons, query, studentID, models.LessonScheduled, after, limit); err != nil {
		return nil, fmt.Errorf("list upcoming lessons: %w", err)
	}
	return lessons, nil
}

// ListUpcoming returns the school-wide scheduled lessons starting after the
// given instant, soonest first.
func (r *LessonRepository) ListUpcoming(ctx context.Context, after time.Time, limit int) ([]models.LessonWithNames, error) {
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.phone AS student_phone, u.phone AS instructor_phone, %s AS instructor_name
		FROM lessons l
		JOIN students s ON s.id = l.student_id
		JOIN users u ON u.id = l.instructor_id
		WHERE l.status = $1 AND l.scheduled_date > $2
		ORDER BY l.scheduled_date
		LIMIT $3`, prefixColumns("l", lessonColumns), instructorNameExpr)
	var lessons []models.LessonWithNames
	if err := r.db.SelectContext(ctx, &lessons, query, models.LessonScheduled, after, limit); err != nil {
		return nil, fmt.Errorf("list school lessons: %w", err)
	}
	return lessons, nil
}

// ListCompletedByStudent returns the student's most recently completed
// lessons, newest first.
func (r *LessonRepository) ListCompletedByStudent(ctx context.Context, studentID string, limit int) ([]models.Lesson, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons
		WHERE student_id = $1 AND status = $2
		ORDER BY completed_date DESC
		LIMIT $3`, lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, studentID, models.LessonCompleted, limit); err != nil {
		return nil, fmt.Errorf("list completed lessons: %w", err)
	}
	return lessons, nil
}

// ListScheduledByInstructorBetween returns the instructor's non-cancelled
// lessons intersecting [from, to), ordered by start.
func (r *LessonRepository) ListScheduledByInstructorBetween(ctx context.Context, instructorID string, from, to time.Time) ([]models.LessonWithNames, error) {
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.phone AS student_phone, u.phone AS instructor_phone, %s AS instructor_name
		FROM lessons l
		JOIN students s ON s.id = l.student_id
		JOIN users u ON u.id = l.instructor_id
		WHERE l.instructor_id = $1 AND l.status <> $2
			AND l.scheduled_date < $4
			AND l.scheduled_date + (l.duration_minutes || ' minutes')::interval > $3
		ORDER BY l.scheduled_date`, prefixColumns("l", lessonColumns), instructorNameExpr)
	var lessons []models.LessonWithNames
	if err := r.db.SelectContext(ctx, &lessons, query, instructorID, models.LessonCancelled, from, to); err != nil {
		return nil, fmt.Errorf("list instructor lessons: %w", err)
	}
	return lessons, nil
}

// CountNonCancelledOnDay counts the student's non-cancelled lessons whose
// start falls inside [dayStart, dayEnd).
func (r *LessonRepository) CountNonCancelledOnDay(ctx context.Context, studentID string, dayStart, dayEnd time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM lessons
		WHERE student_id = $1 AND status <> $2 AND scheduled_date >= $3 AND scheduled_date < $4`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, models.LessonCancelled, dayStart, dayEnd); err != nil {
		return 0, fmt.Errorf("count lessons on day: %w", err)
	}
	return count, nil
}

// CountAll counts every lesson in the store.
func (r *LessonRepository) CountAll(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM lessons`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count lessons: %w", err)
	}
	return count, nil
}

// Book atomically inserts the lesson and debits the student's balance. The
// overlap and daily-limit checks re-run inside a serializable transaction so
// concurrent bookings cannot slip past them; serialization conflicts are
// retried a bounded number of times.
func (r *LessonRepository) Book(ctx context.Context, lesson *models.Lesson, dayStart, dayEnd time.Time, maxPerDay int) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	lesson.CreatedAt = now
	lesson.UpdatedAt = now
	lesson.Status = models.LessonScheduled

	var err error
	for attempt := 0; attempt < bookingRetries; attempt++ {
		err = r.bookOnce(ctx, lesson, dayStart, dayEnd, maxPerDay)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("book lesson: %w", err)
}

func (r *LessonRepository) bookOnce(ctx context.Context, lesson *models.Lesson, dayStart, dayEnd time.Time, maxPerDay int) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	end := lesson.End()
	const overlapQuery = `SELECT COUNT(*) FROM lessons
		WHERE instructor_id = $1 AND status <> $2
			AND scheduled_date < $4
			AND scheduled_date + (duration_minutes || ' minutes')::interval > $3`
	var overlapping int
	if err := tx.GetContext(ctx, &overlapping, overlapQuery, lesson.InstructorID, models.LessonCancelled, lesson.ScheduledDate, end); err != nil {
		return fmt.Errorf("check slot overlap: %w", err)
	}
	if overlapping > 0 {
		return appErrors.ErrSlotTaken
	}

	const dailyQuery = `SELECT COUNT(*) FROM lessons
		WHERE student_id = $1 AND status <> $2 AND scheduled_date >= $3 AND scheduled_date < $4`
	var onDay int
	if err := tx.GetContext(ctx, &onDay, dailyQuery, lesson.StudentID, models.LessonCancelled, dayStart, dayEnd); err != nil {
		return fmt.Errorf("check daily limit: %w", err)
	}
	if onDay >= maxPerDay {
		return appErrors.ErrDailyLimit
	}

	const insertQuery = `INSERT INTO lessons (id, student_id, instructor_id, vehicle_id, scheduled_date,
			duration_minutes, lesson_type, location, cost, status, reminders_sent, created_at, updated_at)
		VALUES (:id, :student_id, :instructor_id, :vehicle_id, :scheduled_date,
			:duration_minutes, :lesson_type, :location, :cost, :status, :reminders_sent, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, lesson); err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}

	const debitQuery = `UPDATE students SET account_balance = account_balance - $1
		WHERE id = $2 AND account_balance >= $1`
	result, err := tx.ExecContext(ctx, debitQuery, lesson.Cost, lesson.StudentID)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrInsufficientBalance
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}

// Complete transitions the lesson to completed and increments the student's
// completed-lesson counter in the same transaction.
func (r *LessonRepository) Complete(ctx context.Context, lessonID string, completedAt time.Time, notes, feedback *string, rating *int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin completion tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const updateQuery = `UPDATE lessons
		SET status = $2, completed_date = $3, notes = $4, feedback = $5, rating = $6, updated_at = $3
		WHERE id = $1 AND status = $7`
	result, err := tx.ExecContext(ctx, updateQuery, lessonID, models.LessonCompleted, completedAt, notes, feedback, rating, models.LessonScheduled)
	if err != nil {
		return fmt.Errorf("complete lesson: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete lesson: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrWrongStatus
	}

	const progressQuery = `UPDATE students SET lessons_completed = lessons_completed + 1
		WHERE id = (SELECT student_id FROM lessons WHERE id = $1)`
	if _, err := tx.ExecContext(ctx, progressQuery, lessonID); err != nil {
		return fmt.Errorf("update student progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit completion tx: %w", err)
	}
	return nil
}

// Cancel transitions a scheduled lesson to cancelled. Cancelled lessons are
// not refunded.
func (r *LessonRepository) Cancel(ctx context.Context, lessonID string) error {
	const query = `UPDATE lessons SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, lessonID, models.LessonCancelled, time.Now().UTC(), models.LessonScheduled)
	if err != nil {
		return fmt.Errorf("cancel lesson: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel lesson: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrWrongStatus
	}
	return nil
}

// ListDueReminders returns scheduled lessons starting inside [from, to)
// whose reminder bit has not been recorded yet.
func (r *LessonRepository) ListDueReminders(ctx context.Context, from, to time.Time, reminderBit int) ([]models.LessonWithNames, error) {
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.phone AS student_phone, u.phone AS instructor_phone, %s AS instructor_name
		FROM lessons l
		JOIN students s ON s.id = l.student_id
		JOIN users u ON u.id = l.instructor_id
		WHERE l.status = $1 AND l.scheduled_date >= $2 AND l.scheduled_date < $3
			AND (l.reminders_sent & $4) = 0
		ORDER BY l.scheduled_date`, prefixColumns("l", lessonColumns), instructorNameExpr)
	var lessons []models.LessonWithNames
	if err := r.db.SelectContext(ctx, &lessons, query, models.LessonScheduled, from, to, reminderBit); err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return lessons, nil
}

// MarkReminderSent records a reminder bit so the sweep never resends it.
func (r *LessonRepository) MarkReminderSent(ctx context.Context, lessonID string, reminderBit int) error {
	const query = `UPDATE lessons SET reminders_sent = reminders_sent | $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, lessonID, reminderBit); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == serializationFailure
	}
	return false
}
