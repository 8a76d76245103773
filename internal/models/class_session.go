package models

// SessionStatus is the lifecycle of a class session.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// ClassSession is a scheduled live class for a batch.
type ClassSession struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	TeacherID       string        `json:"teacher_id"`
	TeacherName     string        `json:"teacher_name"`
	BatchID         string        `json:"batch_id"`
	BatchName       string        `json:"batch_name"`
	Status          SessionStatus `json:"status"`
	ScheduledAt     string        `json:"scheduled_at"`
	DurationMinutes Amount        `json:"duration_minutes"`
	MeetingLink     string        `json:"meeting_link,omitempty"`
}

// Hours converts the session duration to hours.
func (s ClassSession) Hours() (float64, bool) {
	minutes, ok := s.DurationMinutes.Float()
	if !ok {
		return 0, false
	}
	return minutes / 60, true
}

// CreateSessionRequest schedules a class session.
type CreateSessionRequest struct {
	Title           string `json:"title" validate:"required,max=200"`
	BatchID         string `json:"batch_id" validate:"required"`
	TeacherID       string `json:"teacher_id" validate:"required"`
	ScheduledAt     string `json:"scheduled_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gt=0,lte=600"`
	MeetingLink     string `json:"meeting_link,omitempty" validate:"omitempty,url"`
}

// CancelSessionRequest carries the optional cancellation reason.
type CancelSessionRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}
