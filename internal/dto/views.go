package dto

import "github.com/noah-isme/edu-admin-console/pkg/listview"

// PaymentStats feeds the revenue panel and the table counters of the payments page.
type PaymentStats struct {
	Revenue       listview.Stats    `json:"revenue"`
	TopCourses    []listview.Bucket `json:"top_courses"`
	ByPaymentType []listview.Bucket `json:"by_payment_type"`
	Approved      int               `json:"approved"`
	Pending       int               `json:"pending"`
}

// UserStats summarises the filtered user list.
type UserStats struct {
	Active   int               `json:"active"`
	Inactive int               `json:"inactive"`
	ByRole   []listview.Bucket `json:"by_role"`
}

// SessionStats summarises the filtered class sessions.
type SessionStats struct {
	ByStatus       []listview.Bucket `json:"by_status"`
	ScheduledHours float64           `json:"scheduled_hours"`
}

// MarkStats summarises graded marks. ByAssessment totals hold the average
// percentage of each assessment.
type MarkStats struct {
	AveragePercentage float64           `json:"average_percentage"`
	Graded            int               `json:"graded"`
	Passed            int               `json:"passed"`
	PassPercentage    float64           `json:"pass_percentage"`
	ByAssessment      []listview.Bucket `json:"by_assessment"`
}

// ChatStats counts messages per sender role.
type ChatStats struct {
	BySenderRole []listview.Bucket `json:"by_sender_role"`
}

// MutationResponse reports a dispatched mutation.
type MutationResponse struct {
	Action     string `json:"action"`
	RecordID   string `json:"record_id,omitempty"`
	Refreshed  bool   `json:"refreshed"`
	RefetchErr string `json:"refetch_error,omitempty"`
}

// DeleteUserRequest carries the typed phrase for a force delete.
type DeleteUserRequest struct {
	ConfirmationText string `json:"confirmation_text"`
}

// ExportJobResponse is the status view of an export job.
type ExportJobResponse struct {
	ID          string  `json:"id"`
	Page        string  `json:"page"`
	Format      string  `json:"format"`
	Status      string  `json:"status"`
	Rows        int     `json:"rows"`
	DownloadURL *string `json:"download_url,omitempty"`
	Error       *string `json:"error,omitempty"`
}
