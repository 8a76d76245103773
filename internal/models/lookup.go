package models

// State is a region used to group students and centres.
type State struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code,omitempty"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Batch is a cohort of students taking a course together.
type Batch struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CourseName   string `json:"course_name"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	IsActive     bool   `json:"is_active"`
	StudentCount Amount `json:"student_count"`
}
