package models

// Mark is a student's score on one assessment.
type Mark struct {
	ID                 string `json:"id"`
	StudentID          string `json:"student_id"`
	StudentName        string `json:"student_name"`
	RegistrationNumber string `json:"registration_number"`
	BatchID            string `json:"batch_id"`
	BatchName          string `json:"batch_name"`
	AssessmentID       string `json:"assessment_id"`
	AssessmentTitle    string `json:"assessment_title"`
	MarksObtained      Amount `json:"marks_obtained"`
	MaxMarks           Amount `json:"max_marks"`
	AssessedAt         string `json:"assessed_at"`
}

// Percentage returns obtained/max as a percentage. It is unavailable when
// either value is missing or max is not positive.
func (m Mark) Percentage() (float64, bool) {
	obtained, ok := m.MarksObtained.Float()
	if !ok {
		return 0, false
	}
	maxMarks, ok := m.MaxMarks.Float()
	if !ok || maxMarks <= 0 {
		return 0, false
	}
	return obtained / maxMarks * 100, true
}

// UpdateMarkRequest corrects an entered mark.
type UpdateMarkRequest struct {
	MarksObtained *float64 `json:"marks_obtained" validate:"required,gte=0"`
	MaxMarks      *float64 `json:"max_marks" validate:"required,gt=0"`
	Remarks       string   `json:"remarks,omitempty" validate:"omitempty,max=500"`
}
