package models

// Payment statuses as exposed to filters.
const (
	PaymentStatusApproved = "approved"
	PaymentStatusPending  = "pending"
)

// Payment is a student fee payment awaiting or holding finance approval.
type Payment struct {
	ID                 string             `json:"id"`
	StudentName        string             `json:"student_name"`
	RegistrationNumber string             `json:"registration_number"`
	Email              string             `json:"email,omitempty"`
	PaymentType        string             `json:"payment_type"`
	TransactionID      string             `json:"transaction_id,omitempty"`
	FinalFees          Amount             `json:"final_fees"`
	Approved           bool               `json:"approved"`
	CreatedAt          string             `json:"created_at"`
	Enrollment         *PaymentEnrollment `json:"enrollment,omitempty"`
}

// PaymentEnrollment links a payment to the batch the student enrolled in.
type PaymentEnrollment struct {
	ID    string    `json:"id"`
	Batch *BatchRef `json:"batch,omitempty"`
}

// BatchRef is the nested batch relation on payments.
type BatchRef struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Course *CourseRef `json:"course,omitempty"`
}

// CourseRef is the nested course relation on batches.
type CourseRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Status returns the approval state as a filter value.
func (p Payment) Status() string {
	if p.Approved {
		return PaymentStatusApproved
	}
	return PaymentStatusPending
}

// BatchName returns the enrolled batch name when the relation is present.
func (p Payment) BatchName() (string, bool) {
	if p.Enrollment == nil || p.Enrollment.Batch == nil || p.Enrollment.Batch.Name == "" {
		return "", false
	}
	return p.Enrollment.Batch.Name, true
}

// CourseName returns the enrolled course name when the relation is present.
func (p Payment) CourseName() (string, bool) {
	if p.Enrollment == nil || p.Enrollment.Batch == nil || p.Enrollment.Batch.Course == nil {
		return "", false
	}
	name := p.Enrollment.Batch.Course.Name
	return name, name != ""
}

// UpdatePaymentRequest edits payment details before approval.
type UpdatePaymentRequest struct {
	FinalFees     *float64 `json:"final_fees,omitempty" validate:"omitempty,gte=0"`
	PaymentType   string   `json:"payment_type,omitempty" validate:"omitempty,max=50"`
	TransactionID string   `json:"transaction_id,omitempty" validate:"omitempty,max=100"`
}
