package models

// UserRole represents the roles the platform assigns.
type UserRole string

const (
	RoleAdmin               UserRole = "admin"
	RoleManager             UserRole = "manager"
	RoleAcademicCoordinator UserRole = "academic_coordinator"
	RoleTeacher             UserRole = "teacher"
	RoleFinance             UserRole = "finance"
	RoleStudent             UserRole = "student"
)

// User statuses as exposed to filters.
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User is a platform account.
type User struct {
	ID                 string   `json:"id"`
	FullName           string   `json:"full_name"`
	Email              string   `json:"email"`
	Phone              string   `json:"phone,omitempty"`
	RegistrationNumber string   `json:"registration_number,omitempty"`
	Role               UserRole `json:"role"`
	IsActive           bool     `json:"is_active"`
	CreatedAt          string   `json:"created_at"`
}

// Status returns the activation state as a filter value.
func (u User) Status() string {
	if u.IsActive {
		return UserStatusActive
	}
	return UserStatusInactive
}

// CreateUserRequest is the create-user form.
type CreateUserRequest struct {
	FullName           string   `json:"full_name" validate:"required,max=120"`
	Email              string   `json:"email" validate:"required,email"`
	Password           string   `json:"password" validate:"required,complexpassword"`
	Role               UserRole `json:"role" validate:"required,oneof=admin manager academic_coordinator teacher finance student"`
	Phone              string   `json:"phone,omitempty" validate:"omitempty,max=20"`
	RegistrationNumber string   `json:"registration_number,omitempty" validate:"omitempty,max=40"`
}

// UpdateUserRequest is the edit-user form.
type UpdateUserRequest struct {
	FullName string   `json:"full_name" validate:"required,max=120"`
	Email    string   `json:"email" validate:"required,email"`
	Role     UserRole `json:"role" validate:"required,oneof=admin manager academic_coordinator teacher finance student"`
	Phone    string   `json:"phone,omitempty" validate:"omitempty,max=20"`
	IsActive *bool    `json:"is_active,omitempty"`
}
