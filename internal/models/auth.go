package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the access token payload issued by the platform.
type JWTClaims struct {
	UserID   string   `json:"id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// DisplayClaims are the unverified token fields used for greetings and menus.
// They never gate access.
type DisplayClaims struct {
	UserID   string   `json:"id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email,omitempty"`
	FullName string   `json:"full_name,omitempty"`
}

// Preferences are the per-user console settings that survive sign-out.
type Preferences struct {
	SidebarCollapsed bool `json:"sidebar_collapsed"`
}

// UpdatePreferencesRequest toggles console settings.
type UpdatePreferencesRequest struct {
	SidebarCollapsed *bool `json:"sidebar_collapsed" validate:"required"`
}

// Me is the signed-in user's display profile.
type Me struct {
	Claims      DisplayClaims `json:"claims"`
	Preferences Preferences   `json:"preferences"`
	Pages       []string      `json:"pages"`
}
