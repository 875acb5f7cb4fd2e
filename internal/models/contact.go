package models

import "time"

// Roles recognised by contact resolution.
const (
	RoleAdmin      = "admin"
	RoleOwner      = "owner"
	RoleAccountant = "accountant"
)

// User is a dashboard account. PasswordHash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Role         string    `json:"role"`
	CompanyID    string    `json:"company_id,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// GetDisplayName returns the best available display name for the user
func (u *User) GetDisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

// Company is an organization with one owner and any number of assigned accountants.
type Company struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	OwnerID       string    `json:"owner_id"`
	AccountantIDs []string  `json:"accountant_ids"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasAccountant reports whether userID is assigned to the company.
func (c *Company) HasAccountant(userID string) bool {
	for _, id := range c.AccountantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Contact is the summary shown in a contact list.
type Contact struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	CompanyID   string `json:"company_id,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

// ContactFromUser builds a contact summary for u within company (which may be nil).
func ContactFromUser(u *User, company *Company) Contact {
	c := Contact{
		ID:          u.ID,
		DisplayName: u.GetDisplayName(),
		Role:        u.Role,
		CompanyID:   u.CompanyID,
	}
	if company != nil {
		c.CompanyID = company.ID
		c.CompanyName = company.Name
	}
	return c
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}
