package types

import "time"

// User is a stored account record.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Bio          string    `json:"bio"`
	Topics       []string  `json:"topics"`
	PasswordHash string    `json:"-"` // never exposed
	Followers    []string  `json:"followers"`
	Following    []string  `json:"following"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity returns the claim set a bearer token carries for this user.
func (u *User) Identity() Claims {
	return Claims{
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// CreateUserParams holds the fields accepted on registration.
type CreateUserParams struct {
	Email     string   `json:"email"`
	Username  string   `json:"username"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Bio       string   `json:"bio"`
	Topics    []string `json:"topics"`
	Password  string   `json:"password"`
}

// UpdateAccountParams defines the fields allowed for account updates.
// Nil pointers are left untouched.
type UpdateAccountParams struct {
	Username  *string   `json:"username,omitempty"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
	Bio       *string   `json:"bio,omitempty"`
	Topics    *[]string `json:"topics,omitempty"`
}
