package types

// Claims is the identity carried inside a bearer token. Fields are bound by
// JSON name, never by position.
type Claims struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// RegisterRequest is the body of POST /accounts/register.
type RegisterRequest = CreateUserParams

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the data section of a successful login.
type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// ForgotPasswordRequest represents the forgot-password request body.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the reset-password request body.
type ResetPasswordRequest struct {
	OTP         string `json:"otp"`
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
}
