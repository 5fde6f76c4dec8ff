package types

import "time"

// CredentialsProvider is the providerId of the account row holding a password hash.
const CredentialsProvider = "credentials"

// User represents an account in the system.
// It contains identity and audit metadata; secrets live in Credential.
type User struct {
	// ID is the unique identifier of the user, issued by the auth provider.
	ID string `json:"id" db:"id"`

	// Name is the user's display name. It is never empty.
	Name string `json:"name" db:"name"`

	// Email is the user's email address. It cannot be changed through the profile flow.
	Email string `json:"email" db:"email"`

	// EmailVerified reports whether the auth provider verified the email address.
	EmailVerified bool `json:"email_verified" db:"emailVerified"`

	// Image is an optional avatar reference (URL, stored object path, or data URL).
	Image *string `json:"image" db:"image"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"createdAt"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updatedAt"`
}

// Profile is the public projection of a User returned by the profile endpoints.
type Profile struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Image *string `json:"image"`
}

// Credential is a per-user, per-login-method secret record.
type Credential struct {
	ID         string `db:"id"`
	UserID     string `db:"userId"`
	AccountID  string `db:"accountId"`
	ProviderID string `db:"providerId"`

	// PasswordHash is only set for the credentials provider.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password"`

	CreatedAt time.Time `db:"createdAt"`
	UpdatedAt time.Time `db:"updatedAt"`
}

// Session is an authenticated session resolved from request credentials.
type Session struct {
	ID        string    `json:"id" db:"id"`
	Token     string    `json:"-" db:"token"`
	UserID    string    `json:"user_id" db:"userId"`
	ExpiresAt time.Time `json:"expires_at" db:"expiresAt"`
}
