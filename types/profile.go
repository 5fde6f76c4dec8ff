package types

// UpdateProfileRequest is the full-replacement payload of PUT /profile.
// A nil Password leaves the stored credential untouched.
type UpdateProfileRequest struct {
	Name     string  `json:"name"`
	Password *string `json:"password,omitempty"`
	Image    *string `json:"image"`
}

// MessageResponse acknowledges a mutation.
type MessageResponse struct {
	Message string `json:"message"`
}

// AvatarResponse carries the stable reference of an uploaded avatar.
type AvatarResponse struct {
	Image string `json:"image"`
}

// ProfileEvent is published to the message broker after a committed mutation.
type ProfileEvent struct {
	Type            string `json:"type"`
	UserID          string `json:"user_id"`
	PasswordChanged bool   `json:"password_changed,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}

// Profile event types.
const (
	EventProfileUpdated = "profile.updated"
	EventProfileDeleted = "profile.deleted"
)
