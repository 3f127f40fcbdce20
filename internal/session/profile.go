package session

import "strings"

// Profile type discriminators.
const (
	ProfileTypeStaff   = "STAFF"
	ProfileTypePatient = "PATIENT"
)

// Profile is the denormalized identity snapshot written at login and read
// by any screen that needs display identity. It is owned exclusively by
// the session context; everyone else reads it or asks the context to
// update it.
type Profile struct {
	ID            string   `json:"id,omitempty"`
	Username      string   `json:"username"`
	Email         string   `json:"email,omitempty"`
	FirstName     string   `json:"firstName,omitempty"`
	LastName      string   `json:"lastName,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	AvatarURL     string   `json:"avatarUrl,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	ProfileType   string   `json:"profileType,omitempty"`
	LicenseNumber string   `json:"licenseNumber,omitempty"`
	StaffNumber   string   `json:"staffNumber,omitempty"`
	Active        bool     `json:"active"`
}

// ProfilePatch carries the fields the profile-edit flow may change.
type ProfilePatch struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	AvatarURL *string
}

// normalizeAvatarURL makes a relative avatar path absolute against the
// portal base. Absolute URLs pass through untouched.
func normalizeAvatarURL(base, avatar string) string {
	if avatar == "" || base == "" {
		return avatar
	}
	if strings.HasPrefix(avatar, "http://") || strings.HasPrefix(avatar, "https://") {
		return avatar
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(avatar, "/")
}
