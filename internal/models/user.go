package models

import "time"

type User struct {
	UID                string    `json:"uid"`
	Email              string    `json:"email"`
	DisplayName        string    `json:"displayName"`
	Role               string    `json:"role"`
	PhoneNumber        string    `json:"phoneNumber,omitempty"`
	BusinessName       string    `json:"businessName,omitempty"`
	RegistrationStatus string    `json:"registrationStatus,omitempty"`
	Verified           bool      `json:"verified"`
	TelegramChatID     int64     `json:"telegramChatId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

func (u *User) IsVendor() bool {
	return u != nil && u.Role == RoleVendor
}

// ApprovedVendor reports whether the vendor may manage listings.
func (u *User) ApprovedVendor() bool {
	return u.IsVendor() && u.RegistrationStatus == RegistrationApproved
}

// Identity is the caller resolved from a verified bearer token.
type Identity struct {
	UID   string
	Email string
	Role  string
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

func (i *Identity) IsVendor() bool {
	return i != nil && i.Role == RoleVendor
}
