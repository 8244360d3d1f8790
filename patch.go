package gateAuth

import "strings"

// UserPatch lists profile fields to change. Nil fields are left alone.
type UserPatch struct {
	Username             *string `json:"userName,omitempty"`
	Email                *string `json:"email,omitempty"`
	PhoneNumber          *string `json:"phoneNumber,omitempty"`
	EmailConfirmed       *bool   `json:"emailConfirmed,omitempty"`
	PhoneNumberConfirmed *bool   `json:"phoneNumberConfirmed,omitempty"`

	// Password, when set, changes the password after verifying Old.
	Password *PasswordChange `json:"-"`
}

// PasswordChange carries the current and the new password.
type PasswordChange struct {
	Old string
	New string
}

// Empty reports whether the patch changes nothing.
func (u UserPatch) Empty() bool {
	return u.Username == nil && u.Email == nil && u.PhoneNumber == nil &&
		u.EmailConfirmed == nil && u.PhoneNumberConfirmed == nil && u.Password == nil
}

// Merge applies the set fields of patch to p and reports which profile
// fields changed. Blank usernames are ignored.
func Merge(p *Principal, patch UserPatch) (changed bool, renamed bool) {
	if p == nil {
		return false, false
	}

	if patch.Username != nil {
		if name := strings.TrimSpace(*patch.Username); name != "" && name != p.Username {
			p.Username = name
			changed, renamed = true, true
		}
	}
	if patch.Email != nil {
		if email := strings.TrimSpace(*patch.Email); email != p.Email {
			p.Email = email
			changed = true
		}
	}
	if patch.PhoneNumber != nil {
		if phone := strings.TrimSpace(*patch.PhoneNumber); phone != p.PhoneNumber {
			p.PhoneNumber = phone
			changed = true
		}
	}
	if patch.EmailConfirmed != nil && *patch.EmailConfirmed != p.EmailConfirmed {
		p.EmailConfirmed = *patch.EmailConfirmed
		changed = true
	}
	if patch.PhoneNumberConfirmed != nil && *patch.PhoneNumberConfirmed != p.PhoneNumberConfirmed {
		p.PhoneNumberConfirmed = *patch.PhoneNumberConfirmed
		changed = true
	}

	return changed, renamed
}
