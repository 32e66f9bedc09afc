package domain

import "time"

// TOTPSecret is a user's TOTP shared secret. It stays unconfirmed (inert)
// until the first successful verification; an abandoned enrollment never
// gates login.
type TOTPSecret struct {
	UserID      string
	Secret      string // base32, RFC 6238
	Confirmed   bool
	CreatedAt   time.Time
	ConfirmedAt *time.Time // nil until first successful verification
}

// BackupCode is one single-use recovery code, stored only as a hash.
type BackupCode struct {
	ID         string
	UserID     string
	CodeHash   string
	ConsumedAt *time.Time // nil while still usable
	CreatedAt  time.Time
}
