package auth

import "time"

// StatusEnabled marks an account as usable.
const StatusEnabled int16 = 1

// MaxLoginFailures locks an account once consecutive failures reach it.
const MaxLoginFailures = 9

// User represents an admin account able to log in.
type User struct {
	ID                int64
	Username          string
	Nickname          string
	PasswordHash      string
	Status            int16
	IsAdmin           bool
	LoginFailureCount int
	LastLoginAt       time.Time
	LastLoginIP       string
}
