package token

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Device classes accepted on issuance.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// ValidDeviceClass reports whether the device class is one of the fixed set.
func ValidDeviceClass(class string) bool {
	switch class {
	case DeviceDesktop, DeviceMobile, DeviceTablet:
		return true
	}
	return false
}

// Claims is the payload carried by a gateway token.
type Claims struct {
	UserID      int64  `json:"user_id"`
	DeviceClass string `json:"device_class"`
	jwt.RegisteredClaims
}

// RemainingSeconds returns seconds until expiry, negative once expired.
func (c *Claims) RemainingSeconds() int64 {
	if c.ExpiresAt == nil {
		return 0
	}
	return int64(time.Until(c.ExpiresAt.Time).Seconds())
}

// ExpiringSoon reports whether the token expires within the given window.
func (c *Claims) ExpiringSoon(window time.Duration) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return time.Until(c.ExpiresAt.Time) <= window
}

// newTokenID derives a fresh unique token id from the identity, the current
// time and randomness. Never reused across issuances.
func newTokenID(userID int64, deviceClass string) string {
	sum := md5.Sum(fmt.Appendf(nil, "%d%s%d%s", userID, deviceClass, time.Now().UnixNano(), uuid.NewString()))
	return hex.EncodeToString(sum[:])
}
