package account

import (
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
)

const (
	HealthIDPrefix = "JEEV"
	healthIDLength = 9
	healthIDChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	healthIDPattern    = regexp.MustCompile(`^JEEV[A-Z0-9]{9}$`)
	ErrInvalidHealthID = errors.New("health id must be JEEV followed by 9 uppercase alphanumeric characters")
)

// ValidHealthID reports whether s has the Health ID format.
func ValidHealthID(s string) bool {
	return healthIDPattern.MatchString(s)
}

// NewHealthID returns a random Health ID. Bytes at or above the largest
// multiple of len(healthIDChars) are discarded so every character is
// equally likely.
func NewHealthID() (string, error) {
	const limit = 256 - 256%len(healthIDChars)

	out := make([]byte, 0, len(HealthIDPrefix)+healthIDLength)
	out = append(out, HealthIDPrefix...)

	var buf [16]byte
	for len(out) < cap(out) {
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("generate health id: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, healthIDChars[int(b)%len(healthIDChars)])
			if len(out) == cap(out) {
				break
			}
		}
	}
	return string(out), nil
}
