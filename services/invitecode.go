package services

import (
	"crypto/rand"
	"strings"
)

const (
	inviteCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeLength  = 6

	// largest multiple of len(inviteCodeCharset) that fits in a byte; bytes at or
	// above it are rejected so every character is equally likely
	inviteCodeByteLimit = 256 - 256%len(inviteCodeCharset)
)

// GenerateInviteCode returns a random code of six characters drawn uniformly from
// [A-Z0-9]. Codes are not guaranteed to be unique.
func GenerateInviteCode() (string, error) {
	b := make([]byte, 0, inviteCodeLength)
	buf := make([]byte, inviteCodeLength*2)
	for len(b) < inviteCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, r := range buf {
			if int(r) >= inviteCodeByteLimit {
				continue
			}
			b = append(b, inviteCodeCharset[int(r)%len(inviteCodeCharset)])
			if len(b) == inviteCodeLength {
				break
			}
		}
	}
	return string(b), nil
}

// NormalizeInviteCode trims and upper-cases a user supplied code
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// validInviteCode reports whether code could have been produced by GenerateInviteCode
func validInviteCode(code string) bool {
	if len(code) != inviteCodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(inviteCodeCharset, r) {
			return false
		}
	}
	return true
}
