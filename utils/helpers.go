package utils

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// GenerateRandomString generates a random string of specified length
func GenerateRandomString(length int) (string, error) {
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// IsValidRole checks if a role is valid
func IsValidRole(role string) bool {
	validRoles := []string{"manager", "studio_owner", "customer"}
	for _, validRole := range validRoles {
		if role == validRole {
			return true
		}
	}
	return false
}

// IsStaffRole reports whether the role may act on behalf of a studio.
func IsStaffRole(role string) bool {
	return role == "manager" || role == "studio_owner"
}

// IsValidUserStatus checks if a user status is valid
func IsValidUserStatus(status string) bool {
	validStatuses := []string{"active", "inactive", "suspended"}
	for _, validStatus := range validStatuses {
		if status == validStatus {
			return true
		}
	}
	return false
}

// IsValidLeadStatus checks if a lead pipeline status is valid
func IsValidLeadStatus(status string) bool {
	validStatuses := []string{"new", "contacted", "trial_booked", "converted", "lost"}
	for _, validStatus := range validStatuses {
		if status == validStatus {
			return true
		}
	}
	return false
}

// ParsePackageSizes decodes a studio's configured top-up sizes from JSON.
// Falls back to the platform default of {10, 20} when unset or malformed.
func ParsePackageSizes(raw []byte) []int {
	defaults := []int{10, 20}
	if len(raw) == 0 {
		return defaults
	}
	var sizes []int
	if err := json.Unmarshal(raw, &sizes); err != nil || len(sizes) == 0 {
		return defaults
	}
	return sizes
}

// SanitizeString removes dangerous characters from string
func SanitizeString(input string) string {
	// Remove null bytes and control characters
	input = strings.ReplaceAll(input, "\x00", "")

	// Trim whitespace
	input = strings.TrimSpace(input)

	return input
}
