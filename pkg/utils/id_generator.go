// Package utils holds small helpers shared by the services and stores: id
// generation and the leaderboard display-name transform.
//
// Go Learning Note — "pkg/" Directory Convention:
// Code under pkg/ is importable by other modules, unlike internal/. Nothing in
// here depends on the domain packages, so it can be lifted out as is.
package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a random (v4) UUID string. Profiles, visits and
// achievement progress rows all use it for their primary key, so ids can be
// minted on any replica without a central sequence.
func GenerateID() string {
	return uuid.New().String()
}

// ValidID reports whether s parses as a UUID.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
