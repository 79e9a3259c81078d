package models

import (
	"fmt"
	"strings"
)

// Gender tags a user and filters the hairstyle catalog.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderUnset  Gender = "unset"
)

// ParseGender accepts the tag case-insensitively; an empty string is GenderUnset.
func ParseGender(s string) (Gender, error) {
	switch g := Gender(strings.ToLower(strings.TrimSpace(s))); g {
	case GenderMale, GenderFemale, GenderUnset:
		return g, nil
	case "":
		return GenderUnset, nil
	default:
		return "", fmt.Errorf("unknown gender %q", s)
	}
}

// IsSet reports whether the user already picked a gender.
func (g Gender) IsSet() bool {
	return g == GenderMale || g == GenderFemale
}

// UserProfile represents the locally signed-in user
type UserProfile struct {
	UID       string `bson:"_id" json:"uid"`
	Email     string `bson:"email,omitempty" json:"email,omitempty"`
	Gender    Gender `bson:"gender" json:"gender"`
	CreatedAt int64  `bson:"created_at" json:"created_at"` // unix millis

	PasswordHash string `bson:"password_hash,omitempty" json:"-"` // bcrypt, optional
}
