package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxFullNameLength = 80
	MaxBioLength      = 280
)

// ProfileUpdate carries the editable profile fields. A nil Bio clears the bio.
type ProfileUpdate struct {
	FullName string  `json:"full_name"`
	Bio      *string `json:"bio,omitempty"`
}

// Normalize trims whitespace and folds an empty bio into nil.
func (p ProfileUpdate) Normalize() ProfileUpdate {
	out := ProfileUpdate{FullName: strings.TrimSpace(p.FullName)}
	if p.Bio != nil {
		if b := strings.TrimSpace(*p.Bio); b != "" {
			out.Bio = &b
		}
	}
	return out
}

// Validate checks field lengths; all problems are reported together.
func (p ProfileUpdate) Validate() error {
	var errs []string
	name := strings.TrimSpace(p.FullName)
	if name == "" {
		errs = append(errs, "full_name cannot be empty")
	} else if utf8.RuneCountInString(name) > MaxFullNameLength {
		errs = append(errs, fmt.Sprintf("full_name must be at most %d characters", MaxFullNameLength))
	}
	if p.Bio != nil && utf8.RuneCountInString(strings.TrimSpace(*p.Bio)) > MaxBioLength {
		errs = append(errs, fmt.Sprintf("bio must be at most %d characters", MaxBioLength))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Apply returns a copy of u with the update applied.
func (p ProfileUpdate) Apply(u User) User {
	n := p.Normalize()
	out := u.Clone()
	out.FullName = n.FullName
	out.Bio = n.Bio
	return out
}
