package auth

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/alimurtadho/authcore/pkg/account"
	autherrors "github.com/alimurtadho/authcore/pkg/errors"
)

const (
	maxEmailLength = 254
	maxNameLength  = 100
	maxBioLength   = 500
)

var namePattern = regexp.MustCompile(`^[\p{L}\s\-'.]+$`)

// validateEmail returns the normalized address.
func validateEmail(email string) (string, error) {
	normalized := account.NormalizeEmail(email)
	if normalized == "" {
		return "", autherrors.InvalidInput("email", "is required")
	}
	if utf8.RuneCountInString(normalized) > maxEmailLength {
		return "", autherrors.InvalidInput("email", "is too long")
	}
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return "", autherrors.InvalidInput("email", "is not a valid address")
	}
	return normalized, nil
}

func validateName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", autherrors.InvalidInput(field, "must not exceed 100 characters")
	}
	if !namePattern.MatchString(name) {
		return "", autherrors.InvalidInput(field, "contains invalid characters")
	}
	return name, nil
}

func validateBio(bio string) (string, error) {
	bio = strings.TrimSpace(bio)
	if utf8.RuneCountInString(bio) > maxBioLength {
		return "", autherrors.InvalidInput("bio", "must not exceed 500 characters")
	}
	return bio, nil
}

func validateProfile(p account.Profile) (account.Profile, error) {
	var err error
	if p.FirstName, err = validateName("first_name", p.FirstName); err != nil {
		return account.Profile{}, err
	}
	if p.LastName, err = validateName("last_name", p.LastName); err != nil {
		return account.Profile{}, err
	}
	if p.Bio, err = validateBio(p.Bio); err != nil {
		return account.Profile{}, err
	}
	return p, nil
}
