package datastore

import (
	"regexp"
	"strings"
	"time"

	"github.com/classroll/rollcall/internal/biometric"
	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/match"
)

// DateLayout is the accepted date of birth format.
const DateLayout = "2006-01-02"

var (
	digitsRegex = regexp.MustCompile(`^[0-9]+$`)
	emailRegex  = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
)

// Person is the registration input for a teacher or a student.
type Person struct {
	Role        match.Role
	ID          string // teacher id or enrollment id
	FirstName   string
	LastName    string
	Gender      string
	DateOfBirth time.Time
	Email       string
	Phone       string
	Vector      biometric.FeatureVector
}

// ValidateID accepts a non-empty string of ASCII digits.
func ValidateID(id string) error {
	if !digitsRegex.MatchString(id) {
		return validationError("id must contain digits only", "id", id)
	}
	return nil
}

// NormalizeID validates id and drops leading zeros, so "007" and "7"
// name the same person. "0" stays "0".
func NormalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if err := ValidateID(id); err != nil {
		return "", err
	}
	if trimmed := strings.TrimLeft(id, "0"); trimmed != "" {
		return trimmed, nil
	}
	return "0", nil
}

// NormalizeGender maps male/female/other in any case to lower case.
func NormalizeGender(gender string) (string, error) {
	g := strings.ToLower(strings.TrimSpace(gender))
	switch g {
	case "male", "female", "other":
		return g, nil
	}
	return "", validationError("gender must be male, female or other", "gender", gender)
}

// ParseDateOfBirth parses a YYYY-MM-DD date that is not after now.
func ParseDateOfBirth(value string, now time.Time) (time.Time, error) {
	dob, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, validationError("date of birth must be YYYY-MM-DD", "date_of_birth", value)
	}
	if dob.After(now) {
		return time.Time{}, validationError("date of birth is in the future", "date_of_birth", value)
	}
	return dob, nil
}

// ValidateEmail checks the address format.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return validationError("invalid e-mail address", "email", email)
	}
	return nil
}

// ValidatePerson checks every registration field and returns all failures joined.
func ValidatePerson(p *Person, now time.Time) error {
	errs := detailErrors(p, now)
	if len(p.Vector) == 0 {
		errs = append(errs, validationError("biometric vector is required", "biometric_data", 0))
	}
	return errors.Join(errs...)
}

// ValidateDetails checks everything except the biometric vector, so input
// can be rejected before the camera is used.
func ValidateDetails(p *Person, now time.Time) error {
	return errors.Join(detailErrors(p, now)...)
}

func detailErrors(p *Person, now time.Time) []error {
	var errs []error

	if !p.Role.Valid() {
		errs = append(errs, validationError("role must be teacher or student", "role", string(p.Role)))
	}
	if err := ValidateID(p.ID); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(p.FirstName) == "" {
		errs = append(errs, validationError("first name is required", "first_name", p.FirstName))
	}
	if strings.TrimSpace(p.LastName) == "" {
		errs = append(errs, validationError("last name is required", "last_name", p.LastName))
	}
	if _, err := NormalizeGender(p.Gender); err != nil {
		errs = append(errs, err)
	}
	if p.DateOfBirth.IsZero() || p.DateOfBirth.After(now) {
		errs = append(errs, validationError("date of birth is missing or in the future", "date_of_birth", p.DateOfBirth.Format(DateLayout)))
	}
	if err := ValidateEmail(p.Email); err != nil {
		errs = append(errs, err)
	}
	return errs
}
