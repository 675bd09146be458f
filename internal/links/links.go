// Package links checks that user-supplied links point at the trusted external
// storage provider. The check is a prefix match only; it does not fetch or
// parse the URL.
package links

import (
	"fmt"
	"strings"

	"github.com/dom/wartracker/internal/domain"
	"github.com/go-playground/validator/v10"
)

// ValidationTag is the struct tag registered by RegisterValidation.
const ValidationTag = "storagelink"

var DefaultPrefixes = []string{
	"https://drive.google.com/",
	"https://docs.google.com/",
}

// LinkError is returned for a non-empty link outside the allow-list.
type LinkError struct {
	Link string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link %q is not a Google Drive link; use a drive.google.com link or leave it empty", e.Link)
}

func (e *LinkError) Unwrap() error { return domain.ErrInvalidLink }

type Validator struct {
	prefixes []string
}

// NewValidator lower-cases and trims prefixes; an empty list falls back to
// DefaultPrefixes.
func NewValidator(prefixes ...string) *Validator {
	v := &Validator{}
	for _, p := range prefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			v.prefixes = append(v.prefixes, p)
		}
	}
	if len(v.prefixes) == 0 {
		v.prefixes = append(v.prefixes, DefaultPrefixes...)
	}
	return v
}

func (v *Validator) Prefixes() []string {
	return append([]string(nil), v.prefixes...)
}

func (v *Validator) Allowed(link string) bool {
	u := strings.ToLower(strings.TrimSpace(link))
	if u == "" {
		return true
	}
	for _, p := range v.prefixes {
		if strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}

// Check returns a *LinkError for a non-empty link that is not allowed.
func (v *Validator) Check(link string) error {
	if v.Allowed(link) {
		return nil
	}
	return &LinkError{Link: strings.TrimSpace(link)}
}

// RegisterValidation installs the storagelink tag on validate. The tag
// applies to string and *string fields; combine with dive for slices.
func (v *Validator) RegisterValidation(validate *validator.Validate) error {
	return validate.RegisterValidation(ValidationTag, func(fl validator.FieldLevel) bool {
		return v.Allowed(fl.Field().String())
	})
}
