package service

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/dom/wartracker/internal/domain"
	"github.com/dom/wartracker/internal/links"
	"github.com/go-playground/validator/v10"
)

// ValidationError lists everything wrong with a request. It matches
// domain.ErrValidation, and domain.ErrInvalidLink when a link was refused.
type ValidationError struct {
	Details []string
	causes  []error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Details, "; ")
}

func (e *ValidationError) Unwrap() []error {
	return append([]error{domain.ErrValidation}, e.causes...)
}

func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Details) > 0
}

func (e *ValidationError) add(detail string, cause error) {
	e.Details = append(e.Details, detail)
	if cause != nil {
		e.causes = append(e.causes, cause)
	}
}

// addValidatorErrors turns validator output into readable details. field
// names the value checked by Validate.Var, which carries no field name.
func (e *ValidationError) addValidatorErrors(field string, err error) {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		e.add(err.Error(), nil)
		return
	}

	for _, fe := range sortedFieldErrors(errs) {
		name := fe.Field()
		if field != "" {
			name = field
		}

		switch fe.Tag() {
		case "required":
			e.add(fmt.Sprintf("%s is required", name), nil)
		case links.ValidationTag:
			linkErr := &links.LinkError{Link: fmt.Sprint(fe.Value())}
			e.add(fmt.Sprintf("%s: %s", name, linkErr.Error()), linkErr)
		default:
			e.add(fmt.Sprintf("%s failed %s validation", name, fe.Tag()), nil)
		}
	}
}

// sortedFieldErrors orders the errors of each map or slice field by element
// key. The validator walks maps in random order; fields keep struct order.
func sortedFieldErrors(errs validator.ValidationErrors) []validator.FieldError {
	sorted := slices.Clone([]validator.FieldError(errs))
	for start := 0; start < len(sorted); {
		base := fieldBase(sorted[start].Namespace())
		end := start + 1
		for end < len(sorted) && fieldBase(sorted[end].Namespace()) == base {
			end++
		}
		slices.SortFunc(sorted[start:end], func(a, b validator.FieldError) int {
			return strings.Compare(a.Namespace(), b.Namespace())
		})
		start = end
	}
	return sorted
}

func fieldBase(namespace string) string {
	if i := strings.Index(namespace, "["); i >= 0 {
		return namespace[:i]
	}
	return namespace
}

// newValidate builds a validator that reports fields by their JSON names and
// knows the storagelink tag.
func newValidate(linkValidator *links.Validator) (*validator.Validate, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if linkValidator == nil {
		linkValidator = links.NewValidator()
	}
	if err := linkValidator.RegisterValidation(validate); err != nil {
		return nil, fmt.Errorf("failed to register link validation: %w", err)
	}
	return validate, nil
}
