package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is a singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their YAML keys.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks struct tags and the cross-field rules tags cannot
// express. Every failure is reported in one joined error.
func (b *Batch) Validate() error {
	if b == nil {
		return errors.New("batch cannot be nil")
	}

	cv := newChecker("batch")
	if err := validate.Struct(b); err != nil {
		cv.errors = append(cv.errors, formatValidationErrors(err)...)
	}
	seen := make(map[string]bool, len(b.Scenarios))
	for i, s := range b.Scenarios {
		field := fmt.Sprintf("scenarios[%d]", i)
		cv.nonNegative(field+".duration", s.Duration).
			nonNegative(field+".report_interval", s.ReportInterval).
			when(s.ReportInterval > 0 && s.Duration > 0, func(c *checker) {
				c.custom(field+".report_interval", func() error {
					if s.ReportInterval > s.Duration {
						return fmt.Errorf("%v is longer than the duration %v", s.ReportInterval, s.Duration)
					}
					return nil
				})
			}).
			when(!s.Streamed(), func(c *checker) {
				c.custom(field+".report_interval", func() error {
					if s.ReportInterval != 0 {
						return errors.New("only streamed scenarios have a report interval")
					}
					return nil
				})
			})
		if seen[s.Name] {
			cv.fail(field+".name", fmt.Errorf("duplicate scenario name %q", s.Name))
		}
		seen[s.Name] = true
	}
	return cv.result()
}

// checker collects validation errors rather than failing on the first one.
type checker struct {
	name   string
	errors []error
}

func newChecker(name string) *checker {
	return &checker{name: name}
}

func (c *checker) fail(field string, err error) *checker {
	c.errors = append(c.errors, fmt.Errorf("%s.%s: %w", c.name, field, err))
	return c
}

func (c *checker) nonNegative(field string, d time.Duration) *checker {
	if d < 0 {
		c.fail(field, fmt.Errorf("duration %v must be non-negative", d))
	}
	return c
}

func (c *checker) custom(field string, fn func() error) *checker {
	if err := fn(); err != nil {
		c.fail(field, err)
	}
	return c
}

func (c *checker) when(cond bool, fn func(*checker)) *checker {
	if cond {
		fn(c)
	}
	return c
}

func (c *checker) result() error {
	switch len(c.errors) {
	case 0:
		return nil
	case 1:
		return c.errors[0]
	}
	return fmt.Errorf("%s validation failed with %d errors:\n%w", c.name, len(c.errors), errors.Join(c.errors...))
}

// formatValidationErrors converts validator errors to a more user-friendly
// format, one error per failing field.
func formatValidationErrors(err error) []error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []error{err}
	}

	out := make([]error, 0, len(validationErrs))
	for _, e := range validationErrs {
		out = append(out, formatFieldError(e))
	}
	return out
}

func formatFieldError(e validator.FieldError) error {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s: field is required", field)
	case "min":
		return fmt.Errorf("%s: must be at least %s", field, e.Param())
	case "max", "lte":
		return fmt.Errorf("%s: must not exceed %s", field, e.Param())
	case "gte":
		return fmt.Errorf("%s: must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Errorf("%s: must be one of [%s], got %v", field, e.Param(), e.Value())
	default:
		return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
	}
}
