// Package validation runs declarative field rules against path parameters
// and JSON bodies. Rules are plain data; Check is the only interpreter.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/relvacode/iso8601"

	"taskmanager/internal/apperr"
)

// Location says where a rule reads its field from.
type Location int

const (
	InPath Location = iota
	InBody
)

// Type is the shape a raw value is coerced into before its tag is checked.
type Type int

const (
	ObjectID Type = iota
	String
	Bool
	DateTime
)

// Rule describes one field check.
type Rule struct {
	Field string
	In    Location
	Type  Type
	// Tag is a validator tag run against the coerced value, e.g.
	// "required,notblank" or "mongodb". A field missing from the input is
	// only an error when Tag contains "required".
	Tag string
	// Trim strips surrounding whitespace from the coerced string.
	Trim bool
	// Message replaces the default message for this rule.
	Message string
}

// Input is the raw request data rules are evaluated against.
type Input struct {
	Params map[string]string
	Body   map[string]any
}

// Values holds coerced values of the fields that were supplied.
type Values map[string]any

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// Validator returns the shared validator with the notblank tag registered
// and json field names.
func Validator() *validator.Validate {
	return validate
}

// Check evaluates every rule and collects all failures. A malformed
// identifier outranks body errors and yields an InvalidID error; any other
// failure yields a Validation error listing every rejected field in rule
// order.
func Check(rules []Rule, in Input) (Values, error) {
	values := Values{}
	var (
		details   []apperr.FieldError
		invalidID error
	)

	for _, r := range rules {
		raw, present := lookup(r, in)
		if !present {
			if r.required() {
				details = append(details, fieldError(r, r.Field+" is required"))
			}
			continue
		}

		v, err := r.check(raw)
		if err != nil {
			if r.Type == ObjectID && invalidID == nil {
				invalidID = err
			}
			details = append(details, fieldError(r, err.Error()))
			continue
		}
		values[r.Field] = v
	}

	if invalidID != nil {
		return nil, apperr.InvalidID(invalidID)
	}
	if len(details) > 0 {
		return nil, apperr.Validation(details)
	}
	return values, nil
}

func lookup(r Rule, in Input) (any, bool) {
	if r.In == InPath {
		v, ok := in.Params[r.Field]
		return v, ok
	}
	v, ok := in.Body[r.Field]
	return v, ok
}

func fieldError(r Rule, msg string) apperr.FieldError {
	if r.Message != "" {
		msg = r.Message
	}
	return apperr.FieldError{Field: r.Field, Message: msg}
}

func (r Rule) required() bool {
	for _, tag := range strings.Split(r.Tag, ",") {
		if tag == "required" {
			return true
		}
	}
	return false
}

// check coerces raw into the rule's type, then runs the rule's tag on it.
func (r Rule) check(raw any) (any, error) {
	v, err := r.coerce(raw)
	if err != nil {
		return nil, err
	}
	if r.Tag == "" {
		return v, nil
	}

	err = validate.Var(v, r.Tag)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return nil, errors.New(tagMessage(r.Field, verrs[0].Tag()))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Field, err)
	}
	return v, nil
}

func tagMessage(field, tag string) string {
	switch tag {
	case "required":
		return field + " is required"
	case "notblank":
		return field + " must not be empty"
	case "mongodb":
		return "invalid " + field
	default:
		return fmt.Sprintf("%s failed the %s constraint", field, tag)
	}
}

func (r Rule) coerce(raw any) (any, error) {
	switch r.Type {
	case ObjectID, String:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string", r.Field)
		}
		if r.Trim {
			s = strings.TrimSpace(s)
		}
		return s, nil
	case Bool:
		b, ok := toBool(raw)
		if !ok {
			return nil, fmt.Errorf("%s must be boolean", r.Field)
		}
		return b, nil
	case DateTime:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be an ISO 8601 date", r.Field)
		}
		t, err := ParseDateTime(s)
		if err != nil {
			return nil, fmt.Errorf("%s must be an ISO 8601 date", r.Field)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported rule type %d", r.Type)
	}
}

func toBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch v {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	case float64:
		switch v {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	}
	return false, false
}

// Layouts tried before iso8601, including basic-format offsets, space
// separators and basic-format dates.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateOnly,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"20060102T150405Z0700",
	"20060102T150405",
	"20060102",
}

// ParseDateTime accepts ISO 8601 calendar date-times in extended or basic
// format. Values without an offset are taken as UTC.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "Z"
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date-time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// String returns a coerced string value if it was supplied.
func (v Values) String(field string) (string, bool) {
	s, ok := v[field].(string)
	return s, ok
}

// Bool returns a coerced boolean value if it was supplied.
func (v Values) Bool(field string) (bool, bool) {
	b, ok := v[field].(bool)
	return b, ok
}

// Time returns a coerced date-time value if it was supplied.
func (v Values) Time(field string) (time.Time, bool) {
	t, ok := v[field].(time.Time)
	return t, ok
}
