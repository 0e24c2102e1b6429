// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package validation wraps go-playground/validator with the tags Hivekeeper needs.
//
// Besides the built-in tags it registers:
//   - identifier: a plugin, record type, or field name ([A-Za-z][A-Za-z0-9_]*)
//   - condition: a rule comparison operator (<, >, ==, <=, >=, !=)
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// IsIdentifier reports whether s is safe to use as a plugin, record type, or column name.
func IsIdentifier(s string) bool {
	return len(s) <= 64 && identifierPattern.MatchString(s)
}

// FieldError describes one failed constraint.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Error collects every failed constraint of one struct.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Validator returns the process-wide validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
			return IsIdentifier(fl.Field().String())
		})
		_ = validate.RegisterValidation("condition", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case "<", ">", "==", "<=", ">=", "!=":
				return true
			}
			return false
		})
	})
	return validate
}

// Struct validates s and returns *Error (or nil). Non-struct input yields a single-field error.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	out := &Error{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		out.Fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe),
		}
	}
	return out
}

var simpleMessages = map[string]string{
	"required":      "%s is required",
	"identifier":    "%s must start with a letter and contain only letters, digits, and underscores",
	"condition":     "%s must be one of <, >, ==, <=, >=, !=",
	"url":           "%s must be a valid URL",
	"hostname_port": "%s must be host:port",
}

var paramMessages = map[string]string{
	"oneof": "%s must be one of: %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"len":   "%s must have length %s",
}

func message(fe validator.FieldError) string {
	if tmpl, ok := simpleMessages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field())
	}
	if tmpl, ok := paramMessages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
