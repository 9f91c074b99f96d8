// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package validation provides struct validation using go-playground/validator v10.
//
// A thread-safe singleton validator carries custom validators for the domain
// enums (platform, follow mode, timeframe) so request structs can declare them
// with tags:
//
//	type DiscoverRequest struct {
//	    Platform  string `validate:"required,platform"`
//	    Mode      string `validate:"required,feedmode"`
//	    Timeframe string `validate:"omitempty,timeframe"`
//	    Limit     int    `validate:"min=1,max=100"`
//	}
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single field validation failure.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

func (e FieldError) Error() string { return e.Message }

// RequestError is a collection of field validation failures for one request.
type RequestError struct {
	fields []FieldError
}

// Fields returns the individual field errors.
func (re *RequestError) Fields() []FieldError { return re.fields }

func (re *RequestError) Error() string {
	if len(re.fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(re.fields))
	for _, f := range re.fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// Detail returns a single human-readable string suitable for API display.
func (re *RequestError) Detail() string { return re.Error() }

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Domain enums. Registration errors only occur for nil functions,
		// so they are safe to ignore here.
		//nolint:errcheck
		validate.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case "youtube", "instagram", "tiktok":
				return true
			}
			return false
		})
		//nolint:errcheck
		validate.RegisterValidation("feedmode", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case "profile", "hashtag", "keyword", "audio":
				return true
			}
			return false
		})
		//nolint:errcheck
		validate.RegisterValidation("timeframe", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case "24h", "7d", "30d", "90d", "all":
				return true
			}
			return false
		})
	})
	return validate
}

// ValidateStruct validates a struct and returns a *RequestError on failure.
func ValidateStruct(v any) *RequestError {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return &RequestError{fields: []FieldError{{
			Field:   "request",
			Tag:     "struct",
			Message: "request body could not be validated",
		}}}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RequestError{fields: []FieldError{{
			Field:   "request",
			Tag:     "unknown",
			Message: err.Error(),
		}}}
	}

	re := &RequestError{}
	for _, fe := range verrs {
		re.fields = append(re.fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: messageFor(fe),
		})
	}
	return re
}

func messageFor(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "platform":
		return fmt.Sprintf("%s must be one of: youtube, instagram, tiktok", field)
	case "feedmode":
		return fmt.Sprintf("%s must be one of: profile, hashtag, keyword, audio", field)
	case "timeframe":
		return fmt.Sprintf("%s must be one of: 24h, 7d, 30d, 90d, all", field)
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
