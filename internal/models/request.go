package models

import (
	"errors"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports field names by their JSON key so messages match the request body
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DownloadRequest is the body of POST /api/download
type DownloadRequest struct {
	URL      string `json:"url" validate:"required,url,max=2048"`
	Quality  string `json:"quality,omitempty" validate:"omitempty,max=16"`
	CookieID string `json:"cookie_id,omitempty" validate:"omitempty,startswith=cookie_,max=64"`
}

// Validate checks the request shape. Quality values are checked by the extraction package.
func (r *DownloadRequest) Validate() error {
	r.URL = strings.TrimSpace(r.URL)
	if err := validate.Struct(r); err != nil {
		return toValidationError(err)
	}
	return validateScheme(r.URL)
}

// VideoInfoRequest is the body of POST /api/video-info
type VideoInfoRequest struct {
	URL      string `json:"url" validate:"required,url,max=2048"`
	CookieID string `json:"cookie_id,omitempty" validate:"omitempty,startswith=cookie_,max=64"`
}

// Validate checks the request shape
func (r *VideoInfoRequest) Validate() error {
	r.URL = strings.TrimSpace(r.URL)
	if err := validate.Struct(r); err != nil {
		return toValidationError(err)
	}
	return validateScheme(r.URL)
}

func validateScheme(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return NewValidationError("url", "invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewValidationError("url", "URL must use http or https")
	}
	if u.Host == "" {
		return NewValidationError("url", "URL has no host")
	}
	return nil
}

// toValidationError reports the first failing field
func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Reason: err.Error()}
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return NewValidationError(fe.Field(), "is required")
	case "url":
		return NewValidationError(fe.Field(), "invalid URL")
	case "startswith":
		return NewValidationError(fe.Field(), "unknown credential handle")
	case "max":
		return NewValidationError(fe.Field(), "is too long")
	default:
		return NewValidationError(fe.Field(), "failed %s validation", fe.Tag())
	}
}
