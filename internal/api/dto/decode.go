package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// DecodeStrict unmarshals a JSON object into dst, rejecting unknown keys,
// trailing data and type mismatches, then runs struct validation.
func DecodeStrict(body []byte, dst any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return apperrors.NewValidationError("request body is empty", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperrors.NewValidationError("request body must contain a single JSON object", nil)
	}
	return Validate(dst)
}

// Validate runs the struct tags. A failed "required" rule becomes
// MissingField; every other rule is a validation failure.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return apperrors.NewMissingField(fe.Field())
	}
	details := map[string]any{"field": fe.Field(), "rule": fe.Tag()}
	if fe.Param() != "" {
		details["param"] = fe.Param()
	}
	return apperrors.NewValidationError(fe.Field()+" is invalid", details)
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		return apperrors.NewValidationError("field has the wrong type", map[string]any{"field": typeErr.Field})
	case errors.As(err, &syntaxErr):
		return apperrors.NewValidationError("malformed JSON", map[string]any{"offset": syntaxErr.Offset})
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return apperrors.NewValidationError("unknown field", map[string]any{"field": field})
	}
	return apperrors.NewValidationError("invalid payload", nil)
}
