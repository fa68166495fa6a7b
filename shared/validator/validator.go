package validator

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"slices"
	"strings"
	"time"

	"lodge/shared/constant"
	"lodge/shared/failure"

	val "github.com/go-playground/validator/v10"
)

var validate *val.Validate

var feedSchemes = []string{"http", "https", "webcal"}

// validateFeedURL accepts absolute http(s) or webcal URLs with a host.
func validateFeedURL(field val.FieldLevel) bool {
	raw, ok := field.Field().Interface().(string)
	if !ok {
		if ptr, isPtr := field.Field().Interface().(*string); isPtr && ptr != nil {
			raw = *ptr
		} else {
			return false
		}
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return false
	}

	return slices.Contains(feedSchemes, strings.ToLower(parsed.Scheme))
}

// validateDateAfter checks that a YYYY-MM-DD field is strictly after the sibling field named in the param.
// Either side being empty passes so partial updates can be validated separately.
func validateDateAfter(field val.FieldLevel) bool {
	current, ok := field.Field().Interface().(string)
	if !ok || current == "" {
		return true
	}

	sibling := field.Parent()
	if sibling.Kind() == reflect.Pointer {
		sibling = sibling.Elem()
	}

	other := sibling.FieldByName(field.Param())
	if !other.IsValid() || other.Kind() != reflect.String || other.String() == "" {
		return true
	}

	end, err := time.Parse(constant.DateOnlyFormat, current)
	if err != nil {
		return false
	}

	start, err := time.Parse(constant.DateOnlyFormat, other.String())
	if err != nil {
		return false
	}

	return end.After(start)
}

func init() {
	validate = val.New(val.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}

		return name
	})

	registrations := map[string]val.Func{
		"empty": func(fl val.FieldLevel) bool {
			return fl.Field().IsZero()
		},
		"ical_url":  validateFeedURL,
		"dateafter": validateDateAfter,
	}

	for tag, fn := range registrations {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
}

// Validate reads from the given io.Reader into the given struct, and then performs validation
// on the struct using the validator package. If the struct is invalid according to the
// validation rules, an error is returned. Otherwise, nil is returned.
// https://github.com/go-playground/validator
func Validate[T any](r io.Reader, data *T) error {
	decoder := json.NewDecoder(r)

	if err := decoder.Decode(data); err != nil {
		return failure.BadRequest(fmt.Errorf("failed to decode request body: %w", err)) //nolint:wrapcheck
	}

	return ValidateStruct(data)
}

func ValidateStruct[T any](data *T) error {
	if err := validate.Struct(data); err != nil {
		return failure.BadRequestFromString(message(err)) //nolint:wrapcheck
	}

	return nil
}

func ValidateVar(field any, tag string) error {
	if err := validate.Var(field, tag); err != nil {
		return failure.BadRequestFromString(message(err)) //nolint:wrapcheck
	}

	return nil
}
