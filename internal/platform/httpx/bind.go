package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cloven/rbac-admin/internal/shared"
)

// Binder decodes and validates JSON request bodies.
type Binder struct {
	validate *validator.Validate
}

// NewBinder returns a Binder reporting fields by their json names.
func NewBinder() *Binder {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Binder{validate: v}
}

// Bind decodes r's body into dst and runs struct validation.
func (b *Binder) Bind(r *http.Request, dst any) error {
	if err := DecodeJSON(r, dst); err != nil {
		return shared.Errorf(shared.ErrValidation, "invalid request body")
	}
	if err := b.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate request: %w", err)
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return shared.Errorf(shared.ErrValidation, "%s", strings.Join(msgs, "; "))
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

// IDParam parses the named chi URL parameter as a positive int64.
func IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Errorf(shared.ErrValidation, "invalid %s %q", name, raw)
	}
	return id, nil
}
