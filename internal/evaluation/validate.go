package evaluation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"judge-evals/internal/apperr"
)

// CreateInput is the body of a create request. Score is a pointer so that a
// missing score is distinguishable from zero.
type CreateInput struct {
	ContestantID string `json:"contestant_id" validate:"required"`
	JudgeID      string `json:"judge_id" validate:"required"`
	Score        *int   `json:"score" validate:"required,min=0,max=100"`
	Notes        string `json:"notes" validate:"required"`
}

// UpdateInput is the body of a partial update. Absent fields stay untouched;
// present fields obey the same rules as on create.
type UpdateInput struct {
	ContestantID *string `json:"contestant_id" validate:"omitnil,min=1"`
	JudgeID      *string `json:"judge_id" validate:"omitnil,min=1"`
	Score        *int    `json:"score" validate:"omitnil,min=0,max=100"`
	Notes        *string `json:"notes" validate:"omitnil,min=1"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns validator output into an Invalid error whose message
// names each offending field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Invalid("invalid input", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.Invalid(strings.Join(msgs, "; "), err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fe.Field() + " must not be empty"
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
