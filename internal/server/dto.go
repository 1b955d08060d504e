package server

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ChatRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=128"`
	Message   string `json:"message" validate:"required,max=500"`
}

type SelectRequest struct {
	SessionID   string `json:"sessionId" validate:"required,max=128"`
	OptionValue string `json:"optionValue" validate:"required,max=256"`
}

type AnalyzeRequest struct {
	Query string `json:"query" validate:"required,max=500"`
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func SuccessResponse(data interface{}) Response {
	return Response{Success: true, Data: data}
}

func ErrorResponse(message string) Response {
	return Response{Success: false, Message: message}
}

var validate = validator.New()

// errValidation marks a request body that failed its struct tags.
var errValidation = errors.New("invalid request")

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return errValidation }

// ValidateRequest checks req against its validate tags and returns one error
// naming every failing field.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "max":
			msgs = append(msgs, fe.Field()+" must be at most "+fe.Param()+" characters")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return &validationError{msg: strings.Join(msgs, "; ")}
}
