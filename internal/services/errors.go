package services

import (
	"errors"
	"fmt"

	apperrors "github.com/testing-system/testing-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("resource conflict")

	// Test specific errors
	ErrTestNotFound       = errors.New("test not found")
	ErrTestDuplicateTitle = errors.New("test title already exists")
	ErrTestEmpty          = errors.New("test has no questions")

	// Question specific errors
	ErrQuestionNotFound       = errors.New("question not found")
	ErrQuestionInvalidType    = errors.New("invalid question type")
	ErrQuestionInvalidContent = errors.New("invalid question content for type")
	ErrQuestionDuplicateLink  = errors.New("question already linked to test")
	// ErrUnrelatedQuestion is returned when an answer targets a question
	// that is not part of the submitted test.
	ErrUnrelatedQuestion = errors.New("question does not belong to test")

	// Answer / scoring specific errors
	ErrAnswerNotFound        = errors.New("answer not found")
	ErrResultNotFound        = errors.New("test result not found")
	ErrAnswerNotVerifiable   = errors.New("only text answers can be manually verified")
	ErrAnswerAlreadyVerified = errors.New("answer already verified")

	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidRole  = errors.New("invalid user role")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type PermissionError struct {
	UserID     uint   `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %d cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewPermissionError(userID, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// WrapValidation converts raw struct-tag failures into the shared
// ValidationErrors type so callers classify them uniformly.
func WrapValidation(err error) error {
	if err == nil {
		return nil
	}
	if ve := apperrors.ToValidationErrors(err); len(ve) > 0 {
		return ve
	}
	return err
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTestNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrAnswerNotFound) ||
		errors.Is(err, ErrResultNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// IsPermissionDenied checks if error represents a forbidden condition
func IsPermissionDenied(err error) bool {
	if errors.Is(err, ErrForbidden) {
		return true
	}
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrQuestionInvalidType) ||
		errors.Is(err, ErrQuestionInvalidContent) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var single *apperrors.ValidationError
	return errors.As(err, &single)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrTestDuplicateTitle) ||
		errors.Is(err, ErrQuestionDuplicateLink) ||
		errors.Is(err, ErrAnswerAlreadyVerified)
}
