package utils

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError is malformed or missing input. Fields maps a json field name to the failed rule.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, ", ") + ")"
}

func NewFieldError(field, rule, message string) *ValidationError {
	return &ValidationError{Message: message, Fields: map[string]string{field: rule}}
}

// NotFoundError is a referenced id that does not exist.
type NotFoundError struct {
	Resource string
	Id       string
}

func (e *NotFoundError) Error() string {
	if e.Id == "" {
		return strings.ToLower(e.Resource) + " not found"
	}
	return fmt.Sprintf("%s %q not found", strings.ToLower(e.Resource), e.Id)
}

func (e *NotFoundError) Unwrap() error {
	return ErrorRecordNotFound
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, Id: id}
}

// ConflictError is a duplicate unique value.
type ConflictError struct {
	Field   string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(field, message string) *ConflictError {
	return &ConflictError{Field: field, Message: message}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrorRecordNotFound)
}
