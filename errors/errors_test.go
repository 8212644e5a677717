package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			assert.Equal(t, test.expected, test.class.String())
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"duplicate definition", ErrDuplicateDefinition, ErrorFatal},
		{"cycle", ErrCyclicDependency, ErrorFatal},
		{"panic", ErrComponentPanic, ErrorFatal},
		{"no such session", ErrNoSuchSession, ErrorInvalid},
		{"name not found", ErrNameNotFound, ErrorInvalid},
		{"access timeout", ErrConcurrentAccessTimeout, ErrorTransient},
		{"session busy", ErrConcurrentSessionAccess, ErrorTransient},
		{"data store", ErrDataStore, ErrorTransient},
		{"deadline", context.DeadlineExceeded, ErrorTransient},
		{"wrapped sentinel", fmt.Errorf("outer: %w", ErrNoSuchSession), ErrorInvalid},
		{"unknown", fmt.Errorf("boom"), ErrorFatal},
		{"explicit class wins", WrapTransient(ErrCyclicDependency, "A", "B", "c"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, Classify(test.err))
		})
	}
}

func TestPredicates_NilError(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsInvalid(nil))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "SessionTable", "Invoke", "dispatch"))

	err := Wrap(ErrNoSuchSession, "SessionTable", "Invoke", "dispatch")
	require.Error(t, err)
	assert.Equal(t, "SessionTable.Invoke: dispatch failed: no such session", err.Error())
	assert.ErrorIs(t, err, ErrNoSuchSession)
}

func TestWrapClassified(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Nil(t, test.wrap(nil, "c", "m", "a"))

			err := test.wrap(ErrDataStore, "Catalog", "CreateBook", "save")
			var ce *ClassifiedError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, test.class, ce.Class)
			assert.Equal(t, "Catalog", ce.Component)
			assert.Equal(t, "CreateBook", ce.Operation)
			assert.ErrorIs(t, err, ErrDataStore)
			assert.Contains(t, err.Error(), "Catalog.CreateBook: save failed")
		})
	}
}

func TestClassifiedError_NoMessage(t *testing.T) {
	ce := &ClassifiedError{Class: ErrorInvalid, Err: ErrNotFound}
	assert.Equal(t, "record not found", ce.Error())
}

func TestNewf(t *testing.T) {
	err := Newf(ErrNameNotFound, "lookup %q", "global:shop/Missing")
	assert.ErrorIs(t, err, ErrNameNotFound)
	assert.Equal(t, `name not found: lookup "global:shop/Missing"`, err.Error())
}
