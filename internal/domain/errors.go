package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// Returned by stores and services; the API layer maps them to status codes.
// -----------------------------------------------------------------------------

// Task errors
var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskExists   = errors.New("task already exists")
	ErrInvalidTask  = errors.New("invalid task")
	ErrPackNotFound = errors.New("task pack not found")
)

// Submission errors
var (
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Progress errors
var (
	ErrProgressNotFound = errors.New("progress not found")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)
