package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBuilt is returned when searching an index that was never built.
	ErrNotBuilt = errors.New("knowledge base not built: upload a PDF and build the knowledge base first")

	// ErrDimensionMismatch means two vectors bound to one index differ in length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbedderMismatch means a stored knowledge base was built by another embedder.
	ErrEmbedderMismatch = errors.New("embedder mismatch")
)

// ParseError reports a document that could not be read.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigError reports missing or invalid configuration.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Msg)
}
