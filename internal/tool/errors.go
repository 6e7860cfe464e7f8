package tool

import "errors"

var (
	// ErrToolNotFound is returned when a tool is not found in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrEmptyToolName is returned when a tool name is empty.
	ErrEmptyToolName = errors.New("tool name must not be empty")

	// ErrDuplicateTool is returned when registering a tool with a name that
	// already exists in the registry.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrNoHandler is returned when a tool implements neither Handler nor Scripted.
	ErrNoHandler = errors.New("tool has no handler")

	// ErrInvalidSchema is returned when a tool's input schema does not compile.
	ErrInvalidSchema = errors.New("invalid tool input schema")

	// ErrSchemaValidation is returned when arguments do not match a tool's
	// input schema.
	ErrSchemaValidation = errors.New("arguments do not match input schema")
)
