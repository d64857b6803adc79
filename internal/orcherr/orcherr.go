// Package orcherr defines the wire-visible error taxonomy for the
// orchestration engine (spec §6). Callers compare against these sentinels
// with errors.Is; internal causes are wrapped with fmt.Errorf("...: %w", err)
// before being returned across a package boundary, matching the teacher's
// style throughout agents/runtime/runtime.go.
package orcherr

import "errors"

// Code identifies one of the wire-visible error categories.
type Code string

const (
	DuplicateID          Code = "DuplicateId"
	InvalidDefinition    Code = "InvalidDefinition"
	NotFound             Code = "NotFound"
	SchemaValidationFail Code = "SchemaValidationFailed"
	MigrationFailed      Code = "MigrationFailed"
	CompressionFailed    Code = "CompressionFailed"
	DecompressionFailed  Code = "DecompressionFailed"
	CheckpointPutFailed  Code = "CheckpointPutFailed"
	CheckpointReadFailed Code = "CheckpointReadFailed"
	PlanInvalid          Code = "PlanInvalid"
	StageTimeout         Code = "StageTimeout"
	StageFailed          Code = "StageFailed"
	RateLimited          Code = "RateLimited"
	Cancelled            Code = "Cancelled"
	ToolFailed           Code = "ToolFailed"
)

// Error is a typed, wrappable error carrying a wire-visible Code alongside a
// human-readable message and optional underlying cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, orcherr.DuplicateID)-style comparisons by code,
// via the sentinel wrappers below (each sentinel carries only a Code).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New constructs an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs an Error with the given code and message, wrapping cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// sentinel returns a zero-cause Error used purely as an errors.Is comparison
// target, e.g. `errors.Is(err, orcherr.ErrNotFound)`.
func sentinel(code Code) *Error { return &Error{Code: code} }

// Sentinels for errors.Is comparisons against the wire-visible taxonomy.
var (
	ErrDuplicateID          = sentinel(DuplicateID)
	ErrInvalidDefinition    = sentinel(InvalidDefinition)
	ErrNotFound             = sentinel(NotFound)
	ErrSchemaValidationFail = sentinel(SchemaValidationFail)
	ErrMigrationFailed      = sentinel(MigrationFailed)
	ErrCompressionFailed    = sentinel(CompressionFailed)
	ErrDecompressionFailed  = sentinel(DecompressionFailed)
	ErrCheckpointPutFailed  = sentinel(CheckpointPutFailed)
	ErrCheckpointReadFailed = sentinel(CheckpointReadFailed)
	ErrPlanInvalid          = sentinel(PlanInvalid)
	ErrStageTimeout         = sentinel(StageTimeout)
	ErrStageFailed          = sentinel(StageFailed)
	ErrRateLimited          = sentinel(RateLimited)
	ErrCancelled            = sentinel(Cancelled)
	ErrToolFailed           = sentinel(ToolFailed)
)
