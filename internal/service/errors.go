package service

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Error taxonomy shared by every engine operation. Handlers match with errors.Is.
var (
	ErrUnauthorized      = errors.New("requester does not own this resource")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrValidation        = errors.New("validation failed")

	ErrSessionNotFound  = fmt.Errorf("session %w", ErrNotFound)
	ErrWorkoutNotFound  = fmt.Errorf("workout %w", ErrNotFound)
	ErrExerciseNotFound = fmt.Errorf("exercise %w", ErrNotFound)
	ErrClientNotFound   = fmt.Errorf("client user %w", ErrNotFound)
	ErrSetLogNotFound   = fmt.Errorf("set log %w", ErrNotFound)
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

var tracer = otel.Tracer("workout-engine")

// endSpan records err on span and ends it. Use as:
//
//	ctx, span := tracer.Start(ctx, "service.x")
//	defer func() { endSpan(span, err) }()
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
