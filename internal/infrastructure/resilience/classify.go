package resilience

import (
	"context"
	"errors"
)

var (
	// Transient failures are retried and count against the breaker.
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	// Permanent failures are not retried but still count against the breaker.
	Permanent = ErrorClassification{Retryable: false, RecordFailure: true}
	// Abandoned calls were cancelled by the caller and say nothing about the dependency.
	Abandoned = ErrorClassification{}
)

// SentinelClassifier builds a classifier that treats the given errors as
// transient. Cancellation and an open breaker are handled the same way for
// every dependency; extra lets callers recognize errors without a sentinel.
func SentinelClassifier(transient []error, extra func(error) bool) ErrorClassifier {
	return func(err error) ErrorClassification {
		if err == nil {
			return Abandoned
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Abandoned
		}
		if IsCircuitOpen(err) {
			return Transient
		}
		for _, sentinel := range transient {
			if errors.Is(err, sentinel) {
				return Transient
			}
		}
		if extra != nil && extra(err) {
			return Transient
		}
		return Permanent
	}
}
