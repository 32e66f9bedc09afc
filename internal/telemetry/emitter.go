// Package telemetry defines the event shape and emission contract; the otel
// subpackage provides the exporting implementation.
package telemetry

import (
	"context"

	"identity-plane/internal/telemetry/domain"
)

// EventEmitter emits telemetry events (e.g. to OTel logs). Best-effort;
// callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}
