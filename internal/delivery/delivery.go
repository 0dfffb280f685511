// Package delivery defines the adapter contract between a Report and the
// rendering/transport collaborators that actually ship it. internal/delivery/email
// and internal/delivery/file are the two concrete adapters;
// internal/delivery.Composite implements email-then-file fallback.
package delivery

import (
	"context"

	"github.com/trekops/unifi-reporter/internal/model"
)

// Delivery hands a completed Report to an external collaborator.
type Delivery interface {
	Deliver(ctx context.Context, report model.Report) error
}
