package delivery

import (
	"context"
	"errors"
	"log/slog"

	"github.com/trekops/unifi-reporter/internal/model"
)

// Composite delivers through Primary first, falling back to Fallback only
// on Primary's failure: if both channels are configured, an email failure
// triggers an automatic file-fallback save. A nil Fallback degrades to a
// plain pass-through to Primary.
type Composite struct {
	Primary  Delivery
	Fallback Delivery
	Logger   *slog.Logger
}

func NewComposite(primary, fallback Delivery, logger *slog.Logger) *Composite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composite{Primary: primary, Fallback: fallback, Logger: logger}
}

func (c *Composite) Deliver(ctx context.Context, report model.Report) error {
	if c.Primary == nil {
		if c.Fallback == nil {
			return errors.New("delivery: no channel configured")
		}
		return c.Fallback.Deliver(ctx, report)
	}

	primaryErr := c.Primary.Deliver(ctx, report)
	if primaryErr == nil {
		return nil
	}
	c.Logger.Warn("primary delivery failed, attempting fallback", "error", primaryErr)

	if c.Fallback == nil {
		return primaryErr
	}
	if err := c.Fallback.Deliver(ctx, report); err != nil {
		return errors.Join(model.ErrDelivery, primaryErr, err)
	}
	return nil
}
