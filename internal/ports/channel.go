package ports

import (
	"context"

	"github.com/mwmardis/ListingIQ/internal/domain"
)

// Channel entrega alertas ya decididas. El gate decide si alertar;
// el channel solo formatea y transporta. La entrega es best-effort:
// un error se loguea y no reintenta dentro del ciclo.
type Channel interface {
	// Name identifica el canal en logs y config.
	Name() string

	// Deliver formatea y envía la alerta.
	Deliver(ctx context.Context, intent domain.AlertIntent) error
}
