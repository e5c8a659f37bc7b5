package ports

import (
	"context"
	"errors"

	"github.com/mwmardis/ListingIQ/internal/domain"
)

// ErrConflict señala que un Put perdió la carrera de versiones: otro writer
// persistió el registro desde que se leyó. El caller relee y reintenta.
var ErrConflict = errors.New("repository: version conflict")

// Repository persiste el estado de deals entre scans.
// Las escrituras usan compare-and-set optimista sobre DealRecord.Version.
type Repository interface {
	// Get devuelve el registro para la clave, o nil si nunca se vio.
	Get(ctx context.Context, key domain.Key) (*domain.DealRecord, error)

	// Put persiste el registro. Con Version 0 inserta; si no, exige que la
	// versión almacenada coincida y la incrementa. Devuelve ErrConflict si
	// otro writer ganó.
	Put(ctx context.Context, rec *domain.DealRecord) error

	// AppendPrice agrega una observación a la historia de precios.
	AppendPrice(ctx context.Context, key domain.Key, point domain.PricePoint) error

	// ListActiveKeys devuelve las claves de todos los registros activos.
	ListActiveKeys(ctx context.Context) ([]domain.Key, error)

	// SaveAlert persiste una intención de alerta ya emitida (auditoría).
	SaveAlert(ctx context.Context, intent domain.AlertIntent) error

	// SaveCycle persiste el resumen de un ciclo de scan.
	SaveCycle(ctx context.Context, summary domain.CycleSummary) error

	// Close libera la conexión subyacente.
	Close() error
}
