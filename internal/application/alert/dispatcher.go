package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mwmardis/ListingIQ/internal/domain"
	"github.com/mwmardis/ListingIQ/internal/ports"
)

// deliverTimeout acota la entrega por canal para que un webhook lento no
// frene el ciclo.
const deliverTimeout = 15 * time.Second

// Dispatcher entrega alertas a todos los canales desde una goroutine
// dedicada, desacoplando el scan de la latencia de entrega.
type Dispatcher struct {
	channels []ports.Channel
	log      *slog.Logger
	queue    chan domain.AlertIntent
	wg       sync.WaitGroup
}

// NewDispatcher crea el dispatcher y arranca su worker.
func NewDispatcher(channels []ports.Channel, log *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		channels: channels,
		log:      log.With("component", "dispatcher"),
		queue:    make(chan domain.AlertIntent, 64),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for intent := range d.queue {
		d.deliver(intent)
	}
}

func (d *Dispatcher) deliver(intent domain.AlertIntent) {
	for _, ch := range d.channels {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		err := ch.Deliver(ctx, intent)
		cancel()
		if err != nil {
			// Best-effort: se loguea y se sigue con el resto de canales.
			d.log.Error("fallo entregando alerta",
				"channel", ch.Name(),
				"alert_id", intent.ID,
				"key", intent.Property.Key().String(),
				"error", err)
			continue
		}
		d.log.Debug("alerta entregada", "channel", ch.Name(), "alert_id", intent.ID)
	}
}

// Enqueue encola una alerta para entrega. Bloquea si la cola está llena.
func (d *Dispatcher) Enqueue(intent domain.AlertIntent) {
	d.queue <- intent
}

// Stop cierra la cola y espera a que se entregue lo pendiente.
func (d *Dispatcher) Stop() {
	close(d.queue)
	d.wg.Wait()
}
