package webhook

import (
	"context"
	"time"

	"github.com/shenikar/sos_dispatch_system/internal/events"
)

// enqueueTimeout ограничивает LPUSH, отвязанный от отмены запроса
const enqueueTimeout = 2 * time.Second

// Forwarder - подписчик шины, ставящий проводные события в очередь вебхуков
type Forwarder struct {
	publisher WebhookPublisher
}

func NewForwarder(publisher WebhookPublisher) *Forwarder {
	return &Forwarder{publisher: publisher}
}

// Attach подписывает форвардер на все события шины
func (f *Forwarder) Attach(bus *events.Bus) {
	bus.SubscribeAll("webhook_forwarder", f)
}

// Handle пропускает внутренние типы. Ошибка очереди уходит в шину и там логируется.
func (f *Forwarder) Handle(ctx context.Context, event events.Event) error {
	if !event.Type.IsWire() {
		return nil
	}
	// Событие уже произошло: обрыв запроса клиента не должен терять вебхук
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	return f.publisher.Publish(ctx, WebhookEvent{
		EventID:   event.ID,
		Type:      string(event.Type),
		SOSID:     event.IncidentID,
		CityScope: event.CityScope,
		Timestamp: event.Timestamp,
		Data:      event.Payload,
	})
}
