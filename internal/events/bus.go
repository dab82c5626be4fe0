package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shenikar/sos_dispatch_system/internal/ids"
	"github.com/shenikar/sos_dispatch_system/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Handler обрабатывает доменное событие
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc - адаптер функции к Handler
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Publisher - то, что нужно сервисам от шины
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type subscription struct {
	name     string
	eventTyp Type
	wildcard bool
	handler  Handler
}

// Bus - синхронная in-process шина издатель/подписчик.
//
// Publish вызывает подписчиков в порядке регистрации прямо в горутине издателя.
// Ошибка или паника одного подписчика логируется и не мешает остальным.
// Это не брокер: нет хранения, повторной доставки и межпроцессной передачи.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscription
	logger  *logrus.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewBus создает пустую шину
func NewBus(logger *logrus.Logger, m *metrics.Metrics) *Bus {
	return &Bus{
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Subscribe регистрирует обработчик одного типа событий
func (b *Bus) Subscribe(t Type, name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, eventTyp: t, handler: h})
}

// SubscribeAll регистрирует обработчик всех типов событий
func (b *Bus) SubscribeAll(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, wildcard: true, handler: h})
}

// Publish доставляет событие всем текущим подписчикам
func (b *Bus) Publish(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = ids.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = b.now().UTC()
	}

	b.mu.RLock()
	snapshot := make([]subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.RUnlock()

	b.metrics.IncEventsPublished(string(event.Type))
	for _, sub := range snapshot {
		if !sub.wildcard && sub.eventTyp != event.Type {
			continue
		}
		if err := b.deliver(ctx, sub, event); err != nil {
			b.metrics.IncHandlerFailures(sub.name)
			b.logger.WithFields(logrus.Fields{
				"component":   "event_bus",
				"subscriber":  sub.name,
				"event_type":  event.Type,
				"event_id":    event.ID,
				"incident_id": event.IncidentID,
			}).WithError(err).Error("Event handler failed")
		}
	}
}

func (b *Bus) deliver(ctx context.Context, sub subscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.handler.Handle(ctx, event)
}
