package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/sos_dispatch_system/internal/events"
	"github.com/sirupsen/logrus"
)

// publishTimeout ограничивает PUBLISH, отвязанный от отмены запроса
const publishTimeout = 2 * time.Second

// Broadcaster - то, что релею нужно от шлюза
type Broadcaster interface {
	Broadcast(env events.Envelope)
}

type relayMessage struct {
	Origin    string          `json:"origin"`
	Type      events.Type     `json:"type"`
	SOSID     uuid.UUID       `json:"sosId"`
	Timestamp time.Time       `json:"timestamp"`
	CityScope string          `json:"cityScope,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// Relay пересылает проводные события между экземплярами через Redis pub/sub.
// Членство в комнатах остается локальным: каждый экземпляр доставляет своим соединениям.
type Relay struct {
	client     *redis.Client
	channel    string
	instanceID string
	gateway    Broadcaster
	logger     *logrus.Logger
}

// NewRelay создает релей
func NewRelay(client *redis.Client, channel, instanceID string, gateway Broadcaster, logger *logrus.Logger) *Relay {
	return &Relay{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		gateway:    gateway,
		logger:     logger,
	}
}

// Attach подписывает релей на шину
func (r *Relay) Attach(bus *events.Bus) {
	bus.SubscribeAll("redis_relay", r)
}

// Handle публикует локальное проводное событие для других экземпляров
func (r *Relay) Handle(ctx context.Context, event events.Event) error {
	if !event.Type.IsWire() {
		return nil
	}
	payload, err := encodeRelayMessage(r.instanceID, event.Envelope())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish relay message to Redis: %w", err)
	}
	return nil
}

// Start запускает горутину приема событий других экземпляров
func (r *Relay) Start(ctx context.Context) {
	r.logger.WithField("channel", r.channel).Info("Starting realtime relay...")
	sub := r.client.Subscribe(ctx, r.channel)
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("Stopping realtime relay.")
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.receive(msg.Payload)
			}
		}
	}()
}

func (r *Relay) receive(payload string) {
	env, origin, err := decodeRelayMessage([]byte(payload))
	if err != nil {
		r.logger.WithError(err).Error("Failed to decode relay message")
		return
	}
	if origin == r.instanceID {
		return
	}
	r.gateway.Broadcast(env)
}

func encodeRelayMessage(origin string, env events.Envelope) ([]byte, error) {
	data, err := json.Marshal(env.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal relay data: %w", err)
	}
	return json.Marshal(relayMessage{
		Origin:    origin,
		Type:      env.Type,
		SOSID:     env.SOSID,
		Timestamp: env.Timestamp,
		CityScope: env.CityScope,
		Data:      data,
	})
}

func decodeRelayMessage(payload []byte) (events.Envelope, string, error) {
	var msg relayMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return events.Envelope{}, "", fmt.Errorf("failed to unmarshal relay message: %w", err)
	}
	if !msg.Type.IsWire() {
		return events.Envelope{}, "", fmt.Errorf("unexpected relay event type %q", msg.Type)
	}
	return events.Envelope{
		Type:      msg.Type,
		SOSID:     msg.SOSID,
		Timestamp: msg.Timestamp,
		Data:      msg.Data,
		CityScope: msg.CityScope,
	}, msg.Origin, nil
}
