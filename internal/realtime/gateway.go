package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/events"
	"github.com/shenikar/sos_dispatch_system/internal/metrics"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
)

// Имена SSE-событий
const (
	FrameEvent   = "event"
	FrameControl = "control"
)

// Frame - один кадр для отправки в соединение
type Frame struct {
	Name string
	Data any
}

// ControlMessage - служебный кадр (подключение, исключение из комнаты)
type ControlMessage struct {
	Type         string     `json:"type"`
	ConnectionID string     `json:"connectionId,omitempty"`
	SOSID        *uuid.UUID `json:"sosId,omitempty"`
}

// MissionPrincipalID - идентификатор принципала, вошедшего по токену миссии
func MissionPrincipalID(missionID uuid.UUID) string {
	return "mission:" + missionID.String()
}

// Connection - живое соединение наблюдателя
type Connection struct {
	ID          string
	UserID      string
	Role        models.Role
	Dashboard   bool
	ConnectedAt time.Time
	// CityScope ограничивает ленту дашборда одним городом, пусто - все города
	CityScope string
	// ExpiresAt - срок действия миссии, под которой открыто соединение
	ExpiresAt *time.Time

	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

// Frames возвращает очередь исходящих кадров
func (c *Connection) Frames() <-chan Frame { return c.send }

// Done закрывается при отключении
func (c *Connection) Done() <-chan struct{} { return c.done }

func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Connection) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Connection) expiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// ConnectOption настраивает соединение при подключении
type ConnectOption func(*Connection)

// WithCityScope ограничивает ленту дашборда городом
func WithCityScope(scope string) ConnectOption {
	return func(c *Connection) { c.CityScope = scope }
}

// WithExpiry закрывает соединение по истечении срока миссии
func WithExpiry(at time.Time) ConnectOption {
	return func(c *Connection) {
		expiresAt := at
		c.ExpiresAt = &expiresAt
	}
}

// Gateway раздает доменные события живым соединениям комнат.
// Медленное соединение теряет кадры, но не блокирует издателя.
type Gateway struct {
	mu         sync.RWMutex
	conns      map[string]*Connection
	registry   *Registry
	bufferSize int
	logger     *logrus.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewGateway создает шлюз поверх реестра участников
func NewGateway(registry *Registry, logger *logrus.Logger, m *metrics.Metrics, bufferSize int) *Gateway {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Gateway{
		conns:      make(map[string]*Connection),
		registry:   registry,
		bufferSize: bufferSize,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Attach подписывает шлюз на все типы событий шины
func (g *Gateway) Attach(bus *events.Bus) {
	bus.SubscribeAll("realtime_gateway", g)
}

// Handle - обработчик шины. Из внутренних типов учитывается только отзыв миссий.
func (g *Gateway) Handle(_ context.Context, event events.Event) error {
	if event.Type == events.MissionRevoked {
		if payload, ok := event.Payload.(events.MissionPayload); ok {
			g.closeMissions(payload)
		}
		return nil
	}
	if !event.Type.IsWire() {
		return nil
	}
	g.Broadcast(event.Envelope())
	return nil
}

// closeMissions закрывает все соединения отозванных миссий
func (g *Gateway) closeMissions(payload events.MissionPayload) {
	ids := payload.MissionIDs
	if len(ids) == 0 && payload.MissionID != uuid.Nil {
		ids = []uuid.UUID{payload.MissionID}
	}
	for _, id := range ids {
		for _, conn := range g.connectionsOf(MissionPrincipalID(id)) {
			g.terminate(conn, "mission:revoked")
		}
	}
}

// terminate шлет служебный кадр и закрывает соединение
func (g *Gateway) terminate(conn *Connection, reason string) {
	g.enqueue(conn, Frame{Name: FrameControl, Data: ControlMessage{Type: reason, ConnectionID: conn.ID}}, reason)
	g.Disconnect(conn.ID)
}

// Broadcast доставляет конверт участникам комнаты и, для глобальных типов, дашбордам
func (g *Gateway) Broadcast(env events.Envelope) {
	frame := Frame{Name: FrameEvent, Data: env}
	delivered := make(map[string]struct{})
	now := g.now()

	for _, p := range g.registry.ListActive(env.SOSID) {
		conn, ok := g.connection(p.ConnectionID)
		if !ok {
			continue
		}
		if conn.expiredAt(now) {
			g.terminate(conn, "mission:expired")
			continue
		}
		g.enqueue(conn, frame, string(env.Type))
		delivered[conn.ID] = struct{}{}
	}

	if !env.Type.IsGlobal() {
		return
	}
	for _, conn := range g.dashboards() {
		if _, ok := delivered[conn.ID]; ok {
			continue
		}
		if conn.CityScope != "" && conn.CityScope != env.CityScope {
			continue
		}
		g.enqueue(conn, frame, string(env.Type))
	}
}

// Connect регистрирует новое соединение
func (g *Gateway) Connect(userID string, role models.Role, dashboard bool, opts ...ConnectOption) *Connection {
	conn := &Connection{
		ID:          uuid.NewString(),
		UserID:      userID,
		Role:        role,
		Dashboard:   dashboard,
		ConnectedAt: g.now().UTC(),
		send:        make(chan Frame, g.bufferSize),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(conn)
	}

	g.mu.Lock()
	g.conns[conn.ID] = conn
	count := len(g.conns)
	g.mu.Unlock()

	g.metrics.SetActiveConnections(count)
	g.enqueue(conn, Frame{Name: FrameControl, Data: ControlMessage{Type: "connected", ConnectionID: conn.ID}}, "connected")
	g.logger.WithFields(logrus.Fields{
		"component":     "realtime_gateway",
		"connection_id": conn.ID,
		"user_id":       userID,
		"role":          role,
		"dashboard":     dashboard,
	}).Info("Connection opened")
	return conn
}

// Disconnect удаляет соединение из всех комнат
func (g *Gateway) Disconnect(connectionID string) {
	g.mu.Lock()
	conn, ok := g.conns[connectionID]
	delete(g.conns, connectionID)
	count := len(g.conns)
	g.mu.Unlock()

	if !ok {
		return
	}
	rooms := g.registry.LeaveAll(connectionID)
	conn.close()
	g.metrics.SetActiveConnections(count)
	g.logger.WithFields(logrus.Fields{
		"component":     "realtime_gateway",
		"connection_id": connectionID,
		"rooms":         len(rooms),
	}).Info("Connection closed")
}

// Lookup возвращает соединение по ID
func (g *Gateway) Lookup(connectionID string) (*Connection, error) {
	conn, ok := g.connection(connectionID)
	if !ok {
		return nil, apperror.NewNotFound("connection", connectionID)
	}
	return conn, nil
}

// JoinRoom добавляет соединение в комнату инцидента
func (g *Gateway) JoinRoom(connectionID string, incidentID uuid.UUID) (Participant, error) {
	conn, err := g.Lookup(connectionID)
	if err != nil {
		return Participant{}, err
	}
	if conn.expiredAt(g.now()) {
		g.terminate(conn, "mission:expired")
		return Participant{}, apperror.NewNotFound("connection", connectionID)
	}
	p, _ := g.registry.Join(Participant{
		IncidentID:   incidentID,
		ConnectionID: conn.ID,
		UserID:       conn.UserID,
		Role:         conn.Role,
		JoinedAt:     g.now().UTC(),
	})
	// Disconnect мог выполнить LeaveAll между Lookup и Join
	if conn.closed() {
		g.registry.Leave(incidentID, conn.ID)
		return Participant{}, apperror.NewNotFound("connection", connectionID)
	}
	return p, nil
}

// LeaveRoom убирает соединение из комнаты
func (g *Gateway) LeaveRoom(connectionID string, incidentID uuid.UUID) bool {
	return g.registry.Leave(incidentID, connectionID)
}

// Evict принудительно выводит все соединения пользователя из комнаты.
// После этого входящие кадры от них в эту комнату отклоняются.
func (g *Gateway) Evict(incidentID uuid.UUID, userID string) int {
	evicted := 0
	for _, p := range g.registry.ListActive(incidentID) {
		if p.UserID != userID {
			continue
		}
		if !g.registry.Leave(incidentID, p.ConnectionID) {
			continue
		}
		evicted++
		if conn, ok := g.connection(p.ConnectionID); ok {
			id := incidentID
			g.enqueue(conn, Frame{Name: FrameControl, Data: ControlMessage{Type: "room:evicted", SOSID: &id}}, "room:evicted")
		}
	}

	if evicted > 0 {
		g.logger.WithFields(logrus.Fields{
			"component":   "realtime_gateway",
			"incident_id": incidentID,
			"user_id":     userID,
			"evicted":     evicted,
		}).Info("Participant evicted from room")
	}
	return evicted
}

// AuthorizeInbound проверяет, что входящий кадр пришел от участника комнаты
func (g *Gateway) AuthorizeInbound(connectionID string, incidentID uuid.UUID, userID string) (*Connection, error) {
	conn, err := g.Lookup(connectionID)
	if err != nil {
		return nil, err
	}
	if conn.UserID != userID {
		return nil, apperror.NewForbidden("connection belongs to another principal")
	}
	if conn.expiredAt(g.now()) {
		g.terminate(conn, "mission:expired")
		return nil, apperror.NewForbidden("mission behind the connection has expired")
	}
	if !g.registry.IsMember(incidentID, connectionID) {
		return nil, apperror.NewForbidden("connection is not a member of the incident room")
	}
	return conn, nil
}

// ListActive возвращает участников комнаты
func (g *Gateway) ListActive(incidentID uuid.UUID) []Participant {
	return g.registry.ListActive(incidentID)
}

// CountActive возвращает число участников комнаты
func (g *Gateway) CountActive(incidentID uuid.UUID) int {
	return g.registry.CountActive(incidentID)
}

func (g *Gateway) connection(id string) (*Connection, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	conn, ok := g.conns[id]
	return conn, ok
}

func (g *Gateway) connectionsOf(userID string) []*Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Connection, 0)
	for _, conn := range g.conns {
		if conn.UserID == userID {
			out = append(out, conn)
		}
	}
	return out
}

func (g *Gateway) dashboards() []*Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Connection, 0)
	for _, conn := range g.conns {
		if conn.Dashboard {
			out = append(out, conn)
		}
	}
	return out
}

func (g *Gateway) enqueue(conn *Connection, frame Frame, label string) {
	select {
	case <-conn.done:
		return
	default:
	}
	select {
	case conn.send <- frame:
		g.metrics.IncFramesDelivered(label)
	default:
		g.metrics.IncFramesDropped()
		g.logger.WithFields(logrus.Fields{
			"component":     "realtime_gateway",
			"connection_id": conn.ID,
			"frame":         label,
		}).Warn("Connection buffer full, frame dropped")
	}
}
