package dbus

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
)

// maxPendingCalls bounds the Notify calls waiting for the owner's reply.
const maxPendingCalls = 128

// Monitor passively observes the traffic of another notification daemon.
// A Notify call is reported once the owner's reply reveals the id it
// assigned, and NotificationClosed signals are reported as closes.
//
// Handlers run on the monitor goroutine.
type Monitor struct {
	conn   *dbus.Conn
	logger *slog.Logger
	now    func() time.Time

	onNotify NotifyHandler
	onClose  CloseHandler

	pending map[callKey]pendingCall
	order   []callKey
	active  map[uint32]bool
}

// callKey matches a reply to its call.
type callKey struct {
	sender string
	serial uint32
}

type pendingCall struct {
	n  *Notification
	at time.Time
}

// NewMonitor creates a Monitor.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger:  logger,
		now:     time.Now,
		pending: make(map[callKey]pendingCall),
		active:  make(map[uint32]bool),
	}
}

// SetNotifyHandler sets the callback for captured notifications.
func (m *Monitor) SetNotifyHandler(handler NotifyHandler) {
	m.onNotify = handler
}

// SetCloseHandler sets the callback for notifications the owner closed.
func (m *Monitor) SetCloseHandler(handler CloseHandler) {
	m.onClose = handler
}

// Start opens a private session connection and becomes a bus monitor,
// falling back to eavesdropping match rules on older buses.
func (m *Monitor) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	m.conn = conn

	rules := []string{
		"type='method_call',interface='" + DBusInterface + "',member='Notify'",
		"type='method_return'",
		"type='signal',interface='" + DBusInterface + "',member='NotificationClosed'",
	}
	err = conn.BusObject().Call("org.freedesktop.DBus.Monitoring.BecomeMonitor", 0, rules, uint32(0)).Err
	if err != nil {
		m.logger.Warn("BecomeMonitor not available, trying AddMatch", "error", err)
		for _, rule := range rules {
			if err := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule+",eavesdrop='true'").Err; err != nil {
				return fmt.Errorf("failed to add match rule: %w", err)
			}
		}
	}

	ch := make(chan *dbus.Message, 100)
	conn.Eavesdrop(ch)
	go m.process(ch)

	m.logger.Info("D-Bus notification monitor started")
	return nil
}

// Stop closes the monitor connection.
func (m *Monitor) Stop() error {
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

func (m *Monitor) process(ch <-chan *dbus.Message) {
	for msg := range ch {
		switch msg.Type {
		case dbus.TypeMethodCall:
			if header(msg, dbus.FieldInterface) == DBusInterface && header(msg, dbus.FieldMember) == "Notify" {
				m.call(callKey{sender: header(msg, dbus.FieldSender), serial: msg.Serial()}, msg.Body)
			}
		case dbus.TypeMethodReply:
			serial, _ := msg.Headers[dbus.FieldReplySerial].Value().(uint32)
			m.reply(callKey{sender: header(msg, dbus.FieldDestination), serial: serial}, msg.Body)
		case dbus.TypeSignal:
			if header(msg, dbus.FieldInterface) == DBusInterface && header(msg, dbus.FieldMember) == "NotificationClosed" {
				m.closed(msg.Body)
			}
		}
	}
}

func header(msg *dbus.Message, field dbus.HeaderField) string {
	v, ok := msg.Headers[field]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

// call remembers a Notify call until its reply arrives.
func (m *Monitor) call(key callKey, body []any) {
	n, err := parseNotify(body)
	if err != nil {
		m.logger.Warn("malformed Notify call", "error", err)
		return
	}

	if len(m.order) >= maxPendingCalls {
		delete(m.pending, m.order[0])
		m.order = m.order[1:]
	}
	m.pending[key] = pendingCall{n: n, at: m.now()}
	m.order = append(m.order, key)
}

// reply reports the notification whose call key answers.
func (m *Monitor) reply(key callKey, body []any) {
	pc, ok := m.pending[key]
	if !ok {
		return
	}
	delete(m.pending, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	if len(body) != 1 {
		m.logger.Warn("unexpected Notify reply", "args", len(body))
		return
	}
	id, ok := body[0].(uint32)
	if !ok || id == 0 {
		m.logger.Warn("unexpected Notify reply id", "id", body[0])
		return
	}

	replaced := m.active[id]
	m.active[id] = true
	m.logger.Debug("captured notification", "id", id, "app", pc.n.AppName, "summary", pc.n.Summary, "replaced", replaced)
	if m.onNotify != nil {
		m.onNotify(pc.n.Record(int(id), pc.at), replaced)
	}
}

// closed reports a NotificationClosed signal for a notification seen before.
func (m *Monitor) closed(body []any) {
	if len(body) < 1 {
		return
	}
	id, ok := body[0].(uint32)
	if !ok || !m.active[id] {
		return
	}
	delete(m.active, id)
	m.logger.Debug("captured close", "id", id)
	if m.onClose != nil {
		m.onClose(int(id))
	}
}

var errNotifyArgs = errors.New("invalid Notify arguments")

// parseNotify decodes the body of a Notify method call.
func parseNotify(body []any) (*Notification, error) {
	if len(body) < 8 {
		return nil, fmt.Errorf("%w: got %d, want 8", errNotifyArgs, len(body))
	}

	n := &Notification{}
	var ok bool
	if n.AppName, ok = body[0].(string); !ok {
		return nil, fmt.Errorf("%w: app_name", errNotifyArgs)
	}
	if n.ReplacesID, ok = body[1].(uint32); !ok {
		return nil, fmt.Errorf("%w: replaces_id", errNotifyArgs)
	}
	if n.AppIcon, ok = body[2].(string); !ok {
		return nil, fmt.Errorf("%w: app_icon", errNotifyArgs)
	}
	if n.Summary, ok = body[3].(string); !ok {
		return nil, fmt.Errorf("%w: summary", errNotifyArgs)
	}
	if n.Body, ok = body[4].(string); !ok {
		return nil, fmt.Errorf("%w: body", errNotifyArgs)
	}
	n.Actions, _ = body[5].([]string)
	n.Hints, _ = body[6].(map[string]dbus.Variant)
	n.ExpireTimeout, _ = body[7].(int32)
	return n, nil
}
