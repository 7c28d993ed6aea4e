package dbus

import (
	"errors"
	"fmt"

	"github.com/jmylchreest/quickpanel/internal/model"
)

// ErrNotConnected is returned when a signal is emitted before Start.
var ErrNotConnected = errors.New("not connected to D-Bus")

// EmitNotificationClosed emits the NotificationClosed signal.
func (s *Server) EmitNotificationClosed(id uint32, reason CloseReason) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.Emit(DBusPath, DBusInterface+".NotificationClosed", id, uint32(reason)); err != nil {
		return fmt.Errorf("failed to emit NotificationClosed signal: %w", err)
	}
	s.logger.Debug("emitted NotificationClosed signal", "id", id, "reason", reason.String())
	return nil
}

// EmitActionInvoked emits the ActionInvoked signal.
func (s *Server) EmitActionInvoked(id uint32, actionKey string) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.Emit(DBusPath, DBusInterface+".ActionInvoked", id, actionKey); err != nil {
		return fmt.Errorf("failed to emit ActionInvoked signal: %w", err)
	}
	s.logger.Debug("emitted ActionInvoked signal", "id", id, "action_key", actionKey)
	return nil
}

// Closed reports a panel-side close to clients. Unknown ids are ignored.
func (s *Server) Closed(id int, reason CloseReason) error {
	if id < 0 || !s.forget(uint32(id)) {
		return nil
	}
	return s.EmitNotificationClosed(uint32(id), reason)
}

// InvokeAction emits ActionInvoked for id and reports whether the panel
// should now dismiss it. Ongoing notifications stay.
func (s *Server) InvokeAction(id int, actionKey string) (bool, error) {
	s.mu.RLock()
	rec := s.active[uint32(id)]
	s.mu.RUnlock()
	if id < 0 || rec == nil {
		return false, nil
	}
	if err := s.EmitActionInvoked(uint32(id), actionKey); err != nil {
		return false, err
	}
	return rec.Category != model.CategoryOngoing, nil
}
