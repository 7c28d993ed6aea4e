package dbus

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/quickpanel/internal/model"
)

const (
	// DBusInterface is the notification interface name.
	DBusInterface = "org.freedesktop.Notifications"
	// DBusPath is the notification object path.
	DBusPath = "/org/freedesktop/Notifications"
	// DBusBusName is the bus name to claim.
	DBusBusName = "org.freedesktop.Notifications"
)

// NotifyHandler receives a converted notification. replaced is set when the
// id was already active.
type NotifyHandler func(rec *model.Record, replaced bool)

// CloseHandler is called when a client closes a notification.
type CloseHandler func(id int)

// Server implements the org.freedesktop.Notifications D-Bus interface and
// keeps the records it has handed out so a restarted panel can resync.
//
// Handlers run on the D-Bus dispatch goroutine.
type Server struct {
	conn   *dbus.Conn
	logger *slog.Logger
	now    func() time.Time

	onNotify NotifyHandler
	onClose  CloseHandler

	mu         sync.RWMutex
	lastID     uint32
	active     map[uint32]*model.Record
	serverInfo ServerInfo
	running    bool
}

// NewServer creates a Server.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:     logger,
		now:        time.Now,
		active:     make(map[uint32]*model.Record),
		serverInfo: DefaultServerInfo(),
	}
}

// SetNotifyHandler sets the handler called for Notify.
func (s *Server) SetNotifyHandler(handler NotifyHandler) {
	s.onNotify = handler
}

// SetCloseHandler sets the handler called for CloseNotification.
func (s *Server) SetCloseHandler(handler CloseHandler) {
	s.onClose = handler
}

// SetServerInfo sets the server information returned by GetServerInformation.
func (s *Server) SetServerInfo(info ServerInfo) {
	s.serverInfo = info
}

// Start connects to the session bus, exports the service and claims the
// bus name. Another running notification daemon is replaced.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("server already running")
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	if err := export(conn, s); err != nil {
		return err
	}

	reply, err := conn.RequestName(DBusBusName, dbus.NameFlagReplaceExisting|dbus.NameFlagDoNotQueue)
	switch {
	case err != nil:
		return fmt.Errorf("failed to request bus name: %w", err)
	case reply != dbus.RequestNameReplyPrimaryOwner:
		return fmt.Errorf("bus name %s is owned by another daemon", DBusBusName)
	}

	s.conn = conn
	s.running = true
	s.logger.Info("notification service registered", "name", DBusBusName, "path", DBusPath)
	return nil
}

// export publishes srv and its introspection data on conn.
func export(conn *dbus.Conn, srv *Server) error {
	if err := conn.Export(srv, DBusPath, DBusInterface); err != nil {
		return fmt.Errorf("failed to export %s: %w", DBusInterface, err)
	}
	if err := conn.Export(introspect.Introspectable(introspection), DBusPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection: %w", err)
	}
	return nil
}

// Stop gives up the bus name. The shared session connection stays open.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	if _, err := s.conn.ReleaseName(DBusBusName); err != nil {
		s.logger.Warn("failed to release bus name", "name", DBusBusName, "error", err)
	}
	s.logger.Info("notification service released", "name", DBusBusName)
	return nil
}

// GetCapabilities implements the D-Bus method of the same name.
func (s *Server) GetCapabilities() ([]string, *dbus.Error) {
	return ServerCapabilities, nil
}

// GetServerInformation implements the D-Bus method of the same name.
func (s *Server) GetServerInformation() (string, string, string, string, *dbus.Error) {
	return s.serverInfo.Name, s.serverInfo.Vendor, s.serverInfo.Version, s.serverInfo.SpecVersion, nil
}

// Notify stores the notification and hands it to the notify handler. A
// replacesID naming an active notification turns the call into an update;
// any other call gets a fresh id.
func (s *Server) Notify(
	appName string,
	replacesID uint32,
	appIcon string,
	summary string,
	body string,
	actions []string,
	hints map[string]dbus.Variant,
	expireTimeout int32,
) (uint32, *dbus.Error) {
	n := &Notification{
		AppName:       appName,
		ReplacesID:    replacesID,
		AppIcon:       appIcon,
		Summary:       summary,
		Body:          body,
		Actions:       actions,
		Hints:         hints,
		ExpireTimeout: expireTimeout,
	}
	return s.notify(n), nil
}

func (s *Server) notify(n *Notification) uint32 {
	s.mu.Lock()
	id := n.ReplacesID
	_, replaced := s.active[id]
	if !replaced {
		id = s.allocID()
	}
	rec := n.Record(int(id), s.now())
	s.active[id] = rec
	s.mu.Unlock()

	s.logger.Debug("notify", "id", id, "app", n.AppName, "summary", n.Summary, "replaced", replaced, "category", rec.Category)

	if s.onNotify != nil {
		s.onNotify(rec.Clone(), replaced)
	}
	return id
}

// allocID returns the next id that is neither zero nor active. It must be
// called with mu held.
func (s *Server) allocID() uint32 {
	for {
		s.lastID++
		if _, taken := s.active[s.lastID]; s.lastID != 0 && !taken {
			return s.lastID
		}
	}
}

// CloseNotification removes an active notification on the client's request.
// Unknown ids are ignored.
func (s *Server) CloseNotification(id uint32) *dbus.Error {
	s.logger.Debug("close requested", "id", id)

	if !s.forget(id) {
		return nil
	}
	if s.onClose != nil {
		s.onClose(int(id))
	}
	if err := s.EmitNotificationClosed(id, CloseReasonClosed); err != nil {
		s.logger.Warn("failed to emit NotificationClosed signal", "id", id, "error", err)
	}
	return nil
}

// forget drops id from the active set and reports whether it was there.
func (s *Server) forget(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[id]; !ok {
		return false
	}
	delete(s.active, id)
	return true
}

// IsActive reports whether id was handed out and not closed yet.
func (s *Server) IsActive(id uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.active[id]
	return ok
}

// Records returns copies of all active records ordered by id.
func (s *Server) Records() []*model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*model.Record, 0, len(s.active))
	for _, rec := range s.active {
		recs = append(recs, rec.Clone())
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs
}

// introspection describes the exported interface.
const introspection = introspect.IntrospectDeclarationString + `
<node name="` + DBusPath + `">
  <interface name="` + DBusInterface + `">
    <method name="GetCapabilities">
      <arg name="capabilities" type="as" direction="out"/>
    </method>
    <method name="GetServerInformation">
      <arg name="name" type="s" direction="out"/>
      <arg name="vendor" type="s" direction="out"/>
      <arg name="version" type="s" direction="out"/>
      <arg name="spec_version" type="s" direction="out"/>
    </method>
    <method name="Notify">
      <arg name="app_name" type="s" direction="in"/>
      <arg name="replaces_id" type="u" direction="in"/>
      <arg name="app_icon" type="s" direction="in"/>
      <arg name="summary" type="s" direction="in"/>
      <arg name="body" type="s" direction="in"/>
      <arg name="actions" type="as" direction="in"/>
      <arg name="hints" type="a{sv}" direction="in"/>
      <arg name="expire_timeout" type="i" direction="in"/>
      <arg name="id" type="u" direction="out"/>
    </method>
    <method name="CloseNotification">
      <arg name="id" type="u" direction="in"/>
    </method>
    <signal name="NotificationClosed">
      <arg name="id" type="u"/>
      <arg name="reason" type="u"/>
    </signal>
    <signal name="ActionInvoked">
      <arg name="id" type="u"/>
      <arg name="action_key" type="s"/>
    </signal>
  </interface>` + introspect.IntrospectDataString + `</node>`
