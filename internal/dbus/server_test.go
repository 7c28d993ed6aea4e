package dbus

import (
	"encoding/xml"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/quickpanel/internal/model"
)

type notified struct {
	rec      *model.Record
	replaced bool
}

func newTestServer() (*Server, *[]notified, *[]int) {
	s := NewServer(nil)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	var got []notified
	var closed []int
	s.SetNotifyHandler(func(rec *model.Record, replaced bool) {
		got = append(got, notified{rec: rec, replaced: replaced})
	})
	s.SetCloseHandler(func(id int) {
		closed = append(closed, id)
	})
	return s, &got, &closed
}

func TestServer_NotifyAssignsIDs(t *testing.T) {
	s, got, _ := newTestServer()

	id1, derr := s.Notify("app", 0, "", "one", "", nil, nil, -1)
	require.Nil(t, derr)
	id2, _ := s.Notify("app", 0, "", "two", "", nil, nil, -1)

	assert.Equal(t, uint32(1), id1)
	assert.Equal(t, uint32(2), id2)
	require.Len(t, *got, 2)
	assert.Equal(t, "one", (*got)[0].rec.Title)
	assert.False(t, (*got)[0].replaced)
	assert.True(t, s.IsActive(id1))
}

func TestServer_NotifyReplaces(t *testing.T) {
	s, got, _ := newTestServer()

	id, _ := s.Notify("app", 0, "", "downloading", "", nil, map[string]dbus.Variant{
		"value": dbus.MakeVariant(int32(10)),
	}, -1)
	again, _ := s.Notify("app", id, "", "downloading", "", nil, map[string]dbus.Variant{
		"value": dbus.MakeVariant(int32(60)),
	}, -1)

	assert.Equal(t, id, again)
	require.Len(t, *got, 2)
	assert.True(t, (*got)[1].replaced)
	assert.Equal(t, model.CategoryOngoing, (*got)[1].rec.Category)
	assert.Len(t, s.Records(), 1)
}

func TestServer_CloseNotification(t *testing.T) {
	s, _, closed := newTestServer()

	id, _ := s.Notify("app", 0, "", "x", "", nil, nil, -1)
	assert.Nil(t, s.CloseNotification(id))
	assert.Nil(t, s.CloseNotification(id))
	assert.Nil(t, s.CloseNotification(99))

	assert.Equal(t, []int{int(id)}, *closed)
	assert.False(t, s.IsActive(id))
}

func TestServer_ClosedWithoutConnection(t *testing.T) {
	s, _, closed := newTestServer()

	id, _ := s.Notify("app", 0, "", "x", "", nil, nil, -1)
	err := s.Closed(int(id), CloseReasonDismissed)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, s.IsActive(id))
	assert.Empty(t, *closed, "panel-side closes do not loop back")

	assert.NoError(t, s.Closed(int(id), CloseReasonDismissed))
	assert.NoError(t, s.Closed(-1, CloseReasonDismissed))
}

func TestServer_InvokeActionUnknown(t *testing.T) {
	s, _, _ := newTestServer()

	dismiss, err := s.InvokeAction(5, "default")
	assert.NoError(t, err)
	assert.False(t, dismiss)

	id, _ := s.Notify("app", 0, "", "x", "", []string{"default", "Open"}, nil, -1)
	_, err = s.InvokeAction(int(id), "default")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestServer_RecordsSorted(t *testing.T) {
	s, _, _ := newTestServer()

	for _, title := range []string{"c", "a", "b"} {
		s.Notify("app", 0, "", title, "", nil, nil, -1)
	}

	recs := s.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{recs[0].ID, recs[1].ID, recs[2].ID})
	assert.Equal(t, "a", recs[1].Title)

	recs[0].Title = "mutated"
	assert.Equal(t, "c", s.Records()[0].Title)
}

func TestServer_NotifyUnknownReplacesGetsFreshID(t *testing.T) {
	s, got, _ := newTestServer()

	idB, _ := s.Notify("appB", 2, "", "B", "", nil, nil, -1)
	id1, _ := s.Notify("appA", 0, "", "A first", "", nil, nil, -1)
	id2, _ := s.Notify("appA", 0, "", "A second", "", nil, nil, -1)

	assert.Equal(t, uint32(1), idB)
	assert.Equal(t, uint32(2), id1)
	assert.Equal(t, uint32(3), id2)
	require.Len(t, *got, 3)
	for _, n := range *got {
		assert.False(t, n.replaced, "id %d", n.rec.ID)
	}
	assert.Len(t, s.Records(), 3)

	// A closed id is not reusable through replaces_id either.
	require.Nil(t, s.CloseNotification(id1))
	again, _ := s.Notify("appA", id1, "", "A again", "", nil, nil, -1)
	assert.Equal(t, uint32(4), again)
	assert.False(t, (*got)[3].replaced)
}

func TestServer_NotifySkipsActiveIDsOnWrap(t *testing.T) {
	s, _, _ := newTestServer()

	first, _ := s.Notify("app", 0, "", "first", "", nil, nil, -1)
	require.Equal(t, uint32(1), first)

	s.lastID = ^uint32(0) - 1
	last, _ := s.Notify("app", 0, "", "last", "", nil, nil, -1)
	wrapped, _ := s.Notify("app", 0, "", "wrapped", "", nil, nil, -1)

	assert.Equal(t, ^uint32(0), last)
	assert.Equal(t, uint32(2), wrapped, "zero and active ids are skipped")
}

func TestServer_Capabilities(t *testing.T) {
	s := NewServer(nil)

	caps, derr := s.GetCapabilities()
	require.Nil(t, derr)
	assert.Contains(t, caps, "actions")

	name, vendor, _, spec, _ := s.GetServerInformation()
	assert.Equal(t, "quickpanel", name)
	assert.Equal(t, "quickpanel", vendor)
	assert.Equal(t, "1.2", spec)

	assert.NoError(t, s.Stop())
}

func TestIntrospection(t *testing.T) {
	var node introspect.Node
	require.NoError(t, xml.Unmarshal([]byte(introspection), &node))
	assert.Equal(t, DBusPath, node.Name)
	require.Len(t, node.Interfaces, 2)

	iface := node.Interfaces[0]
	assert.Equal(t, DBusInterface, iface.Name)

	var methods []string
	for _, m := range iface.Methods {
		methods = append(methods, m.Name)
	}
	assert.Equal(t, []string{"GetCapabilities", "GetServerInformation", "Notify", "CloseNotification"}, methods)
	require.Len(t, iface.Methods[2].Args, 9)
	assert.Equal(t, "a{sv}", iface.Methods[2].Args[6].Type)

	var signals []string
	for _, sig := range iface.Signals {
		signals = append(signals, sig.Name)
	}
	assert.Equal(t, []string{"NotificationClosed", "ActionInvoked"}, signals)
	assert.Equal(t, "org.freedesktop.DBus.Introspectable", node.Interfaces[1].Name)
}
