// Package dbus is the notification event source: an
// org.freedesktop.Notifications server that turns Notify and
// CloseNotification calls into engine records, and a passive monitor for
// running beside another notification daemon.
package dbus
