package network

import "errors"

var (
	// ErrForeignNode is returned when a node created by another registry is
	// passed to a registry.
	ErrForeignNode = errors.New("node does not belong to this registry")

	// ErrChannelAttached is returned when connecting a device that is already
	// connected to a channel.
	ErrChannelAttached = errors.New("device is already attached to a channel")

	// ErrNoChannel is returned when sending through a device that is not
	// attached to any channel.
	ErrNoChannel = errors.New("device is not attached to a channel")

	// ErrNoRoute is returned when a node has no device to send a packet out.
	ErrNoRoute = errors.New("no route to destination")

	// ErrInvalidAppWindow is returned when an application's stop time is not
	// after its start time, or the start time is negative.
	ErrInvalidAppWindow = errors.New("invalid application start/stop window")

	// ErrNilApplication is returned when attaching a nil application.
	ErrNilApplication = errors.New("application must not be nil")

	// ErrApplicationStopped is returned when a stopped application tries to
	// send packets or schedule events.
	ErrApplicationStopped = errors.New("application is stopped")

	// ErrPortInUse is returned when binding a port that is already bound on
	// the node.
	ErrPortInUse = errors.New("port is already in use")
)
