package transport

import (
	"context"
	"errors"
	"net"
	"syscall"

	platformerrors "github.com/louisbranch/tablesync/internal/platform/errors"
	"golang.org/x/net/websocket"
)

var (
	// ErrNotConnected is returned when an operation needs a live connection.
	ErrNotConnected = errors.New("transport: not connected")
	// ErrStreamActive is returned when a connection already has a consumer.
	ErrStreamActive = errors.New("transport: stream already active")
	// ErrConnectAborted is returned by a Connect that Close overtook.
	ErrConnectAborted = errors.New("transport: connect aborted by close")
)

// normalizeDial is normalize for connection attempts. A table that rejects
// the upgrade after a session was established is treated as a transient
// outage, since the rejection status is not observable.
func normalizeDial(ctx context.Context, err error, reconnect bool) error {
	if !reconnect || ctx.Err() != nil {
		return normalize(ctx, err)
	}
	cause := err
	var dialErr *websocket.DialError
	if errors.As(err, &dialErr) && dialErr.Err != nil {
		cause = dialErr.Err
	}
	if errors.Is(cause, websocket.ErrBadStatus) {
		return platformerrors.Wrap(platformerrors.KindWebSocket, platformerrors.CodeUnknown, "table rejected the reconnection", err)
	}
	return normalize(ctx, err)
}

// normalize maps a connection failure onto the data error taxonomy. The
// caller's cancellation wins over any failure it caused.
func normalize(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var typed *platformerrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	var dialErr *websocket.DialError
	if errors.As(err, &dialErr) && dialErr.Err != nil {
		err = dialErr.Err
	}
	if errors.Is(err, websocket.ErrBadStatus) {
		return platformerrors.Wrap(platformerrors.KindHTTP, platformerrors.CodeUnauthorized, "table rejected the connection", err)
	}
	if unreachable(err) {
		return platformerrors.Wrap(platformerrors.KindHTTP, platformerrors.CodeNoInternet, "table is unreachable", err)
	}
	return platformerrors.Wrap(platformerrors.KindWebSocket, platformerrors.CodeUnknown, "websocket failure", err)
}

func unreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETDOWN)
}
