package chat

import "errors"

var (
	// ErrRoomUnavailable means the room for a scope could not be acquired.
	ErrRoomUnavailable = errors.New("chat room unavailable")
	// ErrLoadFailed means the message history could not be loaded.
	ErrLoadFailed = errors.New("message history load failed")
	// ErrSendRejected means the store refused an outgoing message.
	ErrSendRejected = errors.New("message rejected")
	// ErrSubscriptionDropped means a live feed ended without being closed.
	ErrSubscriptionDropped = errors.New("live subscription dropped")

	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("not logged in")
	ErrInvalidScope    = errors.New("invalid chat scope")
	ErrAlreadyOpen     = errors.New("chat room already open")
	ErrNotReady        = errors.New("chat room not ready")
	ErrEmptyMessage    = errors.New("message is empty")
)
