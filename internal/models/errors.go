package models

import "errors"

// Sentinel errors returned by the controller and its collaborators.
var (
	ErrUnknownCodec      = errors.New("models: unknown codec")
	ErrDecoderOpenFailed = errors.New("models: decoder open failed")
	ErrOutputStartFailed = errors.New("models: output start failed")
	ErrHeaderTooLong     = errors.New("models: http request header too long")
	ErrFrameTooLarge     = errors.New("models: control frame exceeds maximum size")
	ErrNotConnected      = errors.New("models: control channel not connected")
	ErrShuttingDown      = errors.New("models: controller is shutting down")
)
