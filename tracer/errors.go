package tracer

import "errors"

var (
	ErrUnsupportedKind = errors.New("tracer: renderer kind not supported")
	ErrSlotDestroyed   = errors.New("tracer: renderer slot destroyed")
	ErrNotCreated      = errors.New("tracer: renderer used before Create")
)
