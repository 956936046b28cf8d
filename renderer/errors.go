package renderer

import "errors"

var (
	ErrBusy               = errors.New("renderer: an asset load is in progress")
	ErrNoRenderers        = errors.New("renderer: no renderers attached")
	ErrAnyHitNotSupported = errors.New("renderer: active renderer does not support toggling any-hit")
	ErrClosed             = errors.New("renderer: renderer is closed")
)
