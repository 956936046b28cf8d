package gpu

import "errors"

var (
	ErrDeviceLost    = errors.New("gpu: device lost")
	ErrStaleLayout   = errors.New("gpu: descriptor set does not match pipeline layout")
	ErrMissingBuffer = errors.New("gpu: descriptor binding is empty")
)
