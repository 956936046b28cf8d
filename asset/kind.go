package asset

import (
	"errors"
	"path/filepath"
	"strings"
)

var ErrUnsupportedAsset = errors.New("asset: unsupported file type")

// The type of asset stored in a file.
type Kind uint8

const (
	Unsupported Kind = iota
	SceneAsset
	EnvironmentAsset
)

func (k Kind) String() string {
	switch k {
	case SceneAsset:
		return "scene"
	case EnvironmentAsset:
		return "environment"
	}
	return "unsupported"
}

// Detect the asset kind from a file name or URL path. Only glTF scenes
// (.gltf, .glb) and radiance HDR environments (.hdr) are supported.
func KindOf(pathToResource string) Kind {
	ext := strings.ToLower(filepath.Ext(pathToResource))
	if i := strings.IndexAny(ext, "?#"); i != -1 {
		ext = ext[:i]
	}

	switch ext {
	case ".gltf", ".glb":
		return SceneAsset
	case ".hdr":
		return EnvironmentAsset
	}
	return Unsupported
}
