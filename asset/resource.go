package asset

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// The Resource class wraps a streamable file or remote Resource.
type Resource struct {
	io.ReadCloser
	url *url.URL
}

// Returns the path to this resource.
func (r *Resource) Path() string {
	if !r.IsRemote() {
		return r.url.Path
	}
	return r.url.String()
}

// Return the remote path to this resource. If this is a remote resource then
// this method returns the base path (without leading /) of the remote URL.
// Otherwise, this method returns the same value as Path().
func (r *Resource) RemotePath() string {
	if r.IsRemote() {
		return filepath.Base(r.url.Path)
	}
	return r.Path()
}

// Returns true if the Resource is streamed over http/https.
func (r *Resource) IsRemote() bool {
	return r.url.Scheme != ""
}

// Get the asset kind of this resource based on its extension.
func (r *Resource) Kind() Kind {
	return KindOf(r.url.Path)
}

// Create a new Resource data stream. Paths with an http/https scheme are
// fetched using the net/http package; everything else is treated as a local
// file. The caller must close the returned resource.
func NewResource(pathToResource string) (*Resource, error) {
	// Replace backslashes with forward slashes and try parsing as a URL
	url, err := parseLocation(pathToResource)
	if err != nil {
		return nil, err
	}

	var reader io.ReadCloser
	switch url.Scheme {
	case "":
		reader, err = os.Open(filepath.Clean(url.Path))
		if err != nil {
			return nil, err
		}
	case "http", "https":
		resp, err := http.Get(url.String())
		if err != nil {
			return nil, fmt.Errorf("resource: could not fetch '%s': %s", url.String(), err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("resource: could not fetch '%s': status %d", url.String(), resp.StatusCode)
		}
		reader = resp.Body
	default:
		return nil, fmt.Errorf("resource: unsupported scheme '%s'", url.Scheme)
	}

	return &Resource{
		ReadCloser: reader,
		url:        url,
	}, nil
}

// Create a resource from a reader.
func NewResourceFromStream(name string, source io.Reader) *Resource {
	url, _ := url.Parse(name)
	return &Resource{
		ReadCloser: io.NopCloser(source),
		url:        url,
	}
}

// Return a local filesystem path with the resource contents. Local resources
// are returned as-is; remote resources are copied to a temp file which is
// removed by the returned cleanup func.
func Localize(res *Resource) (string, func(), error) {
	if !res.IsRemote() {
		return res.Path(), func() {}, nil
	}

	// Keep the extension so that format detection still works.
	f, err := os.CreateTemp("", "asset-*"+filepath.Ext(res.RemotePath()))
	if err != nil {
		return "", nil, err
	}
	pathToFile := f.Name()
	cleanup := func() { os.Remove(pathToFile) }

	_, err = io.Copy(f, res)
	f.Close()
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("resource: could not download '%s': %s", res.Path(), err)
	}

	return pathToFile, cleanup, nil
}

func parseLocation(pathToResource string) (*url.URL, error) {
	loc := strings.Replace(pathToResource, `\`, `/`, -1)

	// Windows drive letters parse as a single-letter scheme.
	if len(loc) > 1 && loc[1] == ':' {
		return &url.URL{Path: loc}, nil
	}
	return url.Parse(loc)
}
