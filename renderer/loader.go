package renderer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soerenfi/raytracing/asset"
	"github.com/soerenfi/raytracing/log"
	"github.com/soerenfi/raytracing/tracer"
	"golang.org/x/sync/errgroup"
)

// AssetLoader applies loaded assets. Both methods run on the load task
// while the session is busy.
type AssetLoader interface {
	LoadScene(pathToScene string) error
	LoadEnvironment(pathToHdr string) error
}

type OutcomeStatus uint8

const (
	OutcomeLoaded OutcomeStatus = iota
	OutcomeUnsupported
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeLoaded:
		return "loaded"
	case OutcomeUnsupported:
		return "unsupported"
	}
	return "failed"
}

// The result of a load request.
type Outcome struct {
	Status  OutcomeStatus
	Kind    asset.Kind
	Path    string
	Err     error
	Elapsed time.Duration
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s %s: %s", o.Status, o.Path, o.Err.Error())
	}
	return fmt.Sprintf("%s %s %s in %d ms", o.Status, o.Kind, o.Path, o.Elapsed.Nanoseconds()/1e6)
}

// LoadSession runs at most one asset load at a time on a background task.
// The busy flag is raised synchronously by Request and cleared by the task
// after its outcome has been published.
type LoadSession struct {
	logger log.Logger

	device tracer.Idler
	loader AssetLoader

	busy    atomic.Bool
	reason  atomic.Value
	started atomic.Int64
	group   errgroup.Group

	mu       sync.Mutex
	last     *Outcome
	complete *Outcome
}

func NewLoadSession(device tracer.Idler, loader AssetLoader) *LoadSession {
	ls := &LoadSession{
		logger: log.New("loader"),
		device: device,
		loader: loader,
	}
	ls.reason.Store("")
	return ls
}

// Start loading an asset. Requests made while another load is in flight
// are rejected with ErrBusy.
func (ls *LoadSession) Request(pathToAsset string) error {
	if !ls.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}

	kind := asset.KindOf(pathToAsset)
	ls.reason.Store(busyReason(kind))
	start := time.Now()
	ls.started.Store(start.UnixNano())

	// Nothing submitted before the request may still reference the
	// resources the task replaces.
	if err := ls.device.WaitIdle(); err != nil {
		ls.finish(Outcome{Status: OutcomeFailed, Kind: kind, Path: pathToAsset, Err: err})
		return err
	}

	ls.group.Go(func() error {
		out := ls.load(kind, pathToAsset)
		out.Elapsed = time.Since(start)
		ls.finish(out)
		return nil
	})
	return nil
}

func (ls *LoadSession) load(kind asset.Kind, pathToAsset string) Outcome {
	out := Outcome{Status: OutcomeLoaded, Kind: kind, Path: pathToAsset}

	var err error
	switch kind {
	case asset.SceneAsset:
		err = ls.loader.LoadScene(pathToAsset)
	case asset.EnvironmentAsset:
		err = ls.loader.LoadEnvironment(pathToAsset)
	default:
		out.Status = OutcomeUnsupported
		out.Err = fmt.Errorf("%w: %s", asset.ErrUnsupportedAsset, pathToAsset)
		return out
	}

	if err != nil {
		out.Status = OutcomeFailed
		out.Err = err
	}
	return out
}

// Publish the outcome and release the busy flag.
func (ls *LoadSession) finish(out Outcome) {
	switch out.Status {
	case OutcomeLoaded:
		ls.logger.Noticef("%s", out)
	case OutcomeUnsupported:
		ls.logger.Warningf("ignoring %s: unsupported file type", out.Path)
	default:
		ls.logger.Errorf("%s", out)
	}

	ls.mu.Lock()
	ls.last = &out
	ls.complete = &out
	ls.mu.Unlock()

	ls.busy.Store(false)
}

// Returns true while a load is in flight.
func (ls *LoadSession) Busy() bool {
	return ls.busy.Load()
}

// Get the text describing the in-flight load.
func (ls *LoadSession) Reason() string {
	return ls.reason.Load().(string)
}

// Get the time since the current load started.
func (ls *LoadSession) Elapsed() time.Duration {
	return time.Since(time.Unix(0, ls.started.Load()))
}

// Consume the outcome of a finished load. Each completion is reported
// exactly once.
func (ls *LoadSession) TakeCompletion() (Outcome, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.complete == nil {
		return Outcome{}, false
	}
	out := *ls.complete
	ls.complete = nil
	return out, true
}

// Get the outcome of the most recent load.
func (ls *LoadSession) LastOutcome() (Outcome, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.last == nil {
		return Outcome{}, false
	}
	return *ls.last, true
}

// Block until the in-flight load, if any, has finished.
func (ls *LoadSession) Wait() {
	ls.group.Wait()
}

func busyReason(kind asset.Kind) string {
	switch kind {
	case asset.SceneAsset:
		return "Loading scene"
	case asset.EnvironmentAsset:
		return "Loading HDR"
	}
	return "Loading"
}
