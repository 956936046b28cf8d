package renderer

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/soerenfi/raytracing/asset"
)

type idleCounter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (d *idleCounter) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.err
}

type recordingLoader struct {
	mu    sync.Mutex
	calls []string
	gate  chan struct{}
	err   error
}

func (l *recordingLoader) record(call string) error {
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
	return l.err
}

func (l *recordingLoader) LoadScene(pathToScene string) error {
	return l.record("scene " + pathToScene)
}

func (l *recordingLoader) LoadEnvironment(pathToHdr string) error {
	return l.record("env " + pathToHdr)
}

func (l *recordingLoader) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func TestLoadDispatchByExtension(t *testing.T) {
	type spec struct {
		path      string
		expCalls  []string
		expStatus OutcomeStatus
		expKind   asset.Kind
	}
	specs := []spec{
		{"scene.glb", []string{"scene scene.glb"}, OutcomeLoaded, asset.SceneAsset},
		{"models/Sponza.GLTF", []string{"scene models/Sponza.GLTF"}, OutcomeLoaded, asset.SceneAsset},
		{"env.hdr", []string{"env env.hdr"}, OutcomeLoaded, asset.EnvironmentAsset},
		{"notes.txt", nil, OutcomeUnsupported, asset.Unsupported},
	}

	for index, s := range specs {
		loader := &recordingLoader{}
		device := &idleCounter{}
		ls := NewLoadSession(device, loader)

		if err := ls.Request(s.path); err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", index, err)
		}
		ls.Wait()

		if ls.Busy() {
			t.Fatalf("[spec %d] expected busy to clear after the load", index)
		}
		if got := loader.Calls(); !reflect.DeepEqual(got, s.expCalls) {
			t.Fatalf("[spec %d] expected calls %v; got %v", index, s.expCalls, got)
		}
		if device.calls != 1 {
			t.Fatalf("[spec %d] expected the device to be drained once; got %d", index, device.calls)
		}

		out, ok := ls.TakeCompletion()
		if !ok {
			t.Fatalf("[spec %d] expected a completion", index)
		}
		if out.Status != s.expStatus || out.Kind != s.expKind {
			t.Fatalf("[spec %d] expected %s %s outcome; got %s %s", index, s.expStatus, s.expKind, out.Status, out.Kind)
		}
		if s.expStatus == OutcomeUnsupported && !errors.Is(out.Err, asset.ErrUnsupportedAsset) {
			t.Fatalf("[spec %d] expected error to wrap ErrUnsupportedAsset; got %v", index, out.Err)
		}
		if _, ok = ls.TakeCompletion(); ok {
			t.Fatalf("[spec %d] expected completion to be reported once", index)
		}
	}
}

func TestLoadRejectedWhileBusy(t *testing.T) {
	loader := &recordingLoader{gate: make(chan struct{})}
	ls := NewLoadSession(&idleCounter{}, loader)

	if err := ls.Request("scene.glb"); err != nil {
		t.Fatal(err)
	}
	if !ls.Busy() {
		t.Fatal("expected the session to be busy")
	}
	if ls.Reason() != "Loading scene" {
		t.Fatalf("unexpected busy reason %q", ls.Reason())
	}
	if err := ls.Request("env.hdr"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy; got %v", err)
	}

	close(loader.gate)
	ls.Wait()

	if got := loader.Calls(); !reflect.DeepEqual(got, []string{"scene scene.glb"}) {
		t.Fatalf("expected only the first request to run; got %v", got)
	}
	if err := ls.Request("env.hdr"); err != nil {
		t.Fatalf("expected a new request to be accepted; got %v", err)
	}
	ls.Wait()
}

func TestLoadFailureOutcome(t *testing.T) {
	loadErr := errors.New("truncated file")
	ls := NewLoadSession(&idleCounter{}, &recordingLoader{err: loadErr})

	if err := ls.Request("broken.glb"); err != nil {
		t.Fatal(err)
	}
	ls.Wait()

	out, ok := ls.LastOutcome()
	if !ok || out.Status != OutcomeFailed || !errors.Is(out.Err, loadErr) {
		t.Fatalf("expected a failed outcome wrapping the load error; got %v", out)
	}
	if ls.Busy() {
		t.Fatal("expected busy to clear after a failed load")
	}
}

func TestLoadDeviceLost(t *testing.T) {
	idleErr := errors.New("device lost")
	loader := &recordingLoader{}
	ls := NewLoadSession(&idleCounter{err: idleErr}, loader)

	if err := ls.Request("scene.glb"); !errors.Is(err, idleErr) {
		t.Fatalf("expected the idle error; got %v", err)
	}
	ls.Wait()

	if ls.Busy() || len(loader.Calls()) != 0 {
		t.Fatal("expected the load to be abandoned")
	}
}
