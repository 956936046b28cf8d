package tracer

import (
	"errors"
	"reflect"
	"testing"

	"github.com/soerenfi/raytracing/gpu"
	"github.com/soerenfi/raytracing/scene"
)

type callLog struct {
	calls []string
}

func (l *callLog) add(call string) {
	l.calls = append(l.calls, call)
}

type mockDevice struct {
	log     *callLog
	idleErr error
}

func (d *mockDevice) WaitIdle() error {
	d.log.add("idle")
	return d.idleErr
}

type mockRenderer struct {
	name      string
	log       *callLog
	createErr error
	layouts   []gpu.Layout
	created   bool
}

func (r *mockRenderer) Create(size Size, layouts []gpu.Layout, sc *scene.Scene) error {
	r.log.add("create " + r.name)
	r.layouts = layouts
	r.created = r.createErr == nil
	return r.createErr
}

func (r *mockRenderer) SetPushConstants(state State) {}

func (r *mockRenderer) Run(cmd *gpu.CommandBuffer, size Size, prof *gpu.Profiler, sets []*gpu.DescriptorSet) {
}

func (r *mockRenderer) Destroy() {
	r.log.add("destroy " + r.name)
	r.created = false
}

func (r *mockRenderer) Name() string {
	return r.name
}

func newMockSlot(kinds ...Kind) (*Slot, *callLog, map[Kind]*mockRenderer) {
	log := &callLog{}
	mocks := make(map[Kind]*mockRenderer)
	instances := make(map[Kind]Renderer)
	for _, kind := range kinds {
		m := &mockRenderer{name: kind.String(), log: log}
		mocks[kind] = m
		instances[kind] = m
	}
	return NewSlot(&mockDevice{log: log}, instances), log, mocks
}

func TestSlotSwitchOrder(t *testing.T) {
	slot, log, mocks := newMockSlot(Pipeline, Query)
	slot.SetTarget(Size{4, 4}, []gpu.Layout{{Name: "accel"}}, scene.New())

	if err := slot.Create(Pipeline); err != nil {
		t.Fatal(err)
	}
	if err := slot.SwitchTo(Query); err != nil {
		t.Fatal(err)
	}

	expCalls := []string{"create pipeline", "idle", "destroy pipeline", "create query"}
	if !reflect.DeepEqual(log.calls, expCalls) {
		t.Fatalf("expected calls %v; got %v", expCalls, log.calls)
	}
	if slot.Kind() != Query || slot.Active() != mocks[Query] {
		t.Fatalf("expected query renderer to be active; got %s", slot.Kind())
	}
	if mocks[Pipeline].created || !mocks[Query].created {
		t.Fatal("expected only the active renderer to hold device state")
	}

	// Switching to the active kind is a no-op
	log.calls = nil
	if err := slot.SwitchTo(Query); err != nil {
		t.Fatal(err)
	}
	if len(log.calls) != 0 {
		t.Fatalf("expected no calls when switching to the active renderer; got %v", log.calls)
	}
}

func TestSlotUnsupportedKind(t *testing.T) {
	type spec struct {
		kinds  []Kind
		target Kind
	}
	specs := []spec{
		{[]Kind{Pipeline}, Query},
		{[]Kind{Pipeline, Query}, None},
		{[]Kind{}, Pipeline},
	}

	for index, s := range specs {
		slot, log, _ := newMockSlot(s.kinds...)
		if len(s.kinds) > 0 {
			if err := slot.Create(s.kinds[0]); err != nil {
				t.Fatal(err)
			}
		}
		log.calls = nil

		err := slot.SwitchTo(s.target)
		if !errors.Is(err, ErrUnsupportedKind) {
			t.Fatalf("[spec %d] expected ErrUnsupportedKind; got %v", index, err)
		}
		if len(log.calls) != 0 {
			t.Fatalf("[spec %d] expected the active renderer to be left untouched; got %v", index, log.calls)
		}
	}
}

func TestSlotRebuild(t *testing.T) {
	slot, log, mocks := newMockSlot(Pipeline, Query)
	slot.SetTarget(Size{4, 4}, []gpu.Layout{{Name: "scene"}}, scene.New())
	if err := slot.Create(Pipeline); err != nil {
		t.Fatal(err)
	}

	log.calls = nil
	layouts := []gpu.Layout{{Name: "scene", Bindings: []gpu.Binding{{Slot: 4, Kind: gpu.TextureBinding, Count: 3}}}}
	if err := slot.Rebuild(Size{8, 8}, layouts, scene.New()); err != nil {
		t.Fatal(err)
	}

	expCalls := []string{"idle", "destroy pipeline", "create pipeline"}
	if !reflect.DeepEqual(log.calls, expCalls) {
		t.Fatalf("expected calls %v; got %v", expCalls, log.calls)
	}
	if !mocks[Pipeline].layouts[0].Equal(layouts[0]) {
		t.Fatal("expected renderer to be rebuilt against the new layouts")
	}
}

func TestSlotCreateError(t *testing.T) {
	slot, _, mocks := newMockSlot(Pipeline)
	mocks[Pipeline].createErr = errors.New("out of memory")

	err := slot.Create(Pipeline)
	if err == nil || !errors.Is(err, mocks[Pipeline].createErr) {
		t.Fatalf("expected wrapped create error; got %v", err)
	}
	if slot.Active() != nil || slot.Kind() != None {
		t.Fatalf("expected no active renderer after a failed create; got %v", slot.Kind())
	}

	mocks[Pipeline].createErr = nil
	if err = slot.Create(Pipeline); err != nil {
		t.Fatal(err)
	}
	if slot.Active() == nil || slot.Kind() != Pipeline {
		t.Fatalf("expected pipeline renderer to be active; got %v", slot.Kind())
	}
}

func TestSlotClose(t *testing.T) {
	slot, log, _ := newMockSlot(Pipeline, Query)
	if err := slot.Create(Query); err != nil {
		t.Fatal(err)
	}

	log.calls = nil
	if err := slot.Close(); err != nil {
		t.Fatal(err)
	}
	expCalls := []string{"idle", "destroy query"}
	if !reflect.DeepEqual(log.calls, expCalls) {
		t.Fatalf("expected calls %v; got %v", expCalls, log.calls)
	}
	if slot.Active() != nil || slot.Kind() != None {
		t.Fatal("expected no active renderer after Close")
	}

	if err := slot.SwitchTo(Pipeline); err != ErrSlotDestroyed {
		t.Fatalf("expected ErrSlotDestroyed; got %v", err)
	}
	if err := slot.Close(); err != ErrSlotDestroyed {
		t.Fatalf("expected ErrSlotDestroyed on second Close; got %v", err)
	}
}

func TestStateDefaults(t *testing.T) {
	state := DefaultState()
	if state.Frame != 0 || state.MaxDepth != 10 || state.MaxSamples != 1 || state.MaxHeatmap != 65000 {
		t.Fatalf("unexpected defaults: %+v", state)
	}

	if NoDebug.String() != "No Debug" || DebugHeatmap.String() != "HeatMap" {
		t.Fatalf("unexpected debug mode names: %s, %s", NoDebug, DebugHeatmap)
	}
	if DebugHeatmap.Next() != NoDebug {
		t.Fatalf("expected debug modes to wrap around; got %s", DebugHeatmap.Next())
	}
}
