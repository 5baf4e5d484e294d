package asr

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/skillsenselab/asrkit/errors"
)

// staticEngine is a minimal engine for registry tests.
type staticEngine struct {
	name string
	caps Capability
	cfg  map[string]any
}

func (e *staticEngine) Name() string                       { return e.name }
func (e *staticEngine) Capabilities() Capability           { return e.caps }
func (e *staticEngine) IsAvailable(context.Context) bool   { return true }

func staticFactory(name string, caps Capability) Factory {
	return func(cfg map[string]any) (Engine, error) {
		return &staticEngine{name: name, caps: caps, cfg: cfg}, nil
	}
}

func TestRegistryRegisterResolve(t *testing.T) {
	reg := NewRegistry()

	caps := CapFile | CapStream
	if err := reg.Register("whisper", Registration{
		Factory:      staticFactory("whisper", caps),
		Capabilities: caps,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := reg.Resolve("whisper")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Capabilities != caps {
		t.Errorf("Capabilities = %s, want %s", got.Capabilities, caps)
	}
}

func TestRegistryDuplicate(t *testing.T) {
	reg := NewRegistry()
	registration := Registration{Factory: staticFactory("a", CapFile), Capabilities: CapFile}

	if err := reg.Register("a", registration); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := reg.Register("a", registration)
	if !errors.HasCode(err, errors.ErrCodeEngineExists) {
		t.Errorf("duplicate Register error = %v, want ENGINE_EXISTS", err)
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry()
	reg.Register("whisper", Registration{Factory: staticFactory("whisper", CapFile), Capabilities: CapFile})

	_, err := reg.Resolve("nope")
	if !errors.HasCode(err, errors.ErrCodeEngineNotFound) {
		t.Fatalf("Resolve error = %v, want ENGINE_NOT_FOUND", err)
	}
	appErr, _ := errors.AsAppError(err)
	if appErr.Details["available"] == nil {
		t.Error("ENGINE_NOT_FOUND should list available engines")
	}
}

func TestRegistryCreateMergesDefaults(t *testing.T) {
	reg := NewRegistry()
	reg.Register("funasr", Registration{
		Factory:      staticFactory("funasr", CapURL),
		Capabilities: CapURL,
		Defaults:     map[string]any{"model": "paraformer-v2", "timeout": 30},
	})

	eng, err := reg.Create("funasr", map[string]any{"timeout": 60})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	cfg := eng.(*staticEngine).cfg
	if cfg["model"] != "paraformer-v2" {
		t.Errorf("default model not merged: %v", cfg)
	}
	if cfg["timeout"] != 60 {
		t.Errorf("explicit config should win over defaults: %v", cfg)
	}
}

func TestRegistryEngineCachesInstance(t *testing.T) {
	reg := NewRegistry()
	built := 0
	reg.Register("whisper", Registration{
		Factory: func(cfg map[string]any) (Engine, error) {
			built++
			return &staticEngine{name: "whisper", caps: CapFile}, nil
		},
		Capabilities: CapFile,
	})

	first, err := reg.Engine("whisper")
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	second, err := reg.Engine("whisper")
	if err != nil {
		t.Fatalf("Engine (cached): %v", err)
	}
	if built != 1 {
		t.Errorf("factory invoked %d times, want 1", built)
	}
	if first != second {
		t.Error("expected the cached instance on second lookup")
	}
}

func TestRegistryEngineConcurrentFirstLookupBuildsOnce(t *testing.T) {
	reg := NewRegistry()
	var built int32
	reg.Register("whisper", Registration{
		Factory: func(cfg map[string]any) (Engine, error) {
			atomic.AddInt32(&built, 1)
			return &staticEngine{name: "whisper", caps: CapFile}, nil
		},
		Capabilities: CapFile,
	})

	const callers = 16
	instances := make([]Engine, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inst, err := reg.Engine("whisper")
			if err != nil {
				t.Errorf("Engine: %v", err)
				return
			}
			instances[i] = inst
		}(i)
	}
	wg.Wait()

	if n := atomic.LoadInt32(&built); n != 1 {
		t.Errorf("factory invoked %d times under concurrent first lookup, want 1", n)
	}
	for i := 1; i < callers; i++ {
		if instances[i] != instances[0] {
			t.Fatalf("caller %d got a different instance", i)
		}
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"qwen", "funasr", "whisper"} {
		reg.Register(name, Registration{Factory: staticFactory(name, CapFile), Capabilities: CapFile})
	}

	got := reg.List()
	want := []string{"funasr", "qwen", "whisper"}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryReset(t *testing.T) {
	reg := NewRegistry()
	reg.Register("whisper", Registration{Factory: staticFactory("whisper", CapFile), Capabilities: CapFile})
	reg.Reset()

	if _, err := reg.Resolve("whisper"); err == nil {
		t.Error("expected reset registry to forget registrations")
	}
	if len(reg.List()) != 0 {
		t.Error("expected empty list after reset")
	}
}

func TestDefaultRegistryHelpers(t *testing.T) {
	ResetRegistry()
	t.Cleanup(ResetRegistry)

	if err := Register("whisper", Registration{Factory: staticFactory("whisper", CapFile), Capabilities: CapFile}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := Resolve("whisper"); err != nil {
		t.Errorf("Resolve: %v", err)
	}
	if _, err := Create("whisper", nil); err != nil {
		t.Errorf("Create: %v", err)
	}
}
