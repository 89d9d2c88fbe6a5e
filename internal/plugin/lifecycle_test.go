package plugin_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/audiolibrelab/fxhost/internal/plugin"
	"github.com/audiolibrelab/fxhost/internal/plugin/plugintest"
)

func moduleFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "module.bin")
	if err := os.WriteFile(path, []byte("stub"), 0755); err != nil {
		t.Fatalf("Failed to create module file: %v", err)
	}
	return path
}

func staticLoader(m plugin.Module, disposed *int) plugin.Loader {
	return plugin.LoaderFunc(func(ctx context.Context, path string) (plugin.Module, func(), error) {
		return m, func() { *disposed++ }, nil
	})
}

func TestOpenMissingFile(t *testing.T) {
	var disposed int
	lc := plugin.NewLifecycle(staticLoader(plugintest.Stereo(1), &disposed), nil)

	err := lc.Open(context.Background(), filepath.Join(t.TempDir(), "missing.bin"))
	var loadErr *plugin.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected cause to be os.ErrNotExist, got %v", loadErr.Err)
	}
	if lc.State() != plugin.StateClosed {
		t.Errorf("state = %s, want CLOSED", lc.State())
	}
}

func TestOpenLoaderFailure(t *testing.T) {
	cause := errors.New("handshake mismatch")
	lc := plugin.NewLifecycle(plugin.LoaderFunc(func(context.Context, string) (plugin.Module, func(), error) {
		return nil, nil, cause
	}), nil)

	err := lc.Open(context.Background(), moduleFile(t))
	var loadErr *plugin.LoadError
	if !errors.As(err, &loadErr) || !errors.Is(err, cause) {
		t.Fatalf("expected LoadError wrapping cause, got %v", err)
	}
}

func TestOpenModuleOpenFailureDisposes(t *testing.T) {
	m := plugintest.Stereo(1)
	m.Errors = map[string]error{"Open": errors.New("bad init")}
	var disposed int
	lc := plugin.NewLifecycle(staticLoader(m, &disposed), nil)

	err := lc.Open(context.Background(), moduleFile(t))
	var loadErr *plugin.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if disposed != 1 {
		t.Errorf("dispose called %d times, want 1", disposed)
	}
	if lc.State() != plugin.StateClosed {
		t.Errorf("state = %s, want CLOSED", lc.State())
	}
}

func TestLifecycleTransitions(t *testing.T) {
	m := plugintest.Stereo(1)
	var disposed int
	lc := plugin.NewLifecycle(staticLoader(m, &disposed), nil)

	if err := lc.EnsurePowered(); !errors.Is(err, plugin.ErrNotOpen) {
		t.Fatalf("EnsurePowered on closed = %v, want ErrNotOpen", err)
	}

	if err := lc.Open(context.Background(), moduleFile(t)); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if lc.State() != plugin.StateOpened {
		t.Fatalf("state = %s, want OPENED", lc.State())
	}
	if lc.SessionID() == "" {
		t.Error("expected a session id")
	}
	if err := lc.Open(context.Background(), moduleFile(t)); err == nil {
		t.Error("expected second Open to fail")
	}

	for i := 0; i < 3; i++ {
		if err := lc.EnsurePowered(); err != nil {
			t.Fatalf("EnsurePowered failed: %v", err)
		}
	}
	if lc.State() != plugin.StatePoweredOn {
		t.Fatalf("state = %s, want POWERED_ON", lc.State())
	}
	if m.Count("PowerOn") != 1 || m.Count("StartProcessing") != 1 {
		t.Errorf("power on/start called %d/%d times, want once each", m.Count("PowerOn"), m.Count("StartProcessing"))
	}

	if err := lc.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if lc.State() != plugin.StateClosed {
		t.Errorf("state = %s, want CLOSED", lc.State())
	}
	if disposed != 1 {
		t.Errorf("dispose called %d times, want 1", disposed)
	}

	want := []string{"Open", "PowerOn", "StartProcessing", "StopProcessing", "PowerOff", "Close"}
	if got := m.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}

	if err := lc.Release(); err != nil {
		t.Errorf("second Release = %v, want nil", err)
	}
	if len(m.Calls()) != len(want) {
		t.Error("second Release touched the module")
	}
}

func TestReleaseWithoutPowerSkipsStopAndPowerOff(t *testing.T) {
	m := plugintest.Stereo(1)
	lc := plugin.NewLifecycle(nil, nil)
	if err := lc.Attach(m); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if err := lc.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	want := []string{"Open", "Close"}
	if got := m.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestReleaseJoinsErrorsAndCompletes(t *testing.T) {
	m := plugintest.Stereo(1)
	stopErr := errors.New("stop failed")
	closeErr := errors.New("close failed")
	m.Errors = map[string]error{"StopProcessing": stopErr, "Close": closeErr}

	lc := plugin.NewLifecycle(nil, nil)
	if err := lc.Attach(m); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if err := lc.EnsurePowered(); err != nil {
		t.Fatalf("EnsurePowered failed: %v", err)
	}

	err := lc.Release()
	if !errors.Is(err, stopErr) || !errors.Is(err, closeErr) {
		t.Errorf("Release error = %v, want both causes", err)
	}
	if lc.State() != plugin.StateClosed {
		t.Errorf("state = %s, want CLOSED", lc.State())
	}
	if m.Count("PowerOff") != 1 {
		t.Error("power off skipped after failed stop")
	}
}

func TestFailedStartPowersOnOnce(t *testing.T) {
	m := plugintest.Stereo(1)
	m.Errors = map[string]error{"StartProcessing": errors.New("busy")}

	lc := plugin.NewLifecycle(nil, nil)
	if err := lc.Attach(m); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := lc.EnsurePowered(); err == nil {
			t.Fatal("expected start failure")
		}
	}
	if lc.State() != plugin.StateOpened {
		t.Errorf("state = %s, want OPENED", lc.State())
	}

	m.Errors = nil
	if err := lc.EnsurePowered(); err != nil {
		t.Fatalf("EnsurePowered failed: %v", err)
	}
	if lc.State() != plugin.StatePoweredOn {
		t.Errorf("state = %s, want POWERED_ON", lc.State())
	}
	if got := m.Count("PowerOn"); got != 1 {
		t.Errorf("power on called %d times, want 1", got)
	}
	if got := m.Count("StartProcessing"); got != 6 {
		t.Errorf("start called %d times, want 6", got)
	}

	if err := lc.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if m.Count("PowerOff") != 1 {
		t.Error("expected one power off")
	}
}

func TestFailedStartStillPowersOff(t *testing.T) {
	m := plugintest.Stereo(1)
	m.Errors = map[string]error{"StartProcessing": errors.New("busy")}

	lc := plugin.NewLifecycle(nil, nil)
	if err := lc.Attach(m); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if err := lc.EnsurePowered(); err == nil {
		t.Fatal("expected start failure")
	}
	if err := lc.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	want := []string{"Open", "PowerOn", "StartProcessing", "PowerOff", "Close"}
	if got := m.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestAttachNil(t *testing.T) {
	lc := plugin.NewLifecycle(nil, nil)
	var loadErr *plugin.LoadError
	if err := lc.Attach(nil); !errors.As(err, &loadErr) {
		t.Errorf("Attach(nil) = %v, want LoadError", err)
	}
}

func TestInfoSupports(t *testing.T) {
	info := plugin.Info{Flags: 1<<5 | 1<<8}
	if !info.Supports(plugin.CapProgramChunks) || !info.Supports(plugin.CapSynth) {
		t.Error("expected program chunks and synth")
	}
	if info.Supports(plugin.CapEditor) || info.Supports(plugin.Capability("bogus")) {
		t.Error("unexpected capability")
	}
	want := []plugin.Capability{plugin.CapProgramChunks, plugin.CapSynth}
	if got := info.Capabilities(); !reflect.DeepEqual(got, want) {
		t.Errorf("Capabilities = %v, want %v", got, want)
	}
	if plugin.FlagsFor(plugin.CapEditor, plugin.CapDoubleReplacing) != 1|1<<12 {
		t.Error("FlagsFor mismatch")
	}
}
