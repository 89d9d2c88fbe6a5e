package plugin_test

import (
	"reflect"
	"strings"
	"testing"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/audiolibrelab/fxhost/internal/plugin"
	"github.com/audiolibrelab/fxhost/internal/plugin/plugintest"
)

func dispense(t *testing.T, impl plugin.Module) plugin.Module {
	t.Helper()
	client, _ := goplugin.TestPluginRPCConn(t, plugin.PluginSet(impl), nil)
	t.Cleanup(func() { client.Close() })

	raw, err := client.Dispense("module")
	if err != nil {
		t.Fatalf("Dispense failed: %v", err)
	}
	m, ok := raw.(plugin.Module)
	if !ok {
		t.Fatalf("dispensed %T, want plugin.Module", raw)
	}
	return m
}

func TestRPCRoundTrip(t *testing.T) {
	impl := plugintest.Stereo(0x2D385838, plugin.CapProgramChunks)
	impl.SetState([]byte{1, 2, 3}, "Warm Pad")
	m := dispense(t, impl)

	if err := m.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := m.SetPowerState(true); err != nil {
		t.Fatalf("SetPowerState: %v", err)
	}
	if err := m.StartProcessing(); err != nil {
		t.Fatalf("StartProcessing: %v", err)
	}
	if err := m.SetBlockSize(256); err != nil {
		t.Fatalf("SetBlockSize: %v", err)
	}
	if err := m.SetSampleRate(48000); err != nil {
		t.Fatalf("SetSampleRate: %v", err)
	}
	if err := m.SetProcessPrecision(plugin.Precision32); err != nil {
		t.Fatalf("SetProcessPrecision: %v", err)
	}
	if bs, sr, p := impl.Settings(); bs != 256 || sr != 48000 || p != plugin.Precision32 {
		t.Errorf("settings = %d/%v/%v", bs, sr, p)
	}

	info, err := m.Info()
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.UniqueID != 0x2D385838 || info.NumParams != 4 || !info.Supports(plugin.CapProgramChunks) {
		t.Errorf("Info = %+v", info)
	}

	in := [][]float32{{0.1, 0.2, 0.3}, {-0.1, -0.2, -0.3}}
	out := [][]float32{make([]float32, 3), make([]float32, 3)}
	if err := m.ProcessReplacing(in, out); err != nil {
		t.Fatalf("ProcessReplacing: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("out = %v, want %v", out, in)
	}

	events := []plugin.Event{{Data: [4]byte{0x90, 60, 100, 0}}}
	if err := m.ProcessEvents(events); err != nil {
		t.Fatalf("ProcessEvents: %v", err)
	}
	if got := impl.Events(); !reflect.DeepEqual(got, events) {
		t.Errorf("events = %v", got)
	}

	chunk, err := m.GetChunk(true)
	if err != nil || !reflect.DeepEqual(chunk, []byte{1, 2, 3}) {
		t.Errorf("GetChunk = %v, %v", chunk, err)
	}
	if err := m.BeginProgramChange(); err != nil {
		t.Fatalf("BeginProgramChange: %v", err)
	}
	if err := m.SetChunk([]byte{9, 8}, true); err != nil {
		t.Fatalf("SetChunk: %v", err)
	}
	if err := m.EndProgramChange(); err != nil {
		t.Fatalf("EndProgramChange: %v", err)
	}
	if calls := impl.SetChunks(); len(calls) != 1 || !calls[0].IsPreset {
		t.Errorf("SetChunk calls = %+v", calls)
	}

	if err := m.SetParameter(2, 0.75); err != nil {
		t.Fatalf("SetParameter: %v", err)
	}
	if v, err := m.GetParameter(2); err != nil || v != 0.75 {
		t.Errorf("GetParameter = %v, %v", v, err)
	}
	if name, err := m.ProgramName(); err != nil || name != "Warm Pad" {
		t.Errorf("ProgramName = %q, %v", name, err)
	}
	if err := m.SetProgram(0); err != nil {
		t.Fatalf("SetProgram: %v", err)
	}
	if err := m.StopProcessing(); err != nil {
		t.Fatalf("StopProcessing: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRPCErrorsPropagate(t *testing.T) {
	impl := plugintest.Stereo(1)
	m := dispense(t, impl)

	if _, err := m.GetParameter(99); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Errorf("GetParameter(99) error = %v", err)
	}
}
