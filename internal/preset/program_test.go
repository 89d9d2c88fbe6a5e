package preset

import (
	"errors"
	"reflect"
	"testing"

	"github.com/audiolibrelab/fxhost/internal/plugin"
	"github.com/audiolibrelab/fxhost/internal/plugin/plugintest"
)

const testID int32 = 0x3858382D

func setCalls(m *plugintest.Module) int {
	return m.Count("SetChunk") + m.Count("SetParameter") + m.Count("BeginProgramChange") + m.Count("EndProgramChange")
}

func TestSaveLoadParameterModule(t *testing.T) {
	m := plugintest.Stereo(testID)
	want := []float32{0.1, 0.2, 0.3, 0.4}
	for i, v := range want {
		if err := m.SetParameter(i, v); err != nil {
			t.Fatalf("SetParameter failed: %v", err)
		}
	}

	doc, err := SaveProgram(m)
	if err != nil {
		t.Fatalf("SaveProgram failed: %v", err)
	}
	if doc.FxMagic != MagicProgramParams || doc.Count != 4 || doc.ChunkMagic != ChunkMagic {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.FxID != EncodeID(testID) {
		t.Errorf("FxID = %s", doc.FxID)
	}

	data, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	for i := range want {
		m.SetParameter(i, 0)
	}
	report, err := LoadProgram(m, decoded)
	if err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	if report.Applied != 4 || len(report.Skipped) != 0 {
		t.Errorf("report = %+v", report)
	}
	if got := m.Params(); !reflect.DeepEqual(got, want) {
		t.Errorf("params = %v, want %v", got, want)
	}
}

func TestSaveLoadChunkModule(t *testing.T) {
	m := plugintest.Stereo(testID, plugin.CapProgramChunks)
	m.SetState([]byte("state-v1"), "Warm Pad")

	doc, err := SaveProgram(m)
	if err != nil {
		t.Fatalf("SaveProgram failed: %v", err)
	}
	if doc.FxMagic != MagicProgramChunk || doc.Name != "Warm Pad" || doc.Count != 1 {
		t.Fatalf("unexpected document %+v", doc)
	}

	m.SetState([]byte("other"), "Other")
	if _, err := LoadProgram(m, doc); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}

	calls := m.SetChunks()
	if len(calls) != 1 || string(calls[0].Data) != "state-v1" || !calls[0].IsPreset {
		t.Errorf("SetChunk calls = %+v", calls)
	}
	again, _ := m.GetChunk(true)
	if string(again) != "state-v1" {
		t.Errorf("chunk after load = %q", again)
	}
}

func TestLoadBadChunkMagic(t *testing.T) {
	m := plugintest.Stereo(testID)
	doc, _ := SaveProgram(m)
	doc.ChunkMagic = "RIFF"

	_, err := LoadProgram(m, doc)
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	if n := setCalls(m); n != 0 {
		t.Errorf("module received %d mutating calls", n)
	}
}

func TestLoadMismatchedID(t *testing.T) {
	m := plugintest.Stereo(testID, plugin.CapProgramChunks)
	doc, _ := SaveProgram(m)
	doc.FxID = EncodeID(testID + 1)

	_, err := LoadProgram(m, doc)
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected MismatchError, got %v", err)
	}
	if mismatch.Want != EncodeID(testID) {
		t.Errorf("Want = %s", mismatch.Want)
	}
	if n := setCalls(m); n != 0 {
		t.Errorf("module received %d mutating calls", n)
	}
}

func TestLoadUnknownFxMagic(t *testing.T) {
	m := plugintest.Stereo(testID)
	doc, _ := SaveProgram(m)
	doc.FxMagic = "Nope"

	_, err := LoadProgram(m, doc)
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	if n := setCalls(m); n != 0 {
		t.Errorf("module received %d mutating calls", n)
	}
}

func TestLoadSkipsFailedParameters(t *testing.T) {
	m := plugintest.Stereo(testID)
	m.FailParams = map[int]bool{1: true}
	doc := &Document{
		ChunkMagic: ChunkMagic,
		FxMagic:    MagicBankParams,
		Version:    1,
		FxID:       EncodeID(testID),
		Count:      4,
		Params:     []float32{0.9, 0.8, 0.7, 0.6},
	}

	report, err := LoadProgram(m, doc)
	if err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	if !reflect.DeepEqual(report.Skipped, []int{1}) || report.Applied != 3 {
		t.Errorf("report = %+v", report)
	}
	if m.Count("BeginProgramChange") != 1 || m.Count("EndProgramChange") != 1 {
		t.Error("begin/end not paired")
	}
	if got := m.Params(); !reflect.DeepEqual(got, []float32{0.9, 0, 0.7, 0.6}) {
		t.Errorf("params = %v", got)
	}
}

func TestLoadChunkFailureStillEnds(t *testing.T) {
	m := plugintest.Stereo(testID, plugin.CapProgramChunks)
	m.Errors = map[string]error{"SetChunk": errors.New("rejected")}
	doc, _ := SaveProgram(m)

	if _, err := LoadProgram(m, doc); err == nil {
		t.Fatal("expected error")
	}
	if m.Count("EndProgramChange") != 1 {
		t.Error("EndProgramChange not called after failed SetChunk")
	}
}

func TestBankChunkPresetFlag(t *testing.T) {
	m := plugintest.Stereo(testID, plugin.CapProgramChunks)
	m.SetState([]byte("bank"), "")

	doc, err := SaveBank(m)
	if err != nil {
		t.Fatalf("SaveBank failed: %v", err)
	}
	if doc.FxMagic != MagicBankChunk || doc.Extension() != ".fxb" {
		t.Fatalf("unexpected document %+v", doc)
	}

	if _, err := LoadProgram(m, doc); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	report, err := LoadBank(m, doc)
	if err != nil {
		t.Fatalf("LoadBank failed: %v", err)
	}
	if report.IsPreset {
		t.Error("LoadBank handed bank chunk over as preset")
	}

	calls := m.SetChunks()
	if len(calls) != 2 || !calls[0].IsPreset || calls[1].IsPreset {
		t.Errorf("SetChunk calls = %+v", calls)
	}
}

func TestSaveBankRequiresChunks(t *testing.T) {
	if _, err := SaveBank(plugintest.Stereo(testID)); !errors.Is(err, ErrBankUnsupported) {
		t.Errorf("SaveBank = %v, want ErrBankUnsupported", err)
	}
}
