package ospfd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultFileConfigIsRunnable(t *testing.T) {
	cfg := DefaultFileConfig()
	if len(cfg.Interfaces) != 1 {
		t.Fatalf("got %d default interfaces, want 1", len(cfg.Interfaces))
	}
	if cfg.SpfHoldTime != DefaultSpfHoldTime {
		t.Errorf("SpfHoldTime = %d, want %d", cfg.SpfHoldTime, DefaultSpfHoldTime)
	}
	if cfg.Interfaces[0].Area != "0.0.0.0" {
		t.Errorf("default interface area = %q, want the backbone", cfg.Interfaces[0].Area)
	}
}

func TestLoadFileConfigWritesDefaultWhenMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadFileConfig()
	if err != nil {
		t.Fatalf("LoadFileConfig: %v", err)
	}
	if cfg.RouterID != "0.0.0.1" {
		t.Errorf("RouterID = %q, want the default", cfg.RouterID)
	}

	home, _ := os.UserHomeDir()
	if _, err := os.Stat(filepath.Join(home, ".ospfd", "config.json")); err != nil {
		t.Errorf("default config was not written to disk: %v", err)
	}
}

func TestLoadFileConfigReadsExistingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	home, _ := os.UserHomeDir()
	configDir := filepath.Join(home, ".ospfd")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	want := &FileConfig{RouterID: "10.0.0.9", SpfHoldTime: 7}
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := LoadFileConfig()
	if err != nil {
		t.Fatalf("LoadFileConfig: %v", err)
	}
	if got.RouterID != "10.0.0.9" || got.SpfHoldTime != 7 {
		t.Errorf("got %+v, want RouterID=10.0.0.9 SpfHoldTime=7", got)
	}
}

func TestSaveRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := DefaultFileConfig()
	cfg.RouterID = "192.168.1.1"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := LoadFileConfig()
	if err != nil {
		t.Fatalf("LoadFileConfig: %v", err)
	}
	if got.RouterID != "192.168.1.1" {
		t.Errorf("RouterID after round-trip = %q, want 192.168.1.1", got.RouterID)
	}
}

func validInterfaceFileEntry() InterfaceFileEntry {
	return InterfaceFileEntry{
		Name:               "eth0",
		Address:            "10.0.0.1",
		Mask:               "255.255.255.0",
		Area:               "0.0.0.0",
		NetworkType:        "broadcast",
		Cost:               10,
		HelloInterval:      10,
		RouterDeadInterval: 40,
		RetransmitInterval: 5,
		InfTransDelay:      1,
		Priority:           1,
	}
}

func TestToEngineConfigParsesValidInput(t *testing.T) {
	cfg := &FileConfig{
		RouterID:    "1.1.1.1",
		Interfaces:  []InterfaceFileEntry{validInterfaceFileEntry()},
		StubAreas:   []string{"0.0.0.1"},
		SpfHoldTime: 3,
	}
	ft := newFakeTransport()
	ec, err := cfg.ToEngineConfig(ft, nil)
	if err != nil {
		t.Fatalf("ToEngineConfig: %v", err)
	}
	if ec.RouterID != RouterID(0x01010101) {
		t.Errorf("RouterID = %#x, want 0x01010101", ec.RouterID)
	}
	if len(ec.Interfaces) != 1 || ec.Interfaces[0].NetworkType != NetworkBroadcast {
		t.Fatalf("interface not parsed correctly: %+v", ec.Interfaces)
	}
	if len(ec.StubAreas) != 1 || ec.StubAreas[0] != AreaID(1) {
		t.Errorf("stub areas = %v, want [1]", ec.StubAreas)
	}
	if ec.SpfHoldTime != 3*time.Second {
		t.Errorf("SpfHoldTime = %v, want 3s", ec.SpfHoldTime)
	}
}

func TestToEngineConfigDefaultsHoldTimeWhenUnset(t *testing.T) {
	cfg := &FileConfig{RouterID: "1.1.1.1", Interfaces: []InterfaceFileEntry{validInterfaceFileEntry()}}
	ec, err := cfg.ToEngineConfig(newFakeTransport(), nil)
	if err != nil {
		t.Fatalf("ToEngineConfig: %v", err)
	}
	if ec.SpfHoldTime != DefaultSpfHoldTime*time.Second {
		t.Errorf("SpfHoldTime = %v, want the default", ec.SpfHoldTime)
	}
}

func TestToEngineConfigRejectsInvalidRouterID(t *testing.T) {
	cfg := &FileConfig{RouterID: "not-an-ip"}
	if _, err := cfg.ToEngineConfig(newFakeTransport(), nil); err == nil {
		t.Fatal("expected an error for an invalid router ID")
	}
}

func TestToEngineConfigRejectsInvalidInterfaceAddress(t *testing.T) {
	e := validInterfaceFileEntry()
	e.Address = "garbage"
	cfg := &FileConfig{RouterID: "1.1.1.1", Interfaces: []InterfaceFileEntry{e}}
	if _, err := cfg.ToEngineConfig(newFakeTransport(), nil); err == nil {
		t.Fatal("expected an error for an invalid interface address")
	}
}

func TestToEngineConfigRejectsUnknownNetworkType(t *testing.T) {
	e := validInterfaceFileEntry()
	e.NetworkType = "carrier-pigeon"
	cfg := &FileConfig{RouterID: "1.1.1.1", Interfaces: []InterfaceFileEntry{e}}
	if _, err := cfg.ToEngineConfig(newFakeTransport(), nil); err == nil {
		t.Fatal("expected an error for an unknown network type")
	}
}

func TestToEngineConfigRejectsInvalidNBMANeighbor(t *testing.T) {
	e := validInterfaceFileEntry()
	e.NetworkType = "nbma"
	e.NBMANeighbors = []string{"not-an-ip"}
	cfg := &FileConfig{RouterID: "1.1.1.1", Interfaces: []InterfaceFileEntry{e}}
	if _, err := cfg.ToEngineConfig(newFakeTransport(), nil); err == nil {
		t.Fatal("expected an error for an invalid NBMA neighbor address")
	}
}

func TestToEngineConfigRejectsInvalidStubArea(t *testing.T) {
	cfg := &FileConfig{RouterID: "1.1.1.1", Interfaces: []InterfaceFileEntry{validInterfaceFileEntry()}, StubAreas: []string{"nope"}}
	if _, err := cfg.ToEngineConfig(newFakeTransport(), nil); err == nil {
		t.Fatal("expected an error for an invalid stub area")
	}
}
