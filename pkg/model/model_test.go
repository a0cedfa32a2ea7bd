package model

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCracked(t *testing.T) {
	ap := &WirelessAccessPoint{BSSID: "AA:BB:CC:DD:EE:FF"}
	if ap.Cracked() {
		t.Fatalf("fresh access point reported cracked")
	}
	ap.PSKPath = "/tmp/psk.hex"
	if !ap.Cracked() {
		t.Fatalf("access point with saved key not reported cracked")
	}
}

func TestAddAssociatedStation(t *testing.T) {
	ap := &WirelessAccessPoint{BSSID: "AA:BB:CC:DD:EE:FF"}
	st := &WirelessStation{MAC: "66:77:88:99:AA:BB"}
	ap.AddAssociatedStation(st)
	if len(ap.Stations) != 1 || ap.Stations[0] != st {
		t.Fatalf("station not recorded")
	}
	if st.AssociatedAP != ap {
		t.Fatalf("station back reference not set")
	}
}

func TestSaveArtifactsCopiesSource(t *testing.T) {
	ap := &WirelessAccessPoint{BSSID: "AA:BB:CC:DD:EE:FF"}
	ap.SetArtifactDir(t.TempDir())

	src := filepath.Join(t.TempDir(), "source.xor")
	if err := os.WriteFile(src, []byte("prga"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := ap.SaveKeystream(src); err != nil {
		t.Fatalf("SaveKeystream failed: %v", err)
	}
	if ap.KeystreamPath == src {
		t.Fatalf("keystream path points at the source instead of a copy")
	}

	// The copy must survive removal of the source.
	if err := os.Remove(src); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	data, err := os.ReadFile(ap.KeystreamPath)
	if err != nil {
		t.Fatalf("reading persisted keystream failed: %v", err)
	}
	if string(data) != "prga" {
		t.Fatalf("unexpected persisted content: %q", data)
	}
}

func TestSaveMissingSource(t *testing.T) {
	ap := &WirelessAccessPoint{BSSID: "AA:BB:CC:DD:EE:FF"}
	ap.SetArtifactDir(t.TempDir())
	if err := ap.SaveKey(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing source file")
	}
	if ap.Cracked() {
		t.Fatalf("access point reported cracked after failed save")
	}
}

func TestSaveCreatesArtifactDir(t *testing.T) {
	ap := &WirelessAccessPoint{BSSID: "AA:BB:CC:DD:EE:FF"}
	dir := filepath.Join(t.TempDir(), "artifacts", "nested")
	ap.SetArtifactDir(dir)

	src := filepath.Join(t.TempDir(), "arp.cap")
	if err := os.WriteFile(src, []byte("frames"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := ap.SaveArpCapture(src); err != nil {
		t.Fatalf("SaveArpCapture failed: %v", err)
	}
	if filepath.Dir(ap.ArpCapPath) != dir {
		t.Fatalf("capture persisted outside the artifact dir: %q", ap.ArpCapPath)
	}
}
