// Package model holds the wireless network entities shared by the scanner,
// the attack processes and the CLI: access points, their associated stations
// and the local wireless interface used for the attack.
package model

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// WirelessInterface is a local interface expected to be in monitor mode.
type WirelessInterface struct {
	Name string
	MAC  string
}

// InterfaceByName resolves a system network interface into a WirelessInterface,
// capturing its hardware address for use as the attacker MAC.
func InterfaceByName(name string) (WirelessInterface, error) {
	ifc, err := net.InterfaceByName(name)
	if err != nil {
		return WirelessInterface{}, fmt.Errorf("interface %s: %w", name, err)
	}
	return WirelessInterface{Name: ifc.Name, MAC: ifc.HardwareAddr.String()}, nil
}

// WirelessStation is a client associated with an access point. The back
// reference to its access point is non-owning.
type WirelessStation struct {
	MAC          string
	Power        string
	AssociatedAP *WirelessAccessPoint
}

// WirelessAccessPoint is a scanned access point together with the attack
// artifacts recovered for it so far. Artifact paths are empty until the
// corresponding Save method has persisted a file.
type WirelessAccessPoint struct {
	BSSID          string
	ESSID          string
	Power          string
	Channel        string
	Encryption     string
	Cipher         string
	Authentication string
	IVs            string

	// Persisted attack artifacts for this network.
	KeystreamPath string
	ArpCapPath    string
	PSKPath       string

	Stations []*WirelessStation

	artifactDir string
}

// Cracked reports whether a key has been recovered and persisted for this
// network.
func (ap *WirelessAccessPoint) Cracked() bool {
	return ap.PSKPath != ""
}

// AddAssociatedStation records a station seen associated with this access
// point and sets its back reference.
func (ap *WirelessAccessPoint) AddAssociatedStation(st *WirelessStation) {
	st.AssociatedAP = ap
	ap.Stations = append(ap.Stations, st)
}

// SetArtifactDir sets the directory used to persist recovered files for this
// network. When unset, a temporary directory is created on first save.
func (ap *WirelessAccessPoint) SetArtifactDir(dir string) {
	ap.artifactDir = dir
}

// SaveKeystream persists a recovered keystream (PRGA XOR) file for this
// network. The source file is copied, the capture side may delete it later.
func (ap *WirelessAccessPoint) SaveKeystream(src string) error {
	dst, err := ap.persist(src, "keystream.xor")
	if err != nil {
		return err
	}
	ap.KeystreamPath = dst
	return nil
}

// SaveArpCapture persists a captured ARP request file reusable by later
// replay attacks against this network.
func (ap *WirelessAccessPoint) SaveArpCapture(src string) error {
	dst, err := ap.persist(src, "arp.cap")
	if err != nil {
		return err
	}
	ap.ArpCapPath = dst
	return nil
}

// SaveKey persists the recovered key file. After a successful save the access
// point reports Cracked.
func (ap *WirelessAccessPoint) SaveKey(src string) error {
	dst, err := ap.persist(src, "psk.hex")
	if err != nil {
		return err
	}
	ap.PSKPath = dst
	return nil
}

func (ap *WirelessAccessPoint) persist(src, name string) (string, error) {
	if ap.artifactDir == "" {
		dir, err := os.MkdirTemp("", "wifimitm-"+strings.ReplaceAll(ap.BSSID, ":", "-")+"-")
		if err != nil {
			return "", fmt.Errorf("artifact dir: %w", err)
		}
		ap.artifactDir = dir
	} else if err := os.MkdirAll(ap.artifactDir, 0o700); err != nil {
		return "", fmt.Errorf("artifact dir: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("persist %s: %w", name, err)
	}
	defer in.Close()

	dst := filepath.Join(ap.artifactDir, name)
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("persist %s: %w", name, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("persist %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("persist %s: %w", name, err)
	}
	return dst, nil
}

func (ap *WirelessAccessPoint) String() string {
	return fmt.Sprintf("<AP essid=%s bssid=%s channel=%s encryption=%s cracked=%t>",
		ap.ESSID, ap.BSSID, ap.Channel, ap.Encryption, ap.Cracked())
}
