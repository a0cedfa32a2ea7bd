package attack

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/toramanemre/wifimitm/pkg/model"
	"github.com/toramanemre/wifimitm/pkg/proc"
	"github.com/toramanemre/wifimitm/pkg/scan"
)

// FlagDetectedHandshake is set once when the capture first reports a WPA
// handshake; the handshake is then extracted into its own capture file.
const FlagDetectedHandshake = "detected_handshake"

const effectExtractHandshake = "extract_handshake"

// csvPollStep paces the wait for airodump-ng's first CSV write.
const csvPollStep = time.Second

// Capture records the target network's traffic with airodump-ng, watching
// for key material as it appears: the per-network keystream (.xor) file, the
// growing packet capture consumed by the cracker, and WPA handshakes.
//
// airodump-ng writes its text interface to stderr; stdout is expected to stay
// silent and any stdout line is reported as anomalous.
type Capture struct {
	*proc.Supervised

	iface  model.WirelessInterface
	ap     *model.WirelessAccessPoint
	logger *slog.Logger

	handshakePath string
}

// NewCapture creates an unstarted capture process for the target network.
func NewCapture(iface model.WirelessInterface, ap *model.WirelessAccessPoint, grace time.Duration, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Capture{iface: iface, ap: ap, logger: logger}
	c.Supervised = proc.NewSupervised(proc.Config{
		Kind:           "capture",
		SilentStdout:   true,
		Stderr:         c.stderrTable(),
		Flags:          []string{FlagDetectedHandshake},
		TerminateGrace: grace,
		Logger:         logger,
	})
	return c
}

func (c *Capture) stderrTable() proc.Table {
	return proc.Table{
		Rules: []proc.Rule{
			{
				// Only the first handshake report triggers extraction.
				Substr: "WPA handshake:",
				When: func(u *proc.Update) bool {
					return !u.Flags[FlagDetectedHandshake] && !c.Flag(FlagDetectedHandshake)
				},
				Apply: func(_ []string, u *proc.Update) {
					u.SetFlag(FlagDetectedHandshake)
					u.AddEffect(effectExtractHandshake, "")
				},
			},
		},
	}
}

// Start spawns airodump-ng locked to the target's BSSID and channel, writing
// CSV and pcap output into the capture's private directory.
func (c *Capture) Start() error {
	argv := []string{
		"airodump-ng",
		"--bssid", c.ap.BSSID,
		"--channel", c.ap.Channel,
		"-w", "capture",
		"--output-format", "csv,pcap",
		"--write-interval", "5",
		"--update", "5",
		"-a",
		c.iface.Name,
	}
	c.handshakePath = ""
	return c.Supervised.Start(argv, "")
}

// CSVPath returns the path of the capture's scan CSV.
func (c *Capture) CSVPath() string {
	return filepath.Join(c.Dir(), "capture-01.csv")
}

// CapPath returns the path of the growing packet capture file.
func (c *Capture) CapPath() string {
	return filepath.Join(c.Dir(), "capture-01.cap")
}

// XorPath returns the path where airodump-ng saves the target's keystream.
func (c *Capture) XorPath() string {
	return filepath.Join(c.Dir(), "capture-01-"+strings.ReplaceAll(c.ap.BSSID, ":", "-")+".xor")
}

// HasKeystream reports whether a keystream file has appeared for the target.
func (c *Capture) HasKeystream() bool {
	_, err := os.Stat(c.XorPath())
	return err == nil
}

// HandshakePath returns the extracted WPA handshake capture, or empty when
// none has been extracted yet.
func (c *Capture) HandshakePath() string {
	return c.handshakePath
}

// Update runs one classification pass and, once a handshake has been
// detected, attempts extraction until it succeeds. Extraction failures are
// reported and retried on later updates; the flag stays set.
func (c *Capture) Update() proc.Update {
	u := c.Supervised.Update()
	if c.Flag(FlagDetectedHandshake) && c.handshakePath == "" {
		if err := c.extractHandshake(); err != nil {
			c.logger.Warn("handshake extraction failed", "error", err)
		}
	}
	return u
}

// extractHandshake isolates the authentication exchange into its own capture
// file with wpaclean.
func (c *Capture) extractHandshake() error {
	capPath := c.CapPath()
	if _, err := os.Stat(capPath); err != nil {
		return &ExtractionError{Source: capPath, Err: err}
	}
	out := filepath.Join(c.Dir(), "WPA_handshake.cap")
	cmd := exec.Command("wpaclean", out, capPath)
	if err := cmd.Run(); err != nil {
		return &ExtractionError{Source: capPath, Err: err}
	}
	c.handshakePath = out
	c.logger.Debug("WPA handshake extracted", "path", out)
	return nil
}

// Results waits for the capture CSV to appear and parses it into access
// points with their associated stations. The wait is paced and cancellable.
func (c *Capture) Results(ctx context.Context) ([]*model.WirelessAccessPoint, error) {
	for {
		if _, err := os.Stat(c.CSVPath()); err == nil {
			break
		}
		c.logger.Debug("waiting for capture CSV", "path", c.CSVPath())
		if err := sleep(ctx, csvPollStep); err != nil {
			return nil, err
		}
	}
	f, err := os.Open(c.CSVPath())
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return scan.ParseCSV(f)
}

// IVSum returns the number of distinct initialization vectors the capture
// has seen for the target so far. Diagnostic only; zero when unknown.
func (c *Capture) IVSum(ctx context.Context) int {
	aps, err := c.Results(ctx)
	if err != nil || len(aps) == 0 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(aps[0].IVs))
	if err != nil {
		return 0
	}
	return n
}

// Clean stops the capture if needed and releases resources, including any
// extracted handshake file inside the private directory.
func (c *Capture) Clean() {
	c.Supervised.Clean()
	c.handshakePath = ""
}
