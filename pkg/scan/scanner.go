package scan

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/toramanemre/wifimitm/pkg/model"
	"github.com/toramanemre/wifimitm/pkg/proc"
)

// Scanner discovers nearby networks with a short airodump-ng run.
type Scanner struct {
	iface  model.WirelessInterface
	logger *slog.Logger
}

// NewScanner creates a scanner for an interface in monitor mode.
func NewScanner(iface model.WirelessInterface, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{iface: iface, logger: logger}
}

// ScanOnce scans for the given duration and returns the networks seen,
// stations attached. The airodump-ng child is terminated and its temporary
// output removed before returning.
func (s *Scanner) ScanOnce(ctx context.Context, d time.Duration) ([]*model.WirelessAccessPoint, error) {
	h := proc.NewHandle("scan", s.logger)
	argv := []string{
		"airodump-ng",
		"-w", "scan",
		"--output-format", "csv",
		"--write-interval", "2",
		"-a",
		s.iface.Name,
	}
	if err := h.Start(argv, ""); err != nil {
		return nil, err
	}
	defer h.Release()
	defer h.Terminate(time.Second)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}

	csvPath := filepath.Join(h.Dir(), "scan-01.csv")
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s.logger.Debug("scan finished", "csv", csvPath)
	return ParseCSV(f)
}
