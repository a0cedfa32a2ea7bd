// Package config holds the tunable attack timing profile. The delays are
// empirical, tuned against specific aircrack-ng versions, so they are
// configuration rather than constants; the defaults match the values the
// attack was originally tuned with.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Timing is the attack timing and retry profile. Zero fields are replaced by
// their defaults when loaded.
type Timing struct {
	// TerminateGrace is the wait between the graceful stop signal and the
	// forced kill of a supervised process.
	TerminateGrace time.Duration `yaml:"terminate_grace"`
	// StartSettle is the pause after starting fake authentication before its
	// output is first polled.
	StartSettle time.Duration `yaml:"start_settle"`
	// AuthPollInterval paces the fake authentication wait loop.
	AuthPollInterval time.Duration `yaml:"auth_poll_interval"`
	// FakeAuthBackoff is the pause before restarting fake authentication
	// after a deauthentication was received.
	FakeAuthBackoff time.Duration `yaml:"fakeauth_backoff"`
	// ReplaySettle is the pause after starting ARP replay so the capture can
	// register the replay stream.
	ReplaySettle time.Duration `yaml:"replay_settle"`
	// PollInterval paces the cracking wait loop.
	PollInterval time.Duration `yaml:"poll_interval"`
	// DeauthInterval is the pause between deauthentication bursts while
	// waiting for a keystream to be disclosed.
	DeauthInterval time.Duration `yaml:"deauth_interval"`
	// DeauthCount is the number of deauthentication series per burst.
	DeauthCount int `yaml:"deauth_count"`
	// DeauthRounds bounds the keystream acquisition loop: the number of full
	// passes over the associated stations before giving up.
	DeauthRounds int `yaml:"deauth_rounds"`
	// Deadline bounds the whole attack; zero means no overall deadline
	// beyond the caller's context.
	Deadline time.Duration `yaml:"deadline"`
}

// Default returns the timing profile the attack was tuned with.
func Default() Timing {
	return Timing{
		TerminateGrace:   time.Second,
		StartSettle:      time.Second,
		AuthPollInterval: time.Second,
		FakeAuthBackoff:  5 * time.Second,
		ReplaySettle:     6 * time.Second,
		PollInterval:     5 * time.Second,
		DeauthInterval:   2 * time.Second,
		DeauthCount:      10,
		DeauthRounds:     10,
		Deadline:         30 * time.Minute,
	}
}

// Load reads a YAML timing profile, filling unset fields with defaults.
func Load(path string) (Timing, error) {
	t := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("load timing config: %w", err)
	}
	var override Timing
	if err := yaml.Unmarshal(data, &override); err != nil {
		return t, fmt.Errorf("parse timing config %s: %w", path, err)
	}
	t.merge(override)
	return t, nil
}

func (t *Timing) merge(o Timing) {
	if o.TerminateGrace > 0 {
		t.TerminateGrace = o.TerminateGrace
	}
	if o.StartSettle > 0 {
		t.StartSettle = o.StartSettle
	}
	if o.AuthPollInterval > 0 {
		t.AuthPollInterval = o.AuthPollInterval
	}
	if o.FakeAuthBackoff > 0 {
		t.FakeAuthBackoff = o.FakeAuthBackoff
	}
	if o.ReplaySettle > 0 {
		t.ReplaySettle = o.ReplaySettle
	}
	if o.PollInterval > 0 {
		t.PollInterval = o.PollInterval
	}
	if o.DeauthInterval > 0 {
		t.DeauthInterval = o.DeauthInterval
	}
	if o.DeauthCount > 0 {
		t.DeauthCount = o.DeauthCount
	}
	if o.DeauthRounds > 0 {
		t.DeauthRounds = o.DeauthRounds
	}
	if o.Deadline > 0 {
		t.Deadline = o.Deadline
	}
}
