package attack

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toramanemre/wifimitm/pkg/config"
	"github.com/toramanemre/wifimitm/pkg/model"
)

func TestNextAuthAction(t *testing.T) {
	tests := []struct {
		name            string
		needsKeystream  bool
		deauthenticated bool
		terminated      bool
		want            authAction
	}{
		{name: "idle", want: authWait},
		{name: "needs keystream", needsKeystream: true, want: authAcquireKeystream},
		{name: "deauthenticated", deauthenticated: true, want: authBackoffRestart},
		{name: "terminated without flags", terminated: true, want: authBackoffRestart},
		{name: "keystream wins over deauthentication", needsKeystream: true, deauthenticated: true, want: authAcquireKeystream},
		{name: "keystream wins over termination", needsKeystream: true, terminated: true, want: authAcquireKeystream},
		{name: "deauthenticated and terminated", deauthenticated: true, terminated: true, want: authBackoffRestart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextAuthAction(tt.needsKeystream, tt.deauthenticated, tt.terminated)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWepAttackerSkipsCrackedTarget(t *testing.T) {
	ap := testAP()
	ap.PSKPath = "/tmp/psk.hex"
	w := NewWepAttacker(testInterface(), ap, config.Default(), testLogger())

	// Nothing may be spawned for an already cracked target; the attack
	// tools are not installed here, so any spawn attempt would fail loudly.
	err := w.Start(context.Background(), false)
	assert.NoError(t, err)
}

type fakeKeystreamSource struct {
	aps       []*model.WirelessAccessPoint
	xorPath   string
	available func() bool
}

func (s *fakeKeystreamSource) Results(context.Context) ([]*model.WirelessAccessPoint, error) {
	return s.aps, nil
}

func (s *fakeKeystreamSource) HasKeystream() bool {
	return s.available()
}

func (s *fakeKeystreamSource) XorPath() string {
	return s.xorPath
}

func fastTiming() config.Timing {
	t := config.Default()
	t.DeauthInterval = time.Millisecond
	t.DeauthCount = 5
	t.DeauthRounds = 3
	return t
}

func TestAcquireKeystreamSavesAfterDeauthentication(t *testing.T) {
	ap := testAP()
	ap.SetArtifactDir(t.TempDir())
	st := &model.WirelessStation{MAC: "66:77:88:99:AA:BB"}
	ap.AddAssociatedStation(st)

	xor := filepath.Join(t.TempDir(), "capture-01-AA-BB-CC-DD-EE-FF.xor")
	require.NoError(t, os.WriteFile(xor, []byte("prga"), 0o600))

	w := NewWepAttacker(testInterface(), ap, fastTiming(), testLogger())
	var bursts int
	w.deauth = func(_ context.Context, _ model.WirelessInterface, target *model.WirelessStation, count int) error {
		bursts++
		assert.Equal(t, st.MAC, target.MAC)
		assert.Equal(t, 5, count)
		return nil
	}
	src := &fakeKeystreamSource{
		aps:       []*model.WirelessAccessPoint{ap},
		xorPath:   xor,
		available: func() bool { return bursts >= 2 },
	}

	require.NoError(t, w.acquireKeystream(context.Background(), src))
	assert.Equal(t, 2, bursts)
	require.NotEmpty(t, ap.KeystreamPath)
	data, err := os.ReadFile(ap.KeystreamPath)
	require.NoError(t, err)
	assert.Equal(t, "prga", string(data))
}

func TestAcquireKeystreamRetryLimit(t *testing.T) {
	ap := testAP()
	ap.AddAssociatedStation(&model.WirelessStation{MAC: "66:77:88:99:AA:BB"})

	w := NewWepAttacker(testInterface(), ap, fastTiming(), testLogger())
	var bursts int
	w.deauth = func(context.Context, model.WirelessInterface, *model.WirelessStation, int) error {
		bursts++
		return nil
	}
	src := &fakeKeystreamSource{
		aps:       []*model.WirelessAccessPoint{ap},
		available: func() bool { return false },
	}

	err := w.acquireKeystream(context.Background(), src)
	var retryErr *RetryLimitError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, 3, retryErr.Attempts)
	assert.Equal(t, 3, bursts)
	assert.Empty(t, ap.KeystreamPath)
}

func TestAcquireKeystreamCancelled(t *testing.T) {
	ap := testAP()
	w := NewWepAttacker(testInterface(), ap, fastTiming(), testLogger())
	w.deauth = func(context.Context, model.WirelessInterface, *model.WirelessStation, int) error {
		return nil
	}
	src := &fakeKeystreamSource{
		aps:       []*model.WirelessAccessPoint{ap},
		available: func() bool { return false },
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.acquireKeystream(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleepObservesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleepZeroDuration(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), 0))
}
