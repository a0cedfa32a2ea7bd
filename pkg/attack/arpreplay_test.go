package attack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toramanemre/wifimitm/pkg/proc"
)

func TestArpReplaySuccessLine(t *testing.T) {
	var u proc.Update
	arpReplayTable().Classify(
		"Read 120 packets (got 40 ARP requests and 38 ACKs), sent 4000 packets...(512 pps)", &u)

	assert.Equal(t, proc.StateOK, u.State)
	assert.Equal(t, map[string]int{
		StatRead: 120,
		StatARPs: 40,
		StatACKs: 38,
		StatSent: 4000,
		StatPPS:  512,
	}, u.Stats)
	assert.Equal(t, []proc.Effect{{Name: effectPersistCap}}, u.Effects)
}

func TestArpReplayWaitingLines(t *testing.T) {
	var u proc.Update
	arpReplayTable().Classify(
		"23:51:10  Waiting for beacon frame (BSSID: AA:BB:CC:DD:EE:FF) on channel 6", &u)
	assert.Equal(t, proc.StateWaitingForBeacon, u.State)

	arpReplayTable().Classify(
		"Read 45 packets (got 0 ARP requests and 0 ACKs), sent 0 packets...(0 pps)", &u)
	assert.Equal(t, proc.StateWaitingForArp, u.State)
	assert.Empty(t, u.Stats)
}

func TestArpReplayDeauthNotice(t *testing.T) {
	var u proc.Update
	arpReplayTable().Classify(
		"Notice: got a deauth/disassoc packet. Is the source MAC associated ?", &u)
	assert.True(t, u.Flags[FlagDeauthenticated])
}

func TestArpReplayMalformedLineWritesNothing(t *testing.T) {
	var u proc.Update
	arpReplayTable().Classify(
		"Read many packets (got 40 ARP requests and 38 ACKs), sent 4000 packets...(512 pps)", &u)
	assert.Equal(t, proc.StateNew, u.State)
	assert.Empty(t, u.Stats)
	assert.Empty(t, u.Effects)
}

func TestArpReplayCapFileLine(t *testing.T) {
	var u proc.Update
	arpReplayTable().Classify("Saving ARP requests in replay_arp-0509-114204.cap", &u)
	assert.Equal(t, []proc.Effect{{Name: effectRememberCap, Value: "replay_arp-0509-114204.cap"}}, u.Effects)
}

func TestArpReplayPersistsCaptureOnce(t *testing.T) {
	ap := testAP()
	ap.SetArtifactDir(t.TempDir())
	a := NewArpReplay(testInterface(), ap, 0, testLogger())

	src := filepath.Join(t.TempDir(), "replay_arp-0509-114204.cap")
	require.NoError(t, os.WriteFile(src, []byte("arp frames"), 0o600))

	var u proc.Update
	u.AddEffect(effectRememberCap, src)
	u.AddEffect(effectPersistCap, "")
	a.handleEffects(u)

	require.NotEmpty(t, ap.ArpCapPath)
	data, err := os.ReadFile(ap.ArpCapPath)
	require.NoError(t, err)
	assert.Equal(t, "arp frames", string(data))

	// A later persist request must not overwrite the saved capture.
	saved := ap.ArpCapPath
	other := filepath.Join(t.TempDir(), "replay_arp-9999-000000.cap")
	require.NoError(t, os.WriteFile(other, []byte("newer frames"), 0o600))

	var u2 proc.Update
	u2.AddEffect(effectRememberCap, other)
	u2.AddEffect(effectPersistCap, "")
	a.handleEffects(u2)

	assert.Equal(t, saved, ap.ArpCapPath)
	data, err = os.ReadFile(ap.ArpCapPath)
	require.NoError(t, err)
	assert.Equal(t, "arp frames", string(data))
}

func TestArpReplayPersistWithoutRememberedCapture(t *testing.T) {
	ap := testAP()
	ap.SetArtifactDir(t.TempDir())
	a := NewArpReplay(testInterface(), ap, 0, testLogger())

	var u proc.Update
	u.AddEffect(effectPersistCap, "")
	a.handleEffects(u)

	assert.Empty(t, ap.ArpCapPath)
}
