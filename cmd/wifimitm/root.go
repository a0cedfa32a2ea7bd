package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/toramanemre/wifimitm/pkg/attack"
	"github.com/toramanemre/wifimitm/pkg/config"
	"github.com/toramanemre/wifimitm/pkg/model"
	"github.com/toramanemre/wifimitm/pkg/scan"
)

const scanDuration = 6 * time.Second

func NewRootCmd() *cobra.Command {
	var (
		force      bool
		timeout    time.Duration
		configPath string
		logLevel   string
	)

	root := &cobra.Command{
		Use:   "wifimitm <essid> <interface>",
		Short: "Automated key-recovery attack on WEP secured WiFi networks",
		Long: "wifimitm scans for the target network and runs an automated WEP key-recovery\n" +
			"attack against it using the aircrack-ng suite. The interface must already be\n" +
			"in monitor mode. Use only against networks you are authorized to test.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return &argumentError{msg: "expected exactly two arguments: <essid> <interface>"}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(logLevel); err != nil {
				return err
			}
			if err := checkRequirements(); err != nil {
				return err
			}

			iface, err := model.InterfaceByName(args[1])
			if err != nil {
				return &argumentError{msg: fmt.Sprintf("%s is not a usable interface: %v", args[1], err)}
			}

			timing := config.Default()
			if configPath != "" {
				timing, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}
			if timeout > 0 {
				timing.Deadline = timeout
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			return run(ctx, iface, args[0], timing, force)
		},
	}

	root.Flags().BoolVarP(&force, "force", "f", false, "attack even if the network was already cracked")
	root.Flags().DurationVar(&timeout, "timeout", 0, "overall attack deadline (overrides config)")
	root.Flags().StringVar(&configPath, "config", "", "YAML timing profile")
	root.Flags().StringVar(&logLevel, "logging-level", "disabled", "debug, info, warning, error or disabled")

	return root
}

func run(ctx context.Context, iface model.WirelessInterface, essid string, timing config.Timing, force bool) error {
	fmt.Printf("scanning on %s...\n", iface.Name)
	scanner := scan.NewScanner(iface, slog.Default())
	aps, err := scanner.ScanOnce(ctx, scanDuration)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	printScanTable(aps)

	var target *model.WirelessAccessPoint
	for _, ap := range aps {
		if ap.ESSID == essid {
			target = ap
			break
		}
	}
	if target == nil {
		return &attack.TargetNotFoundError{ESSID: essid}
	}
	color.Green("target found: %s (%s), channel %s, %s", target.ESSID, target.BSSID, target.Channel, target.Encryption)

	if !strings.Contains(target.Encryption, "WEP") {
		return fmt.Errorf("network %s uses %s; only WEP networks are supported", target.ESSID, target.Encryption)
	}

	attacker := attack.NewWepAttacker(iface, target, timing, slog.Default())
	if err := attacker.Start(ctx, force); err != nil {
		return err
	}
	if target.Cracked() {
		color.Green("key recovered, saved to %s", target.PSKPath)
	}
	return nil
}

func setupLogging(level string) error {
	var lvl slog.Level
	switch level {
	case "disabled":
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return nil
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return &argumentError{msg: fmt.Sprintf("unknown logging level %q", level)}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}
