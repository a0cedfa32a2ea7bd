package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/rodaine/table"

	"github.com/toramanemre/wifimitm/pkg/model"
)

func printScanTable(aps []*model.WirelessAccessPoint) {
	if len(aps) == 0 {
		fmt.Println("no networks found")
		return
	}

	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	crackedFmt := color.New(color.FgYellow).SprintfFunc()

	tbl := table.New("BSSID", "CH", "PWR", "ENC", "CIPHER", "AUTH", "IVS", "ESSID", "STATIONS")
	tbl.WithHeaderFormatter(headerFmt)
	for _, ap := range aps {
		essid := ap.ESSID
		if ap.Cracked() {
			essid = crackedFmt("%s (cracked)", essid)
		}
		tbl.AddRow(ap.BSSID, ap.Channel, ap.Power, ap.Encryption, ap.Cipher,
			ap.Authentication, ap.IVs, essid, len(ap.Stations))
	}
	tbl.Print()
}
