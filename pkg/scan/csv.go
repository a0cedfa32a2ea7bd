// Package scan parses airodump-ng CSV output into access point and station
// records and provides a one-shot wireless scanner built on the same
// supervised process plumbing as the attack itself.
package scan

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/toramanemre/wifimitm/pkg/model"
)

// Column counts distinguishing the two CSV sections airodump-ng writes.
const (
	apColumns      = 15
	stationColumns = 7
)

// ParseCSV converts airodump-ng CSV output into access points with their
// associated stations attached. The file carries two sections: access point
// rows first, then station rows referencing their access point by BSSID.
// Section headers, empty lines and rows of unexpected width are skipped.
func ParseCSV(r io.Reader) ([]*model.WirelessAccessPoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = false

	var result []*model.WirelessAccessPoint
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) < 2 || row[1] == " First time seen" {
			continue
		}
		switch len(row) {
		case apColumns:
			result = append(result, rowToAP(row))
		case stationColumns:
			st, bssid := rowToStation(row)
			for _, ap := range result {
				if ap.BSSID == bssid {
					ap.AddAssociatedStation(st)
					break
				}
			}
		}
	}
	return result, nil
}

func rowToAP(row []string) *model.WirelessAccessPoint {
	return &model.WirelessAccessPoint{
		BSSID:          strings.TrimSpace(row[0]),
		Channel:        strings.TrimSpace(row[3]),
		Encryption:     strings.TrimSpace(row[5]),
		Cipher:         strings.TrimSpace(row[6]),
		Authentication: strings.TrimSpace(row[7]),
		Power:          strings.TrimSpace(row[8]),
		IVs:            strings.TrimSpace(row[10]),
		ESSID:          strings.TrimSpace(row[13]),
	}
}

func rowToStation(row []string) (st *model.WirelessStation, apBSSID string) {
	st = &model.WirelessStation{
		MAC:   strings.TrimSpace(row[0]),
		Power: strings.TrimSpace(row[3]),
	}
	return st, strings.TrimSpace(row[5])
}
