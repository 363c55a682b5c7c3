package main

import (
	"golang.org/x/sys/windows/registry"

	"github.com/kramelec/imcsnap/snapshot"
)

// readBoard reads SystemManufacturer/SystemProductName out of the BIOS
// registry key -- the same place msinfo32 and most vendor tools get
// board identity from, and a read that needs no ring-0 access at all.
func readBoard() (snapshot.Board, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `HARDWARE\DESCRIPTION\System\BIOS`, registry.QUERY_VALUE)
	if err != nil {
		return snapshot.Board{}, err
	}
	defer k.Close()

	manufacturer, _, err := k.GetStringValue("SystemManufacturer")
	if err != nil {
		return snapshot.Board{}, err
	}

	product, _, err := k.GetStringValue("SystemProductName")
	if err != nil {
		return snapshot.Board{Manufacturer: manufacturer}, err
	}

	return snapshot.Board{Manufacturer: manufacturer, Product: product}, nil
}
