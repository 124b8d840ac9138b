//go:build linux

package main

// helper to watch memory across forward passes

import (
	"syscall"
)

// SI is the part of linux sysinfo(2) the model check reports.
type SI struct {
	TotalRam uint64 // total usable main memory size [kB]
	FreeRam  uint64 // available memory size [kB]
}

// CPUInfo reads the linux sysinfo data structure.
//
// Ref. http://man7.org/linux/man-pages/man2/sysinfo.2.html
func CPUInfo() *SI {
	si := &syscall.Sysinfo_t{}
	if err := syscall.Sysinfo(si); err != nil {
		panic("syscall.Sysinfo: " + err.Error())
	}

	unit := uint64(si.Unit) * 1024 // kB
	return &SI{
		TotalRam: uint64(si.Totalram) / unit,
		FreeRam:  uint64(si.Freeram) / unit,
	}
}
