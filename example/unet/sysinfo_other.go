//go:build !linux

package main

// SI is empty outside linux; leak figures read 0.
type SI struct {
	TotalRam uint64
	FreeRam  uint64
}

// CPUInfo returns zero values.
func CPUInfo() *SI {
	return &SI{}
}
