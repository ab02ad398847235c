package ingest

import "hash/crc32"

// HardwareIDOffset keeps derived ids clear of hand-assigned low ids
const HardwareIDOffset = 1000

// HardwareID derives the numeric sensor id from a device id: IEEE CRC-32 of
// the UTF-8 bytes, masked to 31 bits, plus HardwareIDOffset. Rows ingested
// earlier were keyed this way, so the derivation must stay bit-exact.
//
// Distinct device ids can collide and would then share one sensor row.
func HardwareID(deviceID string) int64 {
	return HardwareIDOffset + int64(crc32.ChecksumIEEE([]byte(deviceID))&0x7FFFFFFF)
}
