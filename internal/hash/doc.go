// Package hash provides the CRC32-Castagnoli checksums used to verify
// object uploads.
//
// Go's hash/crc32 uses SSE4.2 or the ARM CRC extension for this
// polynomial when available, so the table is built once and shared.
package hash
