// Package persistence stores filter images in checksummed, optionally
// compressed envelopes and writes them to disk atomically.
//
// Envelope layout (big-endian):
//
//	[4]byte magic "BLFE"
//	uint8   envelope version (1)
//	uint8   compression (0 none, 1 LZ4, 2 zstd)
//	uint32  raw image length
//	uint32  payload length
//	uint32  CRC32C of the raw image
//	payload
//
// The raw image is the filter's own binary stream, so an envelope can always
// be unwrapped into bytes any reader of that stream understands.
package persistence
