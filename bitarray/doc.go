// Package bitarray provides fixed-capacity packed bit storage.
//
// A BitArray of n logical bits is backed by 8*ceil(n/64) bytes. Bit i lives in
// byte
//
//	p = 8*(i/64) + (7 - (i/8)%8)
//
// under mask 1<<(i%8). Within every 8-byte group the byte order is reversed
// relative to naive sequential addressing, so reading a group as a big-endian
// uint64 yields a word whose bit j is logical bit 64*(i/64)+j. That word is
// exactly what the binary codec writes, which lets a bulk word conversion and
// a bit-by-bit packer produce identical streams.
//
//	+--------+--------+-----+--------+
//	| byte 0 | byte 1 | ... | byte 7 |   one 64-bit group, big-endian
//	| 63..56 | 55..48 |     |  7..0  |   logical bits held (within the group)
//	+--------+--------+-----+--------+
//
// Bits are only ever set during normal operation. There is no Clear for a
// single bit; ClearFrom exists to trim decoded images to a declared length.
//
// A BitArray is not safe for concurrent mutation.
package bitarray
