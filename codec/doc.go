// Package codec implements the versioned binary image format of a Bloom filter.
//
// Layout (all integers big-endian):
//
//	int32 versionOrLength
//	if versionOrLength < 0 (version 2, the only defined version):
//	    int32 hashFunctionCount
//	    int32 bitCount
//	    int32 meaningfulBitLength
//	    int64 words[ceil(meaningfulBitLength/64)]
//	else (legacy, header-less):
//	    int64 words[] until end of stream
//
// Word w holds logical bits 64w..64w+63 with the lowest index in the least
// significant bit. Two interchangeable strategies produce the words: the
// Accelerated strategy converts the bit array's storage in bulk, the Fallback
// strategy packs bit by bit and reverses each word. Their output is
// byte-identical.
package codec
