// Package manifest describes stored filter snapshots.
//
// A Manifest records everything needed to rebuild a filter from its image:
// the hash function names, the derived parameters, the envelope compression
// and the CRC32C of the raw image. Manifests are encoded with a Codec (JSON,
// go-json or CBOR) and are self-describing: the codec name precedes the
// payload, so readers never need to be told which codec was used.
package manifest
