// Package mmap provides read-only memory-mapped file access.
//
// Stored filter images are read once, front to back. Mapping them avoids
// copying a possibly large bit array through an intermediate buffer before
// the codec decodes it.
//
//	m, err := mmap.Open("users.bloom")
//	if err != nil { ... }
//	defer m.Close()
//	data := m.Bytes()
//
// On Unix the file is mapped with mmap(2). Other platforms fall back to
// reading the whole file into memory behind the same API.
package mmap
