package bloomfilter

// HashPair holds the two base hash codes of a key.
//
// A pair computed once with Filter.HashOf can be reused with AddHash and
// ContainsHash, for example to update several filters that share hash
// functions.
type HashPair struct {
	First  int32
	Second int32
}

// Hash combines both codes into one value, wrapping on overflow.
func (p HashPair) Hash() int32 {
	return 31*(31+p.First) + p.Second
}
