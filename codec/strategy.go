package codec

import "fmt"

// Strategy selects how words are converted to and from a bit array.
type Strategy int

const (
	// Accelerated converts the whole backing store to words in one pass.
	Accelerated Strategy = iota
	// Fallback packs and unpacks bit by bit with per-word bit reversal.
	Fallback
)

func (s Strategy) String() string {
	switch s {
	case Accelerated:
		return "accelerated"
	case Fallback:
		return "fallback"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// LegacyMode controls how header-less streams are treated on decode.
type LegacyMode int

const (
	// LegacyLenient accepts header-less streams and treats end of stream as
	// the end of the word list. A trailing partial word is dropped.
	LegacyLenient LegacyMode = iota
	// LegacyReject fails header-less streams with ErrLegacyFormatRejected.
	LegacyReject
)

func (m LegacyMode) String() string {
	switch m {
	case LegacyLenient:
		return "lenient"
	case LegacyReject:
		return "reject"
	default:
		return fmt.Sprintf("LegacyMode(%d)", int(m))
	}
}
