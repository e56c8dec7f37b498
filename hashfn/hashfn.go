package hashfn

// HashFunction maps a key to a 32-bit signed hash code.
// Implementations must be deterministic and safe for concurrent use.
type HashFunction[T any] interface {
	HashCode(key T) int32
	Name() string
}

// Func adapts a plain function to HashFunction.
type Func[T any] struct {
	name string
	fn   func(T) int32
}

// New returns a HashFunction named name that delegates to fn.
func New[T any](name string, fn func(T) int32) *Func[T] {
	return &Func[T]{name: name, fn: fn}
}

// HashCode implements HashFunction.
func (f *Func[T]) HashCode(key T) int32 { return f.fn(key) }

// Name implements HashFunction.
func (f *Func[T]) Name() string { return f.name }

// Names of the built-in string functions.
const (
	NameJavaString = "java-string"
	NameFNV32a     = "fnv32a"
	NameMurmur3    = "murmur3"
	NameXXH3       = "xxh3"
	NameCRC32C     = "crc32c"
)

// ByName returns the built-in string hash function with the given name.
func ByName(name string) (HashFunction[string], bool) {
	switch name {
	case NameJavaString:
		return JavaString{}, true
	case NameFNV32a:
		return FNV32a{}, true
	case NameMurmur3:
		return Murmur3{}, true
	case NameXXH3:
		return XXH3{}, true
	case NameCRC32C:
		return CRC32C{}, true
	default:
		return nil, false
	}
}

// Names lists the built-in string hash functions in a stable order.
func Names() []string {
	return []string{NameJavaString, NameFNV32a, NameMurmur3, NameXXH3, NameCRC32C}
}
