package port

// SessionStore keeps per-session values. Implementations must not serialize
// operations on unrelated keys behind one lock.
type SessionStore[V any] interface {
	Get(id string) (V, bool)

	Put(id string, v V)

	Delete(id string)

	// DeleteIf removes id only if match accepts the value stored at the
	// moment of removal, and reports whether it did.
	DeleteIf(id string, match func(v V) bool) bool

	Len() int

	// Range calls fn for every stored value until fn returns false.
	Range(fn func(id string, v V) bool)
}
