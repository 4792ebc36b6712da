package chunkdrive

import (
	"errors"
	"fmt"
)

// Kind categorizes the ways an operation against the core can fail, per the
// taxonomy of bucket/block/inode errors. It lets callers branch on what went
// wrong without parsing error strings.
type Kind int

const (
	// KindTransport means a Source's backend could not be reached.
	KindTransport Kind = iota
	// KindIntegrity means a retrieved blob's hash didn't match its block's hash.
	KindIntegrity
	// KindNotFound means a descriptor, bucket, or named child doesn't exist.
	KindNotFound
	// KindShape means bytes were retrieved but didn't deserialize as the
	// asserted type, or a block invariant was violated on load.
	KindShape
	// KindExhaustion means no bucket had enough max_size to accept a payload.
	KindExhaustion
	// KindUsage means the caller violated the contract (duplicate name,
	// empty data, mismatched put length, and so on).
	KindUsage
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindIntegrity:
		return "integrity"
	case KindNotFound:
		return "not-found"
	case KindShape:
		return "shape"
	case KindExhaustion:
		return "exhaustion"
	case KindUsage:
		return "usage"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by core operations. It wraps an
// underlying cause while tagging it with a Kind so callers can apply the
// propagation policy (retry on Transport, surface on Usage, etc.) without
// inspecting strings.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("chunkdrive: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("chunkdrive: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a *Error. op should name the operation that failed, e.g.
// "bucket.get" or "directory.add".
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// ErrNotFound is a sentinel a Source may return when a descriptor doesn't
// exist; the backends in package source report not-found as a *Error of
// KindNotFound instead. Bucket.Delete surfaces either one as an error; the
// block and inode layers discard delete errors.
var ErrNotFound = errors.New("chunkdrive: object not found")

// IsKind reports whether err is, or wraps, a *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
