// Package stored implements Stored, the type-erased persistence primitive
// the rest of the tree builds on: serialize any value, write it through a
// bucket, and hand back a handle that knows how to get it back. It has no
// knowledge of what T actually is -- callers must know the type they asked
// to have stored, the same way the upstream Rust source's Stored<T> did.
package stored

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chunkdrive/chunkdrive"
)

// Stored is an opaque (bucket, descriptor) handle whose payload, when
// deserialized, is a value of type T. It is itself the "bucket handle" the
// data model describes: stable, serializable, and safe to embed inside any
// other serialized structure (a Directory's children, an IndirectBlock's
// StoredBlock tail, and so on).
type Stored[T any] struct {
	Bucket     string              `msgpack:"b"`
	Descriptor chunkdrive.Descriptor `msgpack:"d"`
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("msgpack")
	enc.UseArrayEncodedStructs(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("msgpack")
	return dec.Decode(v)
}

// Create serializes value with MessagePack, picks a random bucket large
// enough to hold it (Global.NextBucket), mints a descriptor, and writes it.
func Create[T any](ctx context.Context, global *chunkdrive.Global, value T) (Stored[T], error) {
	data, err := marshal(value)
	if err != nil {
		return Stored[T]{}, chunkdrive.NewError(chunkdrive.KindShape, "stored.create", err)
	}

	name, ok := global.NextBucket(len(data), nil)
	if !ok {
		return Stored[T]{}, chunkdrive.NewError(chunkdrive.KindExhaustion, "stored.create", nil)
	}
	bucket, _ := global.GetBucket(name)

	descriptor, err := bucket.Create(ctx)
	if err != nil {
		return Stored[T]{}, err
	}
	if err := bucket.Put(ctx, descriptor, data); err != nil {
		_ = bucket.Delete(ctx, descriptor)
		return Stored[T]{}, err
	}
	return Stored[T]{Bucket: name, Descriptor: descriptor}, nil
}

// Get fetches and deserializes the payload as T.
func (s Stored[T]) Get(ctx context.Context, global *chunkdrive.Global) (T, error) {
	var zero T
	bucket, ok := global.GetBucket(s.Bucket)
	if !ok {
		return zero, chunkdrive.NewError(chunkdrive.KindNotFound, "stored.get", nil)
	}
	data, err := bucket.Get(ctx, s.Descriptor)
	if err != nil {
		return zero, err
	}
	var out T
	if err := unmarshal(data, &out); err != nil {
		return zero, chunkdrive.NewError(chunkdrive.KindShape, "stored.get", err)
	}
	return out, nil
}

// Put re-serializes value and writes it in place under the same
// (bucket, descriptor) pair.
func (s Stored[T]) Put(ctx context.Context, global *chunkdrive.Global, value T) error {
	bucket, ok := global.GetBucket(s.Bucket)
	if !ok {
		return chunkdrive.NewError(chunkdrive.KindNotFound, "stored.put", nil)
	}
	data, err := marshal(value)
	if err != nil {
		return chunkdrive.NewError(chunkdrive.KindShape, "stored.put", err)
	}
	return bucket.Put(ctx, s.Descriptor, data)
}

// Delete removes the underlying blob.
func (s Stored[T]) Delete(ctx context.Context, global *chunkdrive.Global) error {
	bucket, ok := global.GetBucket(s.Bucket)
	if !ok {
		return chunkdrive.NewError(chunkdrive.KindNotFound, "stored.delete", nil)
	}
	return bucket.Delete(ctx, s.Descriptor)
}

// AsURL renders the handle as the percent-encoded "{bucket}${descriptor_hex}"
// form the external HTTP front-end uses to reference stored objects. $
// never appears literally in either encoded part.
func (s Stored[T]) AsURL() string {
	return percentEncode(s.Bucket) + "$" + percentEncode(hexEncode(s.Descriptor))
}

// FromURL parses the two percent-encoded parts of a Stored URL, as already
// split by the caller (the external front-end owns splitting the raw path
// on "$"; this package only undoes the percent-encoding and hex-decoding).
func FromURL[T any](bucketPart, descriptorPart string) (Stored[T], error) {
	bucket, err := url.PathUnescape(bucketPart)
	if err != nil {
		return Stored[T]{}, chunkdrive.NewError(chunkdrive.KindUsage, "stored.from_url", err)
	}
	descHex, err := url.PathUnescape(descriptorPart)
	if err != nil {
		return Stored[T]{}, chunkdrive.NewError(chunkdrive.KindUsage, "stored.from_url", err)
	}
	descriptor, err := hexDecode(descHex)
	if err != nil {
		return Stored[T]{}, chunkdrive.NewError(chunkdrive.KindUsage, "stored.from_url", err)
	}
	return Stored[T]{Bucket: bucket, Descriptor: descriptor}, nil
}

// ParseURL splits a full "{bucket}${descriptor_hex}" string and parses it. The
// separator is unambiguous because percentEncode re-escapes any literal $
// that might otherwise appear inside the bucket or descriptor parts.
func ParseURL[T any](raw string) (Stored[T], error) {
	parts := strings.SplitN(raw, "$", 2)
	if len(parts) != 2 {
		return Stored[T]{}, chunkdrive.NewError(chunkdrive.KindUsage, "stored.parse_url", nil)
	}
	return FromURL[T](parts[0], parts[1])
}

const hexAlphabet = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexAlphabet[c>>4]
		out[i*2+1] = hexAlphabet[c&0x0f]
	}
	return string(out)
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, chunkdrive.NewError(chunkdrive.KindUsage, "stored.hex_decode", nil)
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := hexNibble(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, chunkdrive.NewError(chunkdrive.KindUsage, "stored.hex_nibble", nil)
	}
}

// percentEncode escapes every byte outside [A-Za-z0-9._~-] as %XX, and
// always escapes '$' even though it's already outside that set -- spelled
// out because it's the one byte that must never appear literally in the
// output.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) && c != '$' {
			b.WriteByte(c)
		} else {
			b.WriteByte('%')
			b.WriteByte(hexAlphabet[c>>4])
			b.WriteByte(hexAlphabet[c&0x0f])
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	default:
		return false
	}
}
