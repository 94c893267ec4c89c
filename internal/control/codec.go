package control

import (
	"encoding/binary"

	"github.com/raibid-labs/scarab/internal/scarab/errs"
)

// encoder builds a payload with a fixed, deterministic binary encoding:
// no floating point, no map iteration order — every multi-valued field
// is length-prefixed and written in a fixed field order per type. This
// satisfies the control channel's requirement that the codec be
// "deterministic and total" (spec.md §4.5).
type encoder struct {
	buf []byte
}

func (e *encoder) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) u16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) u8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) bytes(v []byte) {
	e.u32(uint32(len(v)))
	e.buf = append(e.buf, v...)
}

func (e *encoder) str(v string) {
	e.bytes([]byte(v))
}

func (e *encoder) strSlice(v []string) {
	e.u32(uint32(len(v)))
	for _, s := range v {
		e.str(s)
	}
}

// strMap writes entries sorted by key so the encoding is deterministic
// regardless of Go's randomized map iteration order.
func (e *encoder) strMap(v map[string]string) {
	keys := sortedKeys(v)
	e.u32(uint32(len(keys)))
	for _, k := range keys {
		e.str(k)
		e.str(v[k])
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// insertion sort: these maps are env vars, at most a few dozen
	// entries, not worth importing sort for one call site's worth of use.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// decoder reads a payload built by encoder, failing closed (a
// KindProtocol error) on any truncation rather than panicking on a
// short or malformed buffer.
type decoder struct {
	buf []byte
	off int
}

func newDecoder(payload []byte) *decoder {
	return &decoder{buf: payload}
}

func (d *decoder) need(n int) error {
	if d.off+n > len(d.buf) {
		return errs.New(errs.KindProtocol, "truncated payload")
	}
	return nil
}

func (d *decoder) u32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) u16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(d.buf[d.off:])
	d.off += 2
	return v, nil
}

func (d *decoder) u8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.off]
	d.off++
	return v, nil
}

func (d *decoder) bytes() ([]byte, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	v := make([]byte, n)
	copy(v, d.buf[d.off:d.off+int(n)])
	d.off += int(n)
	return v, nil
}

func (d *decoder) str() (string, error) {
	b, err := d.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) strSlice() ([]string, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := d.str()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) strMap() (map[string]string, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := d.str()
		if err != nil {
			return nil, err
		}
		v, err := d.str()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
