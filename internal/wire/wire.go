package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version   byte = 1
	kindEntry byte = 1
)

var (
	ErrCorrupt = errors.New("rendercache: corrupt entry")
	magic4     = [...]byte{'R', 'C', 'E', 'N'}
)

// TagVersion is a tag and the invalidation counter observed when the entry was written.
type TagVersion struct {
	Tag     string
	Version uint64
}

// Record is the decoded form of a stored entry.
type Record struct {
	CreatedAt int64 // unix nanoseconds
	MaxAge    int64 // seconds; -1 = permanent
	Tags      []TagVersion
	Contexts  []string
	Payload   []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// EncodeEntry frames r as
//
//	magic(4) | ver(1) | kind(1) | createdAt(i64 be) | maxAge(i64 be)
//	nTags(u16 be) | { tagLen(u16 be) | tag | version(u64 be) } * nTags
//	nCtx(u16 be)  | { ctxLen(u16 be) | ctx } * nCtx
//	vlen(u32 be)  | payload(vlen)
func EncodeEntry(r Record) ([]byte, error) {
	if len(r.Tags) > 0xFFFF || len(r.Contexts) > 0xFFFF {
		return nil, fmt.Errorf("rendercache: too many tags or contexts (%d/%d)", len(r.Tags), len(r.Contexts))
	}
	total := 4 + 1 + 1 + 8 + 8 + 2 + 2 + 4 + len(r.Payload)
	for _, t := range r.Tags {
		if l := len(t.Tag); l == 0 || l > 0xFFFF {
			return nil, fmt.Errorf("rendercache: invalid tag length %d", l)
		}
		total += 2 + len(t.Tag) + 8
	}
	for _, c := range r.Contexts {
		if l := len(c); l == 0 || l > 0xFFFF {
			return nil, fmt.Errorf("rendercache: invalid context length %d", l)
		}
		total += 2 + len(c)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(r.CreatedAt))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(r.MaxAge))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(r.Tags)))
	buf.Write(u2[:])
	for _, t := range r.Tags {
		binary.BigEndian.PutUint16(u2[:], uint16(len(t.Tag)))
		buf.Write(u2[:])
		buf.WriteString(t.Tag)
		binary.BigEndian.PutUint64(u8[:], t.Version)
		buf.Write(u8[:])
	}

	binary.BigEndian.PutUint16(u2[:], uint16(len(r.Contexts)))
	buf.Write(u2[:])
	for _, c := range r.Contexts {
		binary.BigEndian.PutUint16(u2[:], uint16(len(c)))
		buf.Write(u2[:])
		buf.WriteString(c)
	}

	binary.BigEndian.PutUint32(u4[:], uint32(len(r.Payload)))
	buf.Write(u4[:])
	buf.Write(r.Payload)
	return buf.Bytes(), nil
}

// DecodeEntry parses a frame produced by EncodeEntry. Any framing problem,
// including trailing bytes, is reported as ErrCorrupt.
func DecodeEntry(b []byte) (Record, error) {
	const hdr = 4 + 1 + 1 + 8 + 8 + 2
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Record{}, ErrCorrupt
	}
	d := decoder{b: b, off: 6}

	var r Record
	r.CreatedAt = int64(d.u64())
	r.MaxAge = int64(d.u64())

	nTags := int(d.u16())
	if d.err == nil && nTags > 0 {
		// each tag needs at least 2+1+8 bytes; avoids trusting a bogus count
		if nTags > (len(b)-d.off)/11 {
			return Record{}, ErrCorrupt
		}
		r.Tags = make([]TagVersion, 0, nTags)
	}
	for i := 0; i < nTags && d.err == nil; i++ {
		tag := d.str()
		ver := d.u64()
		r.Tags = append(r.Tags, TagVersion{Tag: tag, Version: ver})
	}

	nCtx := int(d.u16())
	if d.err == nil && nCtx > 0 {
		if nCtx > (len(b)-d.off)/3 {
			return Record{}, ErrCorrupt
		}
		r.Contexts = make([]string, 0, nCtx)
	}
	for i := 0; i < nCtx && d.err == nil; i++ {
		r.Contexts = append(r.Contexts, d.str())
	}

	vlen := int(d.u32())
	if d.err != nil || vlen < 0 || vlen != len(b)-d.off { // strict: no trailing bytes
		return Record{}, ErrCorrupt
	}
	// providers may hand out their stored slice; never alias it
	r.Payload = append([]byte(nil), b[d.off:d.off+vlen]...)
	return r, nil
}

type decoder struct {
	b   []byte
	off int
	err error
}

func (d *decoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	if n > len(d.b)-d.off {
		d.err = ErrCorrupt
		return false
	}
	return true
}

func (d *decoder) u16() uint16 {
	if !d.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(d.b[d.off:])
	d.off += 2
	return v
}

func (d *decoder) u32() uint32 {
	if !d.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(d.b[d.off:])
	d.off += 4
	return v
}

func (d *decoder) u64() uint64 {
	if !d.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(d.b[d.off:])
	d.off += 8
	return v
}

func (d *decoder) str() string {
	n := int(d.u16())
	if d.err != nil {
		return ""
	}
	if n == 0 {
		d.err = ErrCorrupt
		return ""
	}
	if !d.need(n) {
		return ""
	}
	s := string(d.b[d.off : d.off+n])
	d.off += n
	return s
}
