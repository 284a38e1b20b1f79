package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version   byte = 1
	kindEntry byte = 1

	hdrLen = 4 + 1 + 1 + 8 + 2
)

var (
	ErrCorrupt    = errors.New("edgekv: corrupt cache entry")
	ErrKeyTooLong = errors.New("edgekv: cache entry key too long")
	magic4        = [...]byte{'E', 'K', 'V', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry is a cached envelope. StorageKey is kept next to the payload so a
// reader can tell two keys apart that sanitise to the same cache key.
type Entry struct {
	ExpiresAt  int64 // epoch millis
	StorageKey string
	Payload    []byte
}

// Fresh reports whether the entry is still valid at nowMillis.
func (e Entry) Fresh(nowMillis int64) bool { return nowMillis < e.ExpiresAt }

// EncodeEntry:
//
//	magic(4) | ver(1) | kind(1) | expiresAt(i64 be) | klen(u16 be) | key(klen) | vlen(u32 be) | payload(vlen)
func EncodeEntry(e Entry) ([]byte, error) {
	if len(e.StorageKey) > 0xFFFF {
		return nil, ErrKeyTooLong
	}

	var buf bytes.Buffer
	buf.Grow(hdrLen + len(e.StorageKey) + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(e.ExpiresAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.StorageKey)))
	buf.Write(u2[:])
	buf.WriteString(e.StorageKey)

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)

	return buf.Bytes(), nil
}

// DecodeEntry parses b. The returned Payload aliases b.
func DecodeEntry(b []byte) (Entry, error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Entry{}, ErrCorrupt
	}

	off := 6
	exp := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	klen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if klen > len(b)-off {
		return Entry{}, ErrCorrupt
	}
	key := string(b[off : off+klen])
	off += klen

	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // exact: trailing bytes are corruption
		return Entry{}, ErrCorrupt
	}

	return Entry{ExpiresAt: exp, StorageKey: key, Payload: b[off : off+vlen]}, nil
}
