package journal

import (
	"encoding/binary"
	"fmt"
)

// Kind identifies a journal record's on-disk tag byte.
type Kind byte

const (
	KindAdd              Kind = 0x00 // legacy v1 add, no expiry
	KindRemove           Kind = 0x01
	KindRemoveTentative  Kind = 0x02 // legacy tentative remove, no xid on disk
	KindSavedXid         Kind = 0x03
	KindUnremove         Kind = 0x04
	KindConfirmRemove    Kind = 0x05
	KindAddX             Kind = 0x06 // add with expiry
	KindRemoveTentativeX Kind = 0x07
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "Add"
	case KindRemove:
		return "Remove"
	case KindRemoveTentative:
		return "RemoveTentative"
	case KindSavedXid:
		return "SavedXid"
	case KindUnremove:
		return "Unremove"
	case KindConfirmRemove:
		return "ConfirmRemove"
	case KindAddX:
		return "AddX"
	case KindRemoveTentativeX:
		return "RemoveTentativeX"
	default:
		return fmt.Sprintf("Kind(0x%02x)", byte(k))
	}
}

// Record is a single decoded journal entry. Which fields are meaningful
// depends on Kind: Data/ExpiryMs for Add/AddX, Xid for the transaction
// and SavedXid records.
type Record struct {
	Kind     Kind
	Data     []byte
	ExpiryMs uint64
	Xid      uint32
}

// encode appends rec's on-disk representation — a little-endian u32
// frame length followed by the tag byte and its payload — to buf.
func encode(buf []byte, rec Record) []byte {
	var payload []byte
	switch rec.Kind {
	case KindAdd:
		payload = make([]byte, 4+len(rec.Data))
		binary.LittleEndian.PutUint32(payload[0:4], uint32(len(rec.Data)))
		copy(payload[4:], rec.Data)
	case KindAddX:
		payload = make([]byte, 12+len(rec.Data))
		binary.LittleEndian.PutUint32(payload[0:4], uint32(len(rec.Data)))
		binary.LittleEndian.PutUint64(payload[4:12], rec.ExpiryMs)
		copy(payload[12:], rec.Data)
	case KindRemove, KindRemoveTentative:
		// no payload
	case KindSavedXid, KindUnremove, KindConfirmRemove, KindRemoveTentativeX:
		payload = make([]byte, 4)
		binary.LittleEndian.PutUint32(payload, rec.Xid)
	default:
		panic(fmt.Sprintf("journal: encode: unknown record kind %s", rec.Kind))
	}

	frameLen := uint32(1 + len(payload))
	var head [4]byte
	binary.LittleEndian.PutUint32(head[:], frameLen)

	buf = append(buf, head[:]...)
	buf = append(buf, byte(rec.Kind))
	buf = append(buf, payload...)
	return buf
}

type corruptRecordError struct{ msg string }

func (e *corruptRecordError) Error() string { return "corrupt journal record: " + e.msg }

func errCorrupt(msg string) error { return &corruptRecordError{msg} }

type unknownTagError struct{ kind Kind }

func (e *unknownTagError) Error() string {
	return fmt.Sprintf("unknown journal record tag: %s", e.kind)
}

func decodePayload(kind Kind, payload []byte) (Record, error) {
	switch kind {
	case KindAdd:
		if len(payload) < 4 {
			return Record{}, errCorrupt("short Add payload")
		}
		n := binary.LittleEndian.Uint32(payload[0:4])
		if uint32(len(payload)-4) != n {
			return Record{}, errCorrupt("Add length mismatch")
		}
		return Record{Kind: kind, Data: append([]byte(nil), payload[4:]...)}, nil
	case KindAddX:
		if len(payload) < 12 {
			return Record{}, errCorrupt("short AddX payload")
		}
		n := binary.LittleEndian.Uint32(payload[0:4])
		expiry := binary.LittleEndian.Uint64(payload[4:12])
		if uint32(len(payload)-12) != n {
			return Record{}, errCorrupt("AddX length mismatch")
		}
		return Record{Kind: kind, ExpiryMs: expiry, Data: append([]byte(nil), payload[12:]...)}, nil
	case KindRemove, KindRemoveTentative:
		if len(payload) != 0 {
			return Record{}, errCorrupt("unexpected payload on fixed-size record")
		}
		return Record{Kind: kind}, nil
	case KindSavedXid, KindUnremove, KindConfirmRemove, KindRemoveTentativeX:
		if len(payload) != 4 {
			return Record{}, errCorrupt("short xid payload")
		}
		return Record{Kind: kind, Xid: binary.LittleEndian.Uint32(payload)}, nil
	default:
		return Record{}, &unknownTagError{kind}
	}
}
