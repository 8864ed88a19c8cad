package envelope

import (
	"encoding/binary"
	"fmt"

	"quietwire/internal/domain"
)

// Version is the only wire version this build understands. Mismatch is a
// hard error; there is no downgrade path.
const Version = 1

// Flag bits. Bits 1..7 are reserved and must be zero.
const (
	flagInitial = 1 << 0
	flagsKnown  = flagInitial
)

// Field sizes.
const (
	tagSize           = 16
	regularHeaderSize = 32 + 4 + 4
	initialExtraSize  = 32 + 32 + 4 + 4
	initialHeaderSize = initialExtraSize + regularHeaderSize
	minEnvelopeSize   = 1 + 1 + 2 + regularHeaderSize + 4 + tagSize
)

// maxCipherLen caps the ciphertext length accepted from the wire.
const maxCipherLen = 1 << 26 // 64 MiB

// Handshake carries the X3DH parameters of an initial message. The
// ephemeral key is distinct from the header's ratchet key field even though
// the two coincide on the first message; the initial flag disambiguates
// parsing.
type Handshake struct {
	IdentityKey     domain.X25519Public
	EphemeralKey    domain.X25519Public
	SignedPreKeyID  uint32
	OneTimePreKeyID uint32 // domain.NoOneTimeID when absent
}

// Header is sent alongside every ciphertext. Handshake is nil on regular
// messages.
type Header struct {
	DHPub     domain.X25519Public
	PN        uint32
	N         uint32
	Handshake *Handshake
}

// Envelope is one parsed wire message. Ciphertext excludes the tag.
type Envelope struct {
	Header     Header
	Ciphertext []byte
	Tag        [16]byte
}

// headerBytes serializes just the header portion.
func (h Header) headerBytes() []byte {
	size := regularHeaderSize
	if h.Handshake != nil {
		size = initialHeaderSize
	}
	buf := make([]byte, 0, size)
	if hs := h.Handshake; hs != nil {
		buf = append(buf, hs.IdentityKey[:]...)
		buf = append(buf, hs.EphemeralKey[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, hs.SignedPreKeyID)
		buf = binary.LittleEndian.AppendUint32(buf, hs.OneTimePreKeyID)
	}
	buf = append(buf, h.DHPub[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, h.PN)
	buf = binary.LittleEndian.AppendUint32(buf, h.N)
	return buf
}

func (h Header) flags() byte {
	if h.Handshake != nil {
		return flagInitial
	}
	return 0
}

// AssociatedData builds the AEAD associated data for this header:
// version ‖ flags ‖ serialized header ‖ per-message context secret.
func (h Header) AssociatedData(ctxSecret [32]byte) []byte {
	hdr := h.headerBytes()
	ad := make([]byte, 0, 2+len(hdr)+len(ctxSecret))
	ad = append(ad, Version, h.flags())
	ad = append(ad, hdr...)
	ad = append(ad, ctxSecret[:]...)
	return ad
}

// Marshal serializes the envelope to its binary wire form.
func (e *Envelope) Marshal() []byte {
	hdr := e.Header.headerBytes()
	buf := make([]byte, 0, 1+1+2+len(hdr)+4+len(e.Ciphertext)+tagSize)
	buf = append(buf, Version, e.Header.flags())
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(hdr)))
	buf = append(buf, hdr...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Ciphertext)))
	buf = append(buf, e.Ciphertext...)
	buf = append(buf, e.Tag[:]...)
	return buf
}

// Parse decodes a wire envelope. The version byte is checked first; any
// structural mismatch afterwards is domain.ErrMalformed. Parse only checks
// shape — authenticity is established when the tag verifies.
func Parse(raw []byte) (*Envelope, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("%w: empty envelope", domain.ErrMalformed)
	}
	if raw[0] != Version {
		return nil, fmt.Errorf("%w: version %d", domain.ErrUnsupportedVersion, raw[0])
	}
	if len(raw) < minEnvelopeSize {
		return nil, fmt.Errorf("%w: envelope truncated", domain.ErrMalformed)
	}
	flags := raw[1]
	if flags&^flagsKnown != 0 {
		return nil, fmt.Errorf("%w: reserved flag bits set", domain.ErrMalformed)
	}
	initial := flags&flagInitial != 0

	headerLen := int(binary.LittleEndian.Uint16(raw[2:4]))
	wantLen := regularHeaderSize
	if initial {
		wantLen = initialHeaderSize
	}
	if headerLen != wantLen {
		return nil, fmt.Errorf("%w: header length %d", domain.ErrMalformed, headerLen)
	}
	rest := raw[4:]
	if len(rest) < headerLen+4+tagSize {
		return nil, fmt.Errorf("%w: envelope truncated", domain.ErrMalformed)
	}

	hdr := rest[:headerLen]
	var out Envelope
	if initial {
		hs := &Handshake{}
		copy(hs.IdentityKey[:], hdr[0:32])
		copy(hs.EphemeralKey[:], hdr[32:64])
		hs.SignedPreKeyID = binary.LittleEndian.Uint32(hdr[64:68])
		hs.OneTimePreKeyID = binary.LittleEndian.Uint32(hdr[68:72])
		out.Header.Handshake = hs
		hdr = hdr[initialExtraSize:]
	}
	copy(out.Header.DHPub[:], hdr[0:32])
	out.Header.PN = binary.LittleEndian.Uint32(hdr[32:36])
	out.Header.N = binary.LittleEndian.Uint32(hdr[36:40])

	rest = rest[headerLen:]
	cipherLen := binary.LittleEndian.Uint32(rest[0:4])
	if cipherLen > maxCipherLen {
		return nil, fmt.Errorf("%w: ciphertext length %d", domain.ErrMalformed, cipherLen)
	}
	rest = rest[4:]
	if len(rest) != int(cipherLen)+tagSize {
		return nil, fmt.Errorf("%w: ciphertext length %d", domain.ErrMalformed, cipherLen)
	}
	out.Ciphertext = append([]byte(nil), rest[:cipherLen]...)
	copy(out.Tag[:], rest[cipherLen:])
	return &out, nil
}

// Sealed returns ciphertext ‖ tag as a single slice, the form AEAD open
// expects.
func (e *Envelope) Sealed() []byte {
	out := make([]byte, 0, len(e.Ciphertext)+tagSize)
	out = append(out, e.Ciphertext...)
	out = append(out, e.Tag[:]...)
	return out
}

// FromSealed splits an AEAD seal output (ciphertext ‖ tag) into the
// envelope's ciphertext and tag fields.
func (e *Envelope) FromSealed(sealed []byte) {
	n := len(sealed) - tagSize
	e.Ciphertext = append([]byte(nil), sealed[:n]...)
	copy(e.Tag[:], sealed[n:])
}
