package networking

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"smfsp/networking/ptype"
)

// Magic opens every packet
var Magic = []byte("SMFSP001")

const (
	MagicLength    = 8
	TypeLength     = 4
	HeaderLength   = MagicLength + TypeLength
	HashTypeLength = 4
	SHA256Length   = sha256.Size
)

// HashType selects the checksum trailer
type HashType uint32

const (
	HashNone   HashType = 0
	HashSHA256 HashType = 256
)

var (
	// ErrMalformedPacket covers truncated or inconsistent packets
	ErrMalformedPacket = errors.New("malformed packet")
	// ErrChecksumMismatch means the trailer does not match the packet content
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrUnknownPacketType is always reported together with ErrMalformedPacket
	ErrUnknownPacketType = errors.New("unknown packet type")
)

// Packet is a decoded datagram. Only the field matching Type is set.
type Packet struct {
	Type      ptype.Type
	Hash      HashType
	Catalogue Catalogue
	Offer     *ChunkOffer
	Request   *ChunkListRequest
}

func (p *Packet) String() string {
	switch {
	case p.Catalogue != nil:
		return fmt.Sprintf("%s %v", p.Type.Name(), p.Catalogue)
	case p.Offer != nil:
		return fmt.Sprintf("%s %s", p.Type.Name(), p.Offer)
	case p.Request != nil:
		return fmt.Sprintf("%s %s", p.Type.Name(), p.Request)
	}
	return p.Type.Name()
}

// Encode concatenates magic, type, payload and the checksum trailer
func Encode(t ptype.Type, payload []byte, hash HashType) ([]byte, error) {
	if len(t) != TypeLength {
		return nil, fmt.Errorf("packet type %q must be %d bytes", string(t), TypeLength)
	}

	buf := make([]byte, 0, HeaderLength+len(payload)+HashTypeLength+SHA256Length)
	buf = append(buf, Magic...)
	buf = append(buf, string(t)...)
	buf = append(buf, payload...)
	body := len(buf)
	buf = binary.BigEndian.AppendUint32(buf, uint32(hash))

	switch hash {
	case HashNone:
	case HashSHA256:
		sum := sha256.Sum256(buf[:body])
		buf = append(buf, sum[:]...)
	default:
		return nil, fmt.Errorf("unsupported hash type %d", hash)
	}
	return buf, nil
}

// Decode parses and validates a datagram
func Decode(b []byte) (*Packet, error) {
	pkt, err := decode(b)
	// A structurally broken packet carrying a SHA-256 trailer that does not
	// match was damaged in transit.
	if err != nil && errors.Is(err, ErrMalformedPacket) && trailerMismatch(b) {
		return nil, fmt.Errorf("%w (%v)", ErrChecksumMismatch, err)
	}
	return pkt, err
}

func decode(b []byte) (*Packet, error) {
	if len(b) < HeaderLength {
		return nil, malformed("buffer too short: %d bytes", len(b))
	}
	if !bytes.Equal(b[:MagicLength], Magic) {
		return nil, malformed("magic mismatch")
	}

	pkt := &Packet{Type: ptype.Type(b[MagicLength:HeaderLength])}
	if !pkt.Type.Known() {
		return nil, fmt.Errorf("%w: %w %q", ErrMalformedPacket, ErrUnknownPacketType, string(pkt.Type))
	}
	offset := HeaderLength
	var err error

	switch pkt.Type {
	case ptype.SHLO:
		pkt.Catalogue, offset, err = extractCatalogue(b, offset)
	case ptype.CHLO:
		// No payload.
	case ptype.OFER:
		pkt.Offer, offset, err = extractChunk(b, offset)
	case ptype.ZFER:
		pkt.Offer, offset, err = extractCompressedChunk(b, offset)
	case ptype.CREQ:
		pkt.Request, offset, err = extractRequest(b, offset)
	}
	if err != nil {
		return nil, err
	}

	pkt.Hash, err = verifyChecksum(b, offset)
	if err != nil {
		return nil, err
	}
	return pkt, nil
}

// verifyChecksum checks the trailer that starts right after the payload
func verifyChecksum(b []byte, offset int) (HashType, error) {
	if len(b)-offset < HashTypeLength {
		return 0, malformed("no space for hash type")
	}
	hash := HashType(binary.BigEndian.Uint32(b[offset:]))
	trailer := b[offset+HashTypeLength:]

	switch hash {
	case HashNone:
		if len(trailer) != 0 {
			return 0, malformed("%d trailing bytes", len(trailer))
		}
	case HashSHA256:
		if len(trailer) != SHA256Length {
			return 0, malformed("no space for hash content")
		}
		sum := sha256.Sum256(b[:offset])
		if !bytes.Equal(sum[:], trailer) {
			return 0, ErrChecksumMismatch
		}
	default:
		return 0, malformed("unknown hash type %d", hash)
	}
	return hash, nil
}

// trailerMismatch reports whether b ends in a damaged SHA-256 trailer: either
// the hash does not match the body, or the hash matches but the hash type
// tag in front of it is no longer SHA-256.
func trailerMismatch(b []byte) bool {
	n := len(b)
	if n < HeaderLength+HashTypeLength+SHA256Length {
		return false
	}
	body := n - SHA256Length - HashTypeLength
	sum := sha256.Sum256(b[:body])
	intact := bytes.Equal(sum[:], b[n-SHA256Length:])
	if HashType(binary.BigEndian.Uint32(b[body:])) != HashSHA256 {
		return intact
	}
	return !intact
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedPacket, fmt.Sprintf(format, args...))
}
