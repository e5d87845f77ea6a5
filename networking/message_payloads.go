package networking

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"smfsp/constants"
	"smfsp/fileio"
)

// CatalogueEntry is a file a server offers
type CatalogueEntry struct {
	Name string
	Size uint64
}

// Catalogue is the content of a server hello
type Catalogue []CatalogueEntry

// ChunkOffer is the content of OFER and ZFER packets
type ChunkOffer struct {
	Name      string
	TotalSize uint64
	Offset    uint64
	Size      uint64
	Last      bool
	Data      []byte
}

func (o *ChunkOffer) String() string {
	return fmt.Sprintf("{name:%s size:%d offset:%d chunk:%d last:%t}", o.Name, o.TotalSize, o.Offset, o.Size, o.Last)
}

// ChunkListRequest is the content of a CREQ packet
type ChunkListRequest struct {
	Name         string
	ExpectedSize uint64
	Indices      []uint32
}

func (r *ChunkListRequest) String() string {
	return fmt.Sprintf("{name:%s size:%d chunks:%v}", r.Name, r.ExpectedSize, r.Indices)
}

// Fixed size fields following the file name in a chunk offer.
const offerFieldsLength = 8 + 8 + 8 + 1

// appendShortString appends a 1-byte length prefixed UTF-8 string
func appendShortString(buf []byte, s string) ([]byte, error) {
	if len(s) == 0 || len(s) > 255 {
		return nil, fmt.Errorf("string length %d outside validity range (0,256)", len(s))
	}
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("string %q is not valid UTF-8", s)
	}
	buf = append(buf, byte(len(s)))
	return append(buf, s...), nil
}

// Payload serializes the catalogue as a server hello payload
func (c Catalogue) Payload() ([]byte, error) {
	if len(c) == 0 || len(c) > 255 {
		return nil, fmt.Errorf("catalogue length %d outside validity range (0,256)", len(c))
	}
	buf := []byte{byte(len(c))}
	var err error
	for _, entry := range c {
		if buf, err = appendShortString(buf, entry.Name); err != nil {
			return nil, err
		}
		buf = binary.BigEndian.AppendUint64(buf, entry.Size)
	}
	return buf, nil
}

func (o *ChunkOffer) header() ([]byte, error) {
	if o.Size != uint64(len(o.Data)) {
		return nil, fmt.Errorf("chunk size %d does not match %d data bytes", o.Size, len(o.Data))
	}
	buf, err := appendShortString(make([]byte, 0, 1+len(o.Name)+offerFieldsLength+len(o.Data)), o.Name)
	if err != nil {
		return nil, err
	}
	buf = binary.BigEndian.AppendUint64(buf, o.TotalSize)
	buf = binary.BigEndian.AppendUint64(buf, o.Offset)
	buf = binary.BigEndian.AppendUint64(buf, o.Size)
	if o.Last {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf, nil
}

// Payload serializes the offer as an OFER payload
func (o *ChunkOffer) Payload() ([]byte, error) {
	buf, err := o.header()
	if err != nil {
		return nil, err
	}
	return append(buf, o.Data...), nil
}

// CompressedPayload serializes the offer as a ZFER payload carrying an LZ4 block
func (o *ChunkOffer) CompressedPayload(block []byte) ([]byte, error) {
	buf, err := o.header()
	if err != nil {
		return nil, err
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(block)))
	return append(buf, block...), nil
}

// Payload serializes the request as a CREQ payload
func (r *ChunkListRequest) Payload() ([]byte, error) {
	if len(r.Indices) == 0 || len(r.Indices) > 255 {
		return nil, fmt.Errorf("chunk count %d outside validity range (0,256)", len(r.Indices))
	}
	buf, err := appendShortString(make([]byte, 0, 1+len(r.Name)+8+1+4*len(r.Indices)), r.Name)
	if err != nil {
		return nil, err
	}
	buf = binary.BigEndian.AppendUint64(buf, r.ExpectedSize)
	buf = append(buf, byte(len(r.Indices)))
	for _, idx := range r.Indices {
		buf = binary.BigEndian.AppendUint32(buf, idx)
	}
	return buf, nil
}

// extractShortString reads a 1-byte length prefixed UTF-8 string at offset
func extractShortString(b []byte, offset int) (string, int, error) {
	if len(b)-offset < 1 {
		return "", offset, malformed("missing string length")
	}
	strlen := int(b[offset])
	offset++
	if len(b)-offset < strlen {
		return "", offset, malformed("missing string content")
	}
	raw := b[offset : offset+strlen]
	if !utf8.Valid(raw) {
		return "", offset, malformed("string is not valid UTF-8")
	}
	return string(raw), offset + strlen, nil
}

// extractCatalogue parses a server hello payload
func extractCatalogue(b []byte, offset int) (Catalogue, int, error) {
	if len(b)-offset < 1 {
		return nil, offset, malformed("missing catalogue length")
	}
	count := int(b[offset])
	if count == 0 {
		return nil, offset, malformed("empty catalogue")
	}
	offset++

	catalogue := make(Catalogue, 0, count)
	for i := 0; i < count; i++ {
		name, next, err := extractShortString(b, offset)
		if err != nil {
			return nil, offset, err
		}
		if len(b)-next < 8 {
			return nil, offset, malformed("missing size of %q", name)
		}
		catalogue = append(catalogue, CatalogueEntry{Name: name, Size: binary.BigEndian.Uint64(b[next:])})
		offset = next + 8
	}
	return catalogue, offset, nil
}

// extractOfferHeader parses everything of an offer up to the chunk data
func extractOfferHeader(b []byte, offset int) (*ChunkOffer, int, error) {
	name, offset, err := extractShortString(b, offset)
	if err != nil {
		return nil, offset, err
	}
	if len(b)-offset < offerFieldsLength {
		return nil, offset, malformed("missing chunk header")
	}
	offer := &ChunkOffer{
		Name:      name,
		TotalSize: binary.BigEndian.Uint64(b[offset:]),
		Offset:    binary.BigEndian.Uint64(b[offset+8:]),
		Size:      binary.BigEndian.Uint64(b[offset+16:]),
		Last:      b[offset+24] != 0,
	}
	return offer, offset + offerFieldsLength, nil
}

// extractChunk parses an OFER payload
func extractChunk(b []byte, offset int) (*ChunkOffer, int, error) {
	offer, offset, err := extractOfferHeader(b, offset)
	if err != nil {
		return nil, offset, err
	}
	if uint64(len(b)-offset) < offer.Size {
		return nil, offset, malformed("missing chunk content")
	}
	end := offset + int(offer.Size)
	offer.Data = b[offset:end:end]
	return offer, end, nil
}

// extractCompressedChunk parses a ZFER payload and inflates the chunk data
func extractCompressedChunk(b []byte, offset int) (*ChunkOffer, int, error) {
	offer, offset, err := extractOfferHeader(b, offset)
	if err != nil {
		return nil, offset, err
	}
	if offer.Size > constants.MAX_DECOMPRESSED_CHUNK {
		return nil, offset, malformed("compressed chunk of %d bytes too large", offer.Size)
	}
	if len(b)-offset < 4 {
		return nil, offset, malformed("missing compressed length")
	}
	blockLen := int(binary.BigEndian.Uint32(b[offset:]))
	offset += 4
	if len(b)-offset < blockLen {
		return nil, offset, malformed("missing compressed content")
	}
	end := offset + blockLen
	data, err := fileio.DecompressChunk(b[offset:end], int(offer.Size))
	if err != nil {
		return nil, offset, malformed("%v", err)
	}
	offer.Data = data
	return offer, end, nil
}

// extractRequest parses a CREQ payload
func extractRequest(b []byte, offset int) (*ChunkListRequest, int, error) {
	name, offset, err := extractShortString(b, offset)
	if err != nil {
		return nil, offset, err
	}
	if len(b)-offset < 8+1 {
		return nil, offset, malformed("missing request header")
	}
	req := &ChunkListRequest{Name: name, ExpectedSize: binary.BigEndian.Uint64(b[offset:])}
	count := int(b[offset+8])
	offset += 9
	if len(b)-offset < 4*count {
		return nil, offset, malformed("missing chunk indices")
	}
	req.Indices = make([]uint32, count)
	for i := range req.Indices {
		req.Indices[i] = binary.BigEndian.Uint32(b[offset:])
		offset += 4
	}
	return req, offset, nil
}

// ChunkCount returns how many chunks of chunkSize make up a file of size bytes
func ChunkCount(size, chunkSize uint64) uint64 {
	return (size + chunkSize - 1) / chunkSize
}
