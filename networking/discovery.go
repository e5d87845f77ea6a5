package networking

import (
	"smfsp/fileio"
	"smfsp/networking/ptype"
)

// BuildClientHello builds the empty payload packet clients broadcast to find servers
func BuildClientHello(hash HashType) ([]byte, error) {
	return Encode(ptype.CHLO, nil, hash)
}

// BuildServerHello builds a server hello announcing the given catalogue
func BuildServerHello(catalogue Catalogue, hash HashType) ([]byte, error) {
	payload, err := catalogue.Payload()
	if err != nil {
		return nil, err
	}
	return Encode(ptype.SHLO, payload, hash)
}

// BuildChunkOffer builds an OFER packet, or a ZFER packet when compression
// is requested and shrinks the chunk enough to pay for the length field.
func BuildChunkOffer(offer *ChunkOffer, compress bool, hash HashType) ([]byte, error) {
	if compress {
		if block, ok := fileio.CompressChunk(offer.Data); ok && len(block)+4 < len(offer.Data) {
			payload, err := offer.CompressedPayload(block)
			if err != nil {
				return nil, err
			}
			return Encode(ptype.ZFER, payload, hash)
		}
	}
	payload, err := offer.Payload()
	if err != nil {
		return nil, err
	}
	return Encode(ptype.OFER, payload, hash)
}

// BuildChunkListRequest builds a CREQ packet
func BuildChunkListRequest(req *ChunkListRequest, hash HashType) ([]byte, error) {
	payload, err := req.Payload()
	if err != nil {
		return nil, err
	}
	return Encode(ptype.CREQ, payload, hash)
}
