package worker

import (
	"fmt"

	"smfsp/config"
	"smfsp/fileio"
	"smfsp/networking"
)

// ChunkSender reads chunks from disk and offers them to the client broadcast address
type ChunkSender struct {
	cfg       *config.Config
	files     *fileio.FileMap
	transport networking.Transport
	hash      networking.HashType
}

// NewChunkSender prepares a sender for the files in files
func NewChunkSender(cfg *config.Config, files *fileio.FileMap, transport networking.Transport, hash networking.HashType) *ChunkSender {
	return &ChunkSender{cfg: cfg, files: files, transport: transport, hash: hash}
}

// Send offers one chunk. The file is re-stated first so size changes are picked up.
func (s *ChunkSender) Send(item WorkItem) error {
	meta, ok := s.files.Lookup(item.File)
	if !ok {
		return fmt.Errorf("unknown file %q", item.File)
	}
	previous := meta.Size
	meta, err := s.files.Refresh(item.File)
	if err != nil {
		return err
	}
	if meta.Size != previous {
		s.cfg.Logf("Size of %s changed from %d to %d bytes", meta.Name, previous, meta.Size)
	}

	offer, err := s.chunk(meta, item.Index)
	if err != nil {
		return err
	}
	packet, err := networking.BuildChunkOffer(offer, s.cfg.Compress, s.hash)
	if err != nil {
		return err
	}
	s.cfg.Debugf("Offering chunk %d of %s (%d bytes)", item.Index, meta.Name, offer.Size)
	return s.transport.SendTo(packet, s.cfg.BroadcastAddr())
}

// chunk builds the offer for chunk index of a file. Chunks are aligned to the chunk size.
func (s *ChunkSender) chunk(meta *fileio.FileMeta, index uint32) (*networking.ChunkOffer, error) {
	chunkSize := s.cfg.ChunkSize
	offset := uint64(index) * chunkSize
	if offset >= meta.Size {
		return nil, fmt.Errorf("chunk %d is beyond the end of %s (%d bytes)", index, meta.Name, meta.Size)
	}

	size := chunkSize
	last := meta.Size <= offset+chunkSize
	if last {
		size = meta.Size - offset
	}

	data, err := fileio.ReadChunk(meta.Path, offset, size)
	if err != nil {
		return nil, err
	}
	return &networking.ChunkOffer{
		Name:      meta.Name,
		TotalSize: meta.Size,
		Offset:    offset,
		Size:      size,
		Last:      last,
		Data:      data,
	}, nil
}
