package server

import (
	"net"

	"smfsp/networking"
)

// catalogue lists every hosted file with its current on-disk size
func (s *Server) catalogue() networking.Catalogue {
	catalogue := make(networking.Catalogue, 0, len(s.files.Names()))
	for _, name := range s.files.Names() {
		meta, err := s.files.Refresh(name)
		if err != nil {
			s.cfg.Logf("Not announcing %s: %v", name, err)
			continue
		}
		catalogue = append(catalogue, networking.CatalogueEntry{Name: meta.Name, Size: meta.Size})
	}
	return catalogue
}

// announce sends a server hello to a single client or the broadcast address
func (s *Server) announce(to *net.UDPAddr) {
	catalogue := s.catalogue()
	if len(catalogue) == 0 {
		s.cfg.Logf("No file available, server hello not sent")
		return
	}
	packet, err := networking.BuildServerHello(catalogue, s.hash)
	if err != nil {
		s.cfg.Logf("Could not build server hello: %v", err)
		return
	}
	if err = s.transport.SendTo(packet, to); err != nil {
		s.cfg.Logf("Could not send server hello to %s: %v", to, err)
		return
	}
	s.cfg.Debugf("Server hello sent to %s", to)
}

// handleChunkRequest queues the requested chunks that are not queued already.
// Requests for unknown files, stale sizes or chunks past the end are dropped whole.
func (s *Server) handleChunkRequest(req *networking.ChunkListRequest, datagram *networking.Datagram) {
	meta, ok := s.files.Lookup(req.Name)
	if !ok {
		s.cfg.Debugf("Dropping request from %s for unknown file %q", datagram.From, req.Name)
		return
	}
	if meta.Size != req.ExpectedSize {
		s.cfg.Debugf("Dropping request from %s for %s: size %d, current %d",
			datagram.From, req.Name, req.ExpectedSize, meta.Size)
		return
	}
	chunks := networking.ChunkCount(meta.Size, s.cfg.ChunkSize)
	for _, idx := range req.Indices {
		if uint64(idx) >= chunks {
			s.cfg.Debugf("Dropping request from %s for %s: chunk %d of %d", datagram.From, req.Name, idx, chunks)
			return
		}
	}

	queued := s.queue.Enqueue(req.Name, req.Indices)
	s.cfg.Debugf("Queued %d of %d chunks of %s for %s, %d pending",
		queued, len(req.Indices), req.Name, datagram.From, s.queue.Len())
}
