package server

import (
	"context"
	"errors"

	"smfsp/config"
	"smfsp/fileio"
	"smfsp/networking"
	"smfsp/networking/ptype"
	"smfsp/server/worker"
)

// Server answers hellos and schedules chunk offers for the files it hosts
type Server struct {
	cfg       *config.Config
	files     *fileio.FileMap
	transport networking.Transport
	queue     *worker.WorkQueue
	sender    *worker.ChunkSender
	hash      networking.HashType
}

// NewServer wires the scheduler to an already bound transport
func NewServer(cfg *config.Config, files *fileio.FileMap, transport networking.Transport) *Server {
	hash := networking.HashSHA256
	if cfg.Unsigned {
		hash = networking.HashNone
	}
	return &Server{
		cfg:       cfg,
		files:     files,
		transport: transport,
		queue:     worker.NewWorkQueue(files.Names()),
		sender:    worker.NewChunkSender(cfg, files, transport, hash),
		hash:      hash,
	}
}

// Serve announces the server and runs the scheduler until ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	s.cfg.Logf("Serving %d files", len(s.files.Names()))
	s.announce(s.cfg.BroadcastAddr())

	for ctx.Err() == nil {
		if err := s.Iterate(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return nil
}

// Iterate runs one scheduler iteration: a bounded burst of chunk offers,
// then a single wait for incoming traffic.
func (s *Server) Iterate(ctx context.Context) error {
	for i := 0; i < s.cfg.Burst; i++ {
		item, ok := s.queue.Dequeue()
		if !ok {
			break
		}
		if err := s.sender.Send(item); err != nil {
			s.cfg.Logf("Could not send chunk %d of %s: %v", item.Index, item.File, err)
		}
	}

	// Pending work must not wait behind the heartbeat timeout.
	timeout := s.cfg.Heartbeat
	if s.queue.Len() > 0 {
		timeout = 0
	}

	datagram, err := s.transport.Receive(ctx, timeout)
	if errors.Is(err, networking.ErrTimeout) {
		// Announcing is suppressed while chunk work is pending.
		if s.queue.Len() == 0 {
			s.announce(s.cfg.BroadcastAddr())
		}
		return nil
	}
	if err != nil {
		return err
	}

	s.dispatcher(datagram)
	return nil
}

// Pending returns the number of queued chunk offers
func (s *Server) Pending() int {
	return s.queue.Len()
}

// dispatcher determines what to do with incoming datagrams
func (s *Server) dispatcher(datagram *networking.Datagram) {
	packet, err := networking.Decode(datagram.Data)
	if err != nil {
		logDiscarded(s.cfg, datagram, err)
		return
	}
	s.cfg.Debugf("Received %s from %s", packet, datagram.From)

	switch packet.Type {
	case ptype.CHLO:
		s.cfg.Debugf("Send server hello in response to client hello from %s", datagram.From)
		s.announce(datagram.From)
	case ptype.CREQ:
		s.handleChunkRequest(packet.Request, datagram)
	default:
		s.cfg.Debugf("Don't know what to do with %s from %s", packet.Type.Name(), datagram.From)
	}
}

// logDiscarded reports why a datagram was dropped
func logDiscarded(cfg *config.Config, datagram *networking.Datagram, err error) {
	switch {
	case errors.Is(err, networking.ErrChecksumMismatch):
		cfg.Logf("Discarding packet from %s: %v", datagram.From, err)
	case errors.Is(err, networking.ErrUnknownPacketType):
		cfg.Logf("Discarding packet of unknown type from %s: %v", datagram.From, err)
	default:
		cfg.Debugf("Discarding malformed packet from %s: %v", datagram.From, err)
	}
}
