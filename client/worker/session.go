package worker

import (
	"errors"
	"fmt"
	"math"
	"net"
	"sort"

	"smfsp/config"
	"smfsp/fileio"
	"smfsp/networking"

	"github.com/google/uuid"
)

var (
	// ErrProtocolViolation aborts a download when a server sends an inconsistent chunk
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrServerUnresponsive aborts a download after too many fruitless retries
	ErrServerUnresponsive = errors.New("server unresponsive")
	// ErrTooManyDrops aborts a download flooded with unrelated traffic
	ErrTooManyDrops = errors.New("too many unrelated packets")
)

// State of a download session
type State int

const (
	Selecting State = iota
	Awaiting
	Validating
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case Selecting:
		return "SELECTING"
	case Awaiting:
		return "AWAITING"
	case Validating:
		return "VALIDATING"
	case Done:
		return "DONE"
	case Aborted:
		return "ABORTED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// RemoteFile is a file announced by a server
type RemoteFile struct {
	Name   string
	Size   uint64
	Server *net.UDPAddr
}

// Session downloads one file. Only its own loop touches the chunk sets.
type Session struct {
	ID     uuid.UUID
	cfg    *config.Config
	remote RemoteFile
	sink   fileio.ChunkSink

	chunkSize   uint64
	chunks      uint32
	outstanding []bool // true until the chunk has been written
	remaining   uint32
	inFlight    map[uint32]struct{}
	// Every index below cursor is either received or in flight.
	cursor uint32
	state  State
}

// NewSession prepares a download of remote into sink
func NewSession(cfg *config.Config, remote RemoteFile, sink fileio.ChunkSink) (*Session, error) {
	count := networking.ChunkCount(remote.Size, cfg.ChunkSize)
	if count > math.MaxUint32 {
		return nil, fmt.Errorf("%s has %d chunks, more than a request can address", remote.Name, count)
	}

	s := &Session{
		ID:          uuid.New(),
		cfg:         cfg,
		remote:      remote,
		sink:        sink,
		chunkSize:   cfg.ChunkSize,
		chunks:      uint32(count),
		outstanding: make([]bool, count),
		remaining:   uint32(count),
		inFlight:    make(map[uint32]struct{}, cfg.MaxChunksPerRequest),
		state:       Selecting,
	}
	for i := range s.outstanding {
		s.outstanding[i] = true
	}
	if s.remaining == 0 {
		s.state = Done
	}
	return s, nil
}

// State returns the current state
func (s *Session) State() State {
	return s.state
}

// Chunks returns the number of chunks in the file
func (s *Session) Chunks() uint32 {
	return s.chunks
}

// Remaining returns the number of chunks not received yet
func (s *Session) Remaining() uint32 {
	return s.remaining
}

// InFlight returns the requested chunks not received yet, in ascending order
func (s *Session) InFlight() []uint32 {
	indices := make([]uint32, 0, len(s.inFlight))
	for idx := range s.inFlight {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}

// Outstanding reports whether chunk index is still missing
func (s *Session) Outstanding(index uint32) bool {
	return index < s.chunks && s.outstanding[index]
}

// NextRequest tops the in-flight set up to the request limit with the lowest
// missing chunks and returns a request for all of them. It returns nil once
// the session is over.
func (s *Session) NextRequest() *networking.ChunkListRequest {
	if s.state == Done || s.state == Aborted {
		return nil
	}
	for len(s.inFlight) < s.cfg.MaxChunksPerRequest && s.cursor < s.chunks {
		if s.outstanding[s.cursor] {
			s.inFlight[s.cursor] = struct{}{}
		}
		s.cursor++
	}
	s.state = Awaiting
	return &networking.ChunkListRequest{
		Name:         s.remote.Name,
		ExpectedSize: s.remote.Size,
		Indices:      s.InFlight(),
	}
}

// HandleOffer validates a chunk and writes it to the sink. It returns false for
// offers of other files and duplicates, which leave the session untouched.
func (s *Session) HandleOffer(offer *networking.ChunkOffer) (bool, error) {
	if s.state == Done || s.state == Aborted {
		return false, nil
	}
	if offer.Name != s.remote.Name || offer.TotalSize != s.remote.Size {
		return false, nil
	}
	index := offer.Offset / s.chunkSize
	if index >= uint64(s.chunks) || !s.outstanding[index] {
		return false, nil
	}

	s.state = Validating
	if err := s.validate(offer); err != nil {
		s.state = Aborted
		return false, err
	}
	if _, err := s.sink.WriteAt(offer.Data, int64(offer.Offset)); err != nil {
		s.state = Aborted
		return false, fmt.Errorf("could not write chunk %d: %w", index, err)
	}

	s.outstanding[index] = false
	s.remaining--
	delete(s.inFlight, uint32(index))

	switch {
	case s.remaining == 0:
		s.state = Done
	case len(s.inFlight) == 0:
		s.state = Selecting
	default:
		s.state = Awaiting
	}
	return true, nil
}

// validate checks chunk geometry against the expected file size
func (s *Session) validate(offer *networking.ChunkOffer) error {
	if offer.Offset%s.chunkSize != 0 {
		return fmt.Errorf("%w: chunk offset %d not aligned to %d", ErrProtocolViolation, offer.Offset, s.chunkSize)
	}
	if offer.Last {
		if offer.Offset+offer.Size != s.remote.Size {
			return fmt.Errorf("%w: invalid last chunk: offset %d chunk size %d file size %d",
				ErrProtocolViolation, offer.Offset, offer.Size, s.remote.Size)
		}
		return nil
	}
	if offer.Size != s.chunkSize {
		return fmt.Errorf("%w: invalid chunk size %d instead of %d", ErrProtocolViolation, offer.Size, s.chunkSize)
	}
	if offer.Offset+offer.Size > s.remote.Size {
		return fmt.Errorf("%w: chunk at %d overruns file size %d", ErrProtocolViolation, offer.Offset, s.remote.Size)
	}
	return nil
}
