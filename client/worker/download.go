package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smfsp/constants"
	"smfsp/networking"
)

// Run drives the session until every chunk is written or it fails. The sink
// is closed exactly once on every path.
func (s *Session) Run(ctx context.Context, transport networking.Transport) (err error) {
	defer func() {
		if cerr := s.sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("could not finalize download: %w", cerr)
		}
		if err != nil {
			s.state = Aborted
			s.logf("Download of %s failed: %v", s.remote.Name, err)
		}
	}()

	hash := networking.HashSHA256
	if s.cfg.Unsigned {
		hash = networking.HashNone
	}
	s.logf("Downloading %s (%d bytes, %d chunks) from %s", s.remote.Name, s.remote.Size, s.chunks, s.remote.Server)

	retries, drops := 0, 0
	for s.state != Done {
		req := s.NextRequest()
		packet, err := networking.BuildChunkListRequest(req, hash)
		if err != nil {
			return err
		}
		if err = transport.SendTo(packet, s.remote.Server); err != nil {
			s.logf("Could not send request: %v", err)
		} else {
			s.debugf("Sent request for chunks %v", req.Indices)
		}

		// Unrelated traffic does not postpone the retry.
		deadline := time.Now().Add(s.retryWait(retries))
		progress := false

		for len(s.inFlight) > 0 && s.state != Done {
			wait := time.Until(deadline)
			if wait <= 0 {
				break
			}
			datagram, err := transport.Receive(ctx, wait)
			if errors.Is(err, networking.ErrTimeout) {
				break
			}
			if err != nil {
				return err
			}

			accepted, err := s.handleDatagram(datagram)
			if err != nil {
				return err
			}
			if accepted {
				progress = true
				drops = 0
				continue
			}
			drops++
			if s.cfg.MaxDrops > 0 && drops >= s.cfg.MaxDrops {
				return fmt.Errorf("%w: %d datagrams without progress", ErrTooManyDrops, drops)
			}
		}

		if progress {
			retries = 0
		} else if len(s.inFlight) > 0 {
			retries++
			s.debugf("Timeout! Missing: %v", s.InFlight())
			if s.cfg.MaxRetries > 0 && retries > s.cfg.MaxRetries {
				return fmt.Errorf("%w: no chunk received after %d requests", ErrServerUnresponsive, retries)
			}
		}
	}

	s.logf("File %s fully received", s.remote.Name)
	return nil
}

// retryWait grows linearly with consecutive fruitless attempts up to a cap
func (s *Session) retryWait(attempt int) time.Duration {
	wait := s.cfg.RetryInterval * time.Duration(attempt+1)
	if limit := s.cfg.RetryInterval * constants.RETRY_CAP_FACTOR; wait > limit {
		return limit
	}
	return wait
}

// handleDatagram decodes one datagram and feeds chunk offers to the session
func (s *Session) handleDatagram(datagram *networking.Datagram) (bool, error) {
	packet, err := networking.Decode(datagram.Data)
	if err != nil {
		if errors.Is(err, networking.ErrChecksumMismatch) {
			s.logf("Discarding corrupted packet from %s: %v", datagram.From, err)
		} else {
			s.debugf("Discarding packet from %s: %v", datagram.From, err)
		}
		return false, nil
	}
	if packet.Offer == nil {
		s.debugf("Ignoring %s from %s", packet.Type.Name(), datagram.From)
		return false, nil
	}

	accepted, err := s.HandleOffer(packet.Offer)
	if err != nil {
		return false, err
	}
	if accepted {
		s.debugf("Received chunk %d, %d of %d missing", packet.Offer.Offset/s.chunkSize, s.remaining, s.chunks)
	}
	return accepted, nil
}

func (s *Session) logf(format string, args ...interface{}) {
	s.cfg.Logf("[download %s] "+format, append([]interface{}{s.ID}, args...)...)
}

func (s *Session) debugf(format string, args ...interface{}) {
	s.cfg.Debugf("[download %s] "+format, append([]interface{}{s.ID}, args...)...)
}
