package worker

import (
	"context"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"smfsp/config"
	"smfsp/fileio"
	"smfsp/networking"
	"smfsp/networking/ptype"
	server "smfsp/server/controller"
)

// scriptedServer answers every chunk request synchronously, losing the offers
// for which drop returns true.
type scriptedServer struct {
	c       *qt.C
	name    string
	content []byte
	offer   func(index uint32) *networking.ChunkOffer
	drop    func(index uint32) bool
	noise   func() []byte

	inbox    [][]byte
	requests [][]uint32
	timeouts int
}

func (s *scriptedServer) SendTo(b []byte, to *net.UDPAddr) error {
	s.c.Assert(to, qt.Equals, serverAddr)
	packet, err := networking.Decode(b)
	s.c.Assert(err, qt.IsNil)
	s.c.Assert(packet.Type, qt.Equals, ptype.CREQ)
	s.requests = append(s.requests, packet.Request.Indices)

	for _, idx := range packet.Request.Indices {
		if s.drop != nil && s.drop(idx) {
			continue
		}
		offer := chunkOf(s.name, s.content, 1024, idx)
		if s.offer != nil {
			offer = s.offer(idx)
		}
		raw, err := networking.BuildChunkOffer(offer, false, networking.HashSHA256)
		s.c.Assert(err, qt.IsNil)
		s.inbox = append(s.inbox, raw)
	}
	return nil
}

func (s *scriptedServer) Receive(ctx context.Context, timeout time.Duration) (*networking.Datagram, error) {
	if s.noise != nil {
		return &networking.Datagram{Data: s.noise(), From: serverAddr}, nil
	}
	if len(s.inbox) == 0 {
		s.timeouts++
		return nil, networking.ErrTimeout
	}
	b := s.inbox[0]
	s.inbox = s.inbox[1:]
	return &networking.Datagram{Data: b, From: serverAddr}, nil
}

func (s *scriptedServer) Close() error { return nil }

// scriptedConfig never really waits: scripted transports time out at once.
func scriptedConfig() *config.Config {
	cfg := testConfig()
	cfg.RetryInterval = time.Second
	cfg.MaxRetries = 5
	return cfg
}

func TestRunRecoversLostChunks(t *testing.T) {
	c := qt.New(t)
	content := testContent(5000)
	lost := map[uint32]bool{1: true, 3: true}
	tr := &scriptedServer{c: c, name: "f", content: content, drop: func(idx uint32) bool {
		if lost[idx] {
			delete(lost, idx)
			return true
		}
		return false
	}}
	s, sink := newTestSession(c, scriptedConfig(), "f", uint64(len(content)))

	c.Assert(s.Run(context.Background(), tr), qt.IsNil)
	c.Assert(s.State(), qt.Equals, Done)
	c.Assert(sink.data, qt.DeepEquals, content)
	c.Assert(sink.closes, qt.Equals, 1)
	c.Assert(tr.requests, qt.DeepEquals, [][]uint32{{0, 1, 2, 3, 4}, {1, 3}})
}

func TestRunServerUnresponsive(t *testing.T) {
	c := qt.New(t)
	content := testContent(2500)
	tr := &scriptedServer{c: c, name: "f", content: content, drop: func(uint32) bool { return true }}
	cfg := scriptedConfig()
	s, sink := newTestSession(c, cfg, "f", 2500)

	err := s.Run(context.Background(), tr)
	c.Assert(err, qt.ErrorIs, ErrServerUnresponsive)
	c.Assert(s.State(), qt.Equals, Aborted)
	c.Assert(sink.closes, qt.Equals, 1)
	c.Assert(tr.requests, qt.HasLen, cfg.MaxRetries+1)
}

func TestRunTooManyDrops(t *testing.T) {
	c := qt.New(t)
	hello, err := networking.BuildClientHello(networking.HashSHA256)
	c.Assert(err, qt.IsNil)
	tr := &scriptedServer{c: c, name: "f", content: testContent(2500), noise: func() []byte { return hello }}
	cfg := scriptedConfig()
	cfg.RetryInterval = time.Hour
	cfg.MaxDrops = 50
	s, sink := newTestSession(c, cfg, "f", 2500)

	err = s.Run(context.Background(), tr)
	c.Assert(err, qt.ErrorIs, ErrTooManyDrops)
	c.Assert(s.State(), qt.Equals, Aborted)
	c.Assert(sink.closes, qt.Equals, 1)
}

func TestRunAbortsOnProtocolViolation(t *testing.T) {
	c := qt.New(t)
	content := testContent(2500)
	tr := &scriptedServer{c: c, name: "f", content: content, offer: func(idx uint32) *networking.ChunkOffer {
		offer := chunkOf("f", content, 1024, idx)
		if offer.Last {
			offer.Size--
			offer.Data = offer.Data[:offer.Size]
		}
		return offer
	}}
	s, sink := newTestSession(c, scriptedConfig(), "f", 2500)

	err := s.Run(context.Background(), tr)
	c.Assert(err, qt.ErrorIs, ErrProtocolViolation)
	c.Assert(s.State(), qt.Equals, Aborted)
	c.Assert(sink.closes, qt.Equals, 1)
}

func TestRunEmptyFile(t *testing.T) {
	c := qt.New(t)
	tr := &scriptedServer{c: c}
	s, sink := newTestSession(c, scriptedConfig(), "empty", 0)

	c.Assert(s.Run(context.Background(), tr), qt.IsNil)
	c.Assert(tr.requests, qt.HasLen, 0)
	c.Assert(sink.closes, qt.Equals, 1)
}

func TestRunCancelled(t *testing.T) {
	c := qt.New(t)
	tr := newPipe(0)
	s, sink := newTestSession(c, scriptedConfig(), "f", 2500)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, tr.client)
	c.Assert(err, qt.ErrorIs, context.Canceled)
	c.Assert(sink.closes, qt.Equals, 1)
}

// pipeEnd is one side of an in-memory datagram link
type pipeEnd struct {
	in   chan []byte
	out  chan []byte
	addr *net.UDPAddr
	// loss drops every n-th datagram sent through this end when positive.
	loss int
	sent int
}

type pipe struct {
	client, server *pipeEnd
}

func newPipe(serverLoss int) *pipe {
	toServer := make(chan []byte, 4096)
	toClient := make(chan []byte, 4096)
	return &pipe{
		client: &pipeEnd{in: toClient, out: toServer, addr: &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 5051}},
		server: &pipeEnd{in: toServer, out: toClient, addr: serverAddr, loss: serverLoss},
	}
}

func (p *pipeEnd) SendTo(b []byte, to *net.UDPAddr) error {
	p.sent++
	if p.loss > 0 && p.sent%p.loss == 0 {
		return nil
	}
	p.out <- append([]byte(nil), b...)
	return nil
}

func (p *pipeEnd) Receive(ctx context.Context, timeout time.Duration) (*networking.Datagram, error) {
	if timeout <= 0 {
		select {
		case b := <-p.in:
			return &networking.Datagram{Data: b, From: p.addr}, nil
		default:
			return nil, networking.ErrTimeout
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b := <-p.in:
		return &networking.Datagram{Data: b, From: p.addr}, nil
	case <-timer.C:
		return nil, networking.ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeEnd) Close() error { return nil }

func TestDownloadFromServer(t *testing.T) {
	c := qt.New(t)
	content := testContent(50_000)
	path := filepath.Join(c.TempDir(), "payload.bin")
	c.Assert(os.WriteFile(path, content, 0o644), qt.IsNil)
	files, err := fileio.ParseFileMap([]string{path})
	c.Assert(err, qt.IsNil)

	srvCfg := config.DefaultServer()
	srvCfg.Log = log.New(io.Discard, "", 0)
	srvCfg.Heartbeat = 20 * time.Millisecond
	srvCfg.Compress = true
	c.Assert(srvCfg.Validate(), qt.IsNil)

	link := newPipe(7)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	served := make(chan error, 1)
	go func() {
		served <- server.NewServer(srvCfg, files, link.server).Serve(ctx)
	}()

	cliCfg := testConfig()
	cliCfg.RetryInterval = 5 * time.Millisecond
	cliCfg.MaxChunksPerRequest = 16
	s, sink := newTestSession(c, cliCfg, "payload.bin", uint64(len(content)))

	c.Assert(s.Run(ctx, link.client), qt.IsNil)
	c.Assert(s.State(), qt.Equals, Done)
	c.Assert(sink.data, qt.DeepEquals, content)
	c.Assert(sink.closes, qt.Equals, 1)

	cancel()
	c.Assert(<-served, qt.IsNil)
}
