package comms

import (
	"context"
	"errors"

	"smfsp/client/worker"
	"smfsp/config"
	"smfsp/constants"
	"smfsp/networking"
	"smfsp/networking/ptype"
)

// Discover broadcasts client hellos and collects the files announced by
// servers until ctx ends or found returns true. The first server announcing a
// name wins. The collected list is local, so cancelling at any point is safe.
func Discover(ctx context.Context, cfg *config.Config, transport networking.Transport,
	found func(worker.RemoteFile) bool) ([]worker.RemoteFile, error) {
	hash := networking.HashSHA256
	if cfg.Unsigned {
		hash = networking.HashNone
	}
	hello, err := networking.BuildClientHello(hash)
	if err != nil {
		return nil, err
	}

	var available []worker.RemoteFile
	seen := make(map[string]bool)

	sendHello := func() {
		if err := transport.SendTo(hello, cfg.BroadcastAddr()); err != nil {
			cfg.Logf("Could not send client hello: %v", err)
		}
	}
	sendHello()

	for {
		datagram, err := transport.Receive(ctx, constants.DISCOVERY_RESEND)
		if ctx.Err() != nil {
			return available, nil
		}
		if errors.Is(err, networking.ErrTimeout) {
			sendHello()
			continue
		}
		if err != nil {
			return available, err
		}

		packet, err := networking.Decode(datagram.Data)
		if err != nil {
			cfg.Debugf("Discarding packet from %s: %v", datagram.From, err)
			continue
		}
		cfg.Debugf("Received %s from %s", packet, datagram.From)
		if packet.Type != ptype.SHLO {
			continue
		}

		for _, entry := range packet.Catalogue {
			if seen[entry.Name] {
				continue
			}
			seen[entry.Name] = true
			file := worker.RemoteFile{Name: entry.Name, Size: entry.Size, Server: datagram.From}
			available = append(available, file)
			if found != nil && found(file) {
				return available, nil
			}
		}
	}
}
