package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"smfsp/config"
	"smfsp/constants"
	"smfsp/fileio"
	"smfsp/networking"
	server "smfsp/server/controller"

	"github.com/akamensky/argparse"
)

func main() {
	args := argparse.NewParser("server", constants.Title)

	bind := args.String("i", "address", &argparse.Options{Required: false, Help: "Bind address",
		Default: constants.DEFAULT_BIND_ADDRESS})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Listening port",
		Default: constants.DEFAULT_SERVER_PORT})
	clientPort := args.Int("c", "client-port", &argparse.Options{Required: false, Help: "Port clients listen on",
		Default: constants.DEFAULT_CLIENT_PORT})
	broadcast := args.String("b", "broadcast", &argparse.Options{Required: false, Help: "Address for hellos and chunk offers",
		Default: constants.BROADCAST_ADDRESS})
	chunk := args.Int("s", "chunksize", &argparse.Options{Required: false, Help: "File data per chunk offer in bytes",
		Default: constants.DEFAULT_CHUNK_SIZE})
	burst := args.Int("n", "burst", &argparse.Options{Required: false, Help: "Chunk offers sent between checks for new requests",
		Default: constants.DEFAULT_BURST})
	heartbeat := args.Int("t", "heartbeat", &argparse.Options{Required: false, Help: "Idle announcement interval in milliseconds",
		Default: int(constants.DEFAULT_HEARTBEAT / time.Millisecond)})
	compress := args.Flag("z", "compress", &argparse.Options{Help: "Send LZ4 compressed chunk offers when it pays off"})
	dscp := args.Int("d", "dscp", &argparse.Options{Required: false, Help: "DSCP field for QoS"})
	unsigned := args.Flag("u", "unsigned", &argparse.Options{Help: "Omit SHA256 trailer on sent packets"})
	verbose := args.Flag("v", "verbose", &argparse.Options{Help: "Verbose output"})
	files := args.StringList("f", "file", &argparse.Options{Required: true, Help: "File to share as path or name:path (repeatable)"})

	err := args.Parse(os.Args)

	if err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	cfg := config.DefaultServer()
	cfg.BindAddress = *bind
	cfg.BindPort = *port
	cfg.PeerPort = *clientPort
	cfg.Broadcast = *broadcast
	cfg.ChunkSize = uint64(*chunk)
	cfg.Burst = *burst
	cfg.Heartbeat = time.Duration(*heartbeat) * time.Millisecond
	cfg.Compress = *compress
	cfg.DSCP = *dscp
	cfg.Unsigned = *unsigned
	cfg.Verbose = *verbose

	// Everything is checked before any socket is bound.
	if err = cfg.Validate(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	fmap, err := fileio.ParseFileMap(*files)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	for _, name := range fmap.Names() {
		meta, _ := fmap.Lookup(name)
		cfg.Debugf("\t%s => %s (%d bytes)", name, meta.Path, meta.Size)
	}

	transport, err := networking.ListenUDP(cfg)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	defer transport.Close()
	cfg.Logf("Listening on %s", cfg.BindTo())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err = server.NewServer(cfg, fmap, transport).Serve(ctx); err != nil {
		cfg.Logf("Server stopped: %v", err)
		transport.Close()
		os.Exit(1)
	}
	cfg.Logf("Server stopped")
}
