package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"smfsp/client/comms"
	"smfsp/client/worker"
	"smfsp/config"
	"smfsp/constants"
	"smfsp/fileio"
	"smfsp/networking"

	"github.com/akamensky/argparse"
)

func main() {
	args := argparse.NewParser("client", constants.Title)

	bind := args.String("i", "address", &argparse.Options{Required: false, Help: "Bind address",
		Default: constants.DEFAULT_BIND_ADDRESS})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Listening port",
		Default: constants.DEFAULT_CLIENT_PORT})
	serverPort := args.Int("s", "server-port", &argparse.Options{Required: false, Help: "Port servers listen on",
		Default: constants.DEFAULT_SERVER_PORT})
	broadcast := args.String("b", "broadcast", &argparse.Options{Required: false, Help: "Address for client hellos",
		Default: constants.BROADCAST_ADDRESS})
	retry := args.Int("r", "retry", &argparse.Options{Required: false, Help: "Base chunk request retry interval in milliseconds",
		Default: int(constants.DEFAULT_RETRY / time.Millisecond)})
	retries := args.Int("m", "max-retries", &argparse.Options{Required: false, Help: "Consecutive unanswered requests before giving up (0 = never)",
		Default: constants.DEFAULT_MAX_RETRIES})
	wait := args.Int("w", "wait", &argparse.Options{Required: false, Help: "Discovery time in seconds (0 = until ^C)"})
	file := args.String("f", "file", &argparse.Options{Required: false, Help: "Name of the file to download without prompting"})
	output := args.String("o", "output", &argparse.Options{Required: false, Help: "Download location"})
	yes := args.Flag("y", "yes", &argparse.Options{Help: "Overwrite existing files without asking"})
	dscp := args.Int("d", "dscp", &argparse.Options{Required: false, Help: "DSCP field for QoS"})
	verbose := args.Flag("v", "verbose", &argparse.Options{Help: "Verbose output"})

	err := args.Parse(os.Args)

	if err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	cfg := config.DefaultClient()
	cfg.BindAddress = *bind
	cfg.BindPort = *port
	cfg.PeerPort = *serverPort
	cfg.Broadcast = *broadcast
	cfg.RetryInterval = time.Duration(*retry) * time.Millisecond
	cfg.MaxRetries = *retries
	cfg.DSCP = *dscp
	cfg.Verbose = *verbose

	if err = cfg.Validate(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	transport, err := networking.ListenUDP(cfg)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	defer transport.Close()

	// Discovery runs until interrupted, the wait elapses or the wanted file shows up.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if *wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(*wait)*time.Second)
		defer cancel()
	}
	if *file == "" {
		fmt.Println("Send ^C to stop discovery and choose a file to download")
	}
	available, err := comms.Discover(ctx, cfg, transport, func(f worker.RemoteFile) bool {
		fmt.Printf("\tfound %s (%d bytes) on %s\n", f.Name, f.Size, f.Server)
		return *file != "" && f.Name == *file
	})
	stop()
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	if len(available) == 0 {
		fmt.Println("Interrupted without having received any file to download, exit")
		os.Exit(0)
	}

	input := bufio.NewReader(os.Stdin)

	var remote worker.RemoteFile
	if *file != "" {
		var ok bool
		if remote, ok = findFile(available, *file); !ok {
			fmt.Printf("No server announced %s\n", *file)
			os.Exit(1)
		}
	} else {
		remote = chooseFile(input, available)
	}

	location := *output
	if location == "" {
		location = filepath.Base(remote.Name)
	}
	location, err = chooseLocation(input, location, *output == "", *yes)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	sink, err := fileio.NewFileSink(location, remote.Size)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	session, err := worker.NewSession(cfg, remote, sink)
	if err != nil {
		sink.Close()
		fmt.Println(err.Error())
		os.Exit(1)
	}

	fmt.Printf("Downloading file %s to %s...\n", remote.Name, location)
	begin := time.Now()

	ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err = session.Run(ctx, transport); err != nil {
		fmt.Println(err.Error())
		transport.Close()
		os.Exit(2)
	}
	fmt.Println("Received", remote.Size, "bytes in", time.Since(begin))

	if cfg.Verbose {
		hash, err := fileio.GetFileChecksumSHA256(location)
		if err == nil {
			fmt.Println("SHA256", hex.EncodeToString(hash))
		}
	}
}
