package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"smfsp/constants"
)

// ErrConfiguration is returned for settings that prevent a node from starting
var ErrConfiguration = errors.New("configuration error")

// Fixed part of a chunk offer: magic, type, name length, three longs, last flag, SHA-256 trailer.
const offerOverhead = 8 + 4 + 1 + 3*8 + 1 + 4 + 32

// Longest file name allowed on the wire.
const MaxNameLength = 255

// Config is passed explicitly to every component instead of process-wide state
type Config struct {
	BindAddress   string
	BindPort      int
	PeerPort      int    // Port the other role listens on
	Broadcast     string // Address used for hellos and chunk offers
	Verbose       bool
	ChunkSize     uint64
	MaxPacketSize int

	// Client side.
	MaxChunksPerRequest int
	RetryInterval       time.Duration
	MaxRetries          int
	MaxDrops            int

	// Server side.
	Burst     int
	Heartbeat time.Duration
	Compress  bool
	Unsigned  bool

	DSCP int
	Log  *log.Logger
}

// DefaultServer returns server configuration with protocol defaults
func DefaultServer() *Config {
	c := defaults()
	c.BindPort = constants.DEFAULT_SERVER_PORT
	c.PeerPort = constants.DEFAULT_CLIENT_PORT
	c.Log = log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	return c
}

// DefaultClient returns client configuration with protocol defaults
func DefaultClient() *Config {
	c := defaults()
	c.BindPort = constants.DEFAULT_CLIENT_PORT
	c.PeerPort = constants.DEFAULT_SERVER_PORT
	c.Log = log.New(os.Stdout, "[client] ", log.LstdFlags|log.Lmicroseconds)
	return c
}

func defaults() *Config {
	return &Config{
		BindAddress:         constants.DEFAULT_BIND_ADDRESS,
		Broadcast:           constants.BROADCAST_ADDRESS,
		ChunkSize:           constants.DEFAULT_CHUNK_SIZE,
		MaxPacketSize:       constants.MAX_PACKET_SIZE,
		MaxChunksPerRequest: constants.MAX_CHUNKS_PER_REQ,
		RetryInterval:       constants.DEFAULT_RETRY,
		MaxRetries:          constants.DEFAULT_MAX_RETRIES,
		MaxDrops:            constants.DEFAULT_MAX_DROPS,
		Burst:               constants.DEFAULT_BURST,
		Heartbeat:           constants.DEFAULT_HEARTBEAT,
	}
}

// Validate checks settings before any socket is bound
func (c *Config) Validate() error {
	if net.ParseIP(c.BindAddress) == nil {
		return fmt.Errorf("%w: invalid bind address %q", ErrConfiguration, c.BindAddress)
	}
	if net.ParseIP(c.Broadcast) == nil {
		return fmt.Errorf("%w: invalid broadcast address %q", ErrConfiguration, c.Broadcast)
	}
	if c.BindPort < 0 || c.BindPort > 65535 || c.PeerPort <= 0 || c.PeerPort > 65535 {
		return fmt.Errorf("%w: port out of range", ErrConfiguration)
	}
	if c.ChunkSize == 0 || c.ChunkSize > constants.MAX_DECOMPRESSED_CHUNK {
		return fmt.Errorf("%w: chunk size must be between 1 and %d", ErrConfiguration, constants.MAX_DECOMPRESSED_CHUNK)
	}
	// The longest legal name must still fit in a single datagram.
	if c.ChunkSize+offerOverhead+MaxNameLength > uint64(c.MaxPacketSize) {
		return fmt.Errorf("%w: chunk size %d does not fit a %d byte datagram", ErrConfiguration, c.ChunkSize, c.MaxPacketSize)
	}
	if c.MaxChunksPerRequest < 1 || c.MaxChunksPerRequest > 255 {
		return fmt.Errorf("%w: chunks per request must be between 1 and 255", ErrConfiguration)
	}
	if c.RetryInterval <= 0 || c.Heartbeat <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrConfiguration)
	}
	if c.Burst < 1 {
		return fmt.Errorf("%w: burst must be at least 1", ErrConfiguration)
	}
	if c.MaxRetries < 0 || c.MaxDrops < 0 {
		return fmt.Errorf("%w: negative limits", ErrConfiguration)
	}
	if c.Log == nil {
		c.Log = log.New(io.Discard, "", 0)
	}
	return nil
}

// BindTo returns host:port for the local socket
func (c *Config) BindTo() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.BindPort))
}

// BroadcastAddr is where hellos and chunk offers for the other role go
func (c *Config) BroadcastAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(c.Broadcast), Port: c.PeerPort}
}

// Logf always prints
func (c *Config) Logf(format string, args ...interface{}) {
	c.Log.Printf(format, args...)
}

// Debugf prints only in verbose mode
func (c *Config) Debugf(format string, args ...interface{}) {
	if c.Verbose {
		c.Log.Printf(format, args...)
	}
}
