package constants

import "time"

const (
	Title                  = "SMFSP - simple multicast file sharing protocol"
	DEFAULT_SERVER_PORT    = 5050            // Servers listen here
	DEFAULT_CLIENT_PORT    = 5051            // Clients listen here
	DEFAULT_BIND_ADDRESS   = "0.0.0.0"       // Any interface
	BROADCAST_ADDRESS      = "255.255.255.255"
	MAX_PACKET_SIZE        = 1400            // Avoid IP fragmentation on most links
	RECV_BUFFER_SIZE       = 65536           // Largest datagram we are willing to read
	DEFAULT_CHUNK_SIZE     = 1024            // File data per chunk offer
	MAX_CHUNKS_PER_REQ     = 128             // Indices in a single chunk request
	DEFAULT_BURST          = 4               // Chunk offers sent per scheduler iteration
	DEFAULT_HEARTBEAT      = time.Second     // Idle server hello interval
	DEFAULT_RETRY          = 10 * time.Millisecond
	RETRY_CAP_FACTOR       = 25              // Retry wait never exceeds 25x the base interval
	DEFAULT_MAX_RETRIES    = 200             // Consecutive fruitless timeouts before giving up
	DEFAULT_MAX_DROPS      = 10000           // Consecutive unrelated datagrams before giving up
	DISCOVERY_RESEND       = time.Second     // Client hello interval while discovering
	MAX_DECOMPRESSED_CHUNK = 64 * 1024       // Upper bound for a decompressed chunk
	INCOMING_QUEUE         = 256             // Datagrams buffered between socket readers and driver
)
