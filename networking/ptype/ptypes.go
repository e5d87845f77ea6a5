package ptype

// Type is the 4-byte ASCII tag following the magic
type Type string

const (
	SHLO Type = "SHLO" // Server hello with file catalogue
	CHLO Type = "CHLO" // Client hello, asks servers to announce themselves
	OFER Type = "OFER" // Chunk of a file
	ZFER Type = "ZFER" // LZ4 compressed chunk of a file
	CREQ Type = "CREQ" // Client request for a list of chunks
)

// Name returns a readable name for logs
func (t Type) Name() string {
	switch t {
	case SHLO:
		return "SRV_HELLO"
	case CHLO:
		return "CLN_HELLO"
	case OFER:
		return "CNK_OFFER"
	case ZFER:
		return "CNK_OFFER_LZ4"
	case CREQ:
		return "CNK_REQUEST"
	}
	return "UNKNOWN(" + string(t) + ")"
}

// Known reports whether t is a tag this implementation understands
func (t Type) Known() bool {
	switch t {
	case SHLO, CHLO, OFER, ZFER, CREQ:
		return true
	}
	return false
}
