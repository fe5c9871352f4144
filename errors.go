package ospfd

import (
	"golang.org/x/xerrors"
)

// Decode errors (§7): malformed wire data. The packet is dropped
// silently by the caller; these sentinels exist so tests and internal
// logging can distinguish the cause, not so callers branch on them.
var (
	ErrShortPacket  = xerrors.New("ospfd: packet shorter than OSPF header")
	ErrBadVersion   = xerrors.New("ospfd: unsupported OSPF version")
	ErrBadLength    = xerrors.New("ospfd: packet length field disagrees with buffer size")
	ErrBadChecksum  = xerrors.New("ospfd: packet checksum invalid")
	ErrUnknownType  = xerrors.New("ospfd: unknown OSPF packet type")
	ErrShortBody    = xerrors.New("ospfd: packet body shorter than type requires")
	ErrBadLSAHeader = xerrors.New("ospfd: LSA header truncated or checksum invalid")
)

// Policy errors (§7): the packet decoded fine but violates interface
// policy. The neighbor is never created.
var (
	ErrAreaMismatch  = xerrors.New("ospfd: area ID does not match receiving interface")
	ErrHelloMismatch = xerrors.New("ospfd: hello parameters do not match interface")
	ErrAuthMismatch  = xerrors.New("ospfd: authentication type or key mismatch")
)

// Protocol errors (§7): fed into the neighbor FSM as events; never
// torn down the interface.
var (
	ErrBadLSReq         = xerrors.New("ospfd: requested LSA not found in database")
	ErrSeqNumberMismatch = xerrors.New("ospfd: DD sequence number or flags mismatch")
)

// decodeErrorf wraps a sentinel with positional context the way the
// rest of the corpus wraps errors with xerrors instead of fmt.Errorf,
// so %w still participates in errors.Is/As chains.
func decodeErrorf(sentinel error, format string, args ...interface{}) error {
	return xerrors.Errorf(format+": %w", append(args, sentinel)...)
}
