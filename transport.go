package ospfd

import "golang.org/x/xerrors"

func xerrNoSuchInterface(name string) error {
	return xerrors.Errorf("ospfd: no such interface %q", name)
}

// NewPlatformTransport opens the Transport backend appropriate for the
// host OS: a raw IPPROTO_OSPF socket on Linux, pcap/Ethernet framing on
// Darwin, or the golang.org/x/net/ipv4 raw-socket fallback elsewhere.
func NewPlatformTransport(ifaceNames []string) (Transport, error) {
	return newPlatformTransport(ifaceNames)
}

// rawDatagram is one received OSPF payload, tagged with the interface
// it arrived on and its IPv4 source, shared by the Linux and Darwin
// transport backends.
type rawDatagram struct {
	ifaceName string
	src       string
	payload   []byte
}
