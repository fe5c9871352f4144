//go:build !linux && !darwin

package ospfd

import (
	"context"
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// genericTransport is the portable Transport fallback built on
// golang.org/x/net/ipv4's raw IP socket support, used on platforms
// without a dedicated raw-socket (Linux) or pcap (Darwin) backend.
type genericTransport struct {
	conn   *net.IPConn
	raw    *ipv4.RawConn
	ifaces map[string]*net.Interface
}

// NewGenericTransport opens one raw IP socket for protocol 89 and
// tracks the named interfaces it should accept traffic from.
func newPlatformTransport(ifaceNames []string) (Transport, error) {
	return NewGenericTransport(ifaceNames)
}

func NewGenericTransport(ifaceNames []string) (Transport, error) {
	conn, err := net.ListenIP("ip4:89", &net.IPAddr{})
	if err != nil {
		return nil, err
	}
	raw, err := ipv4.NewRawConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	t := &genericTransport{conn: conn, raw: raw, ifaces: make(map[string]*net.Interface)}
	for _, name := range ifaceNames {
		ifc, err := net.InterfaceByName(name)
		if err != nil {
			t.Close()
			return nil, err
		}
		t.ifaces[name] = ifc
	}
	return t, nil
}

func (t *genericTransport) Join(ifaceName string) error {
	ifc, ok := t.ifaces[ifaceName]
	if !ok {
		return xerrNoSuchInterface(ifaceName)
	}
	pc := ipv4.NewPacketConn(t.conn)
	if err := pc.JoinGroup(ifc, &net.UDPAddr{IP: net.ParseIP(AllSPFRouters)}); err != nil {
		return err
	}
	return pc.JoinGroup(ifc, &net.UDPAddr{IP: net.ParseIP(AllDRouters)})
}

func (t *genericTransport) Send(ifaceName, dest string, raw []byte) error {
	ifc, ok := t.ifaces[ifaceName]
	if !ok {
		return xerrNoSuchInterface(ifaceName)
	}
	iph := &ipv4.Header{
		Version:  4,
		Len:      20,
		TotalLen: 20 + len(raw),
		TTL:      1,
		Protocol: IPProtocolOSPF,
		Dst:      net.ParseIP(dest),
	}
	_ = ifc
	return t.raw.WriteTo(iph, raw, nil)
}

func (t *genericTransport) Recv(ctx context.Context) (string, string, []byte, error) {
	buf := getRecvBuffer()
	defer putRecvBuffer(buf)
	done := make(chan struct{})
	var iph *ipv4.Header
	var payload []byte
	var err error
	go func() {
		iph, payload, _, err = t.raw.ReadFrom(buf)
		close(done)
	}()
	select {
	case <-ctx.Done():
		t.conn.SetReadDeadline(time.Now())
		<-done
		return "", "", nil, ctx.Err()
	case <-done:
	}
	if err != nil {
		return "", "", nil, err
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return t.ifaceFor(iph), iph.Src.String(), out, nil
}

func (t *genericTransport) ifaceFor(iph *ipv4.Header) string {
	for name, ifc := range t.ifaces {
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok && ipNet.Contains(iph.Dst) {
				return name
			}
		}
	}
	return ""
}

func (t *genericTransport) Close() error {
	return t.conn.Close()
}
