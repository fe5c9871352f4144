//go:build linux

package ospfd

import (
	"context"
	"net"

	"golang.org/x/sys/unix"
)

// linuxTransport sends and receives OSPF packets on a raw IPPROTO_OSPF
// socket, adapted from the AF_PACKET raw-socket plumbing pattern
// (open, bind-to-device, blocking Recvfrom loop) used for Ethernet
// capture elsewhere in this codebase's history, but bound to IPv4
// protocol 89 instead of ETH_P_ALL so the kernel handles Ethernum/ARP
// framing and hands us IP datagrams directly.
type linuxTransport struct {
	fd      int
	ifaces  map[string]*net.Interface
	ifAddrs map[string]uint32

	recvCh chan rawDatagram
	closed chan struct{}
}

// NewLinuxTransport opens one raw IPPROTO_OSPF socket shared by every
// named interface; Join adds the OSPF multicast groups per interface.
func newPlatformTransport(ifaceNames []string) (Transport, error) {
	return NewLinuxTransport(ifaceNames)
}

func NewLinuxTransport(ifaceNames []string) (Transport, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, IPProtocolOSPF)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_TTL, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}

	t := &linuxTransport{
		fd:      fd,
		ifaces:  make(map[string]*net.Interface),
		ifAddrs: make(map[string]uint32),
		recvCh:  make(chan rawDatagram, 64),
		closed:  make(chan struct{}),
	}
	for _, name := range ifaceNames {
		ifc, err := net.InterfaceByName(name)
		if err != nil {
			t.Close()
			return nil, err
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			t.Close()
			return nil, err
		}
		var v4 uint32
		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok {
				if ip4 := ipNet.IP.To4(); ip4 != nil {
					v4, _ = ParseIPv4ToUint32(ip4.String())
					break
				}
			}
		}
		t.ifaces[name] = ifc
		t.ifAddrs[name] = v4
	}

	go t.recvLoop()
	return t, nil
}

func (t *linuxTransport) Join(ifaceName string) error {
	ifc, ok := t.ifaces[ifaceName]
	if !ok {
		return xerrNoSuchInterface(ifaceName)
	}
	for _, group := range []string{AllSPFRouters, AllDRouters} {
		mreq := ipMreqn(net.ParseIP(group).To4(), t.ifAddrs[ifaceName], int32(ifc.Index))
		if err := unix.SetsockoptIPMreqn(t.fd, unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq); err != nil {
			return err
		}
	}
	return nil
}

func ipMreqn(group net.IP, ifAddr uint32, ifIndex int32) *unix.IPMreqn {
	m := &unix.IPMreqn{Ifindex: ifIndex}
	copy(m.Multiaddr[:], group.To4())
	addrBytes := Uint32ToIPv4(ifAddr).To4()
	copy(m.Address[:], addrBytes)
	return m
}

func (t *linuxTransport) Send(ifaceName, dest string, raw []byte) error {
	_, ok := t.ifaces[ifaceName]
	if !ok {
		return xerrNoSuchInterface(ifaceName)
	}
	var addr unix.SockaddrInet4
	copy(addr.Addr[:], net.ParseIP(dest).To4())
	return unix.Sendto(t.fd, raw, 0, &addr)
}

func (t *linuxTransport) recvLoop() {
	buf := getRecvBuffer()
	defer putRecvBuffer(buf)
	for {
		n, from, err := unix.Recvfrom(t.fd, buf, 0)
		select {
		case <-t.closed:
			return
		default:
		}
		if err != nil {
			continue
		}
		ihl := int(buf[0]&0x0f) * 4
		if ihl < 20 || n < ihl {
			continue
		}
		payload := make([]byte, n-ihl)
		copy(payload, buf[ihl:n])

		srcAddr := ""
		if sa4, ok := from.(*unix.SockaddrInet4); ok {
			srcAddr = net.IP(sa4.Addr[:]).String()
		} else {
			srcAddr = net.IP(buf[12:16]).String()
		}

		ifaceName := t.ifaceForDst(net.IP(buf[16:20]))
		select {
		case t.recvCh <- rawDatagram{ifaceName: ifaceName, src: srcAddr, payload: payload}:
		default:
		}
	}
}

func (t *linuxTransport) ifaceForDst(dst net.IP) string {
	if dst.Equal(net.ParseIP(AllSPFRouters)) || dst.Equal(net.ParseIP(AllDRouters)) {
		for name := range t.ifaces {
			return name
		}
	}
	for name, ifc := range t.ifaces {
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok && ipNet.IP.Equal(dst) {
				return name
			}
		}
	}
	return ""
}

func (t *linuxTransport) Recv(ctx context.Context) (string, string, []byte, error) {
	select {
	case <-ctx.Done():
		return "", "", nil, ctx.Err()
	case d := <-t.recvCh:
		return d.ifaceName, d.src, d.payload, nil
	}
}

func (t *linuxTransport) Close() error {
	select {
	case <-t.closed:
	default:
		close(t.closed)
	}
	return unix.Close(t.fd)
}
