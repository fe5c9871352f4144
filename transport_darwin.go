//go:build darwin

package ospfd

import (
	"context"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// darwinTransport frames OSPF packets over Ethernet using gopacket/pcap,
// since macOS has no general raw-IP-protocol socket equivalent to
// Linux's AF_INET/SOCK_RAW. It derives the destination multicast MAC
// address from the well-known IPv4-multicast-to-Ethernet mapping
// (01:00:5e:00:00:xx) the way the rest of this codebase's packet
// builders compute derived addresses rather than looking them up.
type darwinTransport struct {
	handles map[string]*pcap.Handle
	ifaces  map[string]*net.Interface
	ifAddrs map[string]uint32
	recvCh  chan rawDatagram
	closed  chan struct{}
}

// NewDarwinTransport opens one pcap live handle per named interface,
// filtered to IPv4 protocol 89.
func newPlatformTransport(ifaceNames []string) (Transport, error) {
	return NewDarwinTransport(ifaceNames)
}

func NewDarwinTransport(ifaceNames []string) (Transport, error) {
	t := &darwinTransport{
		handles: make(map[string]*pcap.Handle),
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
		handle, err := pcap.OpenLive(name, 65536, true, pcap.BlockForever)
		if err != nil {
			t.Close()
			return nil, err
		}
		if err := handle.SetBPFFilter("ip proto 89"); err != nil {
			t.Close()
			return nil, err
		}
		addrs, _ := ifc.Addrs()
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
		t.handles[name] = handle
		go t.recvLoop(name, handle)
	}
	return t, nil
}

func multicastMAC(ip net.IP) net.HardwareAddr {
	ip4 := ip.To4()
	return net.HardwareAddr{0x01, 0x00, 0x5e, ip4[1] & 0x7f, ip4[2], ip4[3]}
}

func (t *darwinTransport) Join(ifaceName string) error {
	if _, ok := t.ifaces[ifaceName]; !ok {
		return xerrNoSuchInterface(ifaceName)
	}
	// pcap delivers all Ethernet traffic reaching the interface in
	// promiscuous mode; no explicit multicast-group join is needed on
	// the capture side, unlike the Linux raw-socket transport.
	return nil
}

func (t *darwinTransport) Send(ifaceName, dest string, raw []byte) error {
	handle, ok := t.handles[ifaceName]
	if !ok {
		return xerrNoSuchInterface(ifaceName)
	}
	ifc := t.ifaces[ifaceName]
	dstIP := net.ParseIP(dest).To4()

	eth := &layers.Ethernet{
		SrcMAC:       ifc.HardwareAddr,
		DstMAC:       multicastMAC(dstIP),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      1,
		Protocol: layers.IPProtocol(IPProtocolOSPF),
		SrcIP:    Uint32ToIPv4(t.ifAddrs[ifaceName]),
		DstIP:    dstIP,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, gopacket.Payload(raw)); err != nil {
		return err
	}
	return handle.WritePacketData(buf.Bytes())
}

func (t *darwinTransport) recvLoop(ifaceName string, handle *pcap.Handle) {
	src := gopacket.NewPacketSource(handle, layers.LayerTypeEthernet)
	for {
		select {
		case <-t.closed:
			return
		case packet, ok := <-src.Packets():
			if !ok {
				return
			}
			ipLayer := packet.Layer(layers.LayerTypeIPv4)
			if ipLayer == nil {
				continue
			}
			ip, _ := ipLayer.(*layers.IPv4)
			select {
			case t.recvCh <- rawDatagram{ifaceName: ifaceName, src: ip.SrcIP.String(), payload: ip.Payload}:
			default:
			}
		}
	}
}

func (t *darwinTransport) Recv(ctx context.Context) (string, string, []byte, error) {
	select {
	case <-ctx.Done():
		return "", "", nil, ctx.Err()
	case d := <-t.recvCh:
		return d.ifaceName, d.src, d.payload, nil
	}
}

func (t *darwinTransport) Close() error {
	select {
	case <-t.closed:
	default:
		close(t.closed)
	}
	for _, h := range t.handles {
		h.Close()
	}
	return nil
}
