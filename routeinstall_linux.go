//go:build linux

package ospfd

import (
	"net"

	"github.com/vishvananda/netlink"
)

// NetlinkRouteInstaller pushes the Engine's computed route set into the
// Linux kernel's routing table via vishvananda/netlink, replacing
// (rather than diffing) this router's managed routes on every SPF run
// (§6).
type NetlinkRouteInstaller struct {
	Table   int
	Proto   int
	managed map[string]netlink.Route
}

func newPlatformRouteInstaller() RouteInstaller {
	return NewNetlinkRouteInstaller(routeTableMain)
}

// routeTableMain is the kernel's main routing table ID.
const routeTableMain = 254

// NewNetlinkRouteInstaller returns a RouteInstaller that installs
// routes into the given routing table with RTPROT_STATIC-style
// ownership so only this engine's own routes are ever replaced.
func NewNetlinkRouteInstaller(table int) *NetlinkRouteInstaller {
	return &NetlinkRouteInstaller{Table: table, Proto: 186, managed: make(map[string]netlink.Route)}
}

// Replace implements RouteInstaller: it installs every route in routes
// and removes any previously managed route no longer present.
func (r *NetlinkRouteInstaller) Replace(routes []Route) error {
	next := make(map[string]netlink.Route, len(routes))
	for _, rt := range routes {
		link, err := netlink.LinkByName(rt.IfaceName)
		if err != nil {
			continue
		}
		dst := &net.IPNet{IP: Uint32ToIPv4(rt.Destination), Mask: net.IPMask(Uint32ToIPv4(rt.Mask))}
		nr := netlink.Route{
			LinkIndex: link.Attrs().Index,
			Dst:       dst,
			Gw:        Uint32ToIPv4(rt.NextHop),
			Table:     r.Table,
			Protocol:  netlink.RouteProtocol(r.Proto),
			Priority:  int(rt.Metric),
		}
		if err := netlink.RouteReplace(&nr); err != nil {
			return err
		}
		next[dst.String()] = nr
	}
	for key, old := range r.managed {
		if _, keep := next[key]; !keep {
			_ = netlink.RouteDel(&old)
		}
	}
	r.managed = next
	return nil
}
