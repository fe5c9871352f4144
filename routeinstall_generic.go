//go:build !linux

package ospfd

// newPlatformRouteInstaller returns nil on platforms without a native
// route-table integration: the engine still computes routes,
// it just doesn't push them into the host's forwarding table.
func newPlatformRouteInstaller() RouteInstaller {
	return nil
}
