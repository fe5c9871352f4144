package ospfd

// NewPlatformRouteInstaller returns the RouteInstaller appropriate for
// the host OS: netlink-backed on Linux, nil (compute-only, no kernel
// install) elsewhere.
func NewPlatformRouteInstaller() RouteInstaller {
	return newPlatformRouteInstaller()
}
