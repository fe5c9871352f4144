// Package ospfd implements the OSPFv2 link-state interior gateway
// protocol (RFC 2328) for IPv4.
//
// The package is organized the way packemon lays out its protocol
// codecs — one flat package, one file per concern — but adds the
// long-lived state machines, the link-state database and the SPF
// computation a packet crafting tool never needed: per-interface and
// per-neighbor finite state machines, reliable flooding with
// retransmission lists, LSA aging, and Dijkstra-based route
// computation. Everything that talks to the outside world (raw
// sockets, the kernel routing table) sits behind the Transport and
// RouteInstaller interfaces declared in engine.go (their platform
// constructors live in transport.go and routeinstall.go) so the core
// engine never imports a platform package directly.
package ospfd
