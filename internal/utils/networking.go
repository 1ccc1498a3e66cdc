package utils

import (
	"fmt"
	"net"
	"slices"

	"github.com/samber/lo"
)

// CandidateURLs lists the WebSocket URLs a presenter could use to reach a
// projector listening on listenAddr. A wildcard host expands to every
// non-loopback IPv4 address of the machine.
func CandidateURLs(listenAddr string) ([]string, error) {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen address %q: %w", listenAddr, err)
	}

	if host != "" && host != "0.0.0.0" && host != "::" {
		return []string{wsURL(host, port)}, nil
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("interface addresses: %w", err)
	}
	ips := lo.FilterMap(addrs, func(a net.Addr, _ int) (string, bool) {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.IsLoopback() || ipn.IP.To4() == nil {
			return "", false
		}
		return ipn.IP.String(), true
	})
	slices.Sort(ips)
	ips = slices.Compact(ips)
	if len(ips) == 0 {
		ips = []string{"127.0.0.1"}
	}
	return lo.Map(ips, func(ip string, _ int) string { return wsURL(ip, port) }), nil
}

func wsURL(host, port string) string {
	return "ws://" + net.JoinHostPort(host, port)
}
