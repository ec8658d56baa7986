// Package netutil discovers the local address the reverse proxy listens on.
package netutil

import (
	"fmt"
	"net"
	"slices"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// InterfaceLister returns the host's network interfaces.
type InterfaceLister func() (psnet.InterfaceStatList, error)

// DetectIPv4 returns the first IPv4 address of an interface that is up and not
// loopback. Link-local and multicast addresses are skipped.
func DetectIPv4() (string, error) {
	return detect(psnet.Interfaces)
}

func detect(list InterfaceLister) (string, error) {
	ifaces, err := list()
	if err != nil {
		return "", fmt.Errorf("listing interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			ip, _, err := net.ParseCIDR(a.Addr)
			if err != nil {
				ip = net.ParseIP(a.Addr)
			}
			if ip == nil || ip.To4() == nil {
				continue
			}
			if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsMulticast() || ip.IsUnspecified() {
				continue
			}
			return ip.String(), nil
		}
	}
	return "", fmt.Errorf("no usable IPv4 address found")
}
