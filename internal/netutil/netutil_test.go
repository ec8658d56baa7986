package netutil

import (
	"errors"
	"testing"

	psnet "github.com/shirou/gopsutil/v3/net"
)

func iface(name string, flags []string, addrs ...string) psnet.InterfaceStat {
	s := psnet.InterfaceStat{Name: name, Flags: flags}
	for _, a := range addrs {
		s.Addrs = append(s.Addrs, psnet.InterfaceAddr{Addr: a})
	}
	return s
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		ifaces  psnet.InterfaceStatList
		want    string
		wantErr bool
	}{
		{
			name: "skips loopback",
			ifaces: psnet.InterfaceStatList{
				iface("lo", []string{"up", "loopback"}, "127.0.0.1/8"),
				iface("eth0", []string{"up", "broadcast"}, "192.168.1.20/24"),
			},
			want: "192.168.1.20",
		},
		{
			name: "skips down interfaces",
			ifaces: psnet.InterfaceStatList{
				iface("eth0", []string{"broadcast"}, "10.0.0.5/24"),
				iface("eth1", []string{"up"}, "10.0.1.5/24"),
			},
			want: "10.0.1.5",
		},
		{
			name: "skips ipv6 and link-local",
			ifaces: psnet.InterfaceStatList{
				iface("eth0", []string{"up"}, "fe80::1/64", "169.254.3.4/16", "172.16.0.9/16"),
			},
			want: "172.16.0.9",
		},
		{
			name: "bare address",
			ifaces: psnet.InterfaceStatList{
				iface("eth0", []string{"up"}, "10.1.2.3"),
			},
			want: "10.1.2.3",
		},
		{
			name: "nothing usable",
			ifaces: psnet.InterfaceStatList{
				iface("lo", []string{"up", "loopback"}, "127.0.0.1/8"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := detect(func() (psnet.InterfaceStatList, error) { return tt.ifaces, nil })
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetect_ListError(t *testing.T) {
	_, err := detect(func() (psnet.InterfaceStatList, error) { return nil, errors.New("boom") })
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
