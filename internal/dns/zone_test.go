package dns

import (
	"reflect"
	"testing"
)

func TestZoneCandidates(t *testing.T) {
	tests := []struct {
		hostname string
		want     []string
	}{
		{"api.shop.local", []string{"api.shop.local", "shop.local"}},
		{"a.b.c.d", []string{"a.b.c.d", "b.c.d", "c.d"}},
		{"foo.local", []string{"foo.local", "local"}},
		{"Foo.Local.", []string{"foo.local", "local"}}, // case and trailing dot
		{"localhost", []string{"localhost"}},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			got := ZoneCandidates(tt.hostname)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ZoneCandidates(%q) = %v, want %v", tt.hostname, got, tt.want)
			}
		})
	}
}

func TestDefaultZone(t *testing.T) {
	tests := []struct {
		hostname string
		want     string
	}{
		{"beta.newsvc.local", "newsvc.local"},
		{"svc.shop.local", "shop.local"},
		{"deep.nested.example.com", "example.com"},
		{"foo.local", "foo.local"},
		{"localhost", "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			if got := DefaultZone(tt.hostname); got != tt.want {
				t.Errorf("DefaultZone(%q) = %q, want %q", tt.hostname, got, tt.want)
			}
		})
	}
}

func TestResolveZone(t *testing.T) {
	tests := []struct {
		name       string
		hostname   string
		existing   []string
		wantZone   string
		wantCreate bool
	}{
		{"existing suffix", "api.shop.local", []string{"shop.local"}, "shop.local", false},
		{"most specific wins", "api.shop.local", []string{"shop.local", "api.shop.local"}, "api.shop.local", false},
		{"case-insensitive match", "api.shop.local", []string{"Shop.Local"}, "shop.local", false},
		{"no match creates two-label zone", "beta.newsvc.local", []string{"shop.local"}, "newsvc.local", true},
		{"top label ignored for deep names", "beta.newsvc.local", []string{"local"}, "newsvc.local", true},
		{"top label used for two-label names", "foo.local", []string{"local"}, "local", false},
		{"empty zone list", "app.example.com", nil, "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zone, create := ResolveZone(tt.hostname, tt.existing)
			if zone != tt.wantZone {
				t.Errorf("zone: got %q, want %q", zone, tt.wantZone)
			}
			if create != tt.wantCreate {
				t.Errorf("create: got %v, want %v", create, tt.wantCreate)
			}
		})
	}
}
