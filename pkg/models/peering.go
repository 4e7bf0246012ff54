package models

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// AutonomousSystem is a network operator identified by its ASN.
type AutonomousSystem struct {
	ID              int64     `json:"id" example:"1"`
	ASN             int64     `json:"asn" example:"64500"`
	Name            string    `json:"name" example:"Example Networks"`
	Comment         string    `json:"comment"`
	IRRASSet        string    `json:"irr_as_set" example:"AS-EXAMPLE"`
	IPv6MaxPrefixes int       `json:"ipv6_max_prefixes" example:"100"`
	IPv4MaxPrefixes int       `json:"ipv4_max_prefixes" example:"500"`
	PeeringDBID     *int64    `json:"peeringdb_id"`
	CreatedAt       time.Time `json:"created"`
	UpdatedAt       time.Time `json:"updated"`
}

// InternetExchange is a peering LAN where this network is present.
type InternetExchange struct {
	ID                      int64     `json:"id" example:"1"`
	Name                    string    `json:"name" example:"AMS-IX"`
	Slug                    string    `json:"slug" example:"ams-ix"`
	Comment                 string    `json:"comment"`
	IPv6Address             string    `json:"ipv6_address" example:"2001:db8::1/64"`
	IPv4Address             string    `json:"ipv4_address" example:"192.0.2.1/24"`
	ConfigurationTemplateID *int64    `json:"configuration_template"`
	RouterID                *int64    `json:"router"`
	PeeringDBID             *int64    `json:"peeringdb_id"`
	Communities             []int64   `json:"communities"`
	CreatedAt               time.Time `json:"created"`
	UpdatedAt               time.Time `json:"updated"`
}

// Router is a device reachable for configuration deployment. Platform
// selects the device driver.
type Router struct {
	ID        int64     `json:"id" example:"1"`
	Name      string    `json:"name" example:"edge-ams-1"`
	Hostname  string    `json:"hostname" example:"edge-ams-1.example.net"`
	Platform  string    `json:"platform" example:"junos"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"updated"`
}

// BGPState is the last known state of a peering session.
type BGPState string

const (
	BGPStateUnknown     BGPState = "unknown"
	BGPStateIdle        BGPState = "idle"
	BGPStateConnect     BGPState = "connect"
	BGPStateActive      BGPState = "active"
	BGPStateOpenSent    BGPState = "opensent"
	BGPStateOpenConfirm BGPState = "openconfirm"
	BGPStateEstablished BGPState = "established"
)

// Valid reports whether s is a known BGP state.
func (s BGPState) Valid() bool {
	switch s {
	case BGPStateUnknown, BGPStateIdle, BGPStateConnect, BGPStateActive,
		BGPStateOpenSent, BGPStateOpenConfirm, BGPStateEstablished:
		return true
	}
	return false
}

// PeeringSession is a BGP session with one autonomous system at one
// exchange. The address is stored in exactly one of the per-family columns;
// IPVersion reports which.
type PeeringSession struct {
	ID                 int64     `json:"id" example:"1"`
	InternetExchangeID int64     `json:"internet_exchange" example:"1"`
	AutonomousSystemID int64     `json:"autonomous_system" example:"1"`
	IPAddress          string    `json:"ip_address" example:"2001:db8::a"`
	IPVersion          int       `json:"ip_version" example:"6"`
	Enabled            bool      `json:"enabled"`
	Password           string    `json:"password,omitempty"`
	Comment            string    `json:"comment"`
	BGPState           BGPState  `json:"bgp_state" example:"established"`
	CreatedAt          time.Time `json:"created"`
	UpdatedAt          time.Time `json:"updated"`
}

// Community is a BGP community attached to an exchange's routes.
type Community struct {
	ID        int64     `json:"id" example:"1"`
	Name      string    `json:"name" example:"Learned at AMS-IX"`
	Value     string    `json:"value" example:"64500:1"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"updated"`
}

// ConfigurationTemplate holds router configuration template text.
type ConfigurationTemplate struct {
	ID        int64     `json:"id" example:"1"`
	Name      string    `json:"name" example:"junos-ix"`
	Template  string    `json:"template"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"updated"`
}

// ParseIPAddress parses a peering address, with or without a prefix length,
// and returns the bare address with its IP version (4 or 6).
func ParseIPAddress(s string) (netip.Addr, int, error) {
	s = strings.TrimSpace(s)
	addr, err := netip.ParseAddr(s)
	if err != nil {
		prefix, perr := netip.ParsePrefix(s)
		if perr != nil {
			return netip.Addr{}, 0, fmt.Errorf("invalid IP address %q", s)
		}
		addr = prefix.Addr()
	}
	addr = addr.Unmap()
	if addr.Is4() {
		return addr, 4, nil
	}
	return addr, 6, nil
}

var communityPattern = regexp.MustCompile(`^\d+:\d+(:\d+)?$`)

// ValidateCommunityValue checks a standard (asn:value) or large (a:b:c)
// community. Standard parts are 16-bit, large parts 32-bit.
func ValidateCommunityValue(v string) error {
	if !communityPattern.MatchString(v) {
		return fmt.Errorf("community %q must be asn:value or a:b:c", v)
	}
	parts := strings.Split(v, ":")
	bits := 16
	if len(parts) == 3 {
		bits = 32
	}
	for _, p := range parts {
		if _, err := strconv.ParseUint(p, 10, bits); err != nil {
			return fmt.Errorf("community %q: part %q exceeds %d bits", v, p, bits)
		}
	}
	return nil
}
