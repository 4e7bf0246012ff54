package peering

import (
	"context"
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"github.com/HerbHall/peeringmanager/internal/render"
	"github.com/HerbHall/peeringmanager/pkg/models"
)

var slugPattern = regexp.MustCompile(`^[-a-z0-9_]+$`)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return invalidf("%s is required", field)
	}
	return nil
}

func validateAutonomousSystem(_ context.Context, as *models.AutonomousSystem) error {
	if as.ASN <= 0 || as.ASN > 4294967295 {
		return invalidf("asn %d out of range", as.ASN)
	}
	if err := required("name", as.Name); err != nil {
		return err
	}
	if as.IPv6MaxPrefixes < 0 || as.IPv4MaxPrefixes < 0 {
		return invalidf("max prefixes must not be negative")
	}
	return nil
}

// validateLANAddress checks our address on an exchange LAN: an address or
// interface prefix of the given family.
func validateLANAddress(field, v string, family int) error {
	if v == "" {
		return nil
	}
	var addr netip.Addr
	if p, err := netip.ParsePrefix(v); err == nil {
		addr = p.Addr()
	} else if a, err := netip.ParseAddr(v); err == nil {
		addr = a
	} else {
		return invalidf("%s %q is not an IP address", field, v)
	}
	if (family == 4) != addr.Unmap().Is4() {
		return invalidf("%s %q is not an IPv%d address", field, v, family)
	}
	return nil
}

func validateInternetExchange(_ context.Context, ix *models.InternetExchange) error {
	if err := required("name", ix.Name); err != nil {
		return err
	}
	ix.Slug = strings.TrimSpace(ix.Slug)
	if !slugPattern.MatchString(ix.Slug) {
		return invalidf("slug %q must contain only lowercase letters, digits, hyphens and underscores", ix.Slug)
	}
	if err := validateLANAddress("ipv6_address", ix.IPv6Address, 6); err != nil {
		return err
	}
	if err := validateLANAddress("ipv4_address", ix.IPv4Address, 4); err != nil {
		return err
	}
	if ix.Communities == nil {
		ix.Communities = []int64{}
	}
	return nil
}

func validateRouter(_ context.Context, r *models.Router) error {
	if err := required("name", r.Name); err != nil {
		return err
	}
	if err := required("hostname", r.Hostname); err != nil {
		return err
	}
	return required("platform", r.Platform)
}

// validateSession normalises the session address and derives its version.
func validateSession(_ context.Context, ps *models.PeeringSession) error {
	if ps.InternetExchangeID <= 0 {
		return invalidf("internet_exchange is required")
	}
	if ps.AutonomousSystemID <= 0 {
		return invalidf("autonomous_system is required")
	}
	addr, version, err := models.ParseIPAddress(ps.IPAddress)
	if err != nil {
		return invalidf("%v", err)
	}
	ps.IPAddress, ps.IPVersion = addr.String(), version
	if ps.BGPState == "" {
		ps.BGPState = models.BGPStateUnknown
	}
	if !ps.BGPState.Valid() {
		return invalidf("unknown bgp_state %q", ps.BGPState)
	}
	return nil
}

func validateCommunity(_ context.Context, c *models.Community) error {
	if err := required("name", c.Name); err != nil {
		return err
	}
	c.Value = strings.TrimSpace(c.Value)
	if err := models.ValidateCommunityValue(c.Value); err != nil {
		return invalidf("%v", err)
	}
	return nil
}

func validateTemplate(_ context.Context, t *models.ConfigurationTemplate) error {
	if err := required("name", t.Name); err != nil {
		return err
	}
	if err := render.Check(t.Template); err != nil {
		return invalidf("template: %v", err)
	}
	return nil
}
