package render

import (
	"github.com/HerbHall/peeringmanager/pkg/models"
)

// Session pairs a peering session with its remote autonomous system.
type Session struct {
	Session models.PeeringSession
	AS      models.AutonomousSystem
}

// Exchange is everything rendered into an exchange configuration.
type Exchange struct {
	Exchange    models.InternetExchange
	Sessions    []Session
	Communities []models.Community
	// ConfigContext is the merged config context data, if any.
	ConfigContext map[string]any
}

// Group names, in rendering order.
const (
	GroupIPv6 = "ipv6"
	GroupIPv4 = "ipv4"
)

// ExchangeContext builds the template variables for an exchange:
//
//	internet_exchange  the exchange fields
//	peering_groups     [{name: "ipv6", sessions}, {name: "ipv4", sessions}]
//	communities        [{name, value}]
//	config_context     merged config context data
//
// Sessions keep their input order within each group.
func ExchangeContext(x Exchange) Context {
	v6 := make([]any, 0, len(x.Sessions))
	v4 := make([]any, 0, len(x.Sessions))
	for _, s := range x.Sessions {
		if s.Session.IPVersion == 4 {
			v4 = append(v4, sessionValue(s))
		} else {
			v6 = append(v6, sessionValue(s))
		}
	}

	communities := make([]any, 0, len(x.Communities))
	for _, c := range x.Communities {
		communities = append(communities, map[string]any{
			"name":  c.Name,
			"value": c.Value,
		})
	}

	cc := x.ConfigContext
	if cc == nil {
		cc = map[string]any{}
	}

	ix := x.Exchange
	return Context{
		"internet_exchange": map[string]any{
			"id":           ix.ID,
			"name":         ix.Name,
			"slug":         ix.Slug,
			"comment":      ix.Comment,
			"ipv6_address": ix.IPv6Address,
			"ipv4_address": ix.IPv4Address,
			"peeringdb_id": derefInt(ix.PeeringDBID),
		},
		"peering_groups": []any{
			map[string]any{"name": GroupIPv6, "sessions": v6},
			map[string]any{"name": GroupIPv4, "sessions": v4},
		},
		"communities":    communities,
		"config_context": cc,
	}
}

func sessionValue(s Session) map[string]any {
	ps, as := s.Session, s.AS
	return map[string]any{
		"id":           ps.ID,
		"ip_address":   ps.IPAddress,
		"ip_version":   ps.IPVersion,
		"enabled":      ps.Enabled,
		"password":     ps.Password,
		"comment":      ps.Comment,
		"bgp_state":    string(ps.BGPState),
		"peer_as":      as.ASN,
		"peer_as_name": as.Name,
		"autonomous_system": map[string]any{
			"asn":               as.ASN,
			"name":              as.Name,
			"irr_as_set":        as.IRRASSet,
			"ipv6_max_prefixes": as.IPv6MaxPrefixes,
			"ipv4_max_prefixes": as.IPv4MaxPrefixes,
		},
	}
}

func derefInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// RenderExchange renders an exchange's configuration template.
func RenderExchange(template string, x Exchange) (string, error) {
	return String(template, ExchangeContext(x))
}
