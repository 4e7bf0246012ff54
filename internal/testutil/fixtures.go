package testutil

import (
	"github.com/HerbHall/peeringmanager/pkg/models"
)

// NewAutonomousSystem returns an AutonomousSystem with sensible defaults,
// suitable for test fixtures. Override fields with options or after creation.
func NewAutonomousSystem(opts ...func(*models.AutonomousSystem)) models.AutonomousSystem {
	as := models.AutonomousSystem{
		ASN:             64500,
		Name:            "Example Networks",
		IRRASSet:        "AS-EXAMPLE",
		IPv6MaxPrefixes: 10,
		IPv4MaxPrefixes: 50,
	}
	for _, opt := range opts {
		opt(&as)
	}
	return as
}

// WithASN sets the AS number and a matching name.
func WithASN(asn int64, name string) func(*models.AutonomousSystem) {
	return func(as *models.AutonomousSystem) {
		as.ASN = asn
		as.Name = name
	}
}

// NewInternetExchange returns an InternetExchange with sensible defaults.
func NewInternetExchange(opts ...func(*models.InternetExchange)) models.InternetExchange {
	ix := models.InternetExchange{
		Name:        "Example IX",
		Slug:        "example-ix",
		IPv6Address: "2001:db8:ff::1/64",
		IPv4Address: "198.51.100.1/24",
	}
	for _, opt := range opts {
		opt(&ix)
	}
	return ix
}

// WithSlug sets the exchange name and slug.
func WithSlug(name, slug string) func(*models.InternetExchange) {
	return func(ix *models.InternetExchange) {
		ix.Name = name
		ix.Slug = slug
	}
}

// WithPeeringDBID sets the exchange's PeeringDB netixlan id.
func WithPeeringDBID(id int64) func(*models.InternetExchange) {
	return func(ix *models.InternetExchange) { ix.PeeringDBID = &id }
}

// NewRouter returns a Router on the mock platform.
func NewRouter(opts ...func(*models.Router)) models.Router {
	r := models.Router{
		Name:     "edge-1",
		Hostname: "edge-1.example.net",
		Platform: "mock",
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// NewPeeringSession returns an enabled IPv6 session for the given exchange
// and autonomous system.
func NewPeeringSession(ixID, asID int64, opts ...func(*models.PeeringSession)) models.PeeringSession {
	s := models.PeeringSession{
		InternetExchangeID: ixID,
		AutonomousSystemID: asID,
		IPAddress:          "2001:db8:ff::a",
		IPVersion:          6,
		Enabled:            true,
		BGPState:           models.BGPStateUnknown,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithAddress sets the session address and derives its IP version.
func WithAddress(addr string) func(*models.PeeringSession) {
	return func(s *models.PeeringSession) {
		s.IPAddress = addr
		if _, v, err := models.ParseIPAddress(addr); err == nil {
			s.IPVersion = v
		}
	}
}

// NewCommunity returns a standard community.
func NewCommunity(name, value string) models.Community {
	return models.Community{Name: name, Value: value}
}

// NewConfigurationTemplate returns a template with the given body.
func NewConfigurationTemplate(name, body string) models.ConfigurationTemplate {
	return models.ConfigurationTemplate{Name: name, Template: body}
}
