package peeringdb

// PeeringDB API response types. Only the fields used for import and
// synchronisation are decoded.

// response is the envelope wrapping every PeeringDB API reply.
type response[T any] struct {
	Data []T            `json:"data"`
	Meta map[string]any `json:"meta,omitempty"`
}

// Network is a PeeringDB "net" record.
type Network struct {
	ID            int64  `json:"id"`
	ASN           int64  `json:"asn"`
	Name          string `json:"name"`
	IRRASSet      string `json:"irr_as_set"`
	InfoPrefixes6 int    `json:"info_prefixes6"`
	InfoPrefixes4 int    `json:"info_prefixes4"`
}

// NetworkIXLan is a PeeringDB "netixlan" record: one network's presence on
// one exchange LAN.
type NetworkIXLan struct {
	ID       int64   `json:"id"`
	NetID    int64   `json:"net_id"`
	IXID     int64   `json:"ix_id"`
	IXLanID  int64   `json:"ixlan_id"`
	Name     string  `json:"name"`
	ASN      int64   `json:"asn"`
	IPAddr6  *string `json:"ipaddr6"`
	IPAddr4  *string `json:"ipaddr4"`
	Speed    int64   `json:"speed"`
	IsRSPeer bool    `json:"is_rs_peer"`
}

// IX is a PeeringDB "ix" record.
type IX struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	NameLong string `json:"name_long"`
	City     string `json:"city"`
	Country  string `json:"country"`
}

// Candidate is an internet exchange that can be imported from PeeringDB.
type Candidate struct {
	PeeringDBID int64  `json:"peeringdb_id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	IPv6Address string `json:"ipv6_address"`
	IPv4Address string `json:"ipv4_address"`
}

// Peer is a network present on an exchange LAN.
type Peer struct {
	ASN         int64  `json:"asn"`
	Name        string `json:"name"`
	IPv6Address string `json:"ipv6_address,omitempty"`
	IPv4Address string `json:"ipv4_address,omitempty"`
	IsRSPeer    bool   `json:"is_rs_peer"`
	// Configured is set by callers when a session to this peer already exists.
	Configured bool `json:"configured"`
}
