package peeringdb

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/peeringmanager/pkg/models"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9-]`)

// Slugify converts an exchange name to a URL-safe slug.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	s = slugRegexp.ReplaceAllString(s, "")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")
	if s == "" {
		return "ix"
	}
	return s
}

// ImportCandidates lists the exchange LANs asn is present on, skipping any
// whose netixlan id is in known. Each id appears at most once. Records
// without a name are resolved through the ix endpoint.
func (c *Client) ImportCandidates(ctx context.Context, asn int64, known map[int64]bool) ([]Candidate, error) {
	netixlans, err := c.GetIXNetworksForASN(ctx, asn)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(netixlans))
	var pending []NetworkIXLan
	for _, n := range netixlans {
		if known[n.ID] || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		pending = append(pending, n)
	}

	names := make([]string, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, n := range pending {
		if n.Name != "" {
			names[i] = n.Name
			continue
		}
		g.Go(func() error {
			ix, err := c.GetIX(gctx, n.IXID)
			if err != nil {
				return fmt.Errorf("resolve name of netixlan %d: %w", n.ID, err)
			}
			names[i] = ix.Name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(pending))
	for i, n := range pending {
		out = append(out, Candidate{
			PeeringDBID: n.ID,
			Name:        names[i],
			Slug:        Slugify(names[i]),
			IPv6Address: deref(n.IPAddr6),
			IPv4Address: deref(n.IPAddr4),
		})
	}
	return out, nil
}

// Peers lists the networks present on the same exchange LAN as the
// netixlan record id, ordered by ASN then address.
func (c *Client) Peers(ctx context.Context, netixlanID int64) ([]Peer, error) {
	own, err := c.GetIXNetwork(ctx, netixlanID)
	if err != nil {
		return nil, err
	}
	records, err := c.GetPeersForIX(ctx, own.IXID)
	if err != nil {
		return nil, err
	}

	peers := make([]Peer, 0, len(records))
	for _, r := range records {
		if r.ASN == own.ASN {
			continue
		}
		peers = append(peers, Peer{
			ASN:         r.ASN,
			Name:        r.Name,
			IPv6Address: deref(r.IPAddr6),
			IPv4Address: deref(r.IPAddr4),
			IsRSPeer:    r.IsRSPeer,
		})
	}
	sort.SliceStable(peers, func(i, j int) bool {
		if peers[i].ASN != peers[j].ASN {
			return peers[i].ASN < peers[j].ASN
		}
		return peers[i].IPv6Address+peers[i].IPv4Address < peers[j].IPv6Address+peers[j].IPv4Address
	})
	return peers, nil
}

// ApplyNetwork copies the PeeringDB fields of n onto as. It reports whether
// anything changed.
func ApplyNetwork(as *models.AutonomousSystem, n Network) bool {
	before := *as
	as.Name = n.Name
	as.IRRASSet = n.IRRASSet
	as.IPv6MaxPrefixes = n.InfoPrefixes6
	as.IPv4MaxPrefixes = n.InfoPrefixes4
	id := n.ID
	as.PeeringDBID = &id

	changed := before.Name != as.Name || before.IRRASSet != as.IRRASSet ||
		before.IPv6MaxPrefixes != as.IPv6MaxPrefixes || before.IPv4MaxPrefixes != as.IPv4MaxPrefixes
	if before.PeeringDBID == nil || *before.PeeringDBID != id {
		changed = true
	}
	return changed
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
