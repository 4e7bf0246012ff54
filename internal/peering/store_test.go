package peering

import (
	"context"
	"errors"
	"testing"

	"github.com/HerbHall/peeringmanager/internal/query"
	"github.com/HerbHall/peeringmanager/internal/testutil"
	"github.com/HerbHall/peeringmanager/pkg/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := testutil.NewStore(t)
	if err := db.Migrate(context.Background(), "peering", migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(db.DB())
}

func mustAS(t *testing.T, s *Store, asn int64, name string) models.AutonomousSystem {
	t.Helper()
	as := testutil.NewAutonomousSystem(testutil.WithASN(asn, name))
	if err := s.CreateAutonomousSystem(context.Background(), &as); err != nil {
		t.Fatalf("CreateAutonomousSystem(%d): %v", asn, err)
	}
	return as
}

func mustIX(t *testing.T, s *Store, opts ...func(*models.InternetExchange)) models.InternetExchange {
	t.Helper()
	ix := testutil.NewInternetExchange(opts...)
	if err := s.CreateInternetExchange(context.Background(), &ix); err != nil {
		t.Fatalf("CreateInternetExchange: %v", err)
	}
	return ix
}

func mustSession(t *testing.T, s *Store, ixID, asID int64, addr string) models.PeeringSession {
	t.Helper()
	ps := testutil.NewPeeringSession(ixID, asID, testutil.WithAddress(addr))
	if err := s.CreatePeeringSession(context.Background(), &ps); err != nil {
		t.Fatalf("CreatePeeringSession(%s): %v", addr, err)
	}
	return ps
}

func TestAutonomousSystem_CRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	as := mustAS(t, s, 64500, "Example")
	if as.ID == 0 {
		t.Fatal("expected non-zero ID")
	}

	got, err := s.GetAutonomousSystemByASN(ctx, 64500)
	if err != nil {
		t.Fatalf("GetAutonomousSystemByASN: %v", err)
	}
	if got.ID != as.ID || got.Name != "Example" {
		t.Errorf("got %+v", got)
	}

	got.Name = "Renamed"
	if err := s.UpdateAutonomousSystem(ctx, got); err != nil {
		t.Fatalf("UpdateAutonomousSystem: %v", err)
	}
	again, _ := s.GetAutonomousSystem(ctx, as.ID)
	if again.Name != "Renamed" {
		t.Errorf("Name = %q, want Renamed", again.Name)
	}

	if err := s.DeleteAutonomousSystem(ctx, as.ID); err != nil {
		t.Fatalf("DeleteAutonomousSystem: %v", err)
	}
	if _, err := s.GetAutonomousSystem(ctx, as.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteAutonomousSystem(ctx, as.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestAutonomousSystem_DuplicateASN(t *testing.T) {
	s := testStore(t)
	mustAS(t, s, 64500, "Example")

	dup := testutil.NewAutonomousSystem(testutil.WithASN(64500, "Other"))
	if err := s.CreateAutonomousSystem(context.Background(), &dup); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate ASN error = %v, want ErrConflict", err)
	}
}

func TestInternetExchange_Communities(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	c1 := testutil.NewCommunity("Learned", "64500:1")
	c2 := testutil.NewCommunity("Customer", "64500:2")
	for _, c := range []*models.Community{&c1, &c2} {
		if err := s.CreateCommunity(ctx, c); err != nil {
			t.Fatalf("CreateCommunity: %v", err)
		}
	}

	ix := mustIX(t, s, func(ix *models.InternetExchange) { ix.Communities = []int64{c2.ID} })

	got, err := s.GetInternetExchangeBySlug(ctx, ix.Slug)
	if err != nil {
		t.Fatalf("GetInternetExchangeBySlug: %v", err)
	}
	if len(got.Communities) != 1 || got.Communities[0] != c2.ID {
		t.Errorf("Communities = %v, want [%d]", got.Communities, c2.ID)
	}

	if err := s.SetExchangeCommunities(ctx, ix.ID, []int64{c1.ID, c2.ID, c1.ID}); err != nil {
		t.Fatalf("SetExchangeCommunities: %v", err)
	}
	got, _ = s.GetInternetExchange(ctx, ix.ID)
	if len(got.Communities) != 2 {
		t.Errorf("Communities = %v, want both", got.Communities)
	}

	if err := s.SetExchangeCommunities(ctx, ix.ID, []int64{999}); !errors.Is(err, ErrInvalid) {
		t.Errorf("unknown community error = %v, want ErrInvalid", err)
	}
	if err := s.SetExchangeCommunities(ctx, 999, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown exchange error = %v, want ErrNotFound", err)
	}

	// Deleting a community unlinks it.
	if err := s.DeleteCommunity(ctx, c1.ID); err != nil {
		t.Fatalf("DeleteCommunity: %v", err)
	}
	got, _ = s.GetInternetExchange(ctx, ix.ID)
	if len(got.Communities) != 1 || got.Communities[0] != c2.ID {
		t.Errorf("Communities after delete = %v, want [%d]", got.Communities, c2.ID)
	}
}

func TestInternetExchange_UnknownTemplate(t *testing.T) {
	s := testStore(t)
	missing := int64(42)
	ix := testutil.NewInternetExchange(func(ix *models.InternetExchange) { ix.ConfigurationTemplateID = &missing })
	if err := s.CreateInternetExchange(context.Background(), &ix); !errors.Is(err, ErrInvalid) {
		t.Errorf("error = %v, want ErrInvalid", err)
	}
}

func TestPeeringSession_AddressUniquePerExchange(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	as := mustAS(t, s, 64500, "Example")
	ams := mustIX(t, s, testutil.WithSlug("AMS-IX", "ams-ix"))
	fra := mustIX(t, s, testutil.WithSlug("DE-CIX", "de-cix"))

	v6 := mustSession(t, s, ams.ID, as.ID, "2001:db8:ff::a")
	v4 := mustSession(t, s, ams.ID, as.ID, "198.51.100.10")
	mustSession(t, s, fra.ID, as.ID, "2001:db8:ff::a")

	got, err := s.GetPeeringSession(ctx, v4.ID)
	if err != nil {
		t.Fatalf("GetPeeringSession: %v", err)
	}
	if got.IPAddress != "198.51.100.10" || got.IPVersion != 4 {
		t.Errorf("session = %s v%d, want 198.51.100.10 v4", got.IPAddress, got.IPVersion)
	}
	got, _ = s.GetPeeringSession(ctx, v6.ID)
	if got.IPVersion != 6 {
		t.Errorf("IPVersion = %d, want 6", got.IPVersion)
	}

	dup := testutil.NewPeeringSession(ams.ID, as.ID, testutil.WithAddress("2001:db8:ff::a"))
	if err := s.CreatePeeringSession(ctx, &dup); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate address error = %v, want ErrConflict", err)
	}

	addrs, err := s.SessionAddresses(ctx, ams.ID)
	if err != nil {
		t.Fatalf("SessionAddresses: %v", err)
	}
	if len(addrs) != 2 || !addrs["2001:db8:ff::a"] || !addrs["198.51.100.10"] {
		t.Errorf("SessionAddresses = %v", addrs)
	}

	p, _ := query.Parse(map[string][]string{"internet_exchange": {"1"}}, sessionFilters)
	list, total, err := s.ListPeeringSessions(ctx, p)
	if err != nil {
		t.Fatalf("ListPeeringSessions: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Errorf("list = %d/%d, want 2/2", len(list), total)
	}
}

func TestExchangeSessions_OrderedByASN(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	high := mustAS(t, s, 64510, "High")
	low := mustAS(t, s, 64500, "Low")
	ix := mustIX(t, s)

	mustSession(t, s, ix.ID, high.ID, "2001:db8:ff::b")
	mustSession(t, s, ix.ID, low.ID, "198.51.100.10")
	mustSession(t, s, ix.ID, low.ID, "2001:db8:ff::a")

	sessions, err := s.ExchangeSessions(ctx, ix.ID)
	if err != nil {
		t.Fatalf("ExchangeSessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("len = %d, want 3", len(sessions))
	}
	want := []int64{64500, 64500, 64510}
	for i, rs := range sessions {
		if rs.AS.ASN != want[i] {
			t.Errorf("sessions[%d].AS.ASN = %d, want %d", i, rs.AS.ASN, want[i])
		}
		if rs.Session.AutonomousSystemID != rs.AS.ID {
			t.Errorf("sessions[%d] joined the wrong AS", i)
		}
	}
}

func TestDeleteInternetExchange_CascadesSessions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	as := mustAS(t, s, 64500, "Example")
	ix := mustIX(t, s)
	ps := mustSession(t, s, ix.ID, as.ID, "2001:db8:ff::a")

	if err := s.DeleteInternetExchange(ctx, ix.ID); err != nil {
		t.Fatalf("DeleteInternetExchange: %v", err)
	}
	if _, err := s.GetPeeringSession(ctx, ps.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("session after exchange delete error = %v, want ErrNotFound", err)
	}
}

func TestKnownPeeringDBIDs(t *testing.T) {
	s := testStore(t)
	mustIX(t, s, testutil.WithSlug("AMS-IX", "ams-ix"), testutil.WithPeeringDBID(7))
	mustIX(t, s, testutil.WithSlug("Private", "private"))

	known, err := s.KnownPeeringDBIDs(context.Background())
	if err != nil {
		t.Fatalf("KnownPeeringDBIDs: %v", err)
	}
	if len(known) != 1 || !known[7] {
		t.Errorf("known = %v, want {7}", known)
	}
}
