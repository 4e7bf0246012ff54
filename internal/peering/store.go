package peering

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HerbHall/peeringmanager/internal/query"
	"github.com/HerbHall/peeringmanager/internal/render"
	"github.com/HerbHall/peeringmanager/internal/store"
	"github.com/HerbHall/peeringmanager/pkg/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
	// ErrInvalid is returned for writes rejected by validation or a CHECK or
	// foreign key constraint.
	ErrInvalid = errors.New("invalid")
)

// Store provides database operations for the peering module.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// dbErr maps driver constraint failures onto the package sentinels.
func dbErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case store.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	case store.IsCheckViolation(err), store.IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w: %v", op, ErrInvalid, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func now() time.Time { return time.Now().UTC() }

func exec(ctx context.Context, db *sql.DB, op, stmt string, args ...any) (sql.Result, error) {
	res, err := db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, dbErr(op, err)
	}
	return res, nil
}

// execOne runs stmt and returns ErrNotFound when no row was affected.
func execOne(ctx context.Context, db *sql.DB, op, stmt string, args ...any) error {
	res, err := exec(ctx, db, op, stmt, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func scanTimes(created, updated string, c, u *time.Time) error {
	var err error
	if *c, err = store.ParseTime(created); err != nil {
		return err
	}
	*u, err = store.ParseTime(updated)
	return err
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// --- Autonomous systems ---

const asColumns = `id, asn, name, comment, irr_as_set, ipv6_max_prefixes, ipv4_max_prefixes, peeringdb_id, created, updated`

var asFilters = query.FilterSet{
	Filters: []query.Filter{
		{Param: "id", Column: "id", Kind: query.Int},
		{Param: "asn", Column: "asn", Kind: query.Int},
		{Param: "name", Column: "name", Kind: query.Exact},
		{Param: "irr_as_set", Column: "irr_as_set", Kind: query.Exact},
		{Param: "peeringdb_id", Column: "peeringdb_id", Kind: query.Int},
	},
	Search: []string{"name", "irr_as_set", "comment", "CAST(asn AS TEXT)"},
}

func scanAS(s query.Scanner) (models.AutonomousSystem, error) {
	var (
		as               models.AutonomousSystem
		pdb              sql.NullInt64
		created, updated string
	)
	if err := s.Scan(&as.ID, &as.ASN, &as.Name, &as.Comment, &as.IRRASSet,
		&as.IPv6MaxPrefixes, &as.IPv4MaxPrefixes, &pdb, &created, &updated); err != nil {
		return as, err
	}
	as.PeeringDBID = intPtr(pdb)
	return as, scanTimes(created, updated, &as.CreatedAt, &as.UpdatedAt)
}

// ListAutonomousSystems returns one page of autonomous systems ordered by ASN.
func (s *Store) ListAutonomousSystems(ctx context.Context, p query.Params) ([]models.AutonomousSystem, int, error) {
	return query.Run(ctx, s.db, "peering_autonomous_systems", asColumns, "asn", p, scanAS)
}

// GetAutonomousSystem returns the autonomous system with id.
func (s *Store) GetAutonomousSystem(ctx context.Context, id int64) (*models.AutonomousSystem, error) {
	as, err := scanAS(s.db.QueryRowContext(ctx, `SELECT `+asColumns+` FROM peering_autonomous_systems WHERE id = ?`, id))
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get autonomous system %d", id), err)
	}
	return &as, nil
}

// GetAutonomousSystemByASN returns the autonomous system numbered asn.
func (s *Store) GetAutonomousSystemByASN(ctx context.Context, asn int64) (*models.AutonomousSystem, error) {
	as, err := scanAS(s.db.QueryRowContext(ctx, `SELECT `+asColumns+` FROM peering_autonomous_systems WHERE asn = ?`, asn))
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get AS%d", asn), err)
	}
	return &as, nil
}

// CreateAutonomousSystem inserts as and sets its id and timestamps.
func (s *Store) CreateAutonomousSystem(ctx context.Context, as *models.AutonomousSystem) error {
	t := now()
	res, err := exec(ctx, s.db, "create autonomous system", `
		INSERT INTO peering_autonomous_systems (asn, name, comment, irr_as_set, ipv6_max_prefixes, ipv4_max_prefixes, peeringdb_id, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		as.ASN, as.Name, as.Comment, as.IRRASSet, as.IPv6MaxPrefixes, as.IPv4MaxPrefixes, nullInt(as.PeeringDBID),
		store.FormatTime(t), store.FormatTime(t))
	if err != nil {
		return err
	}
	as.ID, _ = res.LastInsertId()
	as.CreatedAt, as.UpdatedAt = t, t
	return nil
}

// UpdateAutonomousSystem writes every field of as.
func (s *Store) UpdateAutonomousSystem(ctx context.Context, as *models.AutonomousSystem) error {
	t := now()
	err := execOne(ctx, s.db, fmt.Sprintf("update autonomous system %d", as.ID), `
		UPDATE peering_autonomous_systems
		SET asn = ?, name = ?, comment = ?, irr_as_set = ?, ipv6_max_prefixes = ?, ipv4_max_prefixes = ?, peeringdb_id = ?, updated = ?
		WHERE id = ?`,
		as.ASN, as.Name, as.Comment, as.IRRASSet, as.IPv6MaxPrefixes, as.IPv4MaxPrefixes, nullInt(as.PeeringDBID),
		store.FormatTime(t), as.ID)
	if err == nil {
		as.UpdatedAt = t
	}
	return err
}

// DeleteAutonomousSystem removes the autonomous system and its sessions.
func (s *Store) DeleteAutonomousSystem(ctx context.Context, id int64) error {
	return execOne(ctx, s.db, fmt.Sprintf("delete autonomous system %d", id),
		`DELETE FROM peering_autonomous_systems WHERE id = ?`, id)
}

// --- Configuration templates ---

const templateColumns = `id, name, template, comment, created, updated`

var templateFilters = query.FilterSet{
	Filters: []query.Filter{
		{Param: "id", Column: "id", Kind: query.Int},
		{Param: "name", Column: "name", Kind: query.Exact},
		{Param: "updated_after", Column: "updated", Kind: query.After},
		{Param: "updated_before", Column: "updated", Kind: query.Before},
	},
	Search: []string{"name", "template", "comment"},
}

func scanTemplate(s query.Scanner) (models.ConfigurationTemplate, error) {
	var (
		t                models.ConfigurationTemplate
		created, updated string
	)
	if err := s.Scan(&t.ID, &t.Name, &t.Template, &t.Comment, &created, &updated); err != nil {
		return t, err
	}
	return t, scanTimes(created, updated, &t.CreatedAt, &t.UpdatedAt)
}

// ListConfigurationTemplates returns one page of templates ordered by name.
func (s *Store) ListConfigurationTemplates(ctx context.Context, p query.Params) ([]models.ConfigurationTemplate, int, error) {
	return query.Run(ctx, s.db, "peering_configuration_templates", templateColumns, "name, id", p, scanTemplate)
}

// GetConfigurationTemplate returns the template with id.
func (s *Store) GetConfigurationTemplate(ctx context.Context, id int64) (*models.ConfigurationTemplate, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM peering_configuration_templates WHERE id = ?`, id))
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get configuration template %d", id), err)
	}
	return &t, nil
}

// CreateConfigurationTemplate inserts t.
func (s *Store) CreateConfigurationTemplate(ctx context.Context, t *models.ConfigurationTemplate) error {
	ts := now()
	res, err := exec(ctx, s.db, "create configuration template",
		`INSERT INTO peering_configuration_templates (name, template, comment, created, updated) VALUES (?, ?, ?, ?, ?)`,
		t.Name, t.Template, t.Comment, store.FormatTime(ts), store.FormatTime(ts))
	if err != nil {
		return err
	}
	t.ID, _ = res.LastInsertId()
	t.CreatedAt, t.UpdatedAt = ts, ts
	return nil
}

// UpdateConfigurationTemplate writes every field of t.
func (s *Store) UpdateConfigurationTemplate(ctx context.Context, t *models.ConfigurationTemplate) error {
	ts := now()
	err := execOne(ctx, s.db, fmt.Sprintf("update configuration template %d", t.ID),
		`UPDATE peering_configuration_templates SET name = ?, template = ?, comment = ?, updated = ? WHERE id = ?`,
		t.Name, t.Template, t.Comment, store.FormatTime(ts), t.ID)
	if err == nil {
		t.UpdatedAt = ts
	}
	return err
}

// DeleteConfigurationTemplate removes the template. Exchanges using it
// keep existing without one.
func (s *Store) DeleteConfigurationTemplate(ctx context.Context, id int64) error {
	return execOne(ctx, s.db, fmt.Sprintf("delete configuration template %d", id),
		`DELETE FROM peering_configuration_templates WHERE id = ?`, id)
}

// --- Routers ---

const routerColumns = `id, name, hostname, platform, comment, created, updated`

var routerFilters = query.FilterSet{
	Filters: []query.Filter{
		{Param: "id", Column: "id", Kind: query.Int},
		{Param: "name", Column: "name", Kind: query.Exact},
		{Param: "hostname", Column: "hostname", Kind: query.Exact},
		{Param: "platform", Column: "platform", Kind: query.Exact},
	},
	Search: []string{"name", "hostname", "platform", "comment"},
}

func scanRouter(s query.Scanner) (models.Router, error) {
	var (
		r                models.Router
		created, updated string
	)
	if err := s.Scan(&r.ID, &r.Name, &r.Hostname, &r.Platform, &r.Comment, &created, &updated); err != nil {
		return r, err
	}
	return r, scanTimes(created, updated, &r.CreatedAt, &r.UpdatedAt)
}

// ListRouters returns one page of routers ordered by name.
func (s *Store) ListRouters(ctx context.Context, p query.Params) ([]models.Router, int, error) {
	return query.Run(ctx, s.db, "peering_routers", routerColumns, "name, id", p, scanRouter)
}

// GetRouter returns the router with id.
func (s *Store) GetRouter(ctx context.Context, id int64) (*models.Router, error) {
	r, err := scanRouter(s.db.QueryRowContext(ctx, `SELECT `+routerColumns+` FROM peering_routers WHERE id = ?`, id))
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get router %d", id), err)
	}
	return &r, nil
}

// CreateRouter inserts r.
func (s *Store) CreateRouter(ctx context.Context, r *models.Router) error {
	t := now()
	res, err := exec(ctx, s.db, "create router",
		`INSERT INTO peering_routers (name, hostname, platform, comment, created, updated) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Name, r.Hostname, r.Platform, r.Comment, store.FormatTime(t), store.FormatTime(t))
	if err != nil {
		return err
	}
	r.ID, _ = res.LastInsertId()
	r.CreatedAt, r.UpdatedAt = t, t
	return nil
}

// UpdateRouter writes every field of r.
func (s *Store) UpdateRouter(ctx context.Context, r *models.Router) error {
	t := now()
	err := execOne(ctx, s.db, fmt.Sprintf("update router %d", r.ID),
		`UPDATE peering_routers SET name = ?, hostname = ?, platform = ?, comment = ?, updated = ? WHERE id = ?`,
		r.Name, r.Hostname, r.Platform, r.Comment, store.FormatTime(t), r.ID)
	if err == nil {
		r.UpdatedAt = t
	}
	return err
}

// DeleteRouter removes the router. Exchanges using it are detached.
func (s *Store) DeleteRouter(ctx context.Context, id int64) error {
	return execOne(ctx, s.db, fmt.Sprintf("delete router %d", id), `DELETE FROM peering_routers WHERE id = ?`, id)
}

// --- Communities ---

const communityColumns = `id, name, value, comment, created, updated`

var communityFilters = query.FilterSet{
	Filters: []query.Filter{
		{Param: "id", Column: "id", Kind: query.Int},
		{Param: "name", Column: "name", Kind: query.Exact},
		{Param: "value", Column: "value", Kind: query.Exact},
	},
	Search: []string{"name", "value", "comment"},
}

func scanCommunity(s query.Scanner) (models.Community, error) {
	var (
		c                models.Community
		created, updated string
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Value, &c.Comment, &created, &updated); err != nil {
		return c, err
	}
	return c, scanTimes(created, updated, &c.CreatedAt, &c.UpdatedAt)
}

// ListCommunities returns one page of communities ordered by value.
func (s *Store) ListCommunities(ctx context.Context, p query.Params) ([]models.Community, int, error) {
	return query.Run(ctx, s.db, "peering_communities", communityColumns, "value, id", p, scanCommunity)
}

// GetCommunity returns the community with id.
func (s *Store) GetCommunity(ctx context.Context, id int64) (*models.Community, error) {
	c, err := scanCommunity(s.db.QueryRowContext(ctx, `SELECT `+communityColumns+` FROM peering_communities WHERE id = ?`, id))
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get community %d", id), err)
	}
	return &c, nil
}

// CreateCommunity inserts c.
func (s *Store) CreateCommunity(ctx context.Context, c *models.Community) error {
	t := now()
	res, err := exec(ctx, s.db, "create community",
		`INSERT INTO peering_communities (name, value, comment, created, updated) VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Value, c.Comment, store.FormatTime(t), store.FormatTime(t))
	if err != nil {
		return err
	}
	c.ID, _ = res.LastInsertId()
	c.CreatedAt, c.UpdatedAt = t, t
	return nil
}

// UpdateCommunity writes every field of c.
func (s *Store) UpdateCommunity(ctx context.Context, c *models.Community) error {
	t := now()
	err := execOne(ctx, s.db, fmt.Sprintf("update community %d", c.ID),
		`UPDATE peering_communities SET name = ?, value = ?, comment = ?, updated = ? WHERE id = ?`,
		c.Name, c.Value, c.Comment, store.FormatTime(t), c.ID)
	if err == nil {
		c.UpdatedAt = t
	}
	return err
}

// DeleteCommunity removes the community from every exchange and deletes it.
func (s *Store) DeleteCommunity(ctx context.Context, id int64) error {
	return execOne(ctx, s.db, fmt.Sprintf("delete community %d", id), `DELETE FROM peering_communities WHERE id = ?`, id)
}

// CommunitiesByID returns the communities with the given ids ordered by value.
func (s *Store) CommunitiesByID(ctx context.Context, ids []int64) ([]models.Community, error) {
	if len(ids) == 0 {
		return []models.Community{}, nil
	}
	where, args := inClause("id", ids)
	return query.All(ctx, s.db, "peering_communities", communityColumns, where, "value, id", args, scanCommunity)
}

func inClause(col string, ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return col + " IN (" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")", args
}

// --- Internet exchanges ---

const ixColumns = `id, name, slug, comment, ipv6_address, ipv4_address, configuration_template_id, router_id, peeringdb_id, created, updated`

var ixFilters = query.FilterSet{
	Filters: []query.Filter{
		{Param: "id", Column: "id", Kind: query.Int},
		{Param: "name", Column: "name", Kind: query.Exact},
		{Param: "slug", Column: "slug", Kind: query.Exact},
		{Param: "configuration_template", Column: "configuration_template_id", Kind: query.Int},
		{Param: "router", Column: "router_id", Kind: query.Int},
		{Param: "peeringdb_id", Column: "peeringdb_id", Kind: query.Int},
	},
	Search: []string{"name", "slug", "comment", "ipv6_address", "ipv4_address"},
}

func scanIX(s query.Scanner) (models.InternetExchange, error) {
	var (
		ix                models.InternetExchange
		tmpl, router, pdb sql.NullInt64
		created, updated  string
	)
	if err := s.Scan(&ix.ID, &ix.Name, &ix.Slug, &ix.Comment, &ix.IPv6Address, &ix.IPv4Address,
		&tmpl, &router, &pdb, &created, &updated); err != nil {
		return ix, err
	}
	ix.ConfigurationTemplateID = intPtr(tmpl)
	ix.RouterID = intPtr(router)
	ix.PeeringDBID = intPtr(pdb)
	ix.Communities = []int64{}
	return ix, scanTimes(created, updated, &ix.CreatedAt, &ix.UpdatedAt)
}

// attachCommunities fills the Communities field of every exchange.
func (s *Store) attachCommunities(ctx context.Context, ixs []models.InternetExchange) error {
	if len(ixs) == 0 {
		return nil
	}
	ids := make([]int64, len(ixs))
	index := make(map[int64]int, len(ixs))
	for i, ix := range ixs {
		ids[i] = ix.ID
		index[ix.ID] = i
	}
	where, args := inClause("internet_exchange_id", ids)
	type link struct{ ix, community int64 }
	links, err := query.All(ctx, s.db, "peering_internet_exchange_communities", "internet_exchange_id, community_id",
		where, "internet_exchange_id, community_id", args, func(sc query.Scanner) (link, error) {
			var l link
			err := sc.Scan(&l.ix, &l.community)
			return l, err
		})
	if err != nil {
		return err
	}
	for _, l := range links {
		i := index[l.ix]
		ixs[i].Communities = append(ixs[i].Communities, l.community)
	}
	return nil
}

// ListInternetExchanges returns one page of exchanges ordered by name.
func (s *Store) ListInternetExchanges(ctx context.Context, p query.Params) ([]models.InternetExchange, int, error) {
	ixs, total, err := query.Run(ctx, s.db, "peering_internet_exchanges", ixColumns, "name, id", p, scanIX)
	if err != nil {
		return nil, 0, err
	}
	return ixs, total, s.attachCommunities(ctx, ixs)
}

func (s *Store) getIX(ctx context.Context, op, where string, arg any) (*models.InternetExchange, error) {
	ix, err := scanIX(s.db.QueryRowContext(ctx, `SELECT `+ixColumns+` FROM peering_internet_exchanges WHERE `+where, arg))
	if err != nil {
		return nil, dbErr(op, err)
	}
	one := []models.InternetExchange{ix}
	if err := s.attachCommunities(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// GetInternetExchange returns the exchange with id.
func (s *Store) GetInternetExchange(ctx context.Context, id int64) (*models.InternetExchange, error) {
	return s.getIX(ctx, fmt.Sprintf("get internet exchange %d", id), "id = ?", id)
}

// GetInternetExchangeBySlug returns the exchange with slug.
func (s *Store) GetInternetExchangeBySlug(ctx context.Context, slug string) (*models.InternetExchange, error) {
	return s.getIX(ctx, fmt.Sprintf("get internet exchange %q", slug), "slug = ?", slug)
}

// KnownPeeringDBIDs returns the PeeringDB ids of every local exchange.
func (s *Store) KnownPeeringDBIDs(ctx context.Context) (map[int64]bool, error) {
	ids, err := query.All(ctx, s.db, "peering_internet_exchanges", "peeringdb_id", "peeringdb_id IS NOT NULL", "peeringdb_id", nil,
		func(sc query.Scanner) (int64, error) {
			var id int64
			err := sc.Scan(&id)
			return id, err
		})
	if err != nil {
		return nil, err
	}
	known := make(map[int64]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return known, nil
}

// CreateInternetExchange inserts ix and its community links in one
// transaction.
func (s *Store) CreateInternetExchange(ctx context.Context, ix *models.InternetExchange) error {
	t := now()
	err := store.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO peering_internet_exchanges (name, slug, comment, ipv6_address, ipv4_address, configuration_template_id, router_id, peeringdb_id, created, updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ix.Name, ix.Slug, ix.Comment, ix.IPv6Address, ix.IPv4Address,
			nullInt(ix.ConfigurationTemplateID), nullInt(ix.RouterID), nullInt(ix.PeeringDBID),
			store.FormatTime(t), store.FormatTime(t))
		if err != nil {
			return err
		}
		ix.ID, _ = res.LastInsertId()
		return setCommunities(ctx, tx, ix.ID, ix.Communities)
	})
	if err != nil {
		return dbErr("create internet exchange", err)
	}
	ix.CreatedAt, ix.UpdatedAt = t, t
	if ix.Communities == nil {
		ix.Communities = []int64{}
	}
	return nil
}

// UpdateInternetExchange writes every field of ix, replacing its
// community links.
func (s *Store) UpdateInternetExchange(ctx context.Context, ix *models.InternetExchange) error {
	t := now()
	err := store.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE peering_internet_exchanges
			SET name = ?, slug = ?, comment = ?, ipv6_address = ?, ipv4_address = ?,
			    configuration_template_id = ?, router_id = ?, peeringdb_id = ?, updated = ?
			WHERE id = ?`,
			ix.Name, ix.Slug, ix.Comment, ix.IPv6Address, ix.IPv4Address,
			nullInt(ix.ConfigurationTemplateID), nullInt(ix.RouterID), nullInt(ix.PeeringDBID),
			store.FormatTime(t), ix.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sql.ErrNoRows
		}
		return setCommunities(ctx, tx, ix.ID, ix.Communities)
	})
	if err != nil {
		return dbErr(fmt.Sprintf("update internet exchange %d", ix.ID), err)
	}
	ix.UpdatedAt = t
	return nil
}

// SetExchangeCommunities replaces the community links of exchange id.
func (s *Store) SetExchangeCommunities(ctx context.Context, id int64, communities []int64) error {
	err := store.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE peering_internet_exchanges SET updated = ? WHERE id = ?`, store.FormatTime(now()), id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sql.ErrNoRows
		}
		return setCommunities(ctx, tx, id, communities)
	})
	return dbErr(fmt.Sprintf("set communities of internet exchange %d", id), err)
}

func setCommunities(ctx context.Context, tx *sql.Tx, ixID int64, communities []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM peering_internet_exchange_communities WHERE internet_exchange_id = ?`, ixID); err != nil {
		return err
	}
	for _, c := range communities {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO peering_internet_exchange_communities (internet_exchange_id, community_id) VALUES (?, ?)`,
			ixID, c); err != nil {
			return err
		}
	}
	return nil
}

// DeleteInternetExchange removes the exchange and its sessions.
func (s *Store) DeleteInternetExchange(ctx context.Context, id int64) error {
	return execOne(ctx, s.db, fmt.Sprintf("delete internet exchange %d", id),
		`DELETE FROM peering_internet_exchanges WHERE id = ?`, id)
}

// --- Peering sessions ---

const sessionColumns = `id, internet_exchange_id, autonomous_system_id, ipv6_address, ipv4_address, enabled, password, comment, bgp_state, created, updated`

var sessionFilters = query.FilterSet{
	Filters: []query.Filter{
		{Param: "id", Column: "id", Kind: query.Int},
		{Param: "internet_exchange", Column: "internet_exchange_id", Kind: query.Int},
		{Param: "autonomous_system", Column: "autonomous_system_id", Kind: query.Int},
		{Param: "enabled", Column: "enabled", Kind: query.Bool},
		{Param: "bgp_state", Column: "bgp_state", Kind: query.Exact},
	},
	Search: []string{"ipv6_address", "ipv4_address", "comment"},
}

func scanSession(s query.Scanner) (models.PeeringSession, error) {
	var (
		ps               models.PeeringSession
		v6, v4           sql.NullString
		state            string
		created, updated string
	)
	if err := s.Scan(&ps.ID, &ps.InternetExchangeID, &ps.AutonomousSystemID, &v6, &v4,
		&ps.Enabled, &ps.Password, &ps.Comment, &state, &created, &updated); err != nil {
		return ps, err
	}
	ps.BGPState = models.BGPState(state)
	if v6.Valid {
		ps.IPAddress, ps.IPVersion = v6.String, 6
	} else {
		ps.IPAddress, ps.IPVersion = v4.String, 4
	}
	return ps, scanTimes(created, updated, &ps.CreatedAt, &ps.UpdatedAt)
}

// sessionAddress splits a session address into the per-family columns.
func sessionAddress(ps *models.PeeringSession) (v6, v4 sql.NullString) {
	if ps.IPVersion == 4 {
		return sql.NullString{}, sql.NullString{String: ps.IPAddress, Valid: true}
	}
	return sql.NullString{String: ps.IPAddress, Valid: true}, sql.NullString{}
}

// ListPeeringSessions returns one page of sessions ordered by id.
func (s *Store) ListPeeringSessions(ctx context.Context, p query.Params) ([]models.PeeringSession, int, error) {
	return query.Run(ctx, s.db, "peering_sessions", sessionColumns, "id", p, scanSession)
}

// GetPeeringSession returns the session with id.
func (s *Store) GetPeeringSession(ctx context.Context, id int64) (*models.PeeringSession, error) {
	ps, err := scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM peering_sessions WHERE id = ?`, id))
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get peering session %d", id), err)
	}
	return &ps, nil
}

// CreatePeeringSession inserts ps. IPAddress and IPVersion must already be
// normalised.
func (s *Store) CreatePeeringSession(ctx context.Context, ps *models.PeeringSession) error {
	t := now()
	if ps.BGPState == "" {
		ps.BGPState = models.BGPStateUnknown
	}
	v6, v4 := sessionAddress(ps)
	res, err := exec(ctx, s.db, "create peering session", `
		INSERT INTO peering_sessions (internet_exchange_id, autonomous_system_id, ipv6_address, ipv4_address, enabled, password, comment, bgp_state, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ps.InternetExchangeID, ps.AutonomousSystemID, v6, v4, ps.Enabled, ps.Password, ps.Comment, string(ps.BGPState),
		store.FormatTime(t), store.FormatTime(t))
	if err != nil {
		return err
	}
	ps.ID, _ = res.LastInsertId()
	ps.CreatedAt, ps.UpdatedAt = t, t
	return nil
}

// UpdatePeeringSession writes every field of ps.
func (s *Store) UpdatePeeringSession(ctx context.Context, ps *models.PeeringSession) error {
	t := now()
	v6, v4 := sessionAddress(ps)
	err := execOne(ctx, s.db, fmt.Sprintf("update peering session %d", ps.ID), `
		UPDATE peering_sessions
		SET internet_exchange_id = ?, autonomous_system_id = ?, ipv6_address = ?, ipv4_address = ?,
		    enabled = ?, password = ?, comment = ?, bgp_state = ?, updated = ?
		WHERE id = ?`,
		ps.InternetExchangeID, ps.AutonomousSystemID, v6, v4, ps.Enabled, ps.Password, ps.Comment, string(ps.BGPState),
		store.FormatTime(t), ps.ID)
	if err == nil {
		ps.UpdatedAt = t
	}
	return err
}

// DeletePeeringSession removes the session with id.
func (s *Store) DeletePeeringSession(ctx context.Context, id int64) error {
	return execOne(ctx, s.db, fmt.Sprintf("delete peering session %d", id), `DELETE FROM peering_sessions WHERE id = ?`, id)
}

// ExchangeSessions returns the sessions of exchange ixID with their
// autonomous systems, ordered by ASN then address.
func (s *Store) ExchangeSessions(ctx context.Context, ixID int64) ([]render.Session, error) {
	cols := "s." + strings.ReplaceAll(sessionColumns, ", ", ", s.") + ", a." + strings.ReplaceAll(asColumns, ", ", ", a.")
	return query.All(ctx, s.db,
		"peering_sessions s JOIN peering_autonomous_systems a ON a.id = s.autonomous_system_id",
		cols, "s.internet_exchange_id = ?", "a.asn, COALESCE(s.ipv6_address, s.ipv4_address)", []any{ixID},
		func(sc query.Scanner) (render.Session, error) {
			var (
				rs                      render.Session
				v6, v4                  sql.NullString
				state, sc1, su1, ac, au string
				pdb                     sql.NullInt64
			)
			ps, as := &rs.Session, &rs.AS
			err := sc.Scan(&ps.ID, &ps.InternetExchangeID, &ps.AutonomousSystemID, &v6, &v4,
				&ps.Enabled, &ps.Password, &ps.Comment, &state, &sc1, &su1,
				&as.ID, &as.ASN, &as.Name, &as.Comment, &as.IRRASSet, &as.IPv6MaxPrefixes, &as.IPv4MaxPrefixes, &pdb, &ac, &au)
			if err != nil {
				return rs, err
			}
			ps.BGPState = models.BGPState(state)
			if v6.Valid {
				ps.IPAddress, ps.IPVersion = v6.String, 6
			} else {
				ps.IPAddress, ps.IPVersion = v4.String, 4
			}
			as.PeeringDBID = intPtr(pdb)
			if err := scanTimes(sc1, su1, &ps.CreatedAt, &ps.UpdatedAt); err != nil {
				return rs, err
			}
			return rs, scanTimes(ac, au, &as.CreatedAt, &as.UpdatedAt)
		})
}

// SessionAddresses returns the addresses configured on exchange ixID.
func (s *Store) SessionAddresses(ctx context.Context, ixID int64) (map[string]bool, error) {
	addrs, err := query.All(ctx, s.db, "peering_sessions", "COALESCE(ipv6_address, ipv4_address)",
		"internet_exchange_id = ?", "id", []any{ixID}, func(sc query.Scanner) (string, error) {
			var a string
			err := sc.Scan(&a)
			return a, err
		})
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		out[a] = true
	}
	return out, nil
}
