package peering

import (
	"database/sql"

	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

// migrations returns the peering module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create peering tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS peering_autonomous_systems (
						id                INTEGER PRIMARY KEY AUTOINCREMENT,
						asn               INTEGER NOT NULL UNIQUE CHECK (asn > 0 AND asn < 4294967296),
						name              TEXT NOT NULL,
						comment           TEXT NOT NULL DEFAULT '',
						irr_as_set        TEXT NOT NULL DEFAULT '',
						ipv6_max_prefixes INTEGER NOT NULL DEFAULT 0,
						ipv4_max_prefixes INTEGER NOT NULL DEFAULT 0,
						peeringdb_id      INTEGER,
						created           TEXT NOT NULL,
						updated           TEXT NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS peering_configuration_templates (
						id       INTEGER PRIMARY KEY AUTOINCREMENT,
						name     TEXT NOT NULL,
						template TEXT NOT NULL,
						comment  TEXT NOT NULL DEFAULT '',
						created  TEXT NOT NULL,
						updated  TEXT NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS peering_routers (
						id       INTEGER PRIMARY KEY AUTOINCREMENT,
						name     TEXT NOT NULL,
						hostname TEXT NOT NULL,
						platform TEXT NOT NULL,
						comment  TEXT NOT NULL DEFAULT '',
						created  TEXT NOT NULL,
						updated  TEXT NOT NULL,
						UNIQUE (hostname, platform)
					)`,
					`CREATE TABLE IF NOT EXISTS peering_communities (
						id      INTEGER PRIMARY KEY AUTOINCREMENT,
						name    TEXT NOT NULL,
						value   TEXT NOT NULL,
						comment TEXT NOT NULL DEFAULT '',
						created TEXT NOT NULL,
						updated TEXT NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS peering_internet_exchanges (
						id                        INTEGER PRIMARY KEY AUTOINCREMENT,
						name                      TEXT NOT NULL,
						slug                      TEXT NOT NULL UNIQUE,
						comment                   TEXT NOT NULL DEFAULT '',
						ipv6_address              TEXT NOT NULL DEFAULT '',
						ipv4_address              TEXT NOT NULL DEFAULT '',
						configuration_template_id INTEGER REFERENCES peering_configuration_templates(id) ON DELETE SET NULL,
						router_id                 INTEGER REFERENCES peering_routers(id) ON DELETE SET NULL,
						peeringdb_id              INTEGER UNIQUE,
						created                   TEXT NOT NULL,
						updated                   TEXT NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS peering_internet_exchange_communities (
						internet_exchange_id INTEGER NOT NULL REFERENCES peering_internet_exchanges(id) ON DELETE CASCADE,
						community_id         INTEGER NOT NULL REFERENCES peering_communities(id) ON DELETE CASCADE,
						PRIMARY KEY (internet_exchange_id, community_id)
					)`,
					`CREATE TABLE IF NOT EXISTS peering_sessions (
						id                   INTEGER PRIMARY KEY AUTOINCREMENT,
						internet_exchange_id INTEGER NOT NULL REFERENCES peering_internet_exchanges(id) ON DELETE CASCADE,
						autonomous_system_id INTEGER NOT NULL REFERENCES peering_autonomous_systems(id) ON DELETE CASCADE,
						ipv6_address         TEXT,
						ipv4_address         TEXT,
						enabled              INTEGER NOT NULL DEFAULT 1,
						password             TEXT NOT NULL DEFAULT '',
						comment              TEXT NOT NULL DEFAULT '',
						bgp_state            TEXT NOT NULL DEFAULT 'unknown',
						created              TEXT NOT NULL,
						updated              TEXT NOT NULL,
						CHECK ((ipv6_address IS NULL) <> (ipv4_address IS NULL)),
						CHECK (ipv6_address IS NULL OR instr(ipv6_address, ':') > 0),
						CHECK (ipv4_address IS NULL OR instr(ipv4_address, ':') = 0),
						UNIQUE (internet_exchange_id, ipv6_address),
						UNIQUE (internet_exchange_id, ipv4_address)
					)`,
					`CREATE INDEX IF NOT EXISTS idx_peering_sessions_as ON peering_sessions(autonomous_system_id)`,
					`CREATE INDEX IF NOT EXISTS idx_peering_ix_communities ON peering_internet_exchange_communities(community_id)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
