package extras

import (
	"database/sql"

	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

// migrations returns the extras module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create job results table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS extras_job_results (
						id        INTEGER PRIMARY KEY AUTOINCREMENT,
						name      TEXT NOT NULL,
						user_id   TEXT,
						obj_type  TEXT NOT NULL,
						status    TEXT NOT NULL DEFAULT 'pending'
						          CHECK (status IN ('pending', 'running', 'completed', 'errored', 'failed')),
						data      TEXT,
						created   TEXT NOT NULL,
						completed TEXT,
						job_id    TEXT NOT NULL UNIQUE,
						CHECK ((completed IS NULL) = (status IN ('pending', 'running')))
					)`,
					`CREATE INDEX IF NOT EXISTS idx_extras_job_results_status ON extras_job_results(status)`,
					`CREATE INDEX IF NOT EXISTS idx_extras_job_results_created ON extras_job_results(created)`,
				}
				for _, s := range stmts {
					if _, err := tx.Exec(s); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Version:     2,
			Description: "create webhook, config context, export template and ix-api tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS extras_webhooks (
						id                 INTEGER PRIMARY KEY AUTOINCREMENT,
						name               TEXT NOT NULL UNIQUE,
						content_types      TEXT NOT NULL DEFAULT '[]',
						type_create        INTEGER NOT NULL DEFAULT 0,
						type_update        INTEGER NOT NULL DEFAULT 0,
						type_delete        INTEGER NOT NULL DEFAULT 0,
						enabled            INTEGER NOT NULL DEFAULT 1,
						url                TEXT NOT NULL,
						http_method        TEXT NOT NULL DEFAULT 'POST',
						http_content_type  TEXT NOT NULL DEFAULT 'application/json',
						additional_headers TEXT NOT NULL DEFAULT '',
						body_template      TEXT NOT NULL DEFAULT '',
						secret             TEXT NOT NULL DEFAULT '',
						ssl_verification   INTEGER NOT NULL DEFAULT 1,
						ca_file_path       TEXT NOT NULL DEFAULT '',
						created            TEXT NOT NULL,
						updated            TEXT NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS extras_config_contexts (
						id          INTEGER PRIMARY KEY AUTOINCREMENT,
						name        TEXT NOT NULL UNIQUE,
						description TEXT NOT NULL DEFAULT '',
						is_active   INTEGER NOT NULL DEFAULT 1,
						data        TEXT NOT NULL DEFAULT '{}',
						created     TEXT NOT NULL,
						updated     TEXT NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS extras_config_context_assignments (
						id                INTEGER PRIMARY KEY AUTOINCREMENT,
						content_type      TEXT NOT NULL,
						object_id         INTEGER NOT NULL,
						config_context_id INTEGER NOT NULL REFERENCES extras_config_contexts(id) ON DELETE CASCADE,
						weight            INTEGER NOT NULL DEFAULT 1000,
						created           TEXT NOT NULL,
						updated           TEXT NOT NULL,
						UNIQUE (content_type, object_id, config_context_id)
					)`,
					`CREATE INDEX IF NOT EXISTS idx_extras_cca_object ON extras_config_context_assignments(content_type, object_id)`,
					`CREATE TABLE IF NOT EXISTS extras_export_templates (
						id             INTEGER PRIMARY KEY AUTOINCREMENT,
						content_type   TEXT NOT NULL,
						name           TEXT NOT NULL,
						description    TEXT NOT NULL DEFAULT '',
						template       TEXT NOT NULL,
						mime_type      TEXT NOT NULL DEFAULT '',
						file_extension TEXT NOT NULL DEFAULT '',
						created        TEXT NOT NULL,
						updated        TEXT NOT NULL,
						UNIQUE (content_type, name)
					)`,
					`CREATE TABLE IF NOT EXISTS extras_ixapi (
						id         INTEGER PRIMARY KEY AUTOINCREMENT,
						name       TEXT NOT NULL UNIQUE,
						url        TEXT NOT NULL,
						api_key    TEXT NOT NULL,
						api_secret TEXT NOT NULL,
						identity   TEXT NOT NULL DEFAULT '',
						created    TEXT NOT NULL,
						updated    TEXT NOT NULL
					)`,
				}
				for _, s := range stmts {
					if _, err := tx.Exec(s); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
