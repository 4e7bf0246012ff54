package extras

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/peeringmanager/internal/query"
	"github.com/HerbHall/peeringmanager/internal/store"
	"github.com/HerbHall/peeringmanager/pkg/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
	// ErrInvalid is returned for writes rejected by validation or a
	// constraint.
	ErrInvalid = errors.New("invalid")
	// ErrInvalidTransition is returned when a job result is moved backwards
	// or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Store provides database operations for the extras module.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

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

// execOne runs stmt and returns ErrNotFound when no row was affected.
func (s *Store) execOne(ctx context.Context, op, stmt string, args ...any) error {
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return dbErr(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func (s *Store) insert(ctx context.Context, op, stmt string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, dbErr(op, err)
	}
	return res.LastInsertId()
}

func scanTimes(created, updated string, c, u *time.Time) error {
	var err error
	if *c, err = store.ParseTime(created); err != nil {
		return err
	}
	*u, err = store.ParseTime(updated)
	return err
}

// --- Webhooks ---

const webhookColumns = `id, name, content_types, type_create, type_update, type_delete, enabled, url,
	http_method, http_content_type, additional_headers, body_template, secret, ssl_verification,
	ca_file_path, created, updated`

var webhookFilters = query.FilterSet{
	Filters: []query.Filter{
		{Param: "id", Column: "id", Kind: query.Int},
		{Param: "name", Column: "name", Kind: query.Exact},
		{Param: "enabled", Column: "enabled", Kind: query.Bool},
		{Param: "type_create", Column: "type_create", Kind: query.Bool},
		{Param: "type_update", Column: "type_update", Kind: query.Bool},
		{Param: "type_delete", Column: "type_delete", Kind: query.Bool},
		{Param: "http_method", Column: "http_method", Kind: query.Exact},
	},
	Search: []string{"name", "url"},
}

func scanWebhook(s query.Scanner) (models.Webhook, error) {
	var (
		w                models.Webhook
		types            string
		created, updated string
	)
	if err := s.Scan(&w.ID, &w.Name, &types, &w.TypeCreate, &w.TypeUpdate, &w.TypeDelete, &w.Enabled,
		&w.URL, &w.HTTPMethod, &w.HTTPContentType, &w.AdditionalHeaders, &w.BodyTemplate, &w.Secret,
		&w.SSLVerification, &w.CAFilePath, &created, &updated); err != nil {
		return w, err
	}
	if err := json.Unmarshal([]byte(types), &w.ContentTypes); err != nil {
		return w, fmt.Errorf("webhook %d content types: %w", w.ID, err)
	}
	return w, scanTimes(created, updated, &w.CreatedAt, &w.UpdatedAt)
}

func contentTypesJSON(types []models.ContentType) string {
	if types == nil {
		types = []models.ContentType{}
	}
	b, _ := json.Marshal(types)
	return string(b)
}

// ListWebhooks returns one page of webhooks ordered by name.
func (s *Store) ListWebhooks(ctx context.Context, p query.Params) ([]models.Webhook, int, error) {
	return query.Run(ctx, s.db, "extras_webhooks", webhookColumns, "name", p, scanWebhook)
}

// EnabledWebhooks returns every enabled webhook.
func (s *Store) EnabledWebhooks(ctx context.Context) ([]models.Webhook, error) {
	return query.All(ctx, s.db, "extras_webhooks", webhookColumns, "enabled = 1", "id", nil, scanWebhook)
}

// GetWebhook returns the webhook with id.
func (s *Store) GetWebhook(ctx context.Context, id int64) (*models.Webhook, error) {
	w, err := scanWebhook(s.db.QueryRowContext(ctx, `SELECT `+webhookColumns+` FROM extras_webhooks WHERE id = ?`, id))
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get webhook %d", id), err)
	}
	return &w, nil
}

// CreateWebhook inserts w and sets its id and timestamps.
func (s *Store) CreateWebhook(ctx context.Context, w *models.Webhook) error {
	t := now()
	id, err := s.insert(ctx, "create webhook", `
		INSERT INTO extras_webhooks (name, content_types, type_create, type_update, type_delete, enabled, url,
			http_method, http_content_type, additional_headers, body_template, secret, ssl_verification,
			ca_file_path, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.Name, contentTypesJSON(w.ContentTypes), w.TypeCreate, w.TypeUpdate, w.TypeDelete, w.Enabled, w.URL,
		w.HTTPMethod, w.HTTPContentType, w.AdditionalHeaders, w.BodyTemplate, w.Secret, w.SSLVerification,
		w.CAFilePath, store.FormatTime(t), store.FormatTime(t))
	if err != nil {
		return err
	}
	w.ID, w.CreatedAt, w.UpdatedAt = id, t, t
	return nil
}

// UpdateWebhook writes every field of w.
func (s *Store) UpdateWebhook(ctx context.Context, w *models.Webhook) error {
	t := now()
	err := s.execOne(ctx, fmt.Sprintf("update webhook %d", w.ID), `
		UPDATE extras_webhooks
		SET name = ?, content_types = ?, type_create = ?, type_update = ?, type_delete = ?, enabled = ?, url = ?,
			http_method = ?, http_content_type = ?, additional_headers = ?, body_template = ?, secret = ?,
			ssl_verification = ?, ca_file_path = ?, updated = ?
		WHERE id = ?`,
		w.Name, contentTypesJSON(w.ContentTypes), w.TypeCreate, w.TypeUpdate, w.TypeDelete, w.Enabled, w.URL,
		w.HTTPMethod, w.HTTPContentType, w.AdditionalHeaders, w.BodyTemplate, w.Secret, w.SSLVerification,
		w.CAFilePath, store.FormatTime(t), w.ID)
	if err == nil {
		w.UpdatedAt = t
	}
	return err
}

// DeleteWebhook removes the webhook with id.
func (s *Store) DeleteWebhook(ctx context.Context, id int64) error {
	return s.execOne(ctx, fmt.Sprintf("delete webhook %d", id), `DELETE FROM extras_webhooks WHERE id = ?`, id)
}

// --- Config contexts ---

const contextColumns = `id, name, description, is_active, data, created, updated`

var contextFilters = query.FilterSet{
	Filters: []query.Filter{
		{Param: "id", Column: "id", Kind: query.Int},
		{Param: "name", Column: "name", Kind: query.Exact},
		{Param: "is_active", Column: "is_active", Kind: query.Bool},
	},
	Search: []string{"name", "description"},
}

func scanContext(s query.Scanner) (models.ConfigContext, error) {
	var (
		c                models.ConfigContext
		data             string
		created, updated string
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Description, &c.IsActive, &data, &created, &updated); err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(data), &c.Data); err != nil {
		return c, fmt.Errorf("config context %d data: %w", c.ID, err)
	}
	return c, scanTimes(created, updated, &c.CreatedAt, &c.UpdatedAt)
}

func dataJSON(data map[string]any) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: data: %v", ErrInvalid, err)
	}
	return string(b), nil
}

// ListConfigContexts returns one page of config contexts ordered by name.
func (s *Store) ListConfigContexts(ctx context.Context, p query.Params) ([]models.ConfigContext, int, error) {
	return query.Run(ctx, s.db, "extras_config_contexts", contextColumns, "name", p, scanContext)
}

// GetConfigContext returns the config context with id.
func (s *Store) GetConfigContext(ctx context.Context, id int64) (*models.ConfigContext, error) {
	c, err := scanContext(s.db.QueryRowContext(ctx, `SELECT `+contextColumns+` FROM extras_config_contexts WHERE id = ?`, id))
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get config context %d", id), err)
	}
	return &c, nil
}

// CreateConfigContext inserts c and sets its id and timestamps.
func (s *Store) CreateConfigContext(ctx context.Context, c *models.ConfigContext) error {
	data, err := dataJSON(c.Data)
	if err != nil {
		return err
	}
	t := now()
	id, err := s.insert(ctx, "create config context", `
		INSERT INTO extras_config_contexts (name, description, is_active, data, created, updated)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.Description, c.IsActive, data, store.FormatTime(t), store.FormatTime(t))
	if err != nil {
		return err
	}
	c.ID, c.CreatedAt, c.UpdatedAt = id, t, t
	return nil
}

// UpdateConfigContext writes every field of c.
func (s *Store) UpdateConfigContext(ctx context.Context, c *models.ConfigContext) error {
	data, err := dataJSON(c.Data)
	if err != nil {
		return err
	}
	t := now()
	err = s.execOne(ctx, fmt.Sprintf("update config context %d", c.ID), `
		UPDATE extras_config_contexts SET name = ?, description = ?, is_active = ?, data = ?, updated = ?
		WHERE id = ?`,
		c.Name, c.Description, c.IsActive, data, store.FormatTime(t), c.ID)
	if err == nil {
		c.UpdatedAt = t
	}
	return err
}

// DeleteConfigContext removes the config context and its assignments.
func (s *Store) DeleteConfigContext(ctx context.Context, id int64) error {
	return s.execOne(ctx, fmt.Sprintf("delete config context %d", id),
		`DELETE FROM extras_config_contexts WHERE id = ?`, id)
}

// AssignedContexts returns the active contexts assigned to the object in
// ascending weight order, ties broken by name.
func (s *Store) AssignedContexts(ctx context.Context, ct models.ContentType, objectID int64) ([]models.ConfigContext, error) {
	from := `extras_config_context_assignments a JOIN extras_config_contexts c ON c.id = a.config_context_id`
	cols := `c.id, c.name, c.description, c.is_active, c.data, c.created, c.updated`
	out, err := query.All(ctx, s.db, from, cols,
		"a.content_type = ? AND a.object_id = ? AND c.is_active = 1", "a.weight, c.name",
		[]any{string(ct), objectID}, scanContext)
	if err != nil {
		return nil, dbErr("assigned config contexts", err)
	}
	return out, nil
}

// --- Config context assignments ---

const assignmentColumns = `id, content_type, object_id, config_context_id, weight, created, updated`

var assignmentFilters = query.FilterSet{
	Filters: []query.Filter{
		{Param: "id", Column: "id", Kind: query.Int},
		{Param: "content_type", Column: "content_type", Kind: query.Exact},
		{Param: "object_id", Column: "object_id", Kind: query.Int},
		{Param: "config_context", Column: "config_context_id", Kind: query.Int},
		{Param: "weight", Column: "weight", Kind: query.Int},
	},
}

func scanAssignment(s query.Scanner) (models.ConfigContextAssignment, error) {
	var (
		a                models.ConfigContextAssignment
		created, updated string
	)
	if err := s.Scan(&a.ID, &a.ContentType, &a.ObjectID, &a.ConfigContextID, &a.Weight, &created, &updated); err != nil {
		return a, err
	}
	return a, scanTimes(created, updated, &a.CreatedAt, &a.UpdatedAt)
}

// ListAssignments returns one page of assignments ordered by weight.
func (s *Store) ListAssignments(ctx context.Context, p query.Params) ([]models.ConfigContextAssignment, int, error) {
	return query.Run(ctx, s.db, "extras_config_context_assignments", assignmentColumns, "weight, id", p, scanAssignment)
}

// GetAssignment returns the assignment with id.
func (s *Store) GetAssignment(ctx context.Context, id int64) (*models.ConfigContextAssignment, error) {
	a, err := scanAssignment(s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM extras_config_context_assignments WHERE id = ?`, id))
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get config context assignment %d", id), err)
	}
	return &a, nil
}

// CreateAssignment inserts a and sets its id and timestamps.
func (s *Store) CreateAssignment(ctx context.Context, a *models.ConfigContextAssignment) error {
	t := now()
	id, err := s.insert(ctx, "create config context assignment", `
		INSERT INTO extras_config_context_assignments (content_type, object_id, config_context_id, weight, created, updated)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(a.ContentType), a.ObjectID, a.ConfigContextID, a.Weight, store.FormatTime(t), store.FormatTime(t))
	if err != nil {
		return err
	}
	a.ID, a.CreatedAt, a.UpdatedAt = id, t, t
	return nil
}

// UpdateAssignment writes every field of a.
func (s *Store) UpdateAssignment(ctx context.Context, a *models.ConfigContextAssignment) error {
	t := now()
	err := s.execOne(ctx, fmt.Sprintf("update config context assignment %d", a.ID), `
		UPDATE extras_config_context_assignments
		SET content_type = ?, object_id = ?, config_context_id = ?, weight = ?, updated = ?
		WHERE id = ?`,
		string(a.ContentType), a.ObjectID, a.ConfigContextID, a.Weight, store.FormatTime(t), a.ID)
	if err == nil {
		a.UpdatedAt = t
	}
	return err
}

// DeleteAssignment removes the assignment with id.
func (s *Store) DeleteAssignment(ctx context.Context, id int64) error {
	return s.execOne(ctx, fmt.Sprintf("delete config context assignment %d", id),
		`DELETE FROM extras_config_context_assignments WHERE id = ?`, id)
}

// --- Export templates ---

const exportColumns = `id, content_type, name, description, template, mime_type, file_extension, created, updated`

var exportFilters = query.FilterSet{
	Filters: []query.Filter{
		{Param: "id", Column: "id", Kind: query.Int},
		{Param: "name", Column: "name", Kind: query.Exact},
		{Param: "content_type", Column: "content_type", Kind: query.Exact},
	},
	Search: []string{"name", "description"},
}

func scanExport(s query.Scanner) (models.ExportTemplate, error) {
	var (
		e                models.ExportTemplate
		created, updated string
	)
	if err := s.Scan(&e.ID, &e.ContentType, &e.Name, &e.Description, &e.Template, &e.MIMEType,
		&e.FileExtension, &created, &updated); err != nil {
		return e, err
	}
	return e, scanTimes(created, updated, &e.CreatedAt, &e.UpdatedAt)
}

// ListExportTemplates returns one page of export templates.
func (s *Store) ListExportTemplates(ctx context.Context, p query.Params) ([]models.ExportTemplate, int, error) {
	return query.Run(ctx, s.db, "extras_export_templates", exportColumns, "content_type, name", p, scanExport)
}

// GetExportTemplate returns the export template with id.
func (s *Store) GetExportTemplate(ctx context.Context, id int64) (*models.ExportTemplate, error) {
	e, err := scanExport(s.db.QueryRowContext(ctx, `SELECT `+exportColumns+` FROM extras_export_templates WHERE id = ?`, id))
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get export template %d", id), err)
	}
	return &e, nil
}

// CreateExportTemplate inserts e and sets its id and timestamps.
func (s *Store) CreateExportTemplate(ctx context.Context, e *models.ExportTemplate) error {
	t := now()
	id, err := s.insert(ctx, "create export template", `
		INSERT INTO extras_export_templates (content_type, name, description, template, mime_type, file_extension, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ContentType), e.Name, e.Description, e.Template, e.MIMEType, e.FileExtension,
		store.FormatTime(t), store.FormatTime(t))
	if err != nil {
		return err
	}
	e.ID, e.CreatedAt, e.UpdatedAt = id, t, t
	return nil
}

// UpdateExportTemplate writes every field of e.
func (s *Store) UpdateExportTemplate(ctx context.Context, e *models.ExportTemplate) error {
	t := now()
	err := s.execOne(ctx, fmt.Sprintf("update export template %d", e.ID), `
		UPDATE extras_export_templates
		SET content_type = ?, name = ?, description = ?, template = ?, mime_type = ?, file_extension = ?, updated = ?
		WHERE id = ?`,
		string(e.ContentType), e.Name, e.Description, e.Template, e.MIMEType, e.FileExtension, store.FormatTime(t), e.ID)
	if err == nil {
		e.UpdatedAt = t
	}
	return err
}

// DeleteExportTemplate removes the export template with id.
func (s *Store) DeleteExportTemplate(ctx context.Context, id int64) error {
	return s.execOne(ctx, fmt.Sprintf("delete export template %d", id),
		`DELETE FROM extras_export_templates WHERE id = ?`, id)
}

// --- IX-API endpoints ---

const ixapiColumns = `id, name, url, api_key, api_secret, identity, created, updated`

var ixapiFilters = query.FilterSet{
	Filters: []query.Filter{
		{Param: "id", Column: "id", Kind: query.Int},
		{Param: "name", Column: "name", Kind: query.Exact},
		{Param: "url", Column: "url", Kind: query.Exact},
		{Param: "identity", Column: "identity", Kind: query.Exact},
	},
	Search: []string{"name", "url"},
}

func scanIXAPI(s query.Scanner) (models.IXAPI, error) {
	var (
		x                models.IXAPI
		created, updated string
	)
	if err := s.Scan(&x.ID, &x.Name, &x.URL, &x.APIKey, &x.APISecret, &x.Identity, &created, &updated); err != nil {
		return x, err
	}
	return x, scanTimes(created, updated, &x.CreatedAt, &x.UpdatedAt)
}

// ListIXAPIs returns one page of IX-API endpoints ordered by name.
func (s *Store) ListIXAPIs(ctx context.Context, p query.Params) ([]models.IXAPI, int, error) {
	return query.Run(ctx, s.db, "extras_ixapi", ixapiColumns, "name", p, scanIXAPI)
}

// GetIXAPI returns the IX-API endpoint with id.
func (s *Store) GetIXAPI(ctx context.Context, id int64) (*models.IXAPI, error) {
	x, err := scanIXAPI(s.db.QueryRowContext(ctx, `SELECT `+ixapiColumns+` FROM extras_ixapi WHERE id = ?`, id))
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get ix-api %d", id), err)
	}
	return &x, nil
}

// CreateIXAPI inserts x and sets its id and timestamps.
func (s *Store) CreateIXAPI(ctx context.Context, x *models.IXAPI) error {
	t := now()
	id, err := s.insert(ctx, "create ix-api", `
		INSERT INTO extras_ixapi (name, url, api_key, api_secret, identity, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		x.Name, x.URL, x.APIKey, x.APISecret, x.Identity, store.FormatTime(t), store.FormatTime(t))
	if err != nil {
		return err
	}
	x.ID, x.CreatedAt, x.UpdatedAt = id, t, t
	return nil
}

// UpdateIXAPI writes every field of x.
func (s *Store) UpdateIXAPI(ctx context.Context, x *models.IXAPI) error {
	t := now()
	err := s.execOne(ctx, fmt.Sprintf("update ix-api %d", x.ID), `
		UPDATE extras_ixapi SET name = ?, url = ?, api_key = ?, api_secret = ?, identity = ?, updated = ?
		WHERE id = ?`,
		x.Name, x.URL, x.APIKey, x.APISecret, x.Identity, store.FormatTime(t), x.ID)
	if err == nil {
		x.UpdatedAt = t
	}
	return err
}

// DeleteIXAPI removes the IX-API endpoint with id.
func (s *Store) DeleteIXAPI(ctx context.Context, id int64) error {
	return s.execOne(ctx, fmt.Sprintf("delete ix-api %d", id), `DELETE FROM extras_ixapi WHERE id = ?`, id)
}
