package models

import (
	"encoding/json"
	"time"
)

// JobStatus is a JobResult lifecycle state.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusErrored   JobStatus = "errored"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusErrored || s == JobStatusFailed
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusRunning || s.IsTerminal()
}

// JobResult records the lifecycle of one background job.
type JobResult struct {
	ID        int64           `json:"id" example:"1"`
	Name      string          `json:"name" example:"deploy ams-ix"`
	UserID    *string         `json:"user"`
	ObjType   ContentType     `json:"obj_type" example:"peering.internetexchange"`
	Status    JobStatus       `json:"status" example:"running"`
	Data      json.RawMessage `json:"data" swaggertype:"object"`
	Created   time.Time       `json:"created"`
	Completed *time.Time      `json:"completed"`
	JobID     string          `json:"job_id" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// Webhook configures an outbound HTTP notification for object changes.
type Webhook struct {
	ID                int64         `json:"id" example:"1"`
	Name              string        `json:"name" example:"notify-noc"`
	ContentTypes      []ContentType `json:"content_types"`
	TypeCreate        bool          `json:"type_create"`
	TypeUpdate        bool          `json:"type_update"`
	TypeDelete        bool          `json:"type_delete"`
	Enabled           bool          `json:"enabled"`
	URL               string        `json:"url" example:"https://noc.example.net/hooks/peering"`
	HTTPMethod        string        `json:"http_method" example:"POST"`
	HTTPContentType   string        `json:"http_content_type" example:"application/json"`
	AdditionalHeaders string        `json:"additional_headers"`
	BodyTemplate      string        `json:"body_template"`
	Secret            string        `json:"secret,omitempty"`
	SSLVerification   bool          `json:"ssl_verification"`
	CAFilePath        string        `json:"ca_file_path"`
	CreatedAt         time.Time     `json:"created"`
	UpdatedAt         time.Time     `json:"updated"`
}

// Fires reports whether the webhook is enabled for action on ct.
func (w *Webhook) Fires(ct ContentType, action ObjectAction) bool {
	if !w.Enabled {
		return false
	}
	switch action {
	case ActionCreated:
		if !w.TypeCreate {
			return false
		}
	case ActionUpdated:
		if !w.TypeUpdate {
			return false
		}
	case ActionDeleted:
		if !w.TypeDelete {
			return false
		}
	default:
		return false
	}
	for _, c := range w.ContentTypes {
		if c == ct {
			return true
		}
	}
	return false
}

// ConfigContext is a named JSON document merged into rendering contexts.
type ConfigContext struct {
	ID          int64          `json:"id" example:"1"`
	Name        string         `json:"name" example:"ix-defaults"`
	Description string         `json:"description"`
	IsActive    bool           `json:"is_active"`
	Data        map[string]any `json:"data"`
	CreatedAt   time.Time      `json:"created"`
	UpdatedAt   time.Time      `json:"updated"`
}

// ConfigContextAssignment attaches a ConfigContext to one object.
type ConfigContextAssignment struct {
	ID              int64       `json:"id" example:"1"`
	ContentType     ContentType `json:"content_type" example:"peering.internetexchange"`
	ObjectID        int64       `json:"object_id" example:"1"`
	ConfigContextID int64       `json:"config_context" example:"1"`
	Weight          int         `json:"weight" example:"1000"`
	CreatedAt       time.Time   `json:"created"`
	UpdatedAt       time.Time   `json:"updated"`
}

// ExportTemplate renders every object of a content type to a document.
type ExportTemplate struct {
	ID            int64       `json:"id" example:"1"`
	ContentType   ContentType `json:"content_type" example:"peering.autonomoussystem"`
	Name          string      `json:"name" example:"as-list"`
	Description   string      `json:"description"`
	Template      string      `json:"template" example:"{{ dataset | length }}"`
	MIMEType      string      `json:"mime_type" example:"text/plain"`
	FileExtension string      `json:"file_extension" example:"txt"`
	CreatedAt     time.Time   `json:"created"`
	UpdatedAt     time.Time   `json:"updated"`
}

// IXAPI is a stored IX-API endpoint with its credentials.
type IXAPI struct {
	ID        int64     `json:"id" example:"1"`
	Name      string    `json:"name" example:"IXP 1"`
	URL       string    `json:"url" example:"https://ixp1-ixapi.example.net/v1/"`
	APIKey    string    `json:"api_key"`
	APISecret string    `json:"api_secret,omitempty"`
	Identity  string    `json:"identity"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"updated"`
}
