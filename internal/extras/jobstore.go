package extras

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/HerbHall/peeringmanager/internal/jobs"
	"github.com/HerbHall/peeringmanager/internal/query"
	"github.com/HerbHall/peeringmanager/internal/store"
	"github.com/HerbHall/peeringmanager/pkg/models"
)

var _ jobs.Store = (*Store)(nil)

const jobColumns = `id, name, user_id, obj_type, status, data, created, completed, job_id`

// Listing joins the owning user so q and the user filter can match a
// username.
const jobListColumns = `j.id, j.name, j.user_id, j.obj_type, j.status, j.data, j.created, j.completed, j.job_id`

// noUsers stands in for auth_users when authentication is disabled and the
// table was never created.
const noUsers = `(SELECT NULL AS id, NULL AS username WHERE 0)`

var jobFilters = query.FilterSet{
	Filters: []query.Filter{
		{Param: "id", Column: "j.id", Kind: query.Int},
		{Param: "job_id", Column: "j.job_id", Kind: query.Exact},
		{Param: "name", Column: "j.name", Kind: query.Exact},
		{Param: "obj_type", Column: "j.obj_type", Kind: query.Exact},
		{Param: "status", Column: "j.status", Kind: query.Exact},
		{Param: "user", Column: "u.username", Kind: query.Exact},
		{Param: "user_id", Column: "j.user_id", Kind: query.Exact},
		{Param: "created_after", Column: "j.created", Kind: query.After},
		{Param: "created_before", Column: "j.created", Kind: query.Before},
		{Param: "completed_after", Column: "j.completed", Kind: query.After},
		{Param: "completed_before", Column: "j.completed", Kind: query.Before},
	},
	Search: []string{"j.name", "u.username"},
}

func scanJob(s query.Scanner) (models.JobResult, error) {
	var (
		j         models.JobResult
		user      sql.NullString
		data      sql.NullString
		created   string
		completed sql.NullString
	)
	if err := s.Scan(&j.ID, &j.Name, &user, &j.ObjType, &j.Status, &data, &created, &completed, &j.JobID); err != nil {
		return j, err
	}
	if user.Valid {
		j.UserID = &user.String
	}
	if data.Valid {
		j.Data = json.RawMessage(data.String)
	}
	var err error
	if j.Created, err = store.ParseTime(created); err != nil {
		return j, err
	}
	if completed.Valid {
		t, err := store.ParseTime(completed.String)
		if err != nil {
			return j, err
		}
		j.Completed = &t
	}
	return j, nil
}

// ListJobResults returns one page of job results, newest first.
func (s *Store) ListJobResults(ctx context.Context, p query.Params) ([]models.JobResult, int, error) {
	users := "auth_users"
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'auth_users'`).Scan(&n)
	if err != nil {
		return nil, 0, dbErr("list job results", err)
	}
	if n == 0 {
		users = noUsers
	}
	from := "extras_job_results j LEFT JOIN " + users + " u ON u.id = j.user_id"
	return query.Run(ctx, s.db, from, jobListColumns, "j.created DESC, j.id DESC", p, scanJob)
}

// GetJobResult returns the job result keyed by numeric id or job UUID.
func (s *Store) GetJobResult(ctx context.Context, key string) (*models.JobResult, error) {
	col, arg := "job_id", any(key)
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		col, arg = "id", id
	}
	//nolint:gosec // col is one of two constants
	j, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM extras_job_results WHERE `+col+` = ?`, arg))
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get job result %s", key), err)
	}
	return &j, nil
}

// CreateJob inserts a pending job result with a fresh UUID.
func (s *Store) CreateJob(ctx context.Context, name string, objType models.ContentType, userID *string) (*models.JobResult, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: job name is required", ErrInvalid)
	}
	j := &models.JobResult{
		Name:    name,
		UserID:  userID,
		ObjType: objType,
		Status:  models.JobStatusPending,
		Created: now(),
		JobID:   uuid.New().String(),
	}
	var user sql.NullString
	if userID != nil {
		user = sql.NullString{String: *userID, Valid: true}
	}
	id, err := s.insert(ctx, "create job result", `
		INSERT INTO extras_job_results (name, user_id, obj_type, status, created, job_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		j.Name, user, string(j.ObjType), string(j.Status), store.FormatTime(j.Created), j.JobID)
	if err != nil {
		return nil, err
	}
	j.ID = id
	return j, nil
}

// StartJob moves a pending job to running.
func (s *Store) StartJob(ctx context.Context, jobID string) (*models.JobResult, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE extras_job_results SET status = 'running' WHERE job_id = ? AND status = 'pending'`, jobID)
	if err != nil {
		return nil, dbErr("start job "+jobID, err)
	}
	return s.transitioned(ctx, res, jobID, models.JobStatusRunning)
}

// FinishJob moves a pending or running job to the terminal status, storing
// data as its JSON payload and stamping completed.
func (s *Store) FinishJob(ctx context.Context, jobID string, status models.JobStatus, data any) (*models.JobResult, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("finish job %s as %q: %w", jobID, status, ErrInvalidTransition)
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("finish job %s: encode data: %w", jobID, err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE extras_job_results SET status = ?, data = ?, completed = ?
		WHERE job_id = ? AND status IN ('pending', 'running')`,
		string(status), string(payload), store.FormatTime(now()), jobID)
	if err != nil {
		return nil, dbErr("finish job "+jobID, err)
	}
	return s.transitioned(ctx, res, jobID, status)
}

// transitioned reloads the job after a conditional update. When no row
// changed it tells a missing job from one in the wrong state.
func (s *Store) transitioned(ctx context.Context, res sql.Result, jobID string, to models.JobStatus) (*models.JobResult, error) {
	j, err := s.GetJobResult(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("job %s %s -> %s: %w", jobID, j.Status, to, ErrInvalidTransition)
	}
	return j, nil
}
