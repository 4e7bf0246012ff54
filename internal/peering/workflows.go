package peering

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/peeringmanager/internal/device"
	"github.com/HerbHall/peeringmanager/internal/jobs"
	"github.com/HerbHall/peeringmanager/internal/peeringdb"
	"github.com/HerbHall/peeringmanager/internal/render"
	"github.com/HerbHall/peeringmanager/internal/server"
	"github.com/HerbHall/peeringmanager/pkg/models"
)

// User-facing device failure messages. The cause is only logged.
const (
	msgChangesFailed = "Unable to determine changes."
	msgConnectFailed = "Unable to connect to the router."
)

var (
	errNoTemplate = fmt.Errorf("%w: internet exchange has no configuration template", ErrInvalid)
	errNoRouter   = fmt.Errorf("%w: internet exchange has no router", ErrInvalid)
)

// ConfigurationResponse is the rendered configuration of an exchange.
type ConfigurationResponse struct {
	Configuration string `json:"configuration"`
}

// ChangesResponse reports the diff between the rendered configuration and
// the router, and whether it was committed.
type ChangesResponse struct {
	Changes   string `json:"changes"`
	Committed bool   `json:"committed"`
}

// PingResponse reports router reachability and the facts it returned.
type PingResponse struct {
	Reachable *bool         `json:"reachable,omitempty"`
	RTT       string        `json:"rtt,omitempty"`
	Facts     *device.Facts `json:"facts,omitempty"`
}

// ImportRequest selects PeeringDB candidates by netixlan id.
type ImportRequest struct {
	PeeringDBIDs []int64 `json:"peeringdb_ids"`
}

// CommunitiesRequest replaces the communities of an exchange.
type CommunitiesRequest struct {
	Communities []int64 `json:"communities"`
}

// exchangeData gathers everything the renderer needs for ix.
func (m *Module) exchangeData(ctx context.Context, ix *models.InternetExchange) (render.Exchange, error) {
	sessions, err := m.store.ExchangeSessions(ctx, ix.ID)
	if err != nil {
		return render.Exchange{}, err
	}
	communities, err := m.store.CommunitiesByID(ctx, ix.Communities)
	if err != nil {
		return render.Exchange{}, err
	}
	x := render.Exchange{Exchange: *ix, Sessions: sessions, Communities: communities}
	if m.contexts != nil {
		data, err := m.contexts.ResolveContext(ctx, models.ContentTypeInternetExchange, ix.ID)
		if err != nil {
			return render.Exchange{}, fmt.Errorf("resolve config context: %w", err)
		}
		x.ConfigContext = data
	}
	return x, nil
}

// Configuration renders the configuration template of ix.
func (m *Module) Configuration(ctx context.Context, ix *models.InternetExchange) (string, error) {
	if ix.ConfigurationTemplateID == nil {
		return "", errNoTemplate
	}
	tmpl, err := m.store.GetConfigurationTemplate(ctx, *ix.ConfigurationTemplateID)
	if err != nil {
		return "", err
	}
	x, err := m.exchangeData(ctx, ix)
	if err != nil {
		return "", err
	}
	return render.RenderExchange(tmpl.Template, x)
}

// driverFor builds a driver for the router attached to ix.
func (m *Module) driverFor(ctx context.Context, ix *models.InternetExchange) (device.Driver, *models.Router, error) {
	if ix.RouterID == nil {
		return nil, nil, errNoRouter
	}
	router, err := m.store.GetRouter(ctx, *ix.RouterID)
	if err != nil {
		return nil, nil, err
	}
	drv, err := m.routerDriver(router)
	return drv, router, err
}

func (m *Module) routerDriver(router *models.Router) (device.Driver, error) {
	if m.drivers == nil {
		return nil, fmt.Errorf("%w: no device drivers configured", device.ErrUnknownPlatform)
	}
	opts := m.deviceOpts
	opts.Hostname = router.Hostname
	return m.drivers.New(router.Platform, opts)
}

// Changes renders the configuration of ix and diffs it against its router,
// committing when commit is set.
func (m *Module) Changes(ctx context.Context, ix *models.InternetExchange, commit bool) (string, error) {
	config, err := m.Configuration(ctx, ix)
	if err != nil {
		return "", err
	}
	drv, router, err := m.driverFor(ctx, ix)
	if err != nil {
		return "", err
	}
	diff, err := device.Changes(ctx, drv, config, commit)
	if err != nil {
		return "", fmt.Errorf("router %s: %w", router.Name, err)
	}
	return diff, nil
}

// writeWorkflowError maps rendering, validation and store errors. Anything
// else is treated as a device failure reported with msg.
func (m *Module) writeWorkflowError(w http.ResponseWriter, err error, what, msg string) {
	switch {
	case errors.Is(err, render.ErrSyntax), errors.Is(err, render.ErrExecution):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, device.ErrUnknownPlatform):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalid), errors.Is(err, ErrConflict):
		m.writeStoreError(w, err, what)
	default:
		m.logger.Error("router operation failed", zap.String("object", what), zap.Error(err))
		writeError(w, http.StatusBadGateway, msg)
	}
}

func (m *Module) pathExchange(w http.ResponseWriter, r *http.Request) (*models.InternetExchange, bool) {
	if !m.ready(w) {
		return nil, false
	}
	ix, err := m.lookupExchange(r.Context(), r.PathValue("slug"))
	if err != nil {
		m.writeStoreError(w, err, "internet exchange")
		return nil, false
	}
	return ix, true
}

// handleConfiguration renders the configuration of an exchange.
//
//	@Summary		Render exchange configuration
//	@Tags			peering
//	@Produce		json
//	@Security		BearerAuth
//	@Param			slug	path		string	true	"Exchange slug or id"
//	@Success		200		{object}	ConfigurationResponse
//	@Failure		404		{object}	models.Problem
//	@Failure		422		{object}	models.Problem
//	@Router			/peering/internet-exchanges/{slug}/configuration [get]
func (m *Module) handleConfiguration(w http.ResponseWriter, r *http.Request) {
	ix, ok := m.pathExchange(w, r)
	if !ok {
		return
	}
	config, err := m.Configuration(r.Context(), ix)
	if err != nil {
		m.writeWorkflowError(w, err, "internet exchange", msgChangesFailed)
		return
	}
	writeJSON(w, http.StatusOK, ConfigurationResponse{Configuration: config})
}

// handleChanges diffs the rendered configuration against the router. POST
// commits the candidate.
//
//	@Summary		Compare or commit exchange configuration
//	@Tags			peering
//	@Produce		json
//	@Security		BearerAuth
//	@Param			slug	path		string	true	"Exchange slug or id"
//	@Success		200		{object}	ChangesResponse
//	@Failure		400		{object}	models.Problem
//	@Failure		502		{object}	models.Problem
//	@Router			/peering/internet-exchanges/{slug}/changes [get]
//	@Router			/peering/internet-exchanges/{slug}/changes [post]
func (m *Module) handleChanges(w http.ResponseWriter, r *http.Request) {
	ix, ok := m.pathExchange(w, r)
	if !ok {
		return
	}
	commit := r.Method == http.MethodPost
	diff, err := m.Changes(r.Context(), ix, commit)
	if err != nil {
		m.writeWorkflowError(w, err, "internet exchange", msgChangesFailed)
		return
	}
	committed := commit && diff != ""
	if committed {
		m.logger.Info("configuration committed",
			zap.String("internet_exchange", ix.Slug),
			zap.String("request_id", server.RequestID(r.Context())),
		)
	}
	writeJSON(w, http.StatusOK, ChangesResponse{Changes: diff, Committed: committed})
}

// handleDeploy commits the exchange configuration in a background job.
//
//	@Summary		Deploy exchange configuration
//	@Tags			peering
//	@Produce		json
//	@Security		BearerAuth
//	@Param			slug	path		string	true	"Exchange slug or id"
//	@Success		202		{object}	models.JobResult
//	@Failure		503		{object}	models.Problem
//	@Router			/peering/internet-exchanges/{slug}/deploy [post]
func (m *Module) handleDeploy(w http.ResponseWriter, r *http.Request) {
	ix, ok := m.pathExchange(w, r)
	if !ok {
		return
	}
	if m.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "job runner not available")
		return
	}
	// Fail fast on exchanges that can never deploy.
	if ix.ConfigurationTemplateID == nil {
		m.writeStoreError(w, errNoTemplate, "internet exchange")
		return
	}
	if ix.RouterID == nil {
		m.writeStoreError(w, errNoRouter, "internet exchange")
		return
	}

	target := *ix
	job, err := m.jobs.Submit(r.Context(), jobs.Spec{
		Name:    "deploy " + ix.Slug,
		ObjType: models.ContentTypeInternetExchange,
		UserID:  userID(r),
	}, func(ctx context.Context) (any, error) {
		diff, err := m.Changes(ctx, &target, true)
		if err != nil {
			if errors.Is(err, ErrInvalid) || errors.Is(err, ErrNotFound) ||
				errors.Is(err, render.ErrSyntax) || errors.Is(err, render.ErrExecution) {
				return nil, fmt.Errorf("%w: %v", jobs.ErrFailed, err)
			}
			return nil, err
		}
		return ChangesResponse{Changes: diff, Committed: diff != ""}, nil
	})
	if err != nil {
		m.writeStoreError(w, err, "job")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// handlePeers lists the networks present on the exchange's PeeringDB LAN.
//
//	@Summary		List exchange peers
//	@Tags			peering
//	@Produce		json
//	@Security		BearerAuth
//	@Param			slug	path		string	true	"Exchange slug or id"
//	@Success		200		{array}		peeringdb.Peer
//	@Failure		400		{object}	models.Problem
//	@Failure		502		{object}	models.Problem
//	@Router			/peering/internet-exchanges/{slug}/peers [get]
func (m *Module) handlePeers(w http.ResponseWriter, r *http.Request) {
	ix, ok := m.pathExchange(w, r)
	if !ok {
		return
	}
	if m.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "PeeringDB client not available")
		return
	}
	if ix.PeeringDBID == nil {
		writeError(w, http.StatusBadRequest, "internet exchange is not linked to PeeringDB")
		return
	}

	peers, err := m.catalog.Peers(r.Context(), *ix.PeeringDBID)
	if err != nil {
		m.logger.Warn("peeringdb peers lookup failed", zap.String("internet_exchange", ix.Slug), zap.Error(err))
		writeError(w, http.StatusBadGateway, "PeeringDB lookup failed: "+err.Error())
		return
	}
	configured, err := m.store.SessionAddresses(r.Context(), ix.ID)
	if err != nil {
		m.writeStoreError(w, err, "peering session")
		return
	}
	for i := range peers {
		p := &peers[i]
		p.Configured = configured[p.IPv6Address] || configured[p.IPv4Address]
	}
	if peers == nil {
		peers = []peeringdb.Peer{}
	}
	writeJSON(w, http.StatusOK, peers)
}

// handleSetCommunities replaces the communities attached to an exchange.
//
//	@Summary		Set exchange communities
//	@Tags			peering
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			slug	path		string				true	"Exchange slug or id"
//	@Param			body	body		CommunitiesRequest	true	"Community ids"
//	@Success		200		{object}	models.InternetExchange
//	@Failure		400		{object}	models.Problem
//	@Router			/peering/internet-exchanges/{slug}/communities [put]
func (m *Module) handleSetCommunities(w http.ResponseWriter, r *http.Request) {
	ix, ok := m.pathExchange(w, r)
	if !ok {
		return
	}
	var req CommunitiesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := m.store.SetExchangeCommunities(r.Context(), ix.ID, req.Communities); err != nil {
		m.writeStoreError(w, err, "internet exchange")
		return
	}
	updated, err := m.store.GetInternetExchange(r.Context(), ix.ID)
	if err != nil {
		m.writeStoreError(w, err, "internet exchange")
		return
	}
	m.publishChange(r, models.ActionUpdated, models.ContentTypeInternetExchange, updated.ID, updated)
	writeJSON(w, http.StatusOK, updated)
}

func (m *Module) candidates(ctx context.Context) ([]peeringdb.Candidate, error) {
	known, err := m.store.KnownPeeringDBIDs(ctx)
	if err != nil {
		return nil, err
	}
	return m.catalog.ImportCandidates(ctx, m.cfg.MyASN, known)
}

func (m *Module) catalogReady(w http.ResponseWriter) bool {
	if !m.ready(w) {
		return false
	}
	if m.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "PeeringDB client not available")
		return false
	}
	if m.cfg.MyASN == 0 {
		writeError(w, http.StatusBadRequest, "my_asn is not configured")
		return false
	}
	return true
}

// handleImportCandidates lists exchanges this network is present on in
// PeeringDB and not yet known locally.
//
//	@Summary		List PeeringDB import candidates
//	@Tags			peering
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}		peeringdb.Candidate
//	@Failure		502	{object}	models.Problem
//	@Router			/peering/internet-exchanges/import-candidates [get]
func (m *Module) handleImportCandidates(w http.ResponseWriter, r *http.Request) {
	if !m.catalogReady(w) {
		return
	}
	list, err := m.candidates(r.Context())
	if err != nil {
		m.writeCatalogError(w, err)
		return
	}
	if list == nil {
		list = []peeringdb.Candidate{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleImport creates exchanges from the selected candidates.
//
//	@Summary		Import exchanges from PeeringDB
//	@Tags			peering
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			body	body		ImportRequest	true	"Selected candidates"
//	@Success		201		{array}		models.InternetExchange
//	@Failure		400		{object}	models.Problem
//	@Failure		409		{object}	models.Problem
//	@Router			/peering/internet-exchanges/import [post]
func (m *Module) handleImport(w http.ResponseWriter, r *http.Request) {
	if !m.catalogReady(w) {
		return
	}
	var req ImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.PeeringDBIDs) == 0 {
		writeError(w, http.StatusBadRequest, "peeringdb_ids is required")
		return
	}

	list, err := m.candidates(r.Context())
	if err != nil {
		m.writeCatalogError(w, err)
		return
	}
	pool := make(map[int64]peeringdb.Candidate, len(list))
	for _, c := range list {
		pool[c.PeeringDBID] = c
	}

	selected := make([]peeringdb.Candidate, 0, len(req.PeeringDBIDs))
	for _, id := range req.PeeringDBIDs {
		c, ok := pool[id]
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%d is not an import candidate", id))
			return
		}
		selected = append(selected, c)
	}

	created := make([]models.InternetExchange, 0, len(selected))
	for _, c := range selected {
		pdbID := c.PeeringDBID
		ix := models.InternetExchange{
			Name:        c.Name,
			Slug:        c.Slug,
			IPv6Address: c.IPv6Address,
			IPv4Address: c.IPv4Address,
			PeeringDBID: &pdbID,
		}
		if err := validateInternetExchange(r.Context(), &ix); err != nil {
			m.writeStoreError(w, err, "internet exchange")
			return
		}
		if err := m.store.CreateInternetExchange(r.Context(), &ix); err != nil {
			m.writeStoreError(w, err, "internet exchange "+ix.Slug)
			return
		}
		m.publishChange(r, models.ActionCreated, models.ContentTypeInternetExchange, ix.ID, ix)
		created = append(created, ix)
	}
	m.logger.Info("internet exchanges imported", zap.Int("count", len(created)))
	writeJSON(w, http.StatusCreated, created)
}

func (m *Module) writeCatalogError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalid) {
		m.writeStoreError(w, err, "internet exchange")
		return
	}
	m.logger.Warn("peeringdb lookup failed", zap.Error(err))
	writeError(w, http.StatusBadGateway, "PeeringDB lookup failed: "+err.Error())
}

// SyncAutonomousSystem refreshes the AS with number asn from PeeringDB and
// reports whether anything changed.
func (m *Module) SyncAutonomousSystem(ctx context.Context, asn int64) (*models.AutonomousSystem, bool, error) {
	as, err := m.store.GetAutonomousSystemByASN(ctx, asn)
	if err != nil {
		return nil, false, err
	}
	network, err := m.catalog.GetNetwork(ctx, asn)
	if err != nil {
		return nil, false, fmt.Errorf("peeringdb network AS%d: %w", asn, err)
	}
	if !peeringdb.ApplyNetwork(as, *network) {
		return as, false, nil
	}
	if err := m.store.UpdateAutonomousSystem(ctx, as); err != nil {
		return nil, false, err
	}
	return as, true, nil
}

// handleSyncAS synchronises an autonomous system with PeeringDB in a
// background job.
//
//	@Summary		Synchronise an AS with PeeringDB
//	@Tags			peering
//	@Produce		json
//	@Security		BearerAuth
//	@Param			asn	path		int	true	"AS number"
//	@Success		202	{object}	models.JobResult
//	@Failure		404	{object}	models.Problem
//	@Router			/peering/autonomous-systems/{asn}/sync [post]
func (m *Module) handleSyncAS(w http.ResponseWriter, r *http.Request) {
	if !m.ready(w) {
		return
	}
	if m.catalog == nil || m.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "PeeringDB synchronisation not available")
		return
	}
	asn, err := parseID(r, "asn")
	if err != nil {
		m.writeStoreError(w, err, "autonomous system")
		return
	}
	if _, err := m.store.GetAutonomousSystemByASN(r.Context(), asn); err != nil {
		m.writeStoreError(w, err, "autonomous system")
		return
	}

	change := m.changeFor(r, models.ActionUpdated, models.ContentTypeAutonomousSystem)
	job, err := m.jobs.Submit(r.Context(), jobs.Spec{
		Name:    "sync AS" + strconv.FormatInt(asn, 10),
		ObjType: models.ContentTypeAutonomousSystem,
		UserID:  userID(r),
	}, func(ctx context.Context) (any, error) {
		as, changed, err := m.SyncAutonomousSystem(ctx, asn)
		if err != nil {
			if errors.Is(err, peeringdb.ErrNotFound) || errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: %v", jobs.ErrFailed, err)
			}
			return nil, err
		}
		if changed {
			change.ObjectID, change.Data, change.Timestamp = as.ID, as, time.Now().UTC()
			m.emitChange(ctx, change)
		}
		return map[string]any{"changed": changed, "autonomous_system": as}, nil
	})
	if err != nil {
		m.writeStoreError(w, err, "job")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// handlePing checks that a router answers and returns its facts.
//
//	@Summary		Ping a router
//	@Tags			peering
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Router ID"
//	@Success		200	{object}	PingResponse
//	@Failure		404	{object}	models.Problem
//	@Failure		502	{object}	models.Problem
//	@Router			/peering/routers/{id}/ping [get]
func (m *Module) handlePing(w http.ResponseWriter, r *http.Request) {
	if !m.ready(w) {
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		m.writeStoreError(w, err, "router")
		return
	}
	router, err := m.store.GetRouter(r.Context(), id)
	if err != nil {
		m.writeStoreError(w, err, "router")
		return
	}

	var resp PingResponse
	if m.ping != nil && m.cfg.PingCount > 0 {
		ok, rtt, err := m.ping(r.Context(), router.Hostname, m.cfg.PingCount, m.cfg.PingTimeout)
		if err != nil {
			m.logger.Debug("icmp check unavailable", zap.String("router", router.Name), zap.Error(err))
		} else {
			resp.Reachable = &ok
			if ok {
				resp.RTT = rtt.Round(time.Microsecond).String()
			}
		}
	}

	drv, err := m.routerDriver(router)
	if err != nil {
		m.writeWorkflowError(w, err, "router", msgConnectFailed)
		return
	}
	facts, err := device.GetFacts(r.Context(), drv)
	if err != nil {
		m.writeWorkflowError(w, fmt.Errorf("router %s: %w", router.Name, err), "router", msgConnectFailed)
		return
	}
	resp.Facts = &facts
	writeJSON(w, http.StatusOK, resp)
}
