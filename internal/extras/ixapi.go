package extras

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/HerbHall/peeringmanager/internal/ixapi"
)

// handleIXAPIAccounts authenticates against an IX-API endpoint with the
// given credentials and lists its accounts.
//
//	@Summary		List IX-API accounts
//	@Tags			extras
//	@Produce		json
//	@Param			url			query	string	true	"IX-API base URL"
//	@Param			api_key		query	string	true	"API key"
//	@Param			api_secret	query	string	true	"API secret"
//	@Success		200			{array}		map[string]any
//	@Failure		400			{object}	models.Problem
//	@Failure		502			{object}	models.Problem
//	@Router			/extras/ix-api/accounts [get]
func (m *Module) handleIXAPIAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	baseURL, key, secret := q.Get("url"), q.Get("api_key"), q.Get("api_secret")
	if baseURL == "" || key == "" || secret == "" {
		writeError(w, http.StatusBadRequest, "url, api_key and api_secret are required")
		return
	}
	if err := validateURL("url", baseURL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m.writeAccounts(w, r, baseURL, key, secret)
}

// handleStoredIXAPIAccounts lists the accounts of a stored endpoint.
//
//	@Summary		List accounts of a stored IX-API endpoint
//	@Tags			extras
//	@Produce		json
//	@Param			id	path		int	true	"IX-API ID"
//	@Success		200	{array}		map[string]any
//	@Failure		404	{object}	models.Problem
//	@Failure		502	{object}	models.Problem
//	@Router			/extras/ix-api/{id}/accounts [get]
func (m *Module) handleStoredIXAPIAccounts(w http.ResponseWriter, r *http.Request) {
	if !m.ready(w) {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "ix-api not found")
		return
	}
	x, err := m.store.GetIXAPI(r.Context(), id)
	if err != nil {
		m.writeStoreError(w, err, "ix-api")
		return
	}
	m.writeAccounts(w, r, x.URL, x.APIKey, x.APISecret)
}

func (m *Module) writeAccounts(w http.ResponseWriter, r *http.Request, baseURL, key, secret string) {
	client := ixapi.NewClient(baseURL, key, secret, m.cfg.IXAPITimeout, m.logger)
	accounts, err := client.Accounts(r.Context())
	if err != nil {
		m.logger.Warn("ix-api accounts lookup failed", zap.String("url", baseURL), zap.Error(err))
		if errors.Is(err, ixapi.ErrUnauthorized) {
			writeError(w, http.StatusBadGateway, "IX-API rejected the credentials")
			return
		}
		writeError(w, http.StatusBadGateway, "Unable to reach the IX-API endpoint.")
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}
