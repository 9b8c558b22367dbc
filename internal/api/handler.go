// Package api serves the provisioning pipeline over a local HTTP API for
// browser front-ends.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"piawg/internal/dnspreset"
	"piawg/internal/pia"
	"piawg/internal/prefs"
	"piawg/internal/provision"
	"piawg/internal/transport"
	"piawg/internal/wgkey"
)

const (
	apiTitle   = "piawg API"
	apiVersion = "1.0.0"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// A preset name or a literal resolver address.
	_ = v.RegisterValidation("dnspreset", func(fl validator.FieldLevel) bool {
		_, err := dnspreset.Resolve(fl.Field().String(), "")
		return err == nil
	})
	return v
}

type Handler struct {
	pipeline *provision.Pipeline
	store    prefs.Store
	sessions *Sessions
	log      *logrus.Entry
}

func NewHandler(pipeline *provision.Pipeline, store prefs.Store, sessions *Sessions, log *logrus.Entry) *Handler {
	return &Handler{pipeline: pipeline, store: store, sessions: sessions, log: log}
}

// --- Request/Response types ---

type LoginInput struct {
	Body struct {
		Username string `json:"username" required:"true"`
		Password string `json:"password" required:"true"`
	}
}

type LoginOutput struct {
	Body struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
}

type StatusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

type RegionView struct {
	Index   int    `json:"index"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Label   string `json:"label"`
	Country string `json:"country,omitempty"`
	Servers int    `json:"servers"`
}

type RegionsOutput struct {
	Body []RegionView
}

type ConfigInput struct {
	Body struct {
		Region    string `json:"region,omitempty" doc:"Region index from the last listing, or region id"`
		DNS       string `json:"dns,omitempty" doc:"DNS preset or IP address"`
		CustomDNS string `json:"custom_dns,omitempty"`
		Count     int    `json:"count,omitempty" minimum:"0" maximum:"10"`
	}
}

type ConfigsOutput struct {
	Body []provision.Result
}

type PreferencesBody struct {
	Username    string `json:"username,omitempty" validate:"omitempty,max=128"`
	RegionIndex *int   `json:"lastSelectedRegionIndex,omitempty" validate:"omitempty,min=0"`
	RegionID    string `json:"lastSelectedRegionId,omitempty" validate:"omitempty,max=64"`
	DNSPreset   string `json:"dnsPreset,omitempty" validate:"omitempty,dnspreset"`
	CustomDNS   string `json:"customDns,omitempty" validate:"omitempty,max=256"`
}

type PreferencesInput struct {
	Body PreferencesBody
}

type PreferencesOutput struct {
	Body PreferencesBody
}

// --- Register routes ---

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		api := humachi.New(r, huma.DefaultConfig(apiTitle, apiVersion))
		huma.Register(api, huma.Operation{
			OperationID: "login",
			Method:      http.MethodPost,
			Path:        "/api/login",
			Summary:     "Exchange PIA credentials for an API session",
		}, h.login)
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(h.sessions))
		api := humachi.New(r, huma.DefaultConfig(apiTitle, apiVersion))
		huma.Register(api, huma.Operation{
			OperationID: "logout",
			Method:      http.MethodPost,
			Path:        "/api/logout",
			Summary:     "End the API session",
		}, h.logout)
		huma.Register(api, huma.Operation{
			OperationID: "list-regions",
			Method:      http.MethodGet,
			Path:        "/api/regions",
			Summary:     "List WireGuard regions",
		}, h.listRegions)
		huma.Register(api, huma.Operation{
			OperationID:   "create-configs",
			Method:        http.MethodPost,
			Path:          "/api/configs",
			Summary:       "Generate WireGuard configurations",
			DefaultStatus: http.StatusCreated,
		}, h.createConfigs)
		huma.Register(api, huma.Operation{
			OperationID: "get-preferences",
			Method:      http.MethodGet,
			Path:        "/api/preferences",
			Summary:     "Get remembered choices",
		}, h.getPreferences)
		huma.Register(api, huma.Operation{
			OperationID: "put-preferences",
			Method:      http.MethodPut,
			Path:        "/api/preferences",
			Summary:     "Update remembered choices",
		}, h.putPreferences)
	})
}

// --- Handlers ---

func (h *Handler) login(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	creds := pia.Credentials{Username: input.Body.Username, Password: input.Body.Password}
	token, err := h.pipeline.Login(ctx, creds)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	signed, err := h.sessions.Issue(creds.Username, token)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	prefs.Remember(ctx, h.store, h.log, map[string]string{prefs.KeyUsername: creds.Username})

	resp := &LoginOutput{}
	resp.Body.Token = signed
	resp.Body.Username = creds.Username
	return resp, nil
}

func (h *Handler) logout(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	h.sessions.Revoke(claims.ID)
	resp := &StatusOutput{}
	resp.Body.Status = "ok"
	return resp, nil
}

func (h *Handler) listRegions(ctx context.Context, _ *struct{}) (*RegionsOutput, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	regions, err := h.pipeline.Regions(ctx)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	h.sessions.setRegions(claims.ID, regions)

	views := make([]RegionView, len(regions))
	for i, r := range regions {
		views[i] = RegionView{
			Index:   i,
			ID:      r.ID,
			Name:    r.Name,
			Label:   r.Name + " (" + r.ID + ")",
			Country: r.Country,
			Servers: len(r.Servers.WG),
		}
	}
	return &RegionsOutput{Body: views}, nil
}

func (h *Handler) createConfigs(ctx context.Context, input *ConfigInput) (*ConfigsOutput, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	token, err := h.sessions.token(claims.ID)
	if err != nil {
		return nil, h.toHumaError(err)
	}

	remembered := prefs.Load(ctx, h.store, h.log)
	key := remembered.RegionKey(input.Body.Region)
	preset, custom := input.Body.DNS, input.Body.CustomDNS
	if preset == "" {
		preset, custom = remembered.DNSPreset, remembered.CustomDNS
	}
	dns, err := dnspreset.Resolve(preset, custom)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	regions := h.sessions.regions(claims.ID)
	if regions == nil {
		if regions, err = h.pipeline.Regions(ctx); err != nil {
			return nil, h.toHumaError(err)
		}
		h.sessions.setRegions(claims.ID, regions)
	}
	region, idx, err := pia.FindRegion(regions, key)
	if err != nil {
		return nil, h.toHumaError(err)
	}

	results, err := h.pipeline.ProvisionN(ctx, provision.Request{Token: token, Region: region, DNS: dns}, input.Body.Count)
	if err != nil {
		return nil, h.toHumaError(err)
	}

	chosen := map[string]string{
		prefs.KeyRegionIndex: strconv.Itoa(idx),
		prefs.KeyRegionID:    region.ID,
	}
	if input.Body.DNS != "" {
		chosen[prefs.KeyDNSPreset] = input.Body.DNS
		chosen[prefs.KeyCustomDNS] = input.Body.CustomDNS
	}
	prefs.Remember(ctx, h.store, h.log, chosen)

	return &ConfigsOutput{Body: results}, nil
}

func (h *Handler) getPreferences(ctx context.Context, _ *struct{}) (*PreferencesOutput, error) {
	snap := prefs.Load(ctx, h.store, h.log)
	return &PreferencesOutput{Body: PreferencesBody(snap)}, nil
}

func (h *Handler) putPreferences(ctx context.Context, input *PreferencesInput) (*PreferencesOutput, error) {
	if h.store == nil {
		return nil, huma.Error503ServiceUnavailable("preference store unavailable")
	}
	if err := validate.Struct(input.Body); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	for key, value := range prefs.Snapshot(input.Body).Values() {
		if err := h.store.Set(ctx, key, value); err != nil {
			return nil, h.toHumaError(err)
		}
	}
	return h.getPreferences(ctx, nil)
}

func (h *Handler) toHumaError(err error) error {
	switch {
	case errors.Is(err, pia.ErrRegionNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, prefs.ErrUnknownKey):
		return huma.Error400BadRequest(err.Error())
	case pia.IsAuth(err):
		return huma.Error401Unauthorized(err.Error())
	case pia.IsCatalog(err), pia.IsRegistration(err), transport.IsNetwork(err):
		h.log.WithError(err).Warn("upstream request failed")
		return huma.Error502BadGateway(err.Error())
	case wgkey.IsEntropy(err):
		h.log.WithError(err).Error("key generation failed")
		return huma.Error500InternalServerError("key generation failed")
	}
	h.log.WithError(err).Error("request failed")
	return huma.Error500InternalServerError(err.Error())
}
