package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/xela07ax/mmonit-hub/internal/console/service"
	"github.com/xela07ax/mmonit-hub/internal/domain"
	"github.com/xela07ax/mmonit-hub/internal/infra/auth"
	"go.uber.org/zap"
)

// Aggregator Описываем, что нам нужно от движка
type Aggregator interface {
	Aggregate(ctx context.Context, identity string, scope domain.TenantScope) domain.Envelope
}

// AccessResolver — разрешенные арендаторы вызывающего
type AccessResolver interface {
	ResolveAllowedTenants(identity string) (domain.TenantScope, error)
}

type DashboardHandler struct {
	aggregator Aggregator
	access     AccessResolver
	settings   domain.Settings
	logger     *zap.Logger
}

// NewDashboardHandler. settings.Username заполняется на каждый запрос.
func NewDashboardHandler(agg Aggregator, access AccessResolver, settings domain.Settings, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		aggregator: agg,
		access:     access,
		settings:   settings,
		logger:     logger.Named("dashboard"),
	}
}

// GetData — GET /api/data
func (h *DashboardHandler) GetData(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFrom(r.Context())

	scope, err := h.access.ResolveAllowedTenants(identity)
	if err != nil {
		if errors.Is(err, service.ErrAccessDenied) {
			h.logger.Warn("access denied", zap.String("username", identity))
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve access")
		return
	}

	// Цикл опроса доводится до конца даже если клиент ушел: его ограничивают таймауты upstream
	env := h.aggregator.Aggregate(context.WithoutCancel(r.Context()), identity, scope)
	writeJSON(w, http.StatusOK, env)
}

// GetSettings — GET /api/settings
func (h *DashboardHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings := h.settings
	settings.Username = auth.IdentityFrom(r.Context())
	writeJSON(w, http.StatusOK, settings)
}
