// Package server exposes the risk-information endpoint over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/motorsuscripcion/risk-info-service/internal/common"
	"github.com/motorsuscripcion/risk-info-service/internal/orchestrator"
	"github.com/motorsuscripcion/risk-info-service/internal/repository"
	"github.com/motorsuscripcion/risk-info-service/internal/source"
)

// CaseOrchestrator runs one aggregation for a case's configuration rows.
type CaseOrchestrator interface {
	Run(ctx context.Context, rows []source.Config, req orchestrator.Request) ([]map[string]any, error)
}

// RiskInfoRequest is the endpoint body. Modification code is optional; the
// store compares it with COALESCE.
type RiskInfoRequest struct {
	CodigoProducto     int64  `json:"codigo_producto" binding:"required"`
	CodigoSubproducto  int64  `json:"codigo_subproducto" binding:"required"`
	CodigoMovimiento   string `json:"codigo_movimiento" binding:"required"`
	CodigoModificacion string `json:"codigo_modificacion"`
	Consecutivo        int64  `json:"consecutivo" binding:"required"`
}

// RiskInfoResponse carries the aggregated records. Mensaje explains an empty
// list; zero risks is a successful outcome, not an error.
type RiskInfoResponse struct {
	Riesgos []map[string]any `json:"riesgos"`
	Mensaje string           `json:"mensaje,omitempty"`
}

const emptyResultMessage = "No se encontró ningún riesgo con los parámetros proporcionados."

type Service struct {
	sources repository.SourceRepository
	orch    CaseOrchestrator
	health  func(ctx context.Context) error
	logger  *slog.Logger
}

func NewService(sources repository.SourceRepository, orch CaseOrchestrator,
	health func(ctx context.Context) error, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{sources: sources, orch: orch, health: health, logger: logger}
}

// Router builds the gin engine with the service routes mounted.
func (s *Service) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/api/obtener_info_riesgos", s.handleRiskInfo)
	r.GET("/healthz", s.handleHealth)
	return r
}

func (s *Service) handleRiskInfo(c *gin.Context) {
	var req RiskInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := repository.CaseKey{
		Product:      req.CodigoProducto,
		Subproduct:   req.CodigoSubproducto,
		Movement:     req.CodigoMovimiento,
		Modification: req.CodigoModificacion,
	}

	rows, err := s.sources.ListSourceConfigs(c.Request.Context(), key)
	if err != nil {
		s.logger.Error("server.risk_info.config_query_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error consultando la configuración"})
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No se encontró configuración para los parámetros proporcionados.",
		})
		return
	}

	records, err := s.orch.Run(c.Request.Context(), rows, orchestrator.Request{
		Consecutivo: req.Consecutivo,
		Key:         key,
	})
	if err != nil {
		if errors.Is(err, common.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("server.risk_info.orchestration_failed",
			"consecutivo", req.Consecutivo, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error procesando el caso"})
		return
	}

	resp := RiskInfoResponse{Riesgos: records}
	if len(records) == 0 {
		resp.Riesgos = []map[string]any{}
		resp.Mensaje = emptyResultMessage
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Service) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
