// Package httpapi exposes the retrieval engine over HTTP: a streaming
// query endpoint, ingestion, feedback intake, and registry administration.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"retrieval-engine/internal/domain"
	"retrieval-engine/internal/metrics"
	"retrieval-engine/internal/usecase"
)

type Handler struct {
	queryUsecase    usecase.StreamQueryUsecase
	ingestUsecase   usecase.IngestUsecase
	feedbackUsecase usecase.FeedbackUsecase
	adminUsecase    usecase.AdminUsecase
}

func NewHandler(
	queryUsecase usecase.StreamQueryUsecase,
	ingestUsecase usecase.IngestUsecase,
	feedbackUsecase usecase.FeedbackUsecase,
	adminUsecase usecase.AdminUsecase,
) *Handler {
	return &Handler{
		queryUsecase:    queryUsecase,
		ingestUsecase:   ingestUsecase,
		feedbackUsecase: feedbackUsecase,
		adminUsecase:    adminUsecase,
	}
}

// Register attaches all routes to the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/v1/query", h.StreamQuery)
	e.POST("/v1/documents", h.UpsertDocument)
	e.POST("/v1/chunks", h.UpsertChunk)
	e.POST("/v1/chunks/:id/deactivate", h.DeactivateChunk)
	e.POST("/v1/feedback/events", h.RecordFeedback)
	e.POST("/v1/admin/weight-sets", h.CreateWeightSet)
	e.POST("/v1/admin/weight-sets/:id/activate", h.ActivateWeightSet)
	e.GET("/v1/admin/weight-sets/active", h.GetActiveWeightSet)
	e.PUT("/v1/admin/ann-profiles", h.UpsertANNProfile)
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	TenantID    string    `json:"tenant_id"`
	Query       string    `json:"query"`
	QueryVector []float32 `json:"query_vector"`
	DenseVector []float32 `json:"dense_vector,omitempty"`
	K           int       `json:"k"`
}

// StreamQuery runs a query and streams refinement phases as server-sent
// events. The request context carries client disconnects into the
// pipeline as cancellation.
func (h *Handler) StreamQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid tenant_id"})
	}

	ctx := c.Request().Context()
	events, err := h.queryUsecase.Stream(ctx, usecase.QueryInput{
		TenantID:    tenantID,
		Query:       req.Query,
		QueryVector: req.QueryVector,
		DenseVector: req.DenseVector,
		K:           req.K,
	})
	if err != nil {
		return writeError(c, err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)

	phaseStart := time.Now()
	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event.Phase, payload); err != nil {
			return nil
		}
		resp.Flush()

		if event.Phase != usecase.PhaseTerminal {
			metrics.RecordPhase(string(event.Phase), time.Since(phaseStart).Seconds())
			phaseStart = time.Now()
		} else {
			metrics.RecordQuery(string(event.State), event.Degraded)
		}
	}
	return nil
}

// UpsertDocumentRequest is the body of POST /v1/documents.
type UpsertDocumentRequest struct {
	TenantID    string `json:"tenant_id"`
	ExternalRef string `json:"external_ref"`
	ContentHash string `json:"content_hash"`
	Title       string `json:"title,omitempty"`
	Language    string `json:"language,omitempty"`
	SourceType  string `json:"source_type,omitempty"`
}

func (h *Handler) UpsertDocument(c echo.Context) error {
	var req UpsertDocumentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid tenant_id"})
	}

	result, err := h.ingestUsecase.UpsertDocument(c.Request().Context(), usecase.UpsertDocumentInput{
		TenantID:    tenantID,
		ExternalRef: req.ExternalRef,
		ContentHash: req.ContentHash,
		Title:       req.Title,
		Language:    req.Language,
		SourceType:  req.SourceType,
	})
	if err != nil {
		metrics.RecordIngest("document", "error")
		return writeError(c, err)
	}

	outcome := "updated"
	if !result.IsNewVersion {
		outcome = "unchanged"
	}
	metrics.RecordIngest("document", outcome)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"document_id":    result.DocumentID.String(),
		"version":        result.Version,
		"is_new_version": result.IsNewVersion,
	})
}

// UpsertChunkRequest is the body of POST /v1/chunks.
type UpsertChunkRequest struct {
	TenantID       string          `json:"tenant_id"`
	DocumentID     string          `json:"document_id"`
	Ordinal        int             `json:"ordinal"`
	Text           string          `json:"text"`
	Checksum       string          `json:"checksum"`
	EmbeddingSmall []float32       `json:"embedding_small"`
	EmbeddingDense []float32       `json:"embedding_dense,omitempty"`
	Enrichment     json.RawMessage `json:"enrichment,omitempty"`
	Authority      float32         `json:"authority"`
	Quality        float32         `json:"quality"`
	Complexity     float32         `json:"complexity"`
}

func (h *Handler) UpsertChunk(c echo.Context) error {
	var req UpsertChunkRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid tenant_id"})
	}
	documentID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid document_id"})
	}

	result, err := h.ingestUsecase.UpsertChunk(c.Request().Context(), usecase.UpsertChunkInput{
		TenantID:       tenantID,
		DocumentID:     documentID,
		Ordinal:        req.Ordinal,
		Text:           req.Text,
		Checksum:       req.Checksum,
		EmbeddingSmall: req.EmbeddingSmall,
		EmbeddingDense: req.EmbeddingDense,
		Enrichment:     req.Enrichment,
		Authority:      req.Authority,
		Quality:        req.Quality,
		Complexity:     req.Complexity,
	})
	if err != nil {
		metrics.RecordIngest("chunk", "error")
		return writeError(c, err)
	}

	outcome := "inserted"
	if result.Deduplicated {
		outcome = "deduplicated"
	}
	metrics.RecordIngest("chunk", outcome)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"chunk_id":     result.ChunkID.String(),
		"deduplicated": result.Deduplicated,
	})
}

func (h *Handler) DeactivateChunk(c echo.Context) error {
	chunkID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid chunk id"})
	}
	tenantID, err := uuid.Parse(c.QueryParam("tenant_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid tenant_id"})
	}

	if err := h.ingestUsecase.DeactivateChunk(c.Request().Context(), tenantID, chunkID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deactivated"})
}

// FeedbackEvent is one interaction event in POST /v1/feedback/events.
type FeedbackEvent struct {
	TenantID    string `json:"tenant_id"`
	ChunkID     string `json:"chunk_id"`
	EventType   string `json:"event_type"`
	DwellTimeMs *int64 `json:"dwell_time_ms,omitempty"`
	ActorHash   string `json:"actor_hash,omitempty"`
	OccurredAt  string `json:"occurred_at,omitempty"`
}

// FeedbackRequest is the body of POST /v1/feedback/events.
type FeedbackRequest struct {
	Events []FeedbackEvent `json:"events"`
}

func (h *Handler) RecordFeedback(c echo.Context) error {
	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	events := make([]domain.InteractionEvent, 0, len(req.Events))
	for _, e := range req.Events {
		tenantID, err := uuid.Parse(e.TenantID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid tenant_id"})
		}
		chunkID, err := uuid.Parse(e.ChunkID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid chunk_id"})
		}
		event := domain.InteractionEvent{
			TenantID:    tenantID,
			ChunkID:     chunkID,
			Kind:        domain.EventKind(e.EventType),
			DwellTimeMs: e.DwellTimeMs,
			ActorHash:   e.ActorHash,
		}
		if e.OccurredAt != "" {
			occurredAt, err := time.Parse(time.RFC3339, e.OccurredAt)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid occurred_at"})
			}
			event.OccurredAt = occurredAt
		}
		events = append(events, event)
	}

	if err := h.feedbackUsecase.RecordEvents(c.Request().Context(), events); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{"accepted": len(events)})
}

// WeightSetRequest is the body of POST /v1/admin/weight-sets.
type WeightSetRequest struct {
	TenantID            string  `json:"tenant_id"`
	Name                string  `json:"name"`
	SimilarityWeight    float64 `json:"similarity_weight"`
	RerankWeight        float64 `json:"rerank_weight"`
	EngagementWeight    float64 `json:"engagement_weight"`
	AuthorityWeight     float64 `json:"authority_weight"`
	RecencyHalfLifeSecs int64   `json:"recency_half_life_secs"`
	ModelVariant        string  `json:"model_variant,omitempty"`
}

func (h *Handler) CreateWeightSet(c echo.Context) error {
	var req WeightSetRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid tenant_id"})
	}

	set, err := h.adminUsecase.CreateWeightSet(c.Request().Context(), domain.ScoringWeightSet{
		TenantID:         tenantID,
		Name:             req.Name,
		SimilarityWeight: req.SimilarityWeight,
		RerankWeight:     req.RerankWeight,
		EngagementWeight: req.EngagementWeight,
		AuthorityWeight:  req.AuthorityWeight,
		RecencyHalfLife:  time.Duration(req.RecencyHalfLifeSecs) * time.Second,
		ModelVariant:     req.ModelVariant,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, weightSetResponse(*set))
}

func (h *Handler) ActivateWeightSet(c echo.Context) error {
	setID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid weight set id"})
	}
	tenantID, err := uuid.Parse(c.QueryParam("tenant_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid tenant_id"})
	}

	if err := h.adminUsecase.ActivateWeightSet(c.Request().Context(), tenantID, setID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "activated"})
}

func (h *Handler) GetActiveWeightSet(c echo.Context) error {
	tenantID, err := uuid.Parse(c.QueryParam("tenant_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid tenant_id"})
	}

	set, err := h.adminUsecase.GetActiveWeightSet(c.Request().Context(), tenantID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, weightSetResponse(set))
}

// ANNProfileRequest is the body of PUT /v1/admin/ann-profiles.
type ANNProfileRequest struct {
	TenantID      string `json:"tenant_id"`
	Probes        int    `json:"probes"`
	EfSearch      int    `json:"ef_search"`
	MinCandidates int    `json:"min_candidates"`
	MaxCandidates int    `json:"max_candidates"`
}

func (h *Handler) UpsertANNProfile(c echo.Context) error {
	var req ANNProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid tenant_id"})
	}

	err = h.adminUsecase.UpsertANNProfile(c.Request().Context(), domain.ANNRuntimeProfile{
		TenantID:      tenantID,
		Probes:        req.Probes,
		EfSearch:      req.EfSearch,
		MinCandidates: req.MinCandidates,
		MaxCandidates: req.MaxCandidates,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "updated"})
}

func weightSetResponse(set domain.ScoringWeightSet) map[string]interface{} {
	return map[string]interface{}{
		"id":                     set.ID.String(),
		"tenant_id":              set.TenantID.String(),
		"name":                   set.Name,
		"version":                set.Version,
		"similarity_weight":      set.SimilarityWeight,
		"rerank_weight":          set.RerankWeight,
		"engagement_weight":      set.EngagementWeight,
		"authority_weight":       set.AuthorityWeight,
		"recency_half_life_secs": int64(set.RecencyHalfLife.Seconds()),
		"model_variant":          set.ModelVariant,
		"active":                 set.Active,
	}
}

// writeError maps domain errors to HTTP statuses.
func writeError(c echo.Context, err error) error {
	switch {
	case domain.IsValidation(err):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrVersionConflict):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrIndexUnavailable):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
