package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/raphaelgruber/prodscout/internal/api"
	"github.com/raphaelgruber/prodscout/internal/service"
)

// abort writes err as an ErrorResponse. Pipeline sentinels map to client
// errors; anything else gets fallback.
func abort(c *gin.Context, err error, fallback int) {
	status, code := fallback, api.CodeBackend
	switch {
	case errors.Is(err, service.ErrBatchNotFound):
		status, code = http.StatusNotFound, api.CodeBatchNotFound
	case errors.Is(err, service.ErrRecordNotFound):
		status, code = http.StatusNotFound, api.CodeRecordNotFound
	case errors.Is(err, service.ErrBatchNotFinished):
		status, code = http.StatusConflict, api.CodeBatchNotFinished
	case errors.Is(err, service.ErrEmptySelection):
		status, code = http.StatusBadRequest, api.CodeEmptySelection
	case errors.Is(err, service.ErrNoSelections),
		errors.Is(err, service.ErrDuplicateProductInBatch),
		errors.Is(err, service.ErrInvalidSelection),
		errors.Is(err, service.ErrEmptyQuery):
		status, code = http.StatusBadRequest, api.CodeInvalidRequest
	case errors.Is(err, service.ErrExportFailed):
		status, code = http.StatusBadGateway, api.CodeExportFailed
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, api.ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error(), Code: api.CodeInvalidRequest})
}

func batchID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid batch id", Code: api.CodeInvalidRequest})
		return 0, false
	}
	return id, true
}

func (s *Server) stats(c *gin.Context) {
	records, err := s.pipeline.Knowledge(c.Request.Context())
	if err != nil {
		abort(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, api.StatsResponse{
		Snapshot:      s.pipeline.Metrics().Snapshot(),
		Records:       len(records),
		ActiveBatches: len(s.pipeline.Batches().List()),
		Exporter:      s.pipeline.HasExporter(),
	})
}

func (s *Server) discover(c *gin.Context) {
	var req api.DiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	categories, err := s.pipeline.Discovery().Discover(c.Request.Context(), req.Query)
	if err != nil {
		abort(c, err, http.StatusBadGateway)
		return
	}
	c.JSON(http.StatusOK, api.DiscoverResponse{Query: req.Query, Categories: categories})
}

func (s *Server) identify(c *gin.Context) {
	var req api.IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	identified, err := s.pipeline.Discovery().Identify(ctx, req.Categories)
	if err != nil {
		abort(c, err, http.StatusBadGateway)
		return
	}
	tracker, err := s.pipeline.Tracker(ctx)
	if err != nil {
		abort(c, err, http.StatusInternalServerError)
		return
	}

	resp := api.IdentifyResponse{Categories: make([]api.CategoryCandidates, 0, len(identified))}
	seen := make(map[string]struct{}, len(identified))
	for _, category := range req.Categories {
		category = strings.TrimSpace(category)
		products, ok := identified[category]
		if _, dup := seen[category]; !ok || dup {
			continue
		}
		seen[category] = struct{}{}

		cc := api.CategoryCandidates{
			Category: category,
			Complete: tracker.IsCategoryComplete(products),
			Products: make([]api.Candidate, len(products)),
		}
		for i, p := range products {
			cc.Products[i] = api.Candidate{Name: p, Accounted: tracker.IsProductAccounted(p)}
		}
		resp.Categories = append(resp.Categories, cc)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listKnowledge(c *gin.Context) {
	records, err := s.pipeline.Knowledge(c.Request.Context())
	if err != nil {
		abort(c, err, http.StatusInternalServerError)
		return
	}
	if category := c.Query("category"); category != "" {
		filtered := records[:0:0]
		for _, r := range records {
			if r.Category == category {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}
	c.JSON(http.StatusOK, api.KnowledgeResponse{Records: records, Total: len(records)})
}

func (s *Server) getRecord(c *gin.Context) {
	rec, err := s.pipeline.Record(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) launch(c *gin.Context) {
	var req api.LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b, err := s.pipeline.Launch(c.Request.Context(), req.Selections)
	if err != nil {
		abort(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusCreated, api.NewBatchView(b))
}

func (s *Server) listBatches(c *gin.Context) {
	batches := s.pipeline.Batches().List()
	views := make([]api.BatchView, len(batches))
	for i, b := range batches {
		views[i] = api.NewBatchView(b)
	}
	c.JSON(http.StatusOK, api.BatchList{Batches: views})
}

func (s *Server) getBatch(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}
	b, found := s.pipeline.Batches().Get(id)
	if !found {
		abort(c, service.ErrBatchNotFound, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, api.NewBatchView(b))
}

func (s *Server) dismiss(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}
	if !s.pipeline.Dismiss(id) {
		abort(c, service.ErrBatchNotFound, http.StatusNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) review(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}
	state, err := s.pipeline.ReviewState(c.Request.Context(), id)
	if err != nil {
		abort(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) toggle(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}
	var req api.ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	state, err := s.pipeline.Toggle(c.Request.Context(), id, req.ProductID)
	if err != nil {
		abort(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) commit(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}
	var req api.CommitRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	res, err := s.pipeline.Finalize(c.Request.Context(), id, service.FinalizeOptions{
		Export:      req.Export,
		Destination: req.Destination,
	})
	if err != nil {
		abort(c, err, http.StatusInternalServerError)
		return
	}
	resp := api.CommitResponse{FinalizeResult: res}
	if res.ExportErr != nil {
		resp.ExportError = res.ExportErr.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) export(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}
	var req api.ExportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	dest, err := s.pipeline.Export(c.Request.Context(), id, req.Destination)
	if err != nil {
		abort(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, api.ExportResponse{Destination: dest})
}
