package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brightline/composer/internal/apperr"
	"github.com/brightline/composer/internal/grouping"
	"github.com/brightline/composer/internal/keywords"
	"github.com/brightline/composer/internal/model"
	"github.com/brightline/composer/internal/pools"
	"github.com/brightline/composer/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadKeywordsRequest struct {
	ProjectID string         `json:"projectId"`
	PoolType  model.PoolType `json:"poolType"`
	GroupID   *string        `json:"groupId,omitempty"`
	Keywords  []string       `json:"keywords,omitempty"`
	Text      string         `json:"text,omitempty"`
}

func (s *Server) handleUploadKeywords(w http.ResponseWriter, r *http.Request) {
	var req uploadKeywordsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	kws := req.Keywords
	if len(kws) == 0 && req.Text != "" {
		kws = keywords.ParseCSV(req.Text)
	}

	res, err := s.pools.Upload(r.Context(), pools.UploadRequest{
		OrganizationID: s.orgID(r),
		ProjectID:      req.ProjectID,
		PoolType:       req.PoolType,
		GroupID:        req.GroupID,
		Keywords:       kws,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(keywords.MaxFileSize); err != nil {
		writeError(w, apperr.Validation("invalid_body", "multipart form expected"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperr.Validation("missing_file", "a file field is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, keywords.MaxFileSize+1))
	if err != nil {
		writeError(w, apperr.Validation("unreadable_file", "could not read uploaded file"))
		return
	}

	var kws []string
	var parseErr error
	if strings.HasSuffix(strings.ToLower(header.Filename), ".xlsx") {
		kws, parseErr = keywords.ParseXLSXFile(data)
	} else {
		kws, parseErr = keywords.ParseCSVFile(data)
	}
	if parseErr != nil {
		writeError(w, apperr.Validation("unparseable_file", "%v", parseErr))
		return
	}

	var groupID *string
	if g := r.FormValue("groupId"); g != "" {
		groupID = &g
	}
	res, err := s.pools.Upload(r.Context(), pools.UploadRequest{
		OrganizationID: s.orgID(r),
		ProjectID:      r.FormValue("projectId"),
		PoolType:       model.PoolType(r.FormValue("poolType")),
		GroupID:        groupID,
		Keywords:       kws,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	filter := store.PoolFilter{
		OrganizationID: s.orgID(r),
		ProjectID:      r.URL.Query().Get("projectId"),
		PoolType:       model.PoolType(r.URL.Query().Get("poolType")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	list, err := s.pools.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []model.KeywordPool{}
	}
	writeData(w, http.StatusOK, list)
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pools.Get(r.Context(), s.orgID(r), chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, pool)
}

func (s *Server) handleDeleteKeywords(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pools.DeleteKeywords(r.Context(), s.orgID(r), chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, pool)
}

type cleanRequest struct {
	Settings model.CleanSettings  `json:"settings"`
	Project  model.ProjectContext `json:"project"`
	Variants []model.Variant      `json:"variants,omitempty"`
}

func (s *Server) handleApplyClean(w http.ResponseWriter, r *http.Request) {
	var req cleanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	pool, err := s.pools.ApplyClean(r.Context(), s.orgID(r), chi.URLParam(r, "poolID"), pools.CleanRequest{
		Settings: req.Settings,
		Project:  req.Project,
		Variants: req.Variants,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, pool)
}

func (s *Server) handleApproveClean(w http.ResponseWriter, r *http.Request) {
	s.poolMutation(w, r, s.pools.ApproveClean)
}

func (s *Server) handleUnapproveClean(w http.ResponseWriter, r *http.Request) {
	s.poolMutation(w, r, s.pools.UnapproveClean)
}

func (s *Server) handleApproveGroups(w http.ResponseWriter, r *http.Request) {
	s.poolMutation(w, r, s.pools.ApproveGroups)
}

func (s *Server) handleUnapproveGroups(w http.ResponseWriter, r *http.Request) {
	s.poolMutation(w, r, s.pools.UnapproveGroups)
}

func (s *Server) poolMutation(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, orgID, poolID string) (*model.KeywordPool, error)) {
	pool, err := op(r.Context(), s.orgID(r), chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, pool)
}

type groupingPlanRequest struct {
	Config  model.GroupingConfig `json:"config"`
	Project model.ProjectContext `json:"project"`
}

type groupingPlanResponse struct {
	Pool   *model.KeywordPool   `json:"pool"`
	Groups []model.KeywordGroup `json:"groups"`
}

func (s *Server) handleGroupingPlan(w http.ResponseWriter, r *http.Request) {
	var req groupingPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	pool, groups, err := s.planner.GeneratePlan(r.Context(), s.orgID(r), chi.URLParam(r, "poolID"), req.Config, req.Project)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, groupingPlanResponse{Pool: pool, Groups: groups})
}

func (s *Server) handleGetGroups(w http.ResponseWriter, r *http.Request) {
	view, err := s.planner.Groups(r.Context(), s.orgID(r), chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (s *Server) handleAddOverride(w http.ResponseWriter, r *http.Request) {
	var req grouping.OverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ov, err := s.planner.AddOverride(r.Context(), s.orgID(r), chi.URLParam(r, "poolID"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, ov)
}

func (s *Server) handleResetOverrides(w http.ResponseWriter, r *http.Request) {
	n, err := s.planner.ResetOverrides(r.Context(), s.orgID(r), chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int{"deleted": n})
}
