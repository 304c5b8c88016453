package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aomanu/cidrd/internal/api/middleware"
	"github.com/aomanu/cidrd/pkg/cidrset"
	"github.com/aomanu/cidrd/pkg/models"
)

// defaultPageSize bounds GET /v1/list/{id}/cidr when a cursor is used.
const defaultPageSize = 1000

// ListHandler serves list CRUD and the CIDR mutation endpoints. Mutations
// never touch the cidr table directly; they enqueue jobs for the worker.
type ListHandler struct {
	store models.Store
}

// NewListHandler creates a list handler.
func NewListHandler(store models.Store) *ListHandler {
	return &ListHandler{store: store}
}

// List handles GET /v1/list.
func (h *ListHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	lists, err := h.store.ListLists(r.Context(), user.ID)
	if err != nil {
		InternalServerError(w, "Failed to list lists")
		return
	}
	if lists == nil {
		lists = []models.List{}
	}
	WriteJSONOK(w, lists)
}

// createListRequest is the body of POST /v1/list.
type createListRequest struct {
	ID          string          `json:"id"`
	ListType    models.ListType `json:"list_type"`
	Enabled     *bool           `json:"enabled"`
	Tags        []string        `json:"tags"`
	Description string          `json:"description"`
}

// Create handles POST /v1/list. List ids are unique across all users, so
// a collision with any existing list answers 409.
func (h *ListHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req createListRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	list := &models.List{
		ID:          req.ID,
		UserID:      user.ID,
		ListType:    req.ListType,
		Enabled:     enabled,
		Tags:        models.NormalizeTags(req.Tags),
		Description: req.Description,
	}
	if err := models.Validate(list); err != nil {
		BadRequest(w, "Invalid list: "+err.Error())
		return
	}

	if err := h.store.CreateList(r.Context(), list); err != nil {
		if errors.Is(err, models.ErrDuplicateList) {
			Conflict(w, "List id already exists")
			return
		}
		InternalServerError(w, "Failed to create list")
		return
	}
	WriteJSONCreated(w, list)
}

// Get handles GET /v1/list/{id}.
func (h *ListHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	list, err := h.store.GetList(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.listError(w, err)
		return
	}
	WriteJSONOK(w, list)
}

// updateListRequest is the partial body of PUT /v1/list/{id}. Absent
// fields keep their stored value.
type updateListRequest struct {
	ListType    *models.ListType `json:"list_type"`
	Enabled     *bool            `json:"enabled"`
	Tags        *[]string        `json:"tags"`
	Description *string          `json:"description"`
}

// Update handles PUT /v1/list/{id}. Flipping a SAFE list from disabled to
// enabled enqueues the deferred cleanup job in the same transaction as the
// list write.
func (h *ListHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req updateListRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	list, err := h.store.GetList(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.listError(w, err)
		return
	}
	wasEnabled := list.Enabled

	if req.ListType != nil {
		list.ListType = *req.ListType
	}
	if req.Enabled != nil {
		list.Enabled = *req.Enabled
	}
	if req.Tags != nil {
		list.Tags = models.NormalizeTags(*req.Tags)
	}
	if req.Description != nil {
		list.Description = *req.Description
	}
	if err := models.Validate(list); err != nil {
		BadRequest(w, "Invalid list: "+err.Error())
		return
	}

	var job *models.CidrJob
	if list.ListType == models.ListTypeSafe && !wasEnabled && list.Enabled {
		job = models.NewCidrJob(models.ActionUpdate, list, nil, nil)
	}

	if err := h.store.UpdateList(r.Context(), list, job); err != nil {
		h.listError(w, err)
		return
	}
	WriteJSONOK(w, list)
}

// Delete handles DELETE /v1/list/{id}. Stored CIDRs of the list cascade.
func (h *ListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if err := h.store.DeleteList(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		h.listError(w, err)
		return
	}
	WriteNoContent(w)
}

// listCidrsResponse is the body of GET /v1/list/{id}/cidr.
type listCidrsResponse struct {
	*models.List
	Cidrs []models.Cidr `json:"cidrs"`
}

// GetCidrs handles GET /v1/list/{id}/cidr. With ?limit= (and optionally
// ?before=, the id cursor from the previous page) the rows come back
// paginated, newest first.
func (h *ListHandler) GetCidrs(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	list, err := h.store.GetList(r.Context(), id, user.ID)
	if err != nil {
		h.listError(w, err)
		return
	}

	var cidrs []models.Cidr
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		limit, err := strconv.ParseInt(limitParam, 10, 32)
		if err != nil || limit <= 0 {
			BadRequest(w, "limit must be a positive integer")
			return
		}
		if limit > defaultPageSize {
			limit = defaultPageSize
		}
		var before int64
		if beforeParam := r.URL.Query().Get("before"); beforeParam != "" {
			before, err = strconv.ParseInt(beforeParam, 10, 64)
			if err != nil || before <= 0 {
				BadRequest(w, "before must be a positive integer")
				return
			}
		}
		cidrs, err = h.store.QueryCidrsPage(r.Context(), id, before, int32(limit))
		if err != nil {
			InternalServerError(w, "Failed to load cidrs")
			return
		}
	} else {
		cidrs, err = h.store.GetListCidrs(r.Context(), id, user.ID)
		if err != nil {
			h.listError(w, err)
			return
		}
	}
	if cidrs == nil {
		cidrs = []models.Cidr{}
	}
	WriteJSONOK(w, &listCidrsResponse{List: list, Cidrs: cidrs})
}

// cidrJobRequest is the body of the add/delete endpoints.
type cidrJobRequest struct {
	Cidrs []string `json:"cidrs"`
	TTL   *int64   `json:"ttl"`
}

// AddCidrs handles POST /v1/list/{id}/cidr/add.
func (h *ListHandler) AddCidrs(w http.ResponseWriter, r *http.Request) {
	var req cidrJobRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	h.enqueue(w, r, models.ActionAdd, req.Cidrs, req.TTL)
}

// DeleteCidrs handles POST /v1/list/{id}/cidr/delete.
func (h *ListHandler) DeleteCidrs(w http.ResponseWriter, r *http.Request) {
	var req cidrJobRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	h.enqueue(w, r, models.ActionDelete, req.Cidrs, nil)
}

// rawCidrJobRequest carries free text instead of a CIDR array.
type rawCidrJobRequest struct {
	Cidrs string `json:"cidrs"`
	TTL   *int64 `json:"ttl"`
}

// AddCidrsRaw handles POST /v1/list/{id}/cidr/add/raw: CIDR-looking
// tokens are extracted from the text, everything else is ignored.
func (h *ListHandler) AddCidrsRaw(w http.ResponseWriter, r *http.Request) {
	var req rawCidrJobRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	v4, v6 := cidrset.ExtractFreeText(req.Cidrs)
	h.enqueue(w, r, models.ActionAdd, append(v4, v6...), req.TTL)
}

// DeleteCidrsRaw handles POST /v1/list/{id}/cidr/delete/raw.
func (h *ListHandler) DeleteCidrsRaw(w http.ResponseWriter, r *http.Request) {
	var req rawCidrJobRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	v4, v6 := cidrset.ExtractFreeText(req.Cidrs)
	h.enqueue(w, r, models.ActionDelete, append(v4, v6...), nil)
}

// enqueue materialises one job against the target list and answers 201
// with the queued job. The actual table mutation happens asynchronously.
func (h *ListHandler) enqueue(w http.ResponseWriter, r *http.Request, action models.Action, cidrs []string, ttl *int64) {
	user := middleware.UserFromContext(r.Context())

	if ttl != nil && *ttl <= 0 {
		BadRequest(w, "ttl must be strictly positive")
		return
	}
	if len(cidrs) == 0 {
		BadRequest(w, "cidrs must not be empty")
		return
	}

	list, err := h.store.GetList(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.listError(w, err)
		return
	}

	job := models.NewCidrJob(action, list, cidrs, ttl)
	if err := h.store.EnqueueJob(r.Context(), job); err != nil {
		InternalServerError(w, "Failed to enqueue job")
		return
	}
	WriteJSONCreated(w, job)
}

func (h *ListHandler) listError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrListNotFound) {
		NotFound(w, "List not found")
		return
	}
	InternalServerError(w, "List operation failed")
}
