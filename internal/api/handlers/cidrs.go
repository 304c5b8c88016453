package handlers

import (
	"net/http"
	"net/netip"

	"github.com/aomanu/cidrd/internal/api/middleware"
	"github.com/aomanu/cidrd/pkg/cidrset"
	"github.com/aomanu/cidrd/pkg/iprange"
	"github.com/aomanu/cidrd/pkg/models"
)

// CidrHandler serves the read-only query endpoints over stored CIDRs.
type CidrHandler struct {
	store models.CidrQueryStore
}

// NewCidrHandler creates a cidr query handler.
func NewCidrHandler(store models.CidrQueryStore) *CidrHandler {
	return &CidrHandler{store: store}
}

// Query handles GET /v1/cidr/: raw rows through the user's enabled lists.
func (h *CidrHandler) Query(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.query(w, r)
	if !ok {
		return
	}
	if rows == nil {
		rows = []models.Cidr{}
	}
	WriteJSONOK(w, rows)
}

// Collapsed handles GET /v1/cidr/collapsed: the same selection, merged
// into the minimal equivalent prefix set.
func (h *CidrHandler) Collapsed(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.query(w, r)
	if !ok {
		return
	}
	v4, v6 := collapseRows(rows)
	out := append(cidrset.Strings(v4), cidrset.Strings(v6)...)
	if out == nil {
		out = []string{}
	}
	WriteJSONOK(w, out)
}

// collapsedByVersionResponse is the body of the by-ip-version variant.
type collapsedByVersionResponse struct {
	IPv4 []string `json:"ipv4"`
	IPv6 []string `json:"ipv6"`
}

// CollapsedByVersion handles GET /v1/cidr/collapsed/by-ip-version.
func (h *CidrHandler) CollapsedByVersion(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.query(w, r)
	if !ok {
		return
	}
	v4, v6 := collapseRows(rows)
	resp := &collapsedByVersionResponse{
		IPv4: cidrset.Strings(v4),
		IPv6: cidrset.Strings(v6),
	}
	if resp.IPv4 == nil {
		resp.IPv4 = []string{}
	}
	if resp.IPv6 == nil {
		resp.IPv6 = []string{}
	}
	WriteJSONOK(w, resp)
}

// query parses the shared filter parameters and runs the selection. On a
// parameter error the problem response is already written.
func (h *CidrHandler) query(w http.ResponseWriter, r *http.Request) ([]models.Cidr, bool) {
	user := middleware.UserFromContext(r.Context())
	params := r.URL.Query()

	listType := models.ListType(params.Get("list_type"))
	if !listType.IsValid() {
		BadRequest(w, "list_type must be DENY or SAFE")
		return nil, false
	}

	filter := models.CidrFilter{
		UserID:   user.ID,
		ListType: listType,
		ListID:   params.Get("list_id"),
	}
	if filter.ListID == "" {
		if rawTags := params.Get("tags"); rawTags != "" {
			tags, ok := models.ValidateTagQuery(rawTags)
			if !ok {
				BadRequest(w, "tags must be comma-separated tokens matching [A-Z][A-Z0-9]*")
				return nil, false
			}
			filter.Tags = tags
		}
	}

	rows, err := h.store.QueryCidrs(r.Context(), filter)
	if err != nil {
		InternalServerError(w, "Failed to query cidrs")
		return nil, false
	}
	return rows, true
}

// collapseRows parses stored addresses and merges them per IP version.
func collapseRows(rows []models.Cidr) ([]netip.Prefix, []netip.Prefix) {
	var prefixes []netip.Prefix
	for _, row := range rows {
		if p, err := cidrset.ParseLoose(row.Address); err == nil {
			prefixes = append(prefixes, p)
		}
	}
	var v4, v6 []netip.Prefix
	for _, p := range iprange.Collapse(prefixes) {
		if p.Addr().Is4() {
			v4 = append(v4, p)
		} else {
			v6 = append(v6, p)
		}
	}
	return v4, v6
}
