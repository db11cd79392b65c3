package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ventortech/merpwms/internal/picking"
)

// ChangeTypeRequest moves a picking to another operation type
type ChangeTypeRequest struct {
	PickingTypeID int64 `json:"picking_type_id"`
}

// RoutingRequest updates the outgoing routing settings of a company.
// Order accepts "asc"/"desc" as well as the stored "0"/"1".
type RoutingRequest struct {
	Strategy string `json:"strategy"`
	Order    string `json:"order"`
}

// RoutingResponse reports the routing settings of a company
type RoutingResponse struct {
	CompanyID int64            `json:"company_id"`
	Strategy  picking.Strategy `json:"strategy"`
	Order     picking.Order    `json:"order"`
}

// changePickingType changes the operation type of a picking
func (r *Router) changePickingType(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid picking id")
		return
	}
	var body ChangeTypeRequest
	if err := decodeJSON(req, &body); err != nil || body.PickingTypeID <= 0 {
		respondError(w, http.StatusBadRequest, "picking_type_id is required")
		return
	}

	p, err := r.Batches.ChangePickingType(req.Context(), id, body.PickingTypeID)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// firstProcPicking returns the first picking of the procurement group
func (r *Router) firstProcPicking(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid picking id")
		return
	}
	p, err := r.Batches.FirstProcPicking(req.Context(), id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// loadPickingList builds the sorted list for the picking in the path. An
// optional company_id query parameter overrides the picking's company.
func (r *Router) loadPickingList(w http.ResponseWriter, req *http.Request) (*picking.List, bool) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid picking id")
		return nil, false
	}
	var companyID *int64
	if raw := req.URL.Query().Get("company_id"); raw != "" {
		cid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid company_id")
			return nil, false
		}
		companyID = &cid
	}

	list, err := r.Pickings.PickingList(req.Context(), companyID, id)
	if err != nil {
		r.respondServiceError(w, err)
		return nil, false
	}
	return list, true
}

// pickingList returns the operations of a picking in routing order
func (r *Router) pickingList(w http.ResponseWriter, req *http.Request) {
	list, ok := r.loadPickingList(w, req)
	if !ok {
		return
	}
	if r.Metrics != nil {
		r.Metrics.RecordPickingList(string(list.Strategy), "json")
	}
	respondJSON(w, http.StatusOK, list)
}

// pickingListPDF prints the picking list
func (r *Router) pickingListPDF(w http.ResponseWriter, req *http.Request) {
	list, ok := r.loadPickingList(w, req)
	if !ok {
		return
	}

	pdfBytes, err := picking.RenderPDF(list)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate PDF: %v", err))
		return
	}
	if r.Metrics != nil {
		r.Metrics.RecordPickingList(string(list.Strategy), "pdf")
	}

	// Set headers for download
	name := strings.NewReplacer("/", "_", "\"", "").Replace(list.Picking.Name)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"picking_%s.pdf\"", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdfBytes)))

	w.Write(pdfBytes)
}

// getRouting returns the routing settings of a company
func (r *Router) getRouting(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid company id")
		return
	}
	c, err := r.Routing.Company(req.Context(), id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	strategy, order := picking.RoutingFor(c)
	respondJSON(w, http.StatusOK, RoutingResponse{CompanyID: c.ID, Strategy: strategy, Order: order})
}

// updateRouting changes the routing settings of a company (admin only)
func (r *Router) updateRouting(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid company id")
		return
	}
	var body RoutingRequest
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	strategy := picking.ParseStrategy(body.Strategy)
	if !strategy.Known() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Unknown routing strategy %q", body.Strategy))
		return
	}
	order, ok := parseOrderParam(body.Order)
	if !ok {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Unknown routing order %q", body.Order))
		return
	}

	c, err := r.Routing.UpdateRouting(req.Context(), id, strategy, order)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	strategy, order = picking.RoutingFor(c)
	respondJSON(w, http.StatusOK, RoutingResponse{CompanyID: c.ID, Strategy: strategy, Order: order})
}

func parseOrderParam(s string) (picking.Order, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "0":
		return picking.Ascending, true
	case "desc", "1":
		return picking.Descending, true
	}
	return picking.Ascending, false
}
