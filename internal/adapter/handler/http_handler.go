package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cpacheco/cyclecount/internal/core/domain"
	"github.com/cpacheco/cyclecount/internal/core/service"
	"github.com/cpacheco/cyclecount/internal/port"
)

const tsFormat = "2006-01-02 15:04:05"

type HTTPHandler struct {
	assignments *service.AssignmentService
	locks       *service.LockService
	submissions *service.SubmissionService
}

func NewHTTPHandler(assignments *service.AssignmentService, locks *service.LockService, submissions *service.SubmissionService) *HTTPHandler {
	return &HTTPHandler{
		assignments: assignments,
		locks:       locks,
		submissions: submissions,
	}
}

type ExpandHTTPRequest struct {
	AssignedBy string   `json:"assigned_by"`
	Assignee   string   `json:"assignee"`
	Locations  []string `json:"locations"`
	Pasted     string   `json:"pasted"`
	Lots       []string `json:"lots"`
	PalletIDs  []string `json:"pallet_ids"`
}

type ExpandHTTPResponse struct {
	Created    []AssignmentJSON `json:"created"`
	Duplicates []string         `json:"duplicates"`
	Locked     []string         `json:"locked"`
	NotInCache []string         `json:"not_in_cache"`
}

type AssignmentJSON struct {
	AssignmentID  string `json:"assignment_id"`
	AssignedBy    string `json:"assigned_by"`
	Assignee      string `json:"assignee"`
	Location      string `json:"location"`
	SKU           string `json:"sku"`
	LotNumber     string `json:"lot_number"`
	PalletID      string `json:"pallet_id"`
	ExpectedQty   *int   `json:"expected_qty"`
	Status        string `json:"status"`
	LockOwner     string `json:"lock_owner"`
	LockStartTS   string `json:"lock_start_ts"`
	LockExpiresTS string `json:"lock_expires_ts"`
	CreatedAt     string `json:"created_at"`
}

type SubmissionJSON struct {
	SubmissionID    string `json:"submission_id"`
	AssignmentID    string `json:"assignment_id"`
	Assignee        string `json:"assignee"`
	Location        string `json:"location"`
	SKU             string `json:"sku"`
	LotNumber       string `json:"lot_number"`
	PalletID        string `json:"pallet_id"`
	CountedQty      int    `json:"counted_qty"`
	ExpectedQty     *int   `json:"expected_qty"`
	Variance        *int   `json:"variance"`
	VarianceFlag    string `json:"variance_flag"`
	Timestamp       string `json:"timestamp"`
	DeviceID        string `json:"device_id"`
	Note            string `json:"note"`
	IssueType       string `json:"issue_type"`
	ActualPalletID  string `json:"actual_pallet_id"`
	ActualLotNumber string `json:"actual_lot_number"`
}

type LockHTTPRequest struct {
	User string `json:"user"`
}

type SubmitHTTPRequest struct {
	AssignmentID    string `json:"assignment_id"`
	Assignee        string `json:"assignee"`
	Location        string `json:"location"`
	SKU             string `json:"sku"`
	LotNumber       string `json:"lot_number"`
	PalletID        string `json:"pallet_id"`
	CountedQty      string `json:"counted_qty"`
	ExpectedQty     *int   `json:"expected_qty"`
	DeviceID        string `json:"device_id"`
	Note            string `json:"note"`
	IssueType       string `json:"issue_type"`
	ActualPalletID  string `json:"actual_pallet_id"`
	ActualLotNumber string `json:"actual_lot_number"`
}

type DeleteHTTPRequest struct {
	DeletedBy string `json:"deleted_by"`
	Reason    string `json:"reason"`
	Note      string `json:"note"`
}

type InventoryRowJSON struct {
	Location    string `json:"location"`
	SKU         string `json:"sku"`
	LotNumber   string `json:"lot_number"`
	PalletID    string `json:"pallet_id"`
	ExpectedQty *int   `json:"expected_qty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) CreateAssignments(w http.ResponseWriter, r *http.Request) {
	var req ExpandHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	// Explicit selections first, then pasted entries; the expander
	// deduplicates while preserving this order.
	locations := append([]string{}, req.Locations...)
	locations = append(locations, splitPasted(req.Pasted)...)

	res, err := h.assignments.Expand(r.Context(), service.ExpandRequest{
		AssignedBy: req.AssignedBy,
		Assignee:   req.Assignee,
		Locations:  locations,
		Lots:       req.Lots,
		PalletIDs:  req.PalletIDs,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := ExpandHTTPResponse{
		Created:    make([]AssignmentJSON, 0, len(res.Created)),
		Duplicates: emptyIfNil(res.Duplicates),
		Locked:     emptyIfNil(res.Locked),
		NotInCache: emptyIfNil(res.NotInCache),
	}
	for _, a := range res.Created {
		resp.Created = append(resp.Created, toAssignmentJSON(a))
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *HTTPHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	filter := port.AssignmentFilter{
		Assignee: r.URL.Query().Get("assignee"),
		Location: r.URL.Query().Get("location"),
	}
	assignments, err := h.assignments.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]AssignmentJSON, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, toAssignmentJSON(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) LockAssignment(w http.ResponseWriter, r *http.Request) {
	var req LockHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	a, err := h.locks.StartOrRenew(r.Context(), r.PathValue("id"), req.User)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentJSON(*a))
}

func (h *HTTPHandler) ReopenAssignment(w http.ResponseWriter, r *http.Request) {
	if err := h.assignments.Reopen(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.StatusAssigned)})
}

func (h *HTTPHandler) ExpectedQty(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	row, err := h.assignments.Lookup(r.Context(), q.Get("location"), q.Get("lot"), q.Get("pallet"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if row == nil {
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"found": true,
		"row":   toInventoryRowJSON(*row),
	})
}

func (h *HTTPHandler) ReplaceInventory(w http.ResponseWriter, r *http.Request) {
	var req []InventoryRowJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	rows := make([]domain.InventoryRow, 0, len(req))
	for _, in := range req {
		rows = append(rows, domain.InventoryRow{
			Location:    in.Location,
			SKU:         in.SKU,
			LotNumber:   in.LotNumber,
			PalletID:    in.PalletID,
			ExpectedQty: in.ExpectedQty,
		})
	}
	if err := h.assignments.ReplaceInventory(r.Context(), rows); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"rows": len(rows)})
}

func (h *HTTPHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req SubmitHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	sub, err := h.submissions.Submit(r.Context(), service.SubmitRequest{
		AssignmentID:    req.AssignmentID,
		Assignee:        req.Assignee,
		Location:        req.Location,
		SKU:             req.SKU,
		LotNumber:       req.LotNumber,
		PalletID:        req.PalletID,
		CountedQty:      req.CountedQty,
		ExpectedQty:     req.ExpectedQty,
		DeviceID:        req.DeviceID,
		Note:            req.Note,
		IssueType:       req.IssueType,
		ActualPalletID:  req.ActualPalletID,
		ActualLotNumber: req.ActualLotNumber,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubmissionJSON(*sub))
}

func (h *HTTPHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.submissions.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]SubmissionJSON, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubmissionJSON(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	var req DeleteHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := h.submissions.Delete(r.Context(), r.PathValue("id"), req.DeletedBy, req.Reason, req.Note); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
		msg = err.Error()
	case errors.Is(err, service.ErrAssignmentNotFound), errors.Is(err, service.ErrSubmissionNotFound):
		status = http.StatusNotFound
		msg = err.Error()
	case errors.Is(err, service.ErrLockHeld):
		status = http.StatusConflict
		msg = err.Error()
	}

	writeJSON(w, status, errorResponse{Error: msg})
}

func toAssignmentJSON(a domain.Assignment) AssignmentJSON {
	return AssignmentJSON{
		AssignmentID:  a.AssignmentID,
		AssignedBy:    a.AssignedBy,
		Assignee:      a.Assignee,
		Location:      a.Location,
		SKU:           a.SKU,
		LotNumber:     a.LotNumber,
		PalletID:      a.PalletID,
		ExpectedQty:   a.ExpectedQty,
		Status:        string(a.Status),
		LockOwner:     a.LockOwner,
		LockStartTS:   formatTS(a.LockStart),
		LockExpiresTS: formatTS(a.LockExpires),
		CreatedAt:     a.CreatedAt.Format(tsFormat),
	}
}

func toSubmissionJSON(s domain.Submission) SubmissionJSON {
	return SubmissionJSON{
		SubmissionID:    s.SubmissionID,
		AssignmentID:    s.AssignmentID,
		Assignee:        s.Assignee,
		Location:        s.Location,
		SKU:             s.SKU,
		LotNumber:       s.LotNumber,
		PalletID:        s.PalletID,
		CountedQty:      s.CountedQty,
		ExpectedQty:     s.ExpectedQty,
		Variance:        s.Variance,
		VarianceFlag:    string(s.VarianceFlag),
		Timestamp:       s.Timestamp.Format(tsFormat),
		DeviceID:        s.DeviceID,
		Note:            s.Note,
		IssueType:       s.IssueType,
		ActualPalletID:  s.ActualPalletID,
		ActualLotNumber: s.ActualLotNumber,
	}
}

func toInventoryRowJSON(r domain.InventoryRow) InventoryRowJSON {
	return InventoryRowJSON{
		Location:    r.Location,
		SKU:         r.SKU,
		LotNumber:   r.LotNumber,
		PalletID:    r.PalletID,
		ExpectedQty: r.ExpectedQty,
	}
}

// splitPasted breaks a pasted block of locations on newlines, commas,
// semicolons and tabs.
func splitPasted(pasted string) []string {
	fields := strings.FieldsFunc(pasted, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ';' || r == '\t'
	})
	var out []string
	for _, f := range fields {
		if t := strings.TrimSpace(f); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func formatTS(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(tsFormat)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
