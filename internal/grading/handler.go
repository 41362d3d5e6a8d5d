package grading

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/academia/grading-backend/internal/apperr"
	"github.com/academia/grading-backend/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// getTeacherID extracts the authenticated teacher ID from the request context.
func getTeacherID(r *http.Request) (int64, bool) {
	tid, ok := r.Context().Value("teacher_id").(int64)
	return tid, ok
}

func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := getTeacherID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	paperID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid exam paper ID"})
		return
	}

	var req models.CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	sub, err := h.service.CreateSubmission(r.Context(), teacherID, paperID, req)
	if err != nil {
		writeError(w, "CreateSubmission", err)
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := getTeacherID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	paperID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid exam paper ID"})
		return
	}

	subs, err := h.service.ListSubmissions(teacherID, paperID)
	if err != nil {
		writeError(w, "ListSubmissions", err)
		return
	}

	if subs == nil {
		subs = []models.StudentSubmission{}
	}
	writeJSON(w, http.StatusOK, models.SubmissionListResponse{Submissions: subs, Total: len(subs)})
}

func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := getTeacherID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	submissionID, err := pathID(r, "submissionId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid submission ID"})
		return
	}

	detail, err := h.service.GetSubmissionDetail(teacherID, submissionID)
	if err != nil {
		writeError(w, "GetSubmission", err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) RunCalibration(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := getTeacherID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	paperID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid exam paper ID"})
		return
	}

	result, err := h.service.RunCalibration(r.Context(), teacherID, paperID)
	if err != nil {
		writeError(w, "RunCalibration", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) StartBatchGrading(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := getTeacherID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	paperID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid exam paper ID"})
		return
	}

	sess, err := h.service.StartBatchGrading(r.Context(), teacherID, paperID)
	if err != nil {
		writeError(w, "StartBatchGrading", err)
		return
	}

	writeJSON(w, http.StatusAccepted, sess)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := getTeacherID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	paperID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid exam paper ID"})
		return
	}

	sess, err := h.service.GetSession(teacherID, paperID)
	if err != nil {
		writeError(w, "GetSession", err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) GetReviewQueue(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := getTeacherID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	paperID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid exam paper ID"})
		return
	}

	queue, err := h.service.GetReviewQueue(teacherID, paperID)
	if err != nil {
		writeError(w, "GetReviewQueue", err)
		return
	}

	writeJSON(w, http.StatusOK, queue)
}

func (h *Handler) BatchApprove(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := getTeacherID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	paperID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid exam paper ID"})
		return
	}

	resp, err := h.service.BatchApproveHighConfidence(teacherID, paperID)
	if err != nil {
		writeError(w, "BatchApprove", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ReviewResponse(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := getTeacherID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	responseID, err := pathID(r, "responseId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid response ID"})
		return
	}

	var req models.ReviewResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	updated, err := h.service.ReviewResponse(teacherID, responseID, req)
	if err != nil {
		writeError(w, "ReviewResponse", err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := getTeacherID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	paperID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid exam paper ID"})
		return
	}

	summary, err := h.service.GetGradingSummary(teacherID, paperID)
	if err != nil {
		writeError(w, "GetSummary", err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := getTeacherID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	paperID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid exam paper ID"})
		return
	}

	var req models.FinalizeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
			return
		}
	}

	resp, err := h.service.FinalizeGrading(teacherID, paperID, req)
	if err != nil {
		writeError(w, "Finalize", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[key], 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps service errors onto HTTP statuses. Anything without an
// application error kind is a 500 and gets logged with its operation name.
func writeError(w http.ResponseWriter, op string, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	case apperr.KindForbidden:
		writeJSON(w, http.StatusForbidden, models.ErrorResponse{Error: err.Error()})
	case apperr.KindValidation:
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case apperr.KindConflict:
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	default:
		log.Printf("[handler] %s error: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
	}
}
