package exam

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

func (h *Handler) CreatePaper(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := getTeacherID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.CreatePaperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	paper, err := h.service.CreatePaper(teacherID, req)
	if err != nil {
		writeError(w, "CreatePaper", err)
		return
	}

	writeJSON(w, http.StatusCreated, paper)
}

func (h *Handler) ListPapers(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := getTeacherID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	papers, err := h.service.ListPapers(teacherID)
	if err != nil {
		writeError(w, "ListPapers", err)
		return
	}

	if papers == nil {
		papers = []models.ExamPaper{}
	}
	writeJSON(w, http.StatusOK, models.PaperListResponse{Papers: papers, Total: len(papers)})
}

func (h *Handler) GetPaper(w http.ResponseWriter, r *http.Request) {
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

	paper, err := h.service.GetPaper(teacherID, paperID)
	if err != nil {
		writeError(w, "GetPaper", err)
		return
	}

	writeJSON(w, http.StatusOK, paper)
}

func (h *Handler) AddQuestion(w http.ResponseWriter, r *http.Request) {
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

	var req models.AddQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	question, err := h.service.AddQuestion(teacherID, paperID, req)
	if err != nil {
		writeError(w, "AddQuestion", err)
		return
	}

	writeJSON(w, http.StatusCreated, question)
}

func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
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

	questions, err := h.service.ListQuestions(teacherID, paperID)
	if err != nil {
		writeError(w, "ListQuestions", err)
		return
	}

	if questions == nil {
		questions = []models.Question{}
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) SetExpectedResponses(w http.ResponseWriter, r *http.Request) {
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

	var req models.SetExpectedResponsesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	responses, err := h.service.SetExpectedResponses(r.Context(), teacherID, paperID, req)
	if err != nil {
		writeError(w, "SetExpectedResponses", err)
		return
	}

	writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) DraftExpectedResponses(w http.ResponseWriter, r *http.Request) {
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

	responses, err := h.service.DraftExpectedResponses(r.Context(), teacherID, paperID)
	if err != nil {
		writeError(w, "DraftExpectedResponses", err)
		return
	}

	writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) ListExpectedResponses(w http.ResponseWriter, r *http.Request) {
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

	responses, err := h.service.ListExpectedResponses(teacherID, paperID)
	if err != nil {
		writeError(w, "ListExpectedResponses", err)
		return
	}

	if responses == nil {
		responses = []models.ExpectedResponse{}
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) AddModerationSample(w http.ResponseWriter, r *http.Request) {
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

	var req models.AddModerationSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	sample, err := h.service.AddModerationSample(r.Context(), teacherID, paperID, req)
	if err != nil {
		writeError(w, "AddModerationSample", err)
		return
	}

	writeJSON(w, http.StatusCreated, sample)
}

func (h *Handler) ListModerationSamples(w http.ResponseWriter, r *http.Request) {
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

	samples, err := h.service.ListModerationSamples(teacherID, paperID)
	if err != nil {
		writeError(w, "ListModerationSamples", err)
		return
	}

	if samples == nil {
		samples = []models.ModerationSample{}
	}
	writeJSON(w, http.StatusOK, samples)
}

func (h *Handler) VerifyModerationSample(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := getTeacherID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	sampleID, err := pathID(r, "sampleId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid sample ID"})
		return
	}

	sample, err := h.service.VerifyModerationSample(teacherID, sampleID)
	if err != nil {
		writeError(w, "VerifyModerationSample", err)
		return
	}

	writeJSON(w, http.StatusOK, sample)
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
