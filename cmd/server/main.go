package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/academia/grading-backend/internal/auth"
	"github.com/academia/grading-backend/internal/config"
	"github.com/academia/grading-backend/internal/database"
	"github.com/academia/grading-backend/internal/drafter"
	"github.com/academia/grading-backend/internal/exam"
	"github.com/academia/grading-backend/internal/grading"
	"github.com/academia/grading-backend/internal/middleware"
	"github.com/academia/grading-backend/internal/scoring"
)

func main() {
	// Initialize database
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	cfg := config.FromEnv()

	// Stores and services
	examStore := exam.NewStore(db)
	gradingStore := grading.NewStore(db)

	examService := exam.NewService(examStore, drafter.New(), cfg)
	gradingService := grading.NewService(gradingStore, examStore, scoring.NewClient(), cfg)

	// Handlers
	authHandler := auth.NewHandler(db)
	examHandler := exam.NewHandler(examService)
	gradingHandler := grading.NewHandler(gradingService)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware)
	protected.HandleFunc("/auth/me", authHandler.GetCurrentTeacher).Methods("GET")

	// Exam paper setup
	protected.HandleFunc("/papers", examHandler.CreatePaper).Methods("POST")
	protected.HandleFunc("/papers", examHandler.ListPapers).Methods("GET")
	protected.HandleFunc("/papers/{id}", examHandler.GetPaper).Methods("GET")
	protected.HandleFunc("/papers/{id}/questions", examHandler.AddQuestion).Methods("POST")
	protected.HandleFunc("/papers/{id}/questions", examHandler.ListQuestions).Methods("GET")
	protected.HandleFunc("/papers/{id}/expected-responses", examHandler.SetExpectedResponses).Methods("PUT")
	protected.HandleFunc("/papers/{id}/expected-responses", examHandler.ListExpectedResponses).Methods("GET")
	protected.HandleFunc("/papers/{id}/expected-responses/draft", examHandler.DraftExpectedResponses).Methods("POST")
	protected.HandleFunc("/papers/{id}/moderation-samples", examHandler.AddModerationSample).Methods("POST")
	protected.HandleFunc("/papers/{id}/moderation-samples", examHandler.ListModerationSamples).Methods("GET")
	protected.HandleFunc("/moderation-samples/{sampleId}/verify", examHandler.VerifyModerationSample).Methods("POST")

	// Submissions and grading
	protected.HandleFunc("/papers/{id}/submissions", gradingHandler.CreateSubmission).Methods("POST")
	protected.HandleFunc("/papers/{id}/submissions", gradingHandler.ListSubmissions).Methods("GET")
	protected.HandleFunc("/submissions/{submissionId}", gradingHandler.GetSubmission).Methods("GET")
	protected.HandleFunc("/papers/{id}/calibrate", gradingHandler.RunCalibration).Methods("POST")
	protected.HandleFunc("/papers/{id}/grade", gradingHandler.StartBatchGrading).Methods("POST")
	protected.HandleFunc("/papers/{id}/session", gradingHandler.GetSession).Methods("GET")

	// Review and finalization
	protected.HandleFunc("/papers/{id}/review-queue", gradingHandler.GetReviewQueue).Methods("GET")
	protected.HandleFunc("/papers/{id}/batch-approve", gradingHandler.BatchApprove).Methods("POST")
	protected.HandleFunc("/responses/{responseId}/review", gradingHandler.ReviewResponse).Methods("PUT")
	protected.HandleFunc("/papers/{id}/summary", gradingHandler.GetSummary).Methods("GET")
	protected.HandleFunc("/papers/{id}/finalize", gradingHandler.Finalize).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
