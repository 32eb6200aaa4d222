package app

import (
	"database/sql"
	"net/http"
	"time"

	"quizdesk/internal/app/observability"
	"quizdesk/internal/assistant"
	"quizdesk/internal/exam"
	"quizdesk/internal/question"
	"quizdesk/internal/report"
	"quizdesk/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(cfg Config, db *sql.DB, blobs storage.BlobStore) http.Handler {
	r := chi.NewRouter()
	collector := observability.NewCollector(db)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(collector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	aiSvc := assistant.NewService(assistant.ServiceConfig{
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiModel:   cfg.GeminiModel,
		BaseURL:       cfg.GeminiBaseURL,
		QuestionCount: cfg.AIQuestionCount,
	})
	aiHandler := assistant.NewHandler(aiSvc)

	bank := question.NewService(db, cfg.DefaultTestMinutes)
	importer := question.NewImporter(bank, question.ImporterConfig{
		Blobs:     blobs,
		Generator: aiSvc,
		Recorder:  collector,
	})
	questionHandler := question.NewHandler(bank, importer, int64(cfg.MaxUploadMB)<<20)

	examSvc := exam.NewService(db, bank).WithRecorder(collector)
	examHandler := exam.NewHandler(examSvc)

	reportHandler := report.NewHandler(report.NewService(db))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/test", func(api chi.Router) {
		api.Get("/available", examHandler.Available)
		api.Get("/{id}/start", examHandler.Start)
		api.Post("/submit", examHandler.Submit)
		api.Get("/result/{attemptID}", examHandler.Result)
	})

	r.Route("/api/admin", func(admin chi.Router) {
		admin.Get("/ai-status", aiHandler.AIStatus)

		admin.Post("/upload-json", questionHandler.UploadJSON)
		admin.Post("/upload-xlsx", questionHandler.UploadXLSX)
		admin.Get("/upload-xlsx/template", questionHandler.XLSXTemplate)
		admin.Group(func(gen chi.Router) {
			if !cfg.AIRateLimitDisabled {
				gen.Use(RateLimitMiddleware(NewIPRateLimiter(cfg.AIRateLimitPerMin, time.Minute)))
			}
			gen.Post("/upload-pdf", questionHandler.UploadPDF)
		})

		admin.Get("/tests", questionHandler.ListTests)
		admin.Delete("/tests/{id}", questionHandler.DeleteTest)
		admin.Get("/tests/{id}/questions", questionHandler.GetTestQuestions)
		admin.Get("/tests/{id}/source", questionHandler.DownloadSource)
		admin.Get("/tests/{id}/attempts", reportHandler.Attempts)
		admin.Get("/tests/{id}/attempts.xlsx", reportHandler.ExportAttempts)

		admin.Post("/questions", questionHandler.CreateQuestion)
		admin.Put("/questions/{id}", questionHandler.UpdateQuestion)
		admin.Delete("/questions/{id}", questionHandler.DeleteQuestion)
	})

	return r
}
