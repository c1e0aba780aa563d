package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/gazehq/gaze-engine/internal/web/handlers"
	"github.com/gazehq/gaze-engine/internal/web/middleware"
	"github.com/gazehq/gaze-engine/internal/web/ws"
)

func (s *Server) setupRoutes() {
	systemHandler := handlers.NewSystemHandler(s.deps)
	librariesHandler := handlers.NewLibrariesHandler(s.deps)
	mediaHandler := handlers.NewMediaHandler(s.deps)
	searchHandler := handlers.NewSearchHandler(s.deps)
	jobsHandler := handlers.NewJobsHandler(s.deps)
	facesHandler := handlers.NewFacesHandler(s.deps)
	personsHandler := handlers.NewPersonsHandler(s.deps)
	settingsHandler := handlers.NewSettingsHandler(s.deps)
	backupHandler := handlers.NewBackupHandler(s.deps)
	maintenanceHandler := handlers.NewMaintenanceHandler(s.deps)
	statsHandler := handlers.NewStatsHandler(s.deps)
	assetsHandler := handlers.NewAssetsHandler(s.deps)

	// Health and the websocket upgrade carry their own auth story.
	s.router.Get("/health", systemHandler.Health)
	s.router.Get("/ws", ws.NewHandler(s.hub, s.deps.Config.AuthToken, s.deps.Config.DevMode).ServeHTTP)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RequireToken(s.deps.Config.AuthToken, s.deps.Config.DevMode))

		// Libraries
		r.Get("/libraries", librariesHandler.List)
		r.Post("/libraries", librariesHandler.Create)
		r.Get("/libraries/{id}", librariesHandler.Get)
		r.Put("/libraries/{id}", librariesHandler.Update)
		r.Delete("/libraries/{id}", librariesHandler.Delete)
		r.Post("/libraries/{id}/scan", librariesHandler.Scan)

		// Media
		r.Get("/media", mediaHandler.List)
		r.Get("/media/{id}", mediaHandler.Get)
		r.Post("/media/{id}/favorite", mediaHandler.SetFavorite)
		r.Delete("/media/{id}/favorite", mediaHandler.ClearFavorite)
		r.Post("/media/{id}/tags", mediaHandler.AddTag)
		r.Delete("/media/{id}/tags/{tag}", mediaHandler.RemoveTag)
		r.Get("/tags", mediaHandler.AllTags)

		// Videos (media pinned to the video type plus derived rows)
		r.Get("/videos", mediaHandler.ListVideos)
		r.Get("/videos/{id}", mediaHandler.Get)
		r.Get("/videos/{id}/frames", mediaHandler.Frames)
		r.Get("/videos/{id}/metadata", mediaHandler.Metadata)
		r.Get("/videos/{id}/faces", facesHandler.ForVideo)
		r.Post("/videos/{id}/retry", mediaHandler.Retry)
		r.Post("/videos/retry-failed/all", mediaHandler.RetryFailed)

		// Search
		r.Post("/search", searchHandler.Search)
		r.Get("/search/export/captions/{video_id}", searchHandler.ExportCaptions)

		// Jobs
		r.Post("/jobs/start", jobsHandler.Start)
		r.Post("/jobs/pause", jobsHandler.Pause)
		r.Post("/jobs/resume", jobsHandler.Resume)
		r.Get("/jobs/status", jobsHandler.Status)
		r.Delete("/jobs/{job_id}", jobsHandler.Cancel)
		r.Post("/jobs/clear", jobsHandler.Clear)

		// Faces
		r.Post("/faces/{face_id}/assign", facesHandler.Assign)
		r.Post("/faces/{face_id}/mark-reference", facesHandler.MarkReference)
		r.Delete("/faces/{face_id}/references/{id}", facesHandler.RemoveReference)
		r.Post("/faces/merge", facesHandler.Merge)
		r.Post("/faces/cluster", facesHandler.Cluster)
		r.Get("/faces/review-queue", facesHandler.ReviewQueue)
		r.Get("/faces/unassigned", facesHandler.Unassigned)
		r.Get("/faces/confusing-pairs", facesHandler.ConfusingPairs)
		r.Get("/faces/suggestions", facesHandler.Suggestions)
		r.Put("/faces/persons/{id}/recognition-mode", facesHandler.RecognitionMode)
		r.Get("/faces/persons/{id}/references", facesHandler.References)

		// Persons
		r.Get("/persons", personsHandler.List)
		r.Post("/persons", personsHandler.Create)
		r.Get("/persons/{id}", personsHandler.Get)
		r.Put("/persons/{id}", personsHandler.Update)
		r.Delete("/persons/{id}", personsHandler.Delete)
		r.Post("/persons/{id}/favorite", personsHandler.SetFavorite)
		r.Delete("/persons/{id}/favorite", personsHandler.ClearFavorite)
		r.Get("/persons/{id}/timeline", personsHandler.Timeline)

		// Settings
		r.Get("/settings", settingsHandler.Get)
		r.Patch("/settings", settingsHandler.Patch)

		// Backup
		r.Get("/backup/export", backupHandler.Export)
		r.Post("/backup/restore", backupHandler.Restore)

		// Maintenance
		r.Post("/maintenance/wipe-derived", maintenanceHandler.WipeDerived)
		r.Post("/maintenance/wipe-faces", maintenanceHandler.WipeFaces)
		r.Post("/maintenance/detect-faces", maintenanceHandler.DetectFaces)

		// Stats and diagnostics
		r.Get("/stats", statsHandler.Get)
		r.Get("/stats/indexing", statsHandler.Indexing)
		r.Get("/logs", systemHandler.Logs)
		r.Post("/shutdown", systemHandler.Shutdown)

		// Assets
		r.Get("/thumbnails/{media_id}/{file}", assetsHandler.Thumbnail)
		r.Get("/faces/crops/{media_id}/{file}", assetsHandler.FaceCrop)
	})
}
