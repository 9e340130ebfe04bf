package desk

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the session, history and settings endpoints.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", a.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.GetSession)
			r.Delete("/", a.DeleteSession)
			r.Post("/keys", a.PressKeys)
			r.Post("/undo", a.Undo)
			r.Post("/redo", a.Redo)
			r.Post("/recover", a.Recover)
			r.Post("/select", a.SelectEntry)
		})
	})

	r.Route("/history", func(r chi.Router) {
		r.Get("/", a.History)
		r.Post("/purge", a.PurgeHistory)
		r.Delete("/{id}", a.DeleteHistoryEntry)
	})

	r.Get("/settings", a.GetSettings)
	r.Put("/settings", a.PutSettings)
}
