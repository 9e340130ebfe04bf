package calculator

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the stateless engine under /calculator. Each binary
// route evaluates one "a op b =" press sequence; /chain folds several and
// /modes describes the rounding rules a request can ask for.
func RegisterRoutes(r chi.Router) {
	r.Route("/calculator", func(r chi.Router) {
		r.Get("/modes", Modes)
		r.Post("/add", Add)
		r.Post("/subtract", Subtract)
		r.Post("/multiply", Multiply)
		r.Post("/divide", Divide)
		r.Post("/chain", Chain)
	})
}
