/**
 * @description
 * This file sets up the HTTP router for the ledger service. It defines the
 * API endpoints, associates them with their handlers and applies middleware.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes creates and returns the router for the ledger service.
func Routes(h *Handlers, jwtSecret []byte) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Post("/accounts", h.RegisterHandler)
	r.Post("/auth/login", h.LoginHandler)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Post("/transfers", h.TransferHandler)
		r.Get("/accounts", h.SearchHandler)
		r.Get("/accounts/{accountID}", h.GetAccountHandler)
		r.Get("/accounts/{accountID}/contacts", h.GetContactsHandler)
		r.Patch("/accounts/{accountID}/contacts", h.ContactUpdateHandler)
	})

	return r
}
