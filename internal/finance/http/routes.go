package financehttp

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the finance endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/maintenance/{id}", func(r chi.Router) {
		r.Post("/expense", h.handleCreateExpense)
		r.Post("/approve", h.handleApprove)
		r.Post("/reprocess", h.handleReprocess)
	})
	r.Post("/transactions/{id}/sync", h.handleSync)
	r.Post("/late-fees/check", h.handleLateFees)
	r.Get("/dues/upcoming", h.handleUpcoming)
	r.Get("/dashboard/{condominiumID}", h.handleDashboard)
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/status", h.handleJobStatus)
		r.Post("/overdue/run", h.handleRunOverdue)
		r.Post("/upcoming/run", h.handleRunUpcoming)
		r.Post("/emergency/run", h.handleRunEmergency)
	})
}
