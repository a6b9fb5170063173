package api

import (
	"net/http"

	"github.com/gold-portfolio/internal/service"
)

// decodeCommand parses the body into cmd or writes a failed command result
func decodeCommand(w http.ResponseWriter, r *http.Request, cmd interface{}) bool {
	if err := parseJSONBody(w, r, cmd); err != nil {
		respondCommand(w, service.NewFailedResult(err))
		return false
	}
	return true
}

// handleAddEntry handles POST /api/commands/add_portfolio_entry
func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var cmd service.AddEntryCommand
	if !decodeCommand(w, r, &cmd) {
		return
	}
	respondCommand(w, s.commands.AddEntry(r.Context(), cmd))
}

// handleRemoveEntry handles POST /api/commands/remove_portfolio_entry
func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	var cmd service.RemoveEntryCommand
	if !decodeCommand(w, r, &cmd) {
		return
	}
	respondCommand(w, s.commands.RemoveEntry(r.Context(), cmd))
}

// handleUpdateEntry handles POST /api/commands/update_portfolio_entry
func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var cmd service.UpdateEntryCommand
	if !decodeCommand(w, r, &cmd) {
		return
	}
	respondCommand(w, s.commands.UpdateEntry(r.Context(), cmd))
}

// handleListEntries handles POST /api/commands/get_portfolio_entries
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	var cmd service.ListEntriesCommand
	if !decodeCommand(w, r, &cmd) {
		return
	}
	respondCommand(w, s.commands.ListEntries(r.Context(), cmd))
}

// handleHistoricalPrice handles POST /api/commands/get_historical_price
func (s *Server) handleHistoricalPrice(w http.ResponseWriter, r *http.Request) {
	var cmd service.HistoricalPriceCommand
	if !decodeCommand(w, r, &cmd) {
		return
	}
	respondCommand(w, s.commands.HistoricalPrice(r.Context(), cmd))
}
