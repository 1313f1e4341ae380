package handlers

import (
	"context"
	"log"
	"net/http"

	"cinelist/models"
	metadatapkg "cinelist/services/metadata"
)

type searchService interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

var _ searchService = (*metadatapkg.Service)(nil)

// SearchHandler proxies TMDB multi-search for the add-to-list flow.
type SearchHandler struct {
	Service searchService
}

func NewSearchHandler(service searchService) *SearchHandler {
	return &SearchHandler{Service: service}
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	results, err := h.Service.Search(r.Context(), query)
	if err != nil {
		log.Printf("[search] upstream failure query=%q err=%v", query, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch search results")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
