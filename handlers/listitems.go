package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"cinelist/config"
	"cinelist/models"
	"cinelist/services/listitems"
	"cinelist/services/sessions"
	"cinelist/services/users"
)

type listItemsService interface {
	Create(ctx context.Context, userID string, input models.ListItemInput) (models.ListItem, error)
	List(ctx context.Context, userID string) ([]models.ListItem, error)
	SetCompletion(ctx context.Context, id string, completed bool, actor listitems.Actor) (models.ListItem, error)
	Delete(ctx context.Context, id, userID string) error
	Mode() config.ListMode
}

var _ listItemsService = (*listitems.Service)(nil)

type roleService interface {
	IsAdmin(ctx context.Context, id string) (bool, error)
}

var _ roleService = (*users.Service)(nil)

// seasonCounter provides live season counts for series list entries.
type seasonCounter interface {
	SeasonCount(ctx context.Context, tmdbID string) (int, error)
}

// ListItemsHandler serves the /api/cine-list-items endpoints.
type ListItemsHandler struct {
	Service listItemsService
	Roles   roleService
	Seasons seasonCounter
}

func NewListItemsHandler(service listItemsService, roles roleService, seasons seasonCounter) *ListItemsHandler {
	return &ListItemsHandler{Service: service, Roles: roles, Seasons: seasons}
}

func (h *ListItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := sessions.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var input models.ListItemInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.Service.Create(r.Context(), user.ID, input)
	if err != nil {
		switch {
		case errors.Is(err, listitems.ErrDuplicate):
			writeError(w, http.StatusConflict, "Item already exists in the list")
		case errors.Is(err, listitems.ErrTitleRequired),
			errors.Is(err, listitems.ErrMediaTypeInvalid),
			errors.Is(err, listitems.ErrTMDBIDRequired),
			errors.Is(err, listitems.ErrSeriesTypeInvalid):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("[listitems] create failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to add item")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"data": item})
}

func (h *ListItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := sessions.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	items, err := h.Service.List(r.Context(), user.ID)
	if err != nil {
		log.Printf("[listitems] list failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch items")
		return
	}

	h.enrichSeasonCounts(r.Context(), items)

	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}

// enrichSeasonCounts attaches live season counts to series entries. A failed
// lookup leaves that one entry unenriched.
func (h *ListItemsHandler) enrichSeasonCounts(ctx context.Context, items []models.ListItem) {
	if h.Seasons == nil {
		return
	}

	p := pool.New().WithMaxGoroutines(4)
	for idx := range items {
		if items[idx].MediaType != models.MediaTypeSeries {
			continue
		}
		idx := idx
		p.Go(func() {
			count, err := h.Seasons.SeasonCount(ctx, items[idx].TMDBID)
			if err != nil {
				log.Printf("[listitems] season count failed tmdbId=%s err=%v", items[idx].TMDBID, err)
				return
			}
			items[idx].NumberOfSeasons = count
		})
	}
	p.Wait()
}

func (h *ListItemsHandler) UpdateCompletion(w http.ResponseWriter, r *http.Request) {
	user, ok := sessions.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var body struct {
		ID          string `json:"id"`
		IsCompleted bool   `json:"is_completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.ID) == "" {
		writeError(w, http.StatusBadRequest, "Item ID is required")
		return
	}

	admin, err := h.Roles.IsAdmin(r.Context(), user.ID)
	if err != nil {
		log.Printf("[listitems] role lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update item")
		return
	}

	item, err := h.Service.SetCompletion(r.Context(), body.ID, body.IsCompleted, listitems.Actor{ID: user.ID, Admin: admin})
	if err != nil {
		switch {
		case errors.Is(err, listitems.ErrForbidden):
			if h.Service.Mode() == config.ListModePersonal {
				writeError(w, http.StatusForbidden, "Only the owner can update this item")
			} else {
				writeError(w, http.StatusForbidden, "Only admins can mark items as complete")
			}
		case errors.Is(err, listitems.ErrNotFound):
			writeError(w, http.StatusNotFound, "Item not found")
		default:
			log.Printf("[listitems] update failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to update item")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": item})
}

func (h *ListItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := sessions.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "Item ID is required")
		return
	}

	// Removing an id that is already gone still reports success; the delete
	// is idempotent at the repository boundary.
	if err := h.Service.Delete(r.Context(), id, user.ID); err != nil {
		log.Printf("[listitems] delete failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete item")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
