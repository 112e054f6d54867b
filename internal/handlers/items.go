package handlers

import (
	"encoding/json"
	"net/http"

	"todo/internal/core"
	"todo/internal/models"
)

// HomeData holds data for the home page template.
type HomeData struct {
	Title string
	State core.State
}

// Home renders the current list: a loading notice, the feed error,
// "Nothing found", or the items.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	h.renderTemplate(w, "home.html", HomeData{
		Title: "Todos",
		State: h.core.State(),
	})
}

// Health reports that the server is up.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// ItemList renders the list section alone, for htmx refreshes.
func (h *Handlers) ItemList(w http.ResponseWriter, r *http.Request) {
	h.renderPartial(w, "item_list.html", h.core.State())
}

// ListItems returns the current published state as JSON.
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.core.State())
}

// CreateItem submits a new item and waits for the store to assign its ID.
func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	item := models.Item{Title: r.FormValue("title")}
	if err := item.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := h.core.SubmitUpsert(item)
	if !h.await(w, r, p) {
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		h.render(w, "item_row.html", p.Item())
		return
	}
	respondJSON(w, http.StatusCreated, p.Item())
}

// UpdateItem fully replaces an item's fields.
func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	item := models.Item{
		ID:        id,
		Title:     r.FormValue("title"),
		Completed: r.FormValue("completed") == "true",
	}
	if err := item.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := h.core.SubmitUpsert(item)
	if !h.await(w, r, p) {
		return
	}

	h.respondItem(w, r, p.Item())
}

// ToggleItem flips the completion flag of an item in the current list.
func (h *Handlers) ToggleItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, status := h.lookup(id)
	if status != http.StatusOK {
		respondError(w, status, http.StatusText(status))
		return
	}

	p := h.core.SubmitUpsert(item.Toggled())
	if !h.await(w, r, p) {
		return
	}

	h.respondItem(w, r, p.Item())
}

// DeleteItem removes an item. Deleting a missing item succeeds. The empty
// body lets htmx swap the row away.
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if !h.await(w, r, h.core.SubmitDelete(models.Item{ID: id})) {
		return
	}

	w.WriteHeader(http.StatusOK)
}

// lookup finds an item in the published state.
func (h *Handlers) lookup(id int64) (models.Item, int) {
	state := h.core.State()
	switch {
	case state.Loading, state.Failed():
		return models.Item{}, http.StatusServiceUnavailable
	}
	for _, it := range state.Items {
		if it.ID == id {
			return it, http.StatusOK
		}
	}
	return models.Item{}, http.StatusNotFound
}

// respondItem answers htmx requests with the item's row and everything
// else with JSON.
func (h *Handlers) respondItem(w http.ResponseWriter, r *http.Request, item models.Item) {
	if isHTMX(r) {
		h.renderPartial(w, "item_row.html", item)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
