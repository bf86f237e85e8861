package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/settings"
)

// PrefsHandler: preferensi per user yang dipakai layer presentasi (bahasa).
type PrefsHandler struct {
	Lang *settings.LangCache
}

func (h *PrefsHandler) Register(r *chi.Mux) {
	r.Get("/prefs/{userID}/lang", h.getLang)
	r.Put("/prefs/{userID}/lang", h.setLang)
}

func (h *PrefsHandler) getLang(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, map[string]string{"lang": h.Lang.Get(ctx, userID)})
}

func (h *PrefsHandler) setLang(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req struct {
		Lang string `json:"lang"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Lang == "" {
		writeError(w, http.StatusBadRequest, "missing lang")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Lang.Set(ctx, userID, req.Lang); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"lang": req.Lang})
}
