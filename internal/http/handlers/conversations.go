package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"animator/internal/conversation"
)

func (a *App) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req conversation.CreateRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	conv, err := a.Conversations.Create(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, conv)
}

func (a *App) GetConversation(w http.ResponseWriter, r *http.Request) {
	detail, err := a.Conversations.Get(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("userId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, detail)
}

// DeleteConversation reports per-video outcomes; storage failures never
// block removal of the conversation.
func (a *App) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	report, err := a.Conversations.Delete(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("userId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, report)
}
