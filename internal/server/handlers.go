package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"portfolio/internal/store"
)

// --- Projects ---

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	var filter store.ProjectFilter
	q := r.URL.Query()
	if v := q.Get("featured"); v != "" {
		featured := v == "true" || v == "1"
		filter.Featured = &featured
	}
	filter.Status = q.Get("status")
	filter.Tag = q.Get("tag")
	filter.Search = strings.TrimSpace(q.Get("search"))

	projects, err := s.store.ListProjects(r.Context(), filter)
	if err != nil {
		s.respondStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	project, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		s.respondStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p store.Project
	if !decodeBody(w, r, &p) {
		return
	}
	if p.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if err := s.store.CreateProject(r.Context(), &p); err != nil {
		s.respondStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p store.Project
	if !decodeBody(w, r, &p) {
		return
	}
	p.ID = id
	if p.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if err := s.store.UpdateProject(r.Context(), &p); err != nil {
		s.respondStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteProject(r.Context(), id); err != nil {
		s.respondStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- About ---

func (s *Server) handleGetAbout(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.GetPersonalInfo(r.Context())
	if err != nil {
		s.respondStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleUpdateAbout(w http.ResponseWriter, r *http.Request) {
	var info store.PersonalInfo
	if !decodeBody(w, r, &info) {
		return
	}
	if err := s.store.UpdatePersonalInfo(r.Context(), info); err != nil {
		s.respondStoreErr(w, err)
		return
	}
	updated, err := s.store.GetPersonalInfo(r.Context())
	if err != nil {
		s.respondStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// --- Skills ---

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := s.store.ListSkills(r.Context())
	if err != nil {
		s.respondStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, skills)
}

func (s *Server) handleCreateSkill(w http.ResponseWriter, r *http.Request) {
	var sk store.Skill
	if !decodeBody(w, r, &sk) {
		return
	}
	if sk.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.CreateSkill(r.Context(), &sk); err != nil {
		s.respondStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sk)
}

func (s *Server) handleUpdateSkill(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var sk store.Skill
	if !decodeBody(w, r, &sk) {
		return
	}
	sk.ID = id
	if sk.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.UpdateSkill(r.Context(), sk); err != nil {
		s.respondStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sk)
}

func (s *Server) handleDeleteSkill(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteSkill(r.Context(), id); err != nil {
		s.respondStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Interests ---

func (s *Server) handleListInterests(w http.ResponseWriter, r *http.Request) {
	interests, err := s.store.ListInterests(r.Context())
	if err != nil {
		s.respondStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, interests)
}

func (s *Server) handleCreateInterest(w http.ResponseWriter, r *http.Request) {
	var in store.Interest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.CreateInterest(r.Context(), &in); err != nil {
		s.respondStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) handleDeleteInterest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteInterest(r.Context(), id); err != nil {
		s.respondStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Posts ---

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	includeDrafts := r.URL.Query().Get("drafts") == "true"
	posts, err := s.store.ListPosts(r.Context(), includeDrafts)
	if err != nil {
		s.respondStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	// Numeric slugs would shadow the by-id write routes; keep them apart.
	if _, err := strconv.ParseInt(slug, 10, 64); err == nil {
		writeError(w, http.StatusBadRequest, "post slugs are not numeric")
		return
	}
	post, err := s.store.GetPostBySlug(r.Context(), slug)
	if err != nil {
		s.respondStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var p store.BlogPost
	if !decodeBody(w, r, &p) {
		return
	}
	if p.Slug == "" || p.Title == "" {
		writeError(w, http.StatusBadRequest, "slug and title are required")
		return
	}
	if err := s.store.CreatePost(r.Context(), &p); err != nil {
		s.respondStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r)
	if !ok {
		return
	}
	var p store.BlogPost
	if !decodeBody(w, r, &p) {
		return
	}
	p.ID = id
	if p.Slug == "" || p.Title == "" {
		writeError(w, http.StatusBadRequest, "slug and title are required")
		return
	}
	if err := s.store.UpdatePost(r.Context(), &p); err != nil {
		s.respondStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeletePost(r.Context(), id); err != nil {
		s.respondStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// postIDParam parses the shared post path segment as a numeric id for the
// write routes.
func postIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "slug"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
