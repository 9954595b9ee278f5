package server

import (
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"strconv"

	"github.com/lepinkainen/folio/internal/catalog"
	"github.com/lepinkainen/folio/internal/errors"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]string{"status": "ok"}, nil)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tok, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, tok, nil)
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	books, err := s.catalog.Search(r.Context(), q.Get("search"))
	if err != nil {
		respondErr(w, r, err)
		return
	}

	genres := catalog.Genres(books)
	books = catalog.FilterByGenre(books, q.Get("genre"))
	books, err = catalog.SortBooks(books, q.Get("ordering"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if books == nil {
		books = []catalog.Book{}
	}
	respond(w, r, http.StatusOK, books, map[string]any{
		"count":  len(books),
		"genres": genres,
	})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.catalog.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, book, nil)
}

func (s *Server) handleBookReviews(w http.ResponseWriter, r *http.Request) {
	list, err := s.reviews.List(r.Context(), r.PathValue("id"), s.detailRange)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, list, map[string]any{"count": len(list)})
}

func (s *Server) handleAllReviews(w http.ResponseWriter, r *http.Request) {
	list, err := s.reviews.ListAll(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if list == nil {
		list = emptyReviews
	}
	respond(w, r, http.StatusOK, list, map[string]any{"count": len(list)})
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	var req createReviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	review, err := s.reviews.Create(r.Context(), user, req.Book, req.Rating, req.Comment)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, review, nil)
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	id, ok := reviewID(w, r)
	if !ok {
		return
	}

	review, err := s.reviews.Get(r.Context(), id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, review, nil)
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	id, ok := reviewID(w, r)
	if !ok {
		return
	}

	var req updateReviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	review, err := s.reviews.Update(r.Context(), user, id, req.Rating, req.Comment)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, review, nil)
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	id, ok := reviewID(w, r)
	if !ok {
		return
	}

	if err := s.reviews.Delete(r.Context(), user, id); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func reviewID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondErr(w, r, errors.NewValidationError("id", "review id must be an integer"))
		return 0, false
	}
	return id, true
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if stdErrors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large", nil)
			return false
		}
		respondError(w, r, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON: "+err.Error(), nil)
		return false
	}
	if details := validateStruct(dst); len(details) > 0 {
		respondError(w, r, http.StatusBadRequest, "validation_error", "Request validation failed", details)
		return false
	}
	return true
}
