package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MrWong99/tartil/internal/catalog"
)

func (s *Server) handleGetAyah(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	ayah, err := s.catalog.Get(r.Context(), key)
	switch {
	case errors.Is(err, catalog.ErrInvalidKey):
		writeError(w, r, &HTTPError{Status: http.StatusBadRequest, Message: "ayahKey is invalid", Details: key, Err: err})
		return
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, r, &HTTPError{Status: http.StatusNotFound, Message: "Ayah not found", Details: key, Err: err})
		return
	case err != nil:
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ayahJSON(ayah))
}

func (s *Server) handleListSurah(w http.ResponseWriter, r *http.Request) {
	surah, err := strconv.Atoi(r.PathValue("surah"))
	if err != nil || surah < 1 || surah > catalog.SurahCount {
		writeError(w, r, &HTTPError{Status: http.StatusBadRequest, Message: "surah must be between 1 and 114", Details: r.PathValue("surah")})
		return
	}
	ayahs, err := s.catalog.List(r.Context(), surah)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]ayahResponse, 0, len(ayahs))
	for _, a := range ayahs {
		out = append(out, ayahJSON(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"surah": surah, "ayahs": out})
}

type ayahResponse struct {
	Key         string `json:"key"`
	Surah       int    `json:"surah"`
	Ayah        int    `json:"ayah"`
	Text        string `json:"text"`
	SurahName   string `json:"surahName,omitempty"`
	Translation string `json:"translation,omitempty"`
}

func ayahJSON(a catalog.Ayah) ayahResponse {
	return ayahResponse{
		Key:         a.Key(),
		Surah:       a.Surah,
		Ayah:        a.Number,
		Text:        a.Text,
		SurahName:   a.SurahName,
		Translation: a.Translation,
	}
}
