package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrWong99/tartil/internal/recitation"
)

// maxSummaryBytes bounds a summary request body.
const maxSummaryBytes = 4 << 20

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSummaryBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, &HTTPError{Status: http.StatusRequestEntityTooLarge, Message: "Request body is too large", Err: err})
			return
		}
		writeError(w, r, &HTTPError{Status: http.StatusBadRequest, Message: "Invalid request body", Err: err})
		return
	}

	entries, err := decodeAnalyses(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recitation.Summarize(entries))
}

// decodeAnalyses extracts the analyses array from a summary request. The
// array is required; its elements are read leniently because clients post
// back whatever they kept from earlier analyse responses.
func decodeAnalyses(body []byte) ([]recitation.SessionEntry, error) {
	var req struct {
		Analyses json.RawMessage `json:"analyses"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &HTTPError{Status: http.StatusBadRequest, Message: "analyses array is required", Err: err}
	}
	var raw []json.RawMessage
	if len(req.Analyses) == 0 || req.Analyses[0] != '[' || json.Unmarshal(req.Analyses, &raw) != nil {
		return nil, httpError(http.StatusBadRequest, "analyses array is required")
	}

	entries := make([]recitation.SessionEntry, 0, len(raw))
	for _, item := range raw {
		var obj map[string]any
		// Non-object entries count as an analysis with no scores.
		_ = json.Unmarshal(item, &obj)
		entries = append(entries, recitation.SessionEntry{
			Accuracy:     number(obj["accuracy"]),
			TajweedScore: number(obj["tajweedScore"]),
			Mistakes:     mistakes(obj["mistakes"]),
		})
	}
	return entries, nil
}

// number coerces a JSON value to a float: numbers as-is, numeric strings
// parsed, booleans as 0 or 1, anything else 0.
func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if n {
			return 1
		}
	}
	return 0
}

// text coerces a scalar JSON value to a string. Empty values, null and
// composite values yield "".
func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
	}
	return ""
}

func mistakes(v any) []recitation.Mistake {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]recitation.Mistake, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			out = append(out, recitation.Mistake{})
			continue
		}
		m := recitation.Mistake{
			Type:     text(obj["type"]),
			Severity: recitation.Severity(text(obj["severity"])),
		}
		if w := text(obj["word"]); w != "" {
			m.Word = &w
		}
		rule := text(obj["tajweed_rule"])
		if rule == "" {
			rule = text(obj["tajweedRule"])
		}
		m.TajweedRule = recitation.TajweedRule(rule)
		out = append(out, m)
	}
	return out
}
