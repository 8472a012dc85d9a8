package http

import (
	"embed"
	"encoding/json"
	"html/template"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

func renderHTML(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ajaxResult is the envelope the host's front-end scripts expect.
type ajaxResult struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func ajaxOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, ajaxResult{Success: true, Data: data})
}

func ajaxFail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ajaxResult{Success: false, Data: msg})
}

func isJSON(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/json"
}

// requestValues reads a small flat request body, JSON or form encoded, into
// url.Values. Query parameters fill keys the body leaves out.
func requestValues(r *http.Request) (url.Values, error) {
	out := url.Values{}
	if isJSON(r) {
		var body map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return nil, err
		}
		for k, v := range body {
			switch t := v.(type) {
			case nil:
			case string:
				out.Set(k, t)
			case json.Number:
				out.Set(k, t.String())
			case bool:
				if t {
					out.Set(k, "1")
				} else {
					out.Set(k, "0")
				}
			default:
				b, _ := json.Marshal(t)
				out.Set(k, string(b))
			}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		for k, vs := range r.PostForm {
			out[k] = vs
		}
	}
	for k, vs := range r.URL.Query() {
		if _, ok := out[k]; !ok {
			out[k] = vs
		}
	}
	return out, nil
}

func withQuery(base string, kv ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for i := 0; i+1 < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "…"
}
