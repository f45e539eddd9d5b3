package pipeline

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// collectSignParams gathers the flat parameter set both sides sign: query
// parameters merged with the form or top-level JSON body fields. The body is
// restored so downstream handlers can read it again. Nested JSON values are
// excluded from the signing base.
func collectSignParams(r *http.Request) (map[string]string, error) {
	params := make(map[string]string)
	for key, vals := range r.URL.Query() {
		if len(vals) > 0 {
			params[key] = vals[0]
		}
	}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		if len(bytes.TrimSpace(body)) == 0 {
			break
		}
		decoder := json.NewDecoder(bytes.NewReader(body))
		decoder.UseNumber()
		var fields map[string]any
		if err := decoder.Decode(&fields); err != nil {
			// A non-object JSON body contributes nothing to the base.
			break
		}
		for key, val := range fields {
			switch v := val.(type) {
			case string:
				params[key] = v
			case json.Number:
				params[key] = v.String()
			case bool:
				params[key] = strconv.FormatBool(v)
			}
		}
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"),
		strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		for key, vals := range r.PostForm {
			if len(vals) > 0 {
				params[key] = vals[0]
			}
		}
	}

	return params, nil
}
