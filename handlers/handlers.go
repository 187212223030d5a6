// Package handlers builds http.Handlers from the declarative handler specs
// found in module manifests.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
)

// Handler types understood by Build.
const (
	TypeJSON     = "json"
	TypeText     = "text"
	TypeRedirect = "redirect"
	TypeProxy    = "proxy"
)

// Static errors for the handlers package
var (
	ErrUnknownHandlerType = errors.New("unknown handler type")
	ErrInvalidStatus      = errors.New("invalid status code")
	ErrMissingLocation    = errors.New("redirect handler requires a location")
	ErrMissingTarget      = errors.New("proxy handler requires a target")
	ErrInvalidTarget      = errors.New("invalid proxy target")
)

// Spec is the declarative description of a route handler.
type Spec struct {
	Type        string            `yaml:"type" toml:"type" json:"type"`
	Status      int               `yaml:"status" toml:"status" json:"status"`
	Body        any               `yaml:"body" toml:"body" json:"body"`
	ContentType string            `yaml:"contentType" toml:"contentType" json:"contentType"`
	Headers     map[string]string `yaml:"headers" toml:"headers" json:"headers"`
	Location    string            `yaml:"location" toml:"location" json:"location"`
	Target      string            `yaml:"target" toml:"target" json:"target"`
	StripPrefix string            `yaml:"stripPrefix" toml:"stripPrefix" json:"stripPrefix"`
}

// Build returns the handler described by spec.
func Build(spec Spec) (http.Handler, error) {
	if spec.Status != 0 && (spec.Status < 100 || spec.Status > 599) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, spec.Status)
	}

	switch strings.ToLower(spec.Type) {
	case TypeJSON, "":
		return jsonHandler(spec)
	case TypeText:
		return textHandler(spec), nil
	case TypeRedirect:
		return redirectHandler(spec)
	case TypeProxy:
		return proxyHandler(spec)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandlerType, spec.Type)
	}
}

func jsonHandler(spec Spec) (http.Handler, error) {
	body, err := json.Marshal(normalize(spec.Body))
	if err != nil {
		return nil, fmt.Errorf("encode json body: %w", err)
	}
	status := statusOr(spec.Status, http.StatusOK)
	contentType := spec.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeHeaders(w, spec.Headers)
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}), nil
}

func textHandler(spec Spec) http.Handler {
	var body string
	switch b := spec.Body.(type) {
	case nil:
	case string:
		body = b
	default:
		body = fmt.Sprint(b)
	}
	status := statusOr(spec.Status, http.StatusOK)
	contentType := spec.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeHeaders(w, spec.Headers)
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func redirectHandler(spec Spec) (http.Handler, error) {
	if spec.Location == "" {
		return nil, ErrMissingLocation
	}
	status := statusOr(spec.Status, http.StatusFound)
	if status < 300 || status > 399 {
		return nil, fmt.Errorf("%w: redirect status %d", ErrInvalidStatus, status)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeHeaders(w, spec.Headers)
		http.Redirect(w, r, spec.Location, status)
	}), nil
}

func proxyHandler(spec Spec) (http.Handler, error) {
	if spec.Target == "" {
		return nil, ErrMissingTarget
	}
	target, err := url.Parse(spec.Target)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, spec.Target)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	var h http.Handler = proxy
	if spec.StripPrefix != "" {
		h = http.StripPrefix(spec.StripPrefix, proxy)
	}
	if len(spec.Headers) == 0 {
		return h, nil
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeHeaders(w, spec.Headers)
		h.ServeHTTP(w, r)
	}), nil
}

func writeHeaders(w http.ResponseWriter, headers map[string]string) {
	for k, v := range headers {
		w.Header().Set(k, v)
	}
}

func statusOr(status, def int) int {
	if status == 0 {
		return def
	}
	return status
}

// normalize converts map[interface{}]interface{} values, which encoding/json
// cannot marshal, into map[string]any recursively.
func normalize(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}
