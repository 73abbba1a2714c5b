package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"net/http"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/form/v4"

	"github.com/rikhii20/DoKaka/internal/auth"
)

const (
	statusSuccess  = "Success"
	maxRequestBody = 1 << 20
)

// envelope is the shape of every response body.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  any    `json:"result"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, msg string, result any) {
	writeJSON(w, status, envelope{Status: statusSuccess, Message: msg, Result: result})
}

// writeError writes a failure envelope; status text doubles as the envelope status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Status: http.StatusText(status), Message: msg, Result: struct{}{}})
}

// bodyRequest is a request struct that records which keys its body carried.
type bodyRequest interface {
	SetSupplied(auth.Supplied)
}

var formDecoder = newFormDecoder()

func newFormDecoder() *form.Decoder {
	d := form.NewDecoder()
	d.SetTagName("json")
	return d
}

// decodeBody decodes a JSON object, or form fields when the request is
// urlencoded, into dst. Malformed bodies come back as *auth.ValidationError.
// An empty body decodes to the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, dst bodyRequest) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if isFormBody(r) {
		return decodeForm(r, dst)
	}
	return decodeJSON(r.Body, dst)
}

func isFormBody(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/x-www-form-urlencoded"
}

func decodeJSON(body io.Reader, dst bodyRequest) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return &auth.ValidationError{Message: decodeMessage(err)}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &auth.ValidationError{Message: decodeMessage(err)}
	}
	// exactly one value per body
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &auth.ValidationError{Message: msgInvalidJSON}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return &auth.ValidationError{Message: msgInvalidJSON}
	}
	supplied := make(auth.Supplied, len(fields))
	for k, v := range fields {
		supplied[k] = bytes.Equal(bytes.TrimSpace(v), []byte("null"))
	}
	dst.SetSupplied(supplied)
	return nil
}

func decodeForm(r *http.Request, dst bodyRequest) error {
	if err := r.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &auth.ValidationError{Message: msgTooLarge}
		}
		return &auth.ValidationError{Message: msgInvalidForm}
	}

	allowed := bodyKeys(dst)
	supplied := make(auth.Supplied, len(r.PostForm))
	for _, key := range slices.Sorted(maps.Keys(r.PostForm)) {
		if !allowed[key] {
			return &auth.ValidationError{Message: fmt.Sprintf("%q is not allowed", key)}
		}
		if len(r.PostForm[key]) > 1 {
			return &auth.ValidationError{Message: fmt.Sprintf("%q must be a string", key)}
		}
		supplied[key] = false
	}

	if err := formDecoder.Decode(dst, r.PostForm); err != nil {
		return &auth.ValidationError{Message: msgInvalidForm}
	}
	dst.SetSupplied(supplied)
	return nil
}

// bodyKeys returns the json names of dst's decodable fields.
func bodyKeys(dst any) map[string]bool {
	t := reflect.TypeOf(dst)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	keys := make(map[string]bool, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if !f.IsExported() || name == "" || name == "-" {
			continue
		}
		keys[name] = true
	}
	return keys
}

const (
	msgInvalidJSON = "request body must be a valid JSON object"
	msgInvalidForm = "request body must be valid form data"
	msgTooLarge    = "request body is too large"
)

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%q must be a %s", typeErr.Field, typeErr.Type.Kind())
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return msgTooLarge
	}
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return field + " is not allowed"
	}
	return msgInvalidJSON
}
