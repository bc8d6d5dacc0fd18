package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ricorrenze/internal/core"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// RequestBodyParser reads a JSON or form-encoded body once and exposes its
// fields by name.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser reads the body of r. Bodies over maxBodyBytes make
// Parse fail with *http.MaxBytesError.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		p.err = dec.Decode(&p.jsonData)
		return p.err
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Get returns the first non-empty value among keys.
func (p *RequestBodyParser) Get(keys ...string) string {
	for _, key := range keys {
		var v string
		if p.jsonData != nil {
			v = stringValue(p.jsonData[key])
		} else if p.formData != nil {
			v = p.formData.Get(key)
		}
		if v = sanitizeInput(v); v != "" {
			return v
		}
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

var inputFieldOrder = []string{"name", "amount", "firstDate", "endDate"}

// ParseExpenseInput turns the form fields name, amount, first_date and
// end_date into an ExpenseInput. Unparsable and missing values are reported
// together as one *core.ValidationError.
func ParseExpenseInput(p *RequestBodyParser) (core.ExpenseInput, error) {
	in := core.ExpenseInput{Name: p.Get("name")}
	rejected := make(map[string]error)

	if s := p.Get("amount"); s != "" {
		amount, err := core.ParseAmount(s)
		if err != nil {
			rejected["amount"] = core.ErrInvalidAmount
		}
		in.Amount = amount
	}
	if s := p.Get("first_date", "firstDate"); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			rejected["firstDate"] = core.ErrInvalidDate
		}
		in.FirstDate = d
	}
	if s := p.Get("end_date", "endDate"); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			rejected["endDate"] = core.ErrInvalidDate
		}
		in.EndDate = d
	}

	var ve *core.ValidationError
	if err := in.Validate(); errors.As(err, &ve) {
		for _, f := range ve.Fields {
			if _, seen := rejected[f.Field]; !seen {
				rejected[f.Field] = f.Err
			}
		}
	}
	if len(rejected) == 0 {
		return in, nil
	}

	out := &core.ValidationError{}
	for _, field := range inputFieldOrder {
		if err, ok := rejected[field]; ok {
			out.Fields = append(out.Fields, core.FieldError{Field: field, Err: err})
		}
	}
	return in, out
}

// requireMethod writes 405 and returns false when r.Method is not allowed.
func requireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}
