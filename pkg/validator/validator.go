package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newEngine()

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	mobilePattern   = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
)

func newEngine() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	register := func(tag string, fn func(string) bool) {
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return fn(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("register validation %q: %v", tag, err))
		}
	}

	register("username", usernamePattern.MatchString)
	register("mobile", mobilePattern.MatchString)
	register("objectid", objectIDPattern.MatchString)
	register("hasupper", containsRune(func(r rune) bool { return r >= 'A' && r <= 'Z' }))
	register("haslower", containsRune(func(r rune) bool { return r >= 'a' && r <= 'z' }))
	register("hasdigit", containsRune(func(r rune) bool { return r >= '0' && r <= '9' }))
	register("special", containsRune(func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}))
	return v
}

func containsRune(pred func(rune) bool) func(string) bool {
	return func(s string) bool {
		return strings.IndexFunc(s, pred) >= 0
	}
}

// Kind is the JSON type a field must carry.
type Kind int

const (
	String Kind = iota
	Int
)

// Normalizer rewrites a string value before rules are evaluated.
type Normalizer func(string) string

var (
	Trim  Normalizer = strings.TrimSpace
	Lower Normalizer = strings.ToLower
)

// Rule is a single validator tag and the message reported when it fails.
type Rule struct {
	Tag     string
	Message string
}

// Field declares one input field.
type Field struct {
	Name      string
	Kind      Kind
	Required  bool
	Normalize []Normalizer
	Rules     []Rule
}

// Schema is the immutable declaration of one endpoint's body, query and
// path parameters.
type Schema struct {
	Name   string
	Body   []Field
	Query  []Field
	Params []Field
}

// Input is the raw request data a Schema is evaluated against.
type Input struct {
	Body   map[string]any
	Query  url.Values
	Params map[string]string
}

// Output holds the normalized values of declared fields. Undeclared fields
// are dropped; absent optional fields are omitted.
type Output struct {
	Body   map[string]any
	Query  map[string]any
	Params map[string]any
}

// FieldError is a single violated constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every constraint a request violated.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// Fields returns field paths mapped to their first message.
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		if _, ok := fields[fe.Field]; !ok {
			fields[fe.Field] = fe.Message
		}
	}
	return fields
}

// Validate evaluates every field of the schema and reports all violations.
// A field that is missing or has the wrong type yields exactly one error;
// otherwise each failing rule yields its own error.
func (s *Schema) Validate(in Input) (Output, error) {
	out := Output{
		Body:   map[string]any{},
		Query:  map[string]any{},
		Params: map[string]any{},
	}
	var errs []FieldError

	for _, f := range s.Body {
		raw, ok := in.Body[f.Name]
		if ok && raw == nil {
			ok = false
		}
		errs = f.check("body", raw, ok, out.Body, errs)
	}
	for _, f := range s.Query {
		var raw any
		ok := in.Query.Has(f.Name)
		if ok {
			raw = in.Query.Get(f.Name)
		}
		errs = f.check("query", raw, ok, out.Query, errs)
	}
	for _, f := range s.Params {
		raw, ok := in.Params[f.Name]
		errs = f.check("params", raw, ok, out.Params, errs)
	}

	if len(errs) > 0 {
		return Output{}, &ValidationError{Errors: errs}
	}
	return out, nil
}

func (f Field) check(location string, raw any, present bool, dst map[string]any, errs []FieldError) []FieldError {
	path := location + "." + f.Name
	if !present {
		if f.Required {
			return append(errs, FieldError{Field: path, Message: "Required"})
		}
		return errs
	}

	var value any
	switch f.Kind {
	case Int:
		n, ok := toInt(raw)
		if !ok {
			return append(errs, FieldError{Field: path, Message: "Expected integer"})
		}
		value = n
	default:
		s, ok := raw.(string)
		if !ok {
			return append(errs, FieldError{Field: path, Message: "Expected string"})
		}
		for _, norm := range f.Normalize {
			s = norm(s)
		}
		value = s
	}

	failed := false
	for _, rule := range f.Rules {
		if err := validate.Var(value, rule.Tag); err != nil {
			errs = append(errs, FieldError{Field: path, Message: rule.Message})
			failed = true
		}
	}
	if !failed {
		dst[f.Name] = value
	}
	return errs
}

// toInt accepts JSON numbers with no fractional part and decimal strings
// (query and path parameters).
func toInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt32 || v < math.MinInt32 {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := strconv.Atoi(v.String())
		return n, err == nil
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

// Bind copies normalized values into dst, which should be a pointer to a
// struct with json tags matching the field names.
func Bind(values map[string]any, dst any) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal normalized input: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("bind normalized input: %w", err)
	}
	return nil
}
