package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/feichai0017/lease-parser/internal/models"
)

// Report lists what the normalizer changed on the way to a valid record.
type Report struct {
	Defaulted []string
	Coerced   []string
	Renamed   []string
	Dropped   []string
}

var (
	reLeadingNumber = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)`)
	reUnitSuffix    = regexp.MustCompile(`(?i)^(%|percent|(/|per|a)\s*(mo|mos|month|yr|year|annum|sf|rsf|sq\.?\s*ft\.?)\.?|p\.?a\.?|[ru]?sf|sq\.?\s*ft\.?|square\s+feet|months?|mos?\.?|years?|yrs?\.?)$`)
	reYesNo         = regexp.MustCompile(`(?i)^(yes|no|true|false|y|n)(?:\.?$|[\s,;:!(])`)
	nullWords       = map[string]bool{"n/a": true, "na": true, "none": true, "null": true, "-": true}
)

// dateLayouts are the unambiguous layouts reformatted to YYYY-MM-DD. Slash
// dates are read as US month/day.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan. 2, 2006",
	"2 January 2006",
}

// Validate parses raw model output into a record matching the schema exactly.
// Unparseable output and fields with values that cannot be coerced without
// loss are reported as a SchemaMismatchError carrying raw.
func (s *Schema) Validate(raw string) (*models.ExtractionResult, *Report, error) {
	body := StripCodeFence(raw)

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, nil, models.SchemaMismatch("AI returned invalid JSON", raw, err)
	}
	if dec.More() {
		return nil, nil, models.SchemaMismatch("AI returned invalid JSON", raw, errors.New("trailing data after JSON object"))
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, nil, models.SchemaMismatch("AI returned JSON that is not an object", raw, nil)
	}

	report := &Report{}
	for alias, canonical := range s.aliases {
		v, ok := obj[alias]
		if !ok {
			continue
		}
		if _, exists := obj[canonical]; !exists {
			obj[canonical] = v
			report.Renamed = append(report.Renamed, alias+"->"+canonical)
		}
		delete(obj, alias)
	}

	normalized := make(map[string]any, len(s.fields))
	var fieldErrs []error
	for _, f := range s.fields {
		v, present := obj[f.Name]
		delete(obj, f.Name)
		if !present || v == nil {
			report.Defaulted = append(report.Defaulted, f.Name)
		}
		out, coerced, err := coerce(f, v)
		if err != nil {
			fieldErrs = append(fieldErrs, fmt.Errorf("%s: %w", f.Name, err))
			continue
		}
		if coerced {
			report.Coerced = append(report.Coerced, f.Name)
		}
		normalized[f.Name] = out
	}
	for k := range obj {
		report.Dropped = append(report.Dropped, k)
	}
	sort.Strings(report.Dropped)

	if len(fieldErrs) > 0 {
		return nil, report, models.SchemaMismatch("AI returned fields that do not match the lease schema", raw, errors.Join(fieldErrs...))
	}
	if err := s.compiled.Validate(normalized); err != nil {
		return nil, report, models.SchemaMismatch("normalized record does not match the lease schema", raw, err)
	}

	encoded, err := json.Marshal(normalized)
	if err != nil {
		return nil, report, fmt.Errorf("encode normalized record: %w", err)
	}
	var result models.ExtractionResult
	if err := json.Unmarshal(encoded, &result); err != nil {
		return nil, report, fmt.Errorf("decode normalized record: %w", err)
	}
	return &result, report, nil
}

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func coerce(f Field, v any) (any, bool, error) {
	switch f.Type {
	case TypeNumber:
		return coerceNumber(v)
	case TypeDate:
		return coerceDate(v)
	case TypeYesNo:
		return coerceYesNo(v)
	default:
		return coerceString(v)
	}
}

func coerceString(v any) (any, bool, error) {
	switch t := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return strings.TrimSpace(t), false, nil
	case json.Number:
		return t.String(), true, nil
	default:
		return nil, false, fmt.Errorf("expected string, got %s", describe(v))
	}
}

func coerceNumber(v any) (any, bool, error) {
	var (
		n       float64
		coerced bool
	)
	switch t := v.(type) {
	case nil:
		return float64(0), false, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, false, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		n = f
	case string:
		f, err := parseNumericString(t)
		if err != nil {
			return nil, false, err
		}
		n, coerced = f, true
	default:
		return nil, false, fmt.Errorf("expected number, got %s", describe(v))
	}
	if n < 0 {
		return nil, false, fmt.Errorf("negative value %v", n)
	}
	return n, coerced, nil
}

// parseNumericString accepts strings such as "$5,000/mo", "12,500 RSF", "3%"
// or "60 months". Text that is not a number with a recognised unit is rejected.
func parseNumericString(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || nullWords[strings.ToLower(trimmed)] {
		return 0, nil
	}

	t := trimmed
	if len(t) >= 3 && strings.EqualFold(t[:3], "usd") {
		t = strings.TrimSpace(t[3:])
	}
	t = strings.TrimLeft(t, "$€£ ")
	t = strings.ReplaceAll(t, ",", "")

	m := reLeadingNumber.FindString(t)
	if m == "" {
		return 0, fmt.Errorf("expected number, got %q", s)
	}
	if rest := strings.TrimSpace(t[len(m):]); rest != "" && !reUnitSuffix.MatchString(rest) {
		return 0, fmt.Errorf("expected number, got %q", s)
	}
	f, err := cast.ToFloat64E(strings.TrimSuffix(m, "."))
	if err != nil {
		return 0, fmt.Errorf("expected number, got %q: %w", s, err)
	}
	return f, nil
}

func coerceDate(v any) (any, bool, error) {
	switch t := v.(type) {
	case nil:
		return "", false, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" || nullWords[strings.ToLower(s)] {
			return "", s != "", nil
		}
		for i, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.Format("2006-01-02"), i > 0, nil
			}
		}
		return nil, false, fmt.Errorf("unrecognised date %q", s)
	default:
		return nil, false, fmt.Errorf("expected date string, got %s", describe(v))
	}
}

func coerceYesNo(v any) (any, bool, error) {
	switch t := v.(type) {
	case nil:
		return "", false, nil
	case bool:
		if t {
			return "yes", true, nil
		}
		return "no", true, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" || nullWords[strings.ToLower(s)] {
			return "", s != "", nil
		}
		m := reYesNo.FindStringSubmatch(s)
		if m == nil {
			return nil, false, fmt.Errorf(`expected "yes" or "no", got %q`, s)
		}
		answer := "no"
		switch strings.ToLower(m[1]) {
		case "yes", "y", "true":
			answer = "yes"
		}
		return answer, answer != s, nil
	default:
		return nil, false, fmt.Errorf(`expected "yes" or "no", got %s`, describe(v))
	}
}

func describe(v any) string {
	switch v.(type) {
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
