// Package schema holds the fixed lease field list and turns raw model output
// into a strict models.ExtractionResult.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldType is the declared type of a lease field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeDate   FieldType = "date"
	// TypeYesNo is a string restricted to "yes", "no" or "".
	TypeYesNo FieldType = "yes_no"
)

// Field describes one output key.
type Field struct {
	Name        string
	Type        FieldType
	Instruction string
}

// Schema is the immutable, ordered field list shared by the prompt builder and
// the validator.
type Schema struct {
	fields   []Field
	aliases  map[string]string
	compiled *jsonschema.Schema
}

// LeaseFields is the canonical lease field list, in output order.
var LeaseFields = []Field{
	{"tenant_name", TypeString, "Full legal name of the tenant"},
	{"suite", TypeString, "Suite number or unit identifier"},
	{"leased_area", TypeNumber, "Square footage as number (no units)"},
	{"measurement", TypeString, `Unit of measurement, usually "SF" or "RSF"`},
	{"lease_start", TypeDate, "Lease start date in YYYY-MM-DD format"},
	{"lease_end", TypeDate, "Lease end date in YYYY-MM-DD format"},
	{"term_months", TypeNumber, "Lease term in months as number"},
	{"starting_rent", TypeNumber, "Initial monthly rent amount as number (no $ signs or commas)"},
	{"current_rent", TypeNumber, "Current monthly rent as number (no $ signs or commas)"},
	{"annual_increase", TypeNumber, "Annual rent increase amount as number (no $ signs)"},
	{"free_rent_months", TypeNumber, "Number of free rent months as number"},
	{"expense_reimb", TypeString, `Type of expense reimbursement (e.g., "NNN", "Gross", "Modified Gross")`},
	{"renewal_option", TypeYesNo, `"yes" or "no" if renewal options exist`},
	{"renewal_option_terms", TypeString, "Text description of renewal terms if any"},
}

// LeaseAliases maps alternate key names a model may emit to canonical keys.
var LeaseAliases = map[string]string{
	"renewal_terms": "renewal_option_terms",
}

// New compiles a Schema. The field list is copied.
func New(fields []Field, aliases map[string]string) (*Schema, error) {
	s := &Schema{
		fields:  append([]Field(nil), fields...),
		aliases: make(map[string]string, len(aliases)),
	}
	for k, v := range aliases {
		s.aliases[k] = v
	}

	doc, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("lease.json", bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s.compiled, err = compiler.Compile("lease.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
}

// Lease returns the lease schema. It panics only if the built-in field list is broken.
func Lease() *Schema {
	s, err := New(LeaseFields, LeaseAliases)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns a copy of the ordered field list.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Names returns the field names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Skeleton renders the empty JSON object shown to the model, keys in schema order.
func (s *Schema) Skeleton() string {
	var b bytes.Buffer
	b.WriteString("{\n")
	for i, f := range s.fields {
		fmt.Fprintf(&b, "  %q: ", f.Name)
		if f.Type == TypeNumber {
			b.WriteString("0")
		} else {
			b.WriteString(`""`)
		}
		if i < len(s.fields)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

// JSONSchema describes a normalized record: every key required, no extras.
func (s *Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.fields))
	required := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		required = append(required, f.Name)
		switch f.Type {
		case TypeNumber:
			props[f.Name] = map[string]any{"type": "number", "minimum": 0}
		case TypeDate:
			props[f.Name] = map[string]any{"type": "string", "pattern": `^(\d{4}-\d{2}-\d{2})?$`}
		case TypeYesNo:
			props[f.Name] = map[string]any{"type": "string", "enum": []string{"", "yes", "no"}}
		default:
			props[f.Name] = map[string]any{"type": "string"}
		}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}
