package identity

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"passfuse/internal/services"
	"passfuse/internal/textutil"
)

// Field names a PII attribute.
type Field string

const (
	FieldEmail   Field = "email"
	FieldName    Field = "name"
	FieldAccount Field = "account"
	FieldPhone   Field = "phone"
	FieldBirth   Field = "birth"
)

// keyField is the reserved input key that sets the record key.
const keyField = "id"

// StandardFields lists the built-in fields in canonical order.
var StandardFields = []Field{FieldEmail, FieldName, FieldAccount, FieldPhone, FieldBirth}

// ErrEmptyIdentity is returned when a record would carry no known field.
var ErrEmptyIdentity = errors.New("identity has no known fields")

// fieldSplitPattern separates key:value pairs: tabs or runs of two or more spaces.
var fieldSplitPattern = regexp.MustCompile(`\t+|\s{2,}`)

// Record is an immutable, normalized identity.
type Record struct {
	key       string
	index     int
	fields    map[Field]string
	nameParts []string
}

// New builds a record from raw field values. Blank values are treated as unknown.
func New(key string, values map[Field]string) (Record, error) {
	fields := make(map[Field]string, len(values))
	for field, raw := range values {
		name := Field(strings.ToLower(strings.TrimSpace(string(field))))
		if name == "" {
			continue
		}
		value := textutil.Normalize(raw)
		if value == "" {
			continue
		}
		fields[name] = value
	}
	if len(fields) == 0 {
		return Record{}, ErrEmptyIdentity
	}
	rec := Record{key: strings.TrimSpace(key), fields: fields}
	if name, ok := fields[FieldName]; ok {
		rec.nameParts = textutil.SplitNameParts(name)
	}
	return rec, nil
}

// Key returns the record identifier.
func (r Record) Key() string { return r.key }

// Index returns the 1-based input position, or 0 for records built with New.
func (r Record) Index() int { return r.index }

// Blank reports whether the record is a placeholder for a target line that
// carried no known field.
func (r Record) Blank() bool { return len(r.fields) == 0 }

// Value returns the normalized value of field and whether it is known.
func (r Record) Value(field Field) (string, bool) {
	v, ok := r.fields[field]
	return v, ok
}

// Has reports whether field is known.
func (r Record) Has(field Field) bool {
	_, ok := r.fields[field]
	return ok
}

// Missing returns the subset of required fields the record does not carry.
func (r Record) Missing(required []Field) []Field {
	var missing []Field
	for _, f := range required {
		if !r.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Fields returns the known fields: standard fields in canonical order first,
// then extension fields sorted by name.
func (r Record) Fields() []Field {
	out := make([]Field, 0, len(r.fields))
	for _, f := range StandardFields {
		if r.Has(f) {
			out = append(out, f)
		}
	}
	var extra []Field
	for f := range r.fields {
		if !slices.Contains(StandardFields, f) {
			extra = append(extra, f)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// NameParts returns a copy of the ordered name parts.
func (r Record) NameParts() []string {
	return slices.Clone(r.nameParts)
}

// Line renders the record as a target line ("key:value" pairs joined by tabs).
func (r Record) Line() string {
	fields := r.Fields()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, string(f)+":"+r.fields[f])
	}
	return strings.Join(parts, "\t")
}

// Map returns a copy of the known fields keyed by name.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.fields))
	for f, v := range r.fields {
		out[string(f)] = v
	}
	return out
}

// MarshalJSON encodes the record as {"id": key, "fields": {...}}.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID     string            `json:"id"`
		Fields map[string]string `json:"fields"`
	}{ID: r.key, Fields: r.Map()})
}

// ParseLine parses one target line. index is used as the key when the line has
// no id field. A line without any known field returns ErrEmptyIdentity along
// with a blank record that keeps the key and index.
func ParseLine(line string, index int) (Record, error) {
	values := make(map[Field]string)
	key := strconv.Itoa(index)
	for _, part := range fieldSplitPattern.Split(strings.TrimSpace(line), -1) {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if k == keyField {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				key = trimmed
			}
			continue
		}
		values[Field(k)] = v
	}
	rec, err := New(key, values)
	if errors.Is(err, ErrEmptyIdentity) {
		return Record{key: strings.TrimSpace(key), index: index}, err
	}
	if err != nil {
		return Record{}, err
	}
	rec.index = index
	return rec, nil
}

// ReadTargets parses every non-empty line of r. Keys default to the 1-based
// index of the line among non-empty lines; duplicate keys are rejected. A line
// without any known field yields a blank record in its place so later records
// keep their positions.
func ReadTargets(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var records []Record
	seen := make(map[string]int)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, err := ParseLine(line, len(records)+1)
		if err != nil && !errors.Is(err, ErrEmptyIdentity) {
			return nil, services.Wrap(services.ErrValidation, "targets", "parse", fmt.Sprintf("line %d", lineNo), err)
		}
		if prev, dup := seen[rec.Key()]; dup {
			return nil, services.Wrap(services.ErrValidation, "targets", "parse",
				fmt.Sprintf("line %d: duplicate identity %q (first seen on line %d)", lineNo, rec.Key(), prev), nil)
		}
		seen[rec.Key()] = lineNo
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	return records, nil
}
