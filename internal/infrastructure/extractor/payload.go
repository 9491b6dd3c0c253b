package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
)

var errUnusableOutput = errors.New("model output is not a single usable JSON object")

var stringFields = []string{
	"chinese_name", "english_name", "original_name", "gender", "birth_date", "death_date",
	"nationality", "birth_place", "id_card_number", "passport_number", "phone", "email",
	"address", "organization", "position", "education", "work_experience", "remark",
}

var listFields = []string{"alias_names", "tags"}

func personSchema() map[string]any {
	props := make(map[string]any, len(stringFields)+len(listFields))
	for _, name := range stringFields {
		props[name] = map[string]any{"type": "string"}
	}
	for _, name := range listFields {
		props[name] = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("person.json", strings.NewReader(string(b))); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("person.json")
}

// stripFence removes a surrounding markdown code fence such as ```json ... ```.
func stripFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimSpace(s), "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decodeObject parses content as exactly one JSON object and normalizes loose values:
// nulls and blank strings are dropped, scalars in list fields become one-element lists.
func decodeObject(content string) (map[string]any, error) {
	s := stripFence(content)
	if !strings.HasPrefix(s, "{") {
		return nil, errUnusableOutput
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("%w: %v", errUnusableOutput, err)
	}

	for k, v := range m {
		switch t := v.(type) {
		case nil:
			delete(m, k)
		case string:
			if strings.TrimSpace(t) == "" {
				delete(m, k)
			} else {
				m[k] = strings.TrimSpace(t)
			}
		case float64:
			if isStringField(k) {
				m[k] = strings.TrimSpace(fmt.Sprint(t))
			}
		}
	}
	for _, k := range listFields {
		if s, ok := m[k].(string); ok {
			m[k] = []any{s}
		}
	}
	return m, nil
}

func isStringField(name string) bool {
	for _, f := range stringFields {
		if f == name {
			return true
		}
	}
	return false
}

// filterTags keeps only vocabulary tags, in first-seen order, using the vocabulary's spelling.
func filterTags(tags []string, vocabulary []domain.Tag) []string {
	known := make(map[string]string, len(vocabulary))
	for _, tag := range vocabulary {
		known[strings.ToLower(strings.TrimSpace(tag.Name))] = tag.Name
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		canonical, ok := known[strings.ToLower(strings.TrimSpace(tag))]
		if !ok {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}
