package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"spec-extractor/internal/models"
)

// looseString accepts JSON strings, numbers, booleans and null.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "null":
		*s = ""
	case strings.HasPrefix(raw, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = looseString(str)
	case strings.HasPrefix(raw, "{"), strings.HasPrefix(raw, "["):
		return errors.New("expected a scalar value")
	default:
		*s = looseString(raw)
	}
	return nil
}

type rawRecord struct {
	Component  looseString `json:"component"`
	SpecType   looseString `json:"spec_type"`
	Value      looseString `json:"value"`
	Unit       looseString `json:"unit"`
	Conditions looseString `json:"conditions"`
}

func (r rawRecord) record() models.SpecRecord {
	return models.SpecRecord{
		Component:  strings.TrimSpace(string(r.Component)),
		SpecType:   strings.TrimSpace(string(r.SpecType)),
		Value:      strings.TrimSpace(string(r.Value)),
		Unit:       strings.TrimSpace(string(r.Unit)),
		Conditions: strings.TrimSpace(string(r.Conditions)),
	}
}

var recordKeys = []string{"component", "spec_type", "value", "unit", "conditions"}

// ParseRecords decodes a model response into records. The response may be
// wrapped in a markdown code fence. Records with no component, spec type or
// value are dropped.
func ParseRecords(content string) ([]models.SpecRecord, error) {
	payload := StripCodeFence(content)
	if payload == "" {
		return nil, errors.New("empty response")
	}

	raws, err := decodeRecords([]byte(payload))
	if err != nil {
		return nil, err
	}

	records := make([]models.SpecRecord, 0, len(raws))
	for _, r := range raws {
		rec := r.record()
		if rec.Component == "" && rec.SpecType == "" && rec.Value == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// decodeRecords reads an array of records, a lone record object, or an object
// wrapping the array in its only field, e.g. {"specifications": [...]}.
func decodeRecords(payload []byte) ([]rawRecord, error) {
	if !bytes.HasPrefix(payload, []byte("{")) {
		var raws []rawRecord
		if err := json.Unmarshal(payload, &raws); err != nil {
			return nil, err
		}
		return raws, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	for _, k := range recordKeys {
		if _, ok := fields[k]; ok {
			var one rawRecord
			if err := json.Unmarshal(payload, &one); err != nil {
				return nil, err
			}
			return []rawRecord{one}, nil
		}
	}
	if len(fields) == 1 {
		for _, v := range fields {
			if list := bytes.TrimSpace(v); bytes.HasPrefix(list, []byte("[")) {
				return decodeRecords(list)
			}
		}
	}
	return nil, errors.New("object is neither a spec record nor a wrapped record list")
}

// StripCodeFence returns the body of the first fenced code block in content,
// or content without a leading ```json / ``` and trailing ``` when no
// block is found.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	src := []byte(content)

	doc := goldmark.DefaultParser().Parse(text.NewReader(src))
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			continue
		}
		var buf bytes.Buffer
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}

	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
