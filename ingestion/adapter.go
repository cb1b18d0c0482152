package ingestion

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/poiesic/hybridrag/core"
)

// Alternate field names accepted for each document field, in priority order.
var (
	idKeys      = []string{"id", "doc_id", "document_id"}
	contentKeys = []string{"content", "text", "body", "lab_results", "test_results"}
	titleKeys   = []string{"title", "name", "test"}
	typeKeys    = []string{"type", "kind", "category"}
	sourceKeys  = []string{"source", "file", "file_name"}
)

// RecordAdapter maps loosely shaped records to core.Document. Records
// without an id get one derived from their content; records without a type
// get DefaultType.
type RecordAdapter struct {
	DefaultType   core.DocumentType
	DefaultSource string
}

// NewRecordAdapter returns an adapter that types untyped records as book chunks.
func NewRecordAdapter() *RecordAdapter {
	return &RecordAdapter{
		DefaultType:   core.DocumentTypeBookChunk,
		DefaultSource: core.DefaultSource,
	}
}

// Adapt converts records to documents. The first record that cannot be
// mapped fails the whole call with an error naming its position.
func (a *RecordAdapter) Adapt(records []map[string]any) ([]core.Document, error) {
	docs := make([]core.Document, 0, len(records))
	for i, record := range records {
		doc, err := a.adaptOne(record)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrInvalidRecord, i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (a *RecordAdapter) adaptOne(record map[string]any) (core.Document, error) {
	content, err := firstText(record, contentKeys)
	if err != nil {
		return core.Document{}, err
	}
	if strings.TrimSpace(content) == "" {
		return core.Document{}, core.ErrEmptyContent
	}

	title, err := firstText(record, titleKeys)
	if err != nil {
		return core.Document{}, err
	}
	docType, err := firstText(record, typeKeys)
	if err != nil {
		return core.Document{}, err
	}
	source, err := firstText(record, sourceKeys)
	if err != nil {
		return core.Document{}, err
	}

	doc := core.Document{
		Type:    core.DocumentType(docType),
		Title:   title,
		Content: content,
		Source:  source,
	}
	if doc.Type == "" {
		doc.Type = a.DefaultType
	}
	if doc.Source == "" {
		doc.Source = a.DefaultSource
	}

	raw, ok := first(record, idKeys)
	if !ok {
		doc.ID = core.IDFromContent(content)
		return doc, nil
	}
	doc.ID, err = parseID(raw)
	if err != nil {
		return core.Document{}, err
	}
	return doc, nil
}

// first returns the value of the first key present with a non-nil value.
func first(record map[string]any, keys []string) (any, bool) {
	for _, key := range keys {
		if v, ok := record[key]; ok && v != nil {
			if s, isString := v.(string); isString && s == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

// firstText renders the first present value as text. Structured values
// (lists, objects) are rendered as compact JSON so they remain searchable.
func firstText(record map[string]any, keys []string) (string, error) {
	v, ok := first(record, keys)
	if !ok {
		return "", nil
	}
	switch v := v.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool, float64, int, int64:
		return fmt.Sprint(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func parseID(v any) (core.ID, error) {
	var text string
	switch v := v.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	case float64:
		if v != float64(uint64(v)) {
			return 0, fmt.Errorf("id %v is not a whole number", v)
		}
		text = strconv.FormatUint(uint64(v), 10)
	case int:
		text = strconv.Itoa(v)
	case int64:
		text = strconv.FormatInt(v, 10)
	case uint64:
		text = strconv.FormatUint(v, 10)
	default:
		return 0, fmt.Errorf("id has unsupported type %T", v)
	}

	id, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id %q is not a positive integer", text)
	}
	if id == 0 {
		return 0, core.ErrZeroID
	}
	return core.ID(id), nil
}

// ReadJSONLines decodes one JSON object per non-blank line and adapts them.
func (a *RecordAdapter) ReadJSONLines(r io.Reader) ([]core.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []map[string]any
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		var record map[string]any
		if err := dec.Decode(&record); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidRecord, line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return a.Adapt(records)
}
