// Package ingest reads edge lists from JSON, YAML, CSV and arrow-style log
// files, and watches a file for changes.
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TFMV/dirgraph/models"
)

// DataProcessor defines the interface that all data processors must implement
type DataProcessor interface {
	// ProcessData takes raw data bytes and returns the edge list they describe
	ProcessData(data []byte) ([]*models.Edge, error)

	// GetName returns the name of the processor
	GetName() string
}

// JSONProcessor handles JSON data: a bare array of edge records or an object
// holding them under "links" or "edges".
type JSONProcessor struct{}

// GetName returns the name of the processor
func (p *JSONProcessor) GetName() string {
	return "JSON Processor"
}

// ProcessData processes JSON data
func (p *JSONProcessor) ProcessData(data []byte) ([]*models.Edge, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []*models.Edge{}, nil
		}
		return nil, fmt.Errorf("error parsing JSON: %w", err)
	}
	return edgesFromDocument(doc)
}

// YAMLProcessor handles YAML data in the same shapes as JSONProcessor.
type YAMLProcessor struct{}

// GetName returns the name of the processor
func (p *YAMLProcessor) GetName() string {
	return "YAML Processor"
}

// ProcessData processes YAML data
func (p *YAMLProcessor) ProcessData(data []byte) ([]*models.Edge, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}
	return edgesFromDocument(doc)
}

// edgesFromDocument extracts edge records from a decoded JSON or YAML
// document. A missing or malformed endpoint is reported as a
// *models.ValidationError carrying the record index.
func edgesFromDocument(doc any) ([]*models.Edge, error) {
	var records []any
	switch v := doc.(type) {
	case nil:
		return []*models.Edge{}, nil
	case []any:
		records = v
	case map[string]any:
		list, ok := v["links"]
		if !ok {
			list, ok = v["edges"]
		}
		if !ok || list == nil {
			return nil, fmt.Errorf("expected an array of edges or an object with \"links\" or \"edges\"")
		}
		records, ok = list.([]any)
		if !ok {
			return nil, fmt.Errorf("edge list must be an array, got %T", list)
		}
	default:
		return nil, fmt.Errorf("expected an array of edges, got %T", doc)
	}

	edges := make([]*models.Edge, 0, len(records))
	for i, r := range records {
		rec, ok := r.(map[string]any)
		if !ok {
			return nil, &models.ValidationError{Index: i, Field: "record"}
		}
		source, ok := endpoint(rec["source"])
		if !ok {
			return nil, &models.ValidationError{Index: i, Field: "source"}
		}
		target, ok := endpoint(rec["target"])
		if !ok {
			return nil, &models.ValidationError{Index: i, Field: "target"}
		}
		edges = append(edges, &models.Edge{
			Source: source,
			Target: target,
			Value:  models.CoerceValue(rec["value"]),
		})
	}
	return edges, nil
}

// endpoint accepts a scalar identifier or a node object with an "id".
func endpoint(v any) (string, bool) {
	if obj, ok := v.(map[string]any); ok {
		v = obj["id"]
	}
	return models.IdentifierString(v)
}

// CSVProcessor handles CSV data
type CSVProcessor struct{}

// GetName returns the name of the processor
func (p *CSVProcessor) GetName() string {
	return "CSV Processor"
}

// ProcessData processes CSV data. The header must name a source column
// (source, from or src) and a target column (target, to or dst); a value,
// weight or strength column is optional and defaults to 1.
func (p *CSVProcessor) ProcessData(data []byte) ([]*models.Edge, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return []*models.Edge{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	sourceIdx, targetIdx, valueIdx := -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "source", "from", "src":
			sourceIdx = i
		case "target", "to", "dst":
			targetIdx = i
		case "value", "weight", "strength":
			valueIdx = i
		}
	}
	if sourceIdx == -1 || targetIdx == -1 {
		return nil, fmt.Errorf("CSV must contain source and target columns")
	}

	edges := []*models.Edge{}
	for i := 0; ; i++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV row: %w", err)
		}

		source, target := field(row, sourceIdx), field(row, targetIdx)
		if source == "" {
			return nil, &models.ValidationError{Index: i, Field: "source"}
		}
		if target == "" {
			return nil, &models.ValidationError{Index: i, Field: "target"}
		}

		value := 1.0
		if valueIdx >= 0 {
			value = models.CoerceValue(field(row, valueIdx))
		}
		edges = append(edges, &models.Edge{Source: source, Target: target, Value: value})
	}
	return edges, nil
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// LogProcessor handles log data
type LogProcessor struct{}

// GetName returns the name of the processor
func (p *LogProcessor) GetName() string {
	return "Log Processor"
}

// Relationship patterns recognised in log lines. Undirected phrasings
// produce an edge in each direction.
var logPatterns = []struct {
	separator     string
	bidirectional bool
}{
	{" -> ", false},
	{" => ", false},
	{" connected to ", true},
	{" connects to ", false},
	{" links to ", false},
	{" linked to ", true},
	{" - ", true},
}

// ProcessData processes log data. Each line describes one relationship,
// e.g. "A -> B" or "X connects to Y". Blank lines, lines starting with '#'
// and lines matching no pattern are skipped.
func (p *LogProcessor) ProcessData(data []byte) ([]*models.Edge, error) {
	edges := []*models.Edge{}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		for _, pattern := range logPatterns {
			parts := strings.Split(line, pattern.separator)
			if len(parts) != 2 {
				continue
			}
			source, target := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
			if source == "" || target == "" {
				break
			}
			edges = append(edges, &models.Edge{Source: source, Target: target, Value: 1})
			if pattern.bidirectional && source != target {
				edges = append(edges, &models.Edge{Source: target, Target: source, Value: 1})
			}
			break
		}
	}
	return edges, nil
}

// GetProcessor returns the appropriate processor for the given format
func GetProcessor(format string) (DataProcessor, error) {
	switch strings.ToLower(format) {
	case "json":
		return &JSONProcessor{}, nil
	case "yaml", "yml":
		return &YAMLProcessor{}, nil
	case "csv":
		return &CSVProcessor{}, nil
	case "log", "txt":
		return &LogProcessor{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// FormatFromPath returns the input format implied by a file extension.
func FormatFromPath(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// FormatFromContentType maps an HTTP content type to an input format.
// Unknown types fall back to JSON.
func FormatFromContentType(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "yaml"):
		return "yaml"
	case strings.Contains(ct, "csv"):
		return "csv"
	case strings.HasPrefix(ct, "text/plain"):
		return "log"
	default:
		return "json"
	}
}

// ProcessFile reads the file at path with the processor for its extension.
func ProcessFile(path string) ([]*models.Edge, error) {
	processor, err := GetProcessor(FormatFromPath(path))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	edges, err := processor.ProcessData(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return edges, nil
}
