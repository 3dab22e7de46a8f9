package service

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rich7420/community-ai-agent-sub001/internal/models"
	"gopkg.in/yaml.v3"
)

// MaxContentLength is the longest record content accepted, in characters.
const MaxContentLength = 100000

// ErrInvalidRecord is returned for records that fail validation.
var ErrInvalidRecord = errors.New("invalid record")

// recordDoc is the on-disk shape written by collectors. Timestamps arrive as
// YAML timestamps, RFC 3339 strings, or unix seconds.
type recordDoc struct {
	ID        string         `yaml:"id"`
	Platform  string         `yaml:"platform"`
	Content   string         `yaml:"content"`
	Author    string         `yaml:"author"`
	Timestamp any            `yaml:"timestamp"`
	Metadata  map[string]any `yaml:"metadata"`
}

func (d recordDoc) toRecord() (models.StandardizedRecord, error) {
	ts, err := parseTimestamp(d.Timestamp)
	if err != nil {
		return models.StandardizedRecord{}, fmt.Errorf("record %q: %w", d.ID, err)
	}
	return models.StandardizedRecord{
		ID:        strings.TrimSpace(d.ID),
		Platform:  models.Platform(strings.ToLower(strings.TrimSpace(d.Platform))),
		Content:   d.Content,
		Author:    d.Author,
		Timestamp: ts,
		Metadata:  d.Metadata,
	}, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t.UTC(), nil
	case int:
		return time.Unix(int64(t), 0).UTC(), nil
	case float64:
		sec, frac := math.Modf(t)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, nil
		}
		// Slack message ts, e.g. "1700000000.000200".
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return parseTimestamp(f)
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// DecodeRecords reads records from YAML or JSON. A document may be a list of
// records, a mapping with a "records" key, or a single record; multiple
// YAML documents are concatenated.
func DecodeRecords(r io.Reader) ([]models.StandardizedRecord, error) {
	dec := yaml.NewDecoder(r)
	var out []models.StandardizedRecord
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}

		docs, err := decodeDocument(&node)
		if err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		for _, d := range docs {
			rec, err := d.toRecord()
			if err != nil {
				return nil, fmt.Errorf("decode records: %w", err)
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func decodeDocument(node *yaml.Node) ([]recordDoc, error) {
	root := node
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, nil
		}
		root = root.Content[0]
	}

	switch root.Kind {
	case yaml.SequenceNode:
		var docs []recordDoc
		if err := root.Decode(&docs); err != nil {
			return nil, err
		}
		return docs, nil
	case yaml.MappingNode:
		if hasKey(root, "records") {
			var wrapper struct {
				Records []recordDoc `yaml:"records"`
			}
			if err := root.Decode(&wrapper); err != nil {
				return nil, err
			}
			return wrapper.Records, nil
		}
		var doc recordDoc
		if err := root.Decode(&doc); err != nil {
			return nil, err
		}
		return []recordDoc{doc}, nil
	default:
		return nil, fmt.Errorf("line %d: expected a record, a list, or a records mapping", root.Line)
	}
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}

// LoadRecordsFile reads records from a .yaml, .yml, or .json file.
func LoadRecordsFile(path string) ([]models.StandardizedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	defer f.Close()

	records, err := DecodeRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return records, nil
}

// CollectFiles walks a directory and returns all record files.
func CollectFiles(dirPath string, recursive bool) ([]string, error) {
	var files []string
	walkFn := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && !recursive && path != dirPath {
			return filepath.SkipDir
		}
		if !d.IsDir() && isRecordFile(path) {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.WalkDir(dirPath, walkFn); err != nil {
		return nil, fmt.Errorf("scan directory: %w", err)
	}
	return files, nil
}

func isRecordFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// ValidateRecord checks that a record can be embedded and stored.
func ValidateRecord(r *models.StandardizedRecord) error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	case r.Platform == "":
		return fmt.Errorf("%w: %s: missing platform", ErrInvalidRecord, r.ID)
	case !r.Embeddable():
		return fmt.Errorf("%w: %s: empty content", ErrInvalidRecord, r.ID)
	case utf8.RuneCountInString(r.Content) > MaxContentLength:
		return fmt.Errorf("%w: %s: content exceeds %d characters", ErrInvalidRecord, r.ID, MaxContentLength)
	}
	return nil
}
