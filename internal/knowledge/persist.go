package knowledge

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Format identifies a persisted document encoding.
type Format string

const (
	// FormatXML is the element/attribute layout of existing knowledge files.
	FormatXML Format = "xml"

	// FormatYAML mirrors the XML tree as nested sequences.
	FormatYAML Format = "yaml"
)

const (
	errorNodeName = "error"
	yamlErrorsKey = "errors"
)

// Persistence errors.
var (
	ErrUnknownFormat     = errors.New("unknown knowledge format")
	ErrMalformedDocument = errors.New("malformed knowledge document")
)

// LoadReport describes the outcome of a load.
type LoadReport struct {
	// Errors is the number of error nodes loaded.
	Errors int

	// Skipped is the number of malformed nodes skipped.
	Skipped int
}

// FormatFromPath picks the document format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return FormatXML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

type documentNode struct {
	XMLName xml.Name    `xml:"knowledge" yaml:"-"`
	Errors  []errorNode `xml:"error" yaml:"errors"`
}

// Numeric fields are held as text so a bad value fails one node rather
// than the whole document.
type errorNode struct {
	Code     scalar        `xml:"code,attr" yaml:"code"`
	Contexts []contextNode `xml:"context" yaml:"contexts"`
}

type contextNode struct {
	ID      scalar       `xml:"id,attr" yaml:"id"`
	Actions []actionNode `xml:"action" yaml:"actions"`
}

type actionNode struct {
	ID    scalar    `xml:"id,attr" yaml:"id"`
	Score scalar    `xml:"score,attr" yaml:"score"`
	Tags  []tagNode `xml:"tag" yaml:"tags,omitempty"`
}

type tagNode struct {
	ID    scalar `xml:"id,attr" yaml:"id"`
	Value scalar `xml:"value,attr" yaml:"value"`
}

// scalar is the text of a numeric field. It is written to YAML as a plain
// scalar, so numbers stay unquoted, and reads any scalar, quoted or not.
type scalar string

// MarshalYAML implements yaml.Marshaler.
func (s scalar) MarshalYAML() (interface{}, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: string(s)}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *scalar) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", value.Line)
	}
	*s = scalar(value.Value)
	return nil
}

func (s scalar) asInt() (int, error) {
	return strconv.Atoi(strings.TrimSpace(string(s)))
}

func (s scalar) asFloat() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
}

type parsedEntry struct {
	context ContextID
	action  ActionID
	entry   ScoreEntry
}

type parsedError struct {
	code    ErrorCode
	entries []parsedEntry
}

func formatFloat(v float64) scalar {
	return scalar(strconv.FormatFloat(v, 'g', -1, 64))
}

func itoa(v int) scalar {
	return scalar(strconv.Itoa(v))
}

// document snapshots kb into the persisted tree.
func (kb *KnowledgeBase) document() documentNode {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	doc := documentNode{Errors: make([]errorNode, 0, kb.errors.Len())}
	for el := kb.errors.Front(); el != nil; el = el.Next() {
		errNode := errorNode{Code: itoa(int(el.Key))}
		contexts := el.Value
		for _, contextID := range contexts.Keys() {
			actions, _ := contexts.ActionTable(contextID)
			ctxNode := contextNode{ID: itoa(int(contextID))}
			actions.Range(func(actionID ActionID, entry ScoreEntry) bool {
				node := actionNode{
					ID:    itoa(int(actionID)),
					Score: formatFloat(entry.Score()),
				}
				for _, tag := range entry.TagIDs() {
					value, _ := entry.Tag(tag)
					node.Tags = append(node.Tags, tagNode{
						ID:    itoa(int(tag)),
						Value: formatFloat(value),
					})
				}
				ctxNode.Actions = append(ctxNode.Actions, node)
				return true
			})
			errNode.Contexts = append(errNode.Contexts, ctxNode)
		}
		doc.Errors = append(doc.Errors, errNode)
	}
	return doc
}

// Encode writes kb to w in the given format.
func (kb *KnowledgeBase) Encode(w io.Writer, format Format) error {
	doc := kb.document()

	switch format {
	case FormatXML:
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return fmt.Errorf("writing xml header: %w", err)
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding xml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("flushing xml: %w", err)
		}
		_, err := io.WriteString(w, "\n")
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Decode reads a document from r and merges its entries into kb. Malformed
// error nodes are skipped with a warning. A document-level syntax error
// leaves kb untouched.
func (kb *KnowledgeBase) Decode(r io.Reader, format Format) (LoadReport, error) {
	var (
		parsed []parsedError
		report LoadReport
		err    error
	)

	switch format {
	case FormatXML:
		parsed, err = kb.decodeXML(r, &report)
	case FormatYAML:
		parsed, err = kb.decodeYAML(r, &report)
	default:
		return report, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return report, err
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	for _, pe := range parsed {
		for _, e := range pe.entries {
			kb.setLocked(pe.code, e.context, e.action, e.entry)
		}
	}
	report.Errors = len(parsed)
	return report, nil
}

func (kb *KnowledgeBase) decodeXML(r io.Reader, report *LoadReport) ([]parsedError, error) {
	var parsed []parsedError
	dec := xml.NewDecoder(r)
	depth := 0

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return parsed, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				depth++
				continue
			}
			if t.Name.Local != errorNodeName {
				kb.skipNode(report, t.Name.Local, "unexpected element")
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
				}
				continue
			}
			var node errorNode
			if err := dec.DecodeElement(&node, &t); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
			}
			pe, err := node.parse()
			if err != nil {
				kb.skipNode(report, errorNodeName, err.Error())
				continue
			}
			parsed = append(parsed, pe)
		case xml.EndElement:
			depth--
		}
	}
}

func (kb *KnowledgeBase) decodeYAML(r io.Reader, report *LoadReport) ([]parsedError, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: root is not a mapping", ErrMalformedDocument)
	}

	var parsed []parsedError
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, value := doc.Content[i], doc.Content[i+1]
		if key.Value != yamlErrorsKey {
			kb.skipNode(report, key.Value, "unexpected key")
			continue
		}
		if value.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("%w: %q is not a sequence", ErrMalformedDocument, yamlErrorsKey)
		}
		for _, item := range value.Content {
			if item.Kind != yaml.MappingNode {
				kb.skipNode(report, item.Tag, "error node is not a mapping")
				continue
			}
			var node errorNode
			if err := item.Decode(&node); err != nil {
				kb.skipNode(report, errorNodeName, err.Error())
				continue
			}
			pe, err := node.parse()
			if err != nil {
				kb.skipNode(report, errorNodeName, err.Error())
				continue
			}
			parsed = append(parsed, pe)
		}
	}
	return parsed, nil
}

func (kb *KnowledgeBase) skipNode(report *LoadReport, name, reason string) {
	report.Skipped++
	LoadSkippedTotal.Inc()
	kb.logger.Warn("skipping malformed knowledge node",
		zap.String("node", name),
		zap.String("reason", reason))
}

func (n errorNode) parse() (parsedError, error) {
	code, err := n.Code.asInt()
	if err != nil {
		return parsedError{}, fmt.Errorf("invalid error code %q", n.Code)
	}
	if len(n.Contexts) == 0 {
		return parsedError{}, fmt.Errorf("error %d has no contexts", code)
	}

	pe := parsedError{code: ErrorCode(code)}
	for _, c := range n.Contexts {
		contextID, err := c.ID.asInt()
		if err != nil {
			return parsedError{}, fmt.Errorf("error %d: invalid context id %q", code, c.ID)
		}
		if len(c.Actions) == 0 {
			return parsedError{}, fmt.Errorf("error %d: context %d has no actions", code, contextID)
		}
		for _, a := range c.Actions {
			entry, actionID, err := a.parse()
			if err != nil {
				return parsedError{}, fmt.Errorf("error %d context %d: %w", code, contextID, err)
			}
			pe.entries = append(pe.entries, parsedEntry{
				context: ContextID(contextID),
				action:  actionID,
				entry:   entry,
			})
		}
	}
	return pe, nil
}

func (n actionNode) parse() (ScoreEntry, ActionID, error) {
	id, err := n.ID.asInt()
	if err != nil {
		return ScoreEntry{}, 0, fmt.Errorf("invalid action id %q", n.ID)
	}
	score, err := n.Score.asFloat()
	if err != nil {
		return ScoreEntry{}, 0, fmt.Errorf("action %d: invalid score %q", id, n.Score)
	}

	entry := NewScoreEntry(score)
	for _, t := range n.Tags {
		tag, err := t.ID.asInt()
		if err != nil {
			return ScoreEntry{}, 0, fmt.Errorf("action %d: invalid tag id %q", id, t.ID)
		}
		value, err := t.Value.asFloat()
		if err != nil {
			return ScoreEntry{}, 0, fmt.Errorf("action %d: invalid tag value %q", id, t.Value)
		}
		entry = entry.WithTagIncrement(TagID(tag), value)
	}
	return entry, ActionID(id), nil
}

// Save writes kb to path, choosing the format from the extension. The file
// is written to a temporary sibling and renamed into place.
func (kb *KnowledgeBase) Save(path string) error {
	start := time.Now()
	defer func() {
		PersistDuration.WithLabelValues("save").Observe(time.Since(start).Seconds())
	}()

	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := kb.Encode(tmp, format); err != nil {
		tmp.Close()
		return fmt.Errorf("saving knowledge to %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	stats := kb.Stats()
	updateSizeMetrics(stats)
	kb.logger.Info("knowledge saved",
		zap.String("path", path),
		zap.Int("errors", stats.Errors),
		zap.Int("contexts", stats.Contexts),
		zap.Int("actions", stats.Actions))
	return nil
}

// Load merges the document at path into kb.
func (kb *KnowledgeBase) Load(path string) (LoadReport, error) {
	start := time.Now()
	defer func() {
		PersistDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())
	}()

	format, err := FormatFromPath(path)
	if err != nil {
		return LoadReport{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return LoadReport{}, fmt.Errorf("opening knowledge file: %w", err)
	}
	defer f.Close()

	report, err := kb.Decode(f, format)
	if err != nil {
		return report, fmt.Errorf("loading knowledge from %s: %w", path, err)
	}

	updateSizeMetrics(kb.Stats())
	kb.logger.Info("knowledge loaded",
		zap.String("path", path),
		zap.Int("errors", report.Errors),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

// Open creates a KnowledgeBase and loads path into it when the file exists.
// A missing file yields an empty table.
func Open(path string, opts ...Option) (*KnowledgeBase, LoadReport, error) {
	kb := New(opts...)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		kb.logger.Info("knowledge file not found, starting empty", zap.String("path", path))
		return kb, LoadReport{}, nil
	}
	report, err := kb.Load(path)
	if err != nil {
		return nil, report, err
	}
	return kb, report, nil
}
