package everytriv

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

type namedTransformer struct {
	id string
	fn Transformer
}

type transformerSet struct {
	mu    sync.RWMutex
	items []namedTransformer
}

func newTransformerSet() *transformerSet {
	return &transformerSet{}
}

func (s *transformerSet) add(fn Transformer) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.items = append(s.items, namedTransformer{id: id, fn: fn})
	return id
}

func (s *transformerSet) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, item := range s.items {
		if item.id == id {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

func (s *transformerSet) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
}

func (s *transformerSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}

func (s *transformerSet) apply(doc []byte) ([]byte, error) {
	s.mu.RLock()
	items := make([]namedTransformer, len(s.items))
	copy(items, s.items)
	s.mu.RUnlock()

	for _, item := range items {
		out, err := item.fn(doc)
		if err != nil {
			return nil, err
		}
		doc = out
	}
	return doc, nil
}

// AddRequestTransformer registers a transformer for encoded request bodies.
func (c *Client) AddRequestTransformer(fn Transformer) string {
	return c.requestTransformers.add(fn)
}

// RemoveRequestTransformer removes a request transformer by id.
func (c *Client) RemoveRequestTransformer(id string) bool {
	return c.requestTransformers.remove(id)
}

// ClearRequestTransformers removes every request transformer.
func (c *Client) ClearRequestTransformers() {
	c.requestTransformers.clear()
}

// AddResponseTransformer registers a transformer for normalized response data.
func (c *Client) AddResponseTransformer(fn Transformer) string {
	return c.responseTransformers.add(fn)
}

// RemoveResponseTransformer removes a response transformer by id.
func (c *Client) RemoveResponseTransformer(id string) bool {
	return c.responseTransformers.remove(id)
}

// ClearResponseTransformers removes every response transformer.
func (c *Client) ClearResponseTransformers() {
	c.responseTransformers.clear()
}

// CamelCaseKeys rewrites every object key from snake_case to camelCase.
func CamelCaseKeys(doc []byte) ([]byte, error) {
	return rewriteKeys(doc, snakeToCamel)
}

// SnakeCaseKeys rewrites every object key from camelCase to snake_case.
func SnakeCaseKeys(doc []byte) ([]byte, error) {
	return rewriteKeys(doc, camelToSnake)
}

func rewriteKeys(doc []byte, rename func(string) string) ([]byte, error) {
	if len(bytes.TrimSpace(doc)) == 0 {
		return doc, nil
	}
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("invalid JSON document")
	}

	var buf bytes.Buffer
	if err := writeRenamed(&buf, gjson.ParseBytes(doc), rename); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRenamed(buf *bytes.Buffer, v gjson.Result, rename func(string) string) error {
	switch {
	case v.IsObject():
		buf.WriteByte('{')
		first := true
		var err error
		v.ForEach(func(key, value gjson.Result) bool {
			if !first {
				buf.WriteByte(',')
			}
			first = false

			name, mErr := codec.Marshal(rename(key.String()))
			if mErr != nil {
				err = mErr
				return false
			}
			buf.Write(name)
			buf.WriteByte(':')
			if err = writeRenamed(buf, value, rename); err != nil {
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
		buf.WriteByte('}')
	case v.IsArray():
		buf.WriteByte('[')
		for i, item := range v.Array() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeRenamed(buf, item, rename); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		buf.WriteString(v.Raw)
	}
	return nil
}

func snakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

func camelToSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) && runes[i-1] != '_' {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
