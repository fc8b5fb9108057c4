package intent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/shopmate/internal/catalog"
	"github.com/noah-isme/shopmate/internal/genai"
)

// ErrNoObject is returned when model output contains no JSON object.
var ErrNoObject = errors.New("intent: no JSON object in model output")

type modelFilter struct {
	Brand    any `json:"brand"`
	Color    any `json:"color"`
	Style    any `json:"style"`
	Category any `json:"category"`
	Tag      any `json:"tag"`
	MinPrice any `json:"minPrice"`
	MaxPrice any `json:"maxPrice"`
}

// ParseModelOutput reads a Filter from model text. Markdown fences and any prose
// around the outermost {...} are ignored. Prices may be numbers or strings; a
// missing, zero, or unparseable price leaves that bound open.
func ParseModelOutput(text string) (Filter, error) {
	body := genai.StripFence(text)
	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start < 0 || end <= start {
		return Filter{}, ErrNoObject
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(body[start : end+1])))
	dec.UseNumber()
	var raw modelFilter
	if err := dec.Decode(&raw); err != nil {
		return Filter{}, fmt.Errorf("intent: decode model output: %w", err)
	}
	f := Filter{
		Brand:    textField(raw.Brand),
		Color:    textField(raw.Color),
		Style:    textField(raw.Style),
		Category: textField(raw.Category),
		Tag:      textField(raw.Tag),
	}
	if v := catalog.ParsePrice(raw.MinPrice); v.IsPositive() {
		f.MinPrice = price(v)
	}
	if v := catalog.ParsePrice(raw.MaxPrice); v.IsPositive() {
		f.MaxPrice = price(v)
	}
	return f, nil
}

func textField(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "null", "none", "n/a":
		return ""
	}
	return s
}
