package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"aichef"
	"aichef/kitchen"
)

// ExtractionStatus tells apart a usable extraction from the two benign failures the turn absorbs.
type ExtractionStatus int

const (
	ExtractionOK ExtractionStatus = iota
	ExtractionParseError
	ExtractionServiceError
)

func (s ExtractionStatus) String() string {
	switch s {
	case ExtractionOK:
		return "ok"
	case ExtractionParseError:
		return "parse_error"
	case ExtractionServiceError:
		return "service_error"
	default:
		return "invalid"
	}
}

// ExtractionResult is what one extraction call produced. Record is empty unless Status is ExtractionOK.
type ExtractionResult struct {
	Status ExtractionStatus
	Record kitchen.Extraction
	Usage  aichef.Usage
	Err    error
}

// Extractor asks the completion service to turn a user message into a kitchen.Extraction.
type Extractor struct {
	system string
}

func NewExtractor() *Extractor {
	return &Extractor{system: extractionPrompt()}
}

// Extract never fails the turn: service and parse errors are reported in the result.
func (e *Extractor) Extract(ctx context.Context, llm aichef.CompletionClient, text string) ExtractionResult {
	resp, err := llm.Complete(ctx, aichef.CompletionRequest{System: e.system, User: text})
	if err != nil {
		slog.Warn("EXTRACTOR: Completion failed, state unchanged", "error", err)
		return ExtractionResult{Status: ExtractionServiceError, Err: aichef.ClassifyError(err)}
	}

	rec, err := ParsePayload(resp.Text)
	if err != nil {
		slog.Warn("EXTRACTOR: Payload rejected, state unchanged", "error", err, "output_len", len(resp.Text))
		return ExtractionResult{Status: ExtractionParseError, Usage: resp.Usage, Err: err}
	}

	slog.Info("EXTRACTOR: Payload parsed",
		"items", len(rec.Items),
		"constraints", len(rec.Constraints),
		"people", rec.People,
	)
	return ExtractionResult{Status: ExtractionOK, Record: rec, Usage: resp.Usage}
}

var errEmptyPayload = errors.New("empty extraction payload")

type wireIngredient struct {
	Item     any `json:"item"`
	Name     any `json:"name"`
	Qty      any `json:"qty"`
	Quantity any `json:"quantity"`
	Expiry   any `json:"expiry"`
}

type wirePayload struct {
	Ingredients []json.RawMessage `json:"ingredients"`
	Preferences []any             `json:"preferences"`
	People      any               `json:"people"`
}

// ParsePayload strips common wrapping around the model output and decodes the extraction payload,
// coercing loosely typed values into strings.
func ParsePayload(text string) (kitchen.Extraction, error) {
	body := stripWrapping(text)
	if body == "" {
		return kitchen.Extraction{}, errEmptyPayload
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var wp wirePayload
	if err := dec.Decode(&wp); err != nil {
		return kitchen.Extraction{}, fmt.Errorf("decode extraction payload: %w", err)
	}

	var rec kitchen.Extraction
	for _, raw := range wp.Ingredients {
		if it, ok := decodeIngredient(raw); ok {
			rec.Items = append(rec.Items, it)
		}
	}
	for _, p := range wp.Preferences {
		if s := kitchen.Known(scalarString(p)); s != "" {
			rec.Constraints = append(rec.Constraints, s)
		}
	}
	rec.People = kitchen.Known(scalarString(wp.People))

	return rec, nil
}

// decodeIngredient accepts the contract shape and a bare string naming the item.
func decodeIngredient(raw json.RawMessage) (kitchen.ItemUpdate, bool) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return kitchen.ItemUpdate{Name: strings.TrimSpace(name)}, strings.TrimSpace(name) != ""
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var wi wireIngredient
	if err := dec.Decode(&wi); err != nil {
		return kitchen.ItemUpdate{}, false
	}

	it := kitchen.ItemUpdate{
		Name:     firstKnown(wi.Item, wi.Name),
		Quantity: firstKnown(wi.Qty, wi.Quantity),
		Expiry:   kitchen.Known(scalarString(wi.Expiry)),
	}
	return it, it.Name != ""
}

func firstKnown(vals ...any) string {
	for _, v := range vals {
		if s := kitchen.Known(scalarString(v)); s != "" {
			return s
		}
	}
	return ""
}

// scalarString renders strings and numbers; anything else is treated as absent.
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// stripWrapping removes code fences and any prose around the outermost JSON object.
func stripWrapping(text string) string {
	s := strings.TrimSpace(text)
	for _, fence := range []string{"```json", "```JSON", "```"} {
		s = strings.ReplaceAll(s, fence, "")
	}
	s = strings.TrimSpace(s)

	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
