package coordinator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"aichef/kitchen"
)

const (
	verdictYes = "YES"
	verdictNo  = "NO"

	// recipeCount is the number of proposals requested once the gate opens.
	recipeCount = 3
)

// extractionSchema describes the only payload the extractor accepts from the model.
func extractionSchema() *jsonschema.Schema {
	nullableString := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{Types: []string{"string", "null"}, Description: desc}
	}
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"ingredients": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"item":   {Type: "string", Description: "ingredient name as the user wrote it"},
						"qty":    nullableString("quantity as the user wrote it"),
						"expiry": nullableString("how soon it expires, e.g. today, soon, far, a date"),
					},
					Required: []string{"item", "qty", "expiry"},
				},
			},
			"preferences": {
				Type:        "array",
				Items:       &jsonschema.Schema{Type: "string"},
				Description: "dietary restrictions, allergies, diets, dislikes",
			},
			"people": nullableString("number of people to cook for"),
		},
		Required: []string{"ingredients", "preferences", "people"},
	}
}

func extractionPrompt() string {
	schema, err := json.MarshalIndent(extractionSchema(), "", "  ")
	if err != nil {
		// The schema is static; this only happens if the jsonschema package changes its encoding.
		panic(fmt.Sprintf("marshal extraction schema: %v", err))
	}

	return `You extract kitchen facts from a single user message.

OUTPUT CONTRACT
Return ONLY one JSON object that validates against this JSON Schema. No explanations, no markdown, no code fences.
` + string(schema) + `

RULES
- ingredients: every food item the user says they have. Keep the name as written. Use null for an unknown qty or expiry.
- preferences: dietary restrictions, allergies, diets or dislikes (e.g. "no eggs", "diabetic").
- people: how many people the user is cooking for, as a string, or null when not mentioned.
- Only report what this message says. Use [] when nothing applies.`
}

// renderPantry writes one line per pantry item.
func renderPantry(items []kitchen.PantryItem) string {
	if len(items) == 0 {
		return "The pantry is empty."
	}
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s (quantity: %s, expiry: %s)", it.Name, orUnknown(it.Quantity), orUnknown(it.Expiry))
	}
	return b.String()
}

func renderConstraints(constraints []string) string {
	if len(constraints) == 0 {
		return "none"
	}
	return strings.Join(constraints, ", ")
}

func renderPartySize(s *kitchen.Session) string {
	if !s.HasPartySize() {
		return "unspecified"
	}
	return s.PartySize()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func verdict(sufficient bool) string {
	if sufficient {
		return verdictYes
	}
	return verdictNo
}

func producerPrompt(s *kitchen.Session, sufficient bool, language string) string {
	return fmt.Sprintf(`You are an expert cooking assistant.

CURRENT PANTRY:
%s

DIETARY CONSTRAINTS: %s
PARTY SIZE: %s
ENOUGH INFORMATION FOR RECIPES: %s

RULES:
1. If ENOUGH INFORMATION FOR RECIPES is NO: do not propose any recipe. Ask targeted questions about what is missing (more ingredients, how many people, dietary needs).
2. If ENOUGH INFORMATION FOR RECIPES is YES: propose exactly %d complete recipes. For each give the name, total time, the ingredients with realistic per-person quantities scaled to the party size, and step-by-step preparation.
3. Prioritise the ingredients closest to their expiry.
4. Never violate the dietary constraints.
5. Reply in %s.`,
		renderPantry(s.Pantry()),
		renderConstraints(s.Constraints()),
		renderPartySize(s),
		verdict(sufficient),
		recipeCount,
		language,
	)
}

func criticPrompt(s *kitchen.Session, language string) string {
	return fmt.Sprintf(`You are a demanding head chef reviewing recipe proposals written by a junior cook.

PANTRY:
%s

DIETARY CONSTRAINTS: %s
PARTY SIZE: %s

The user message contains the proposals. Answer with a first line "Score: N/10" (N from 1 to 10), then a short technical judgment of at most five sentences covering:
- whether the portions are correct for the party size,
- whether any recipe breaks the dietary constraints,
- whether the ingredients closest to expiry were used first.
Reply in %s.`,
		renderPantry(s.Pantry()),
		renderConstraints(s.Constraints()),
		renderPartySize(s),
		language,
	)
}
