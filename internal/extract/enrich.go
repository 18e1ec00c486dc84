package extract

import (
	"context"
	"fmt"
)

// enrichSystemPrompt is the fixed instruction for ingredient enrichment.
const enrichSystemPrompt = `You are a cosmetic ingredient expert. Given an INCI ingredient name,
respond with exactly one JSON object and nothing else, using these keys:
common_name (plain-English name), function (short description),
is_active (boolean), is_fragrance (boolean),
safety_rating (integer 1-5, 5 safest),
comedogenic_rating (integer 0-5, 0 non-comedogenic).
Use null for anything you cannot determine.`

// IngredientEnrichment is the model's metadata for a new ingredient.
// Ratings are raw model output; the caller clamps them into range.
type IngredientEnrichment struct {
	CommonName        *string
	Function          *string
	IsActive          bool
	IsFragrance       bool
	SafetyRating      *int
	ComedogenicRating *int
}

// Enricher asks the model for metadata about an unknown ingredient.
type Enricher struct {
	llm Client
}

// NewEnricher creates an enricher.
func NewEnricher(llm Client) *Enricher {
	return &Enricher{llm: llm}
}

// Enrich fetches metadata for one INCI name. Coercion mirrors product
// extraction: nothing from the model is trusted as well-typed.
func (e *Enricher) Enrich(ctx context.Context, inciName string) (*IngredientEnrichment, Usage, error) {
	prompt := fmt.Sprintf("INCI ingredient name: %s", inciName)

	response, usage, err := e.llm.Complete(ctx, enrichSystemPrompt, prompt)
	if err != nil {
		return nil, usage, fmt.Errorf("enrichment call failed: %w", err)
	}

	payload, err := parseModelJSON(response)
	if err != nil {
		return nil, usage, fmt.Errorf("enrichment response unparseable: %w", err)
	}

	enrichment := &IngredientEnrichment{
		CommonName:        coerceString(payload["common_name"]),
		Function:          coerceString(payload["function"]),
		SafetyRating:      coerceInt(payload["safety_rating"]),
		ComedogenicRating: coerceInt(payload["comedogenic_rating"]),
	}
	if b := coerceBool(payload["is_active"]); b != nil {
		enrichment.IsActive = *b
	}
	if b := coerceBool(payload["is_fragrance"]); b != nil {
		enrichment.IsFragrance = *b
	}

	return enrichment, usage, nil
}
