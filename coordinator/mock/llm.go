package mock

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"aichef"
)

var (
	peoplePattern = regexp.MustCompile(`(?i)(?:for|per|siamo in|we are)\s+(\d{1,2})|(\d{1,2})\s+(?:people|persons|persone|ospiti|guests)`)
	splitPattern  = regexp.MustCompile(`(?i)\s*(?:,|;|\s+and\s+|\s+e\s+)\s*`)
	leadPattern   = regexp.MustCompile(`(?i)^(?:i have|i've got|ho anche|ho|abbiamo|also)\s+`)
)

// LLMClient is an offline completion client. Replies are deterministic and depend only on which agent is
// asking, recognised from its system prompt, so the whole pipeline can be demoed without network access.
type LLMClient struct {
	counter *aichef.TokenCounter
}

func NewLLMClient() *LLMClient {
	return &LLMClient{counter: aichef.NewTokenCounter()}
}

func (m *LLMClient) Complete(ctx context.Context, req aichef.CompletionRequest) (aichef.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return aichef.CompletionResponse{}, aichef.ClassifyError(err)
	}
	slog.Info("LLM_CLIENT: Invoked", "history_len", len(req.History))

	var text string
	switch {
	case strings.HasPrefix(req.System, "You extract"):
		text = extract(req.User)
		slog.Info("LLM_CLIENT: Returning extraction payload")
	case strings.Contains(req.System, "ENOUGH INFORMATION FOR RECIPES: YES"):
		text = proposals
		slog.Info("LLM_CLIENT: Returning recipe proposals")
	case strings.Contains(req.System, "ENOUGH INFORMATION FOR RECIPES: NO"):
		text = questions
		slog.Info("LLM_CLIENT: Returning clarifying questions")
	case strings.Contains(req.System, "Score: N/10"):
		text = review
		slog.Info("LLM_CLIENT: Returning review")
	default:
		text = "Ok."
	}

	return aichef.CompletionResponse{Text: text, Usage: m.counter.Estimate(req, text)}, nil
}

type payload struct {
	Ingredients []ingredient `json:"ingredients"`
	Preferences []string     `json:"preferences"`
	People      *string      `json:"people"`
}

type ingredient struct {
	Item   string  `json:"item"`
	Qty    *string `json:"qty"`
	Expiry *string `json:"expiry"`
}

// extract understands a plain list of ingredients and a party size such as "for 4" or "siamo in 4".
func extract(text string) string {
	p := payload{Ingredients: []ingredient{}, Preferences: []string{}}

	body := text
	if m := peoplePattern.FindStringSubmatchIndex(text); m != nil {
		var n string
		if m[2] >= 0 {
			n = text[m[2]:m[3]]
		} else {
			n = text[m[4]:m[5]]
		}
		p.People = &n
		body = text[:m[0]] + text[m[1]:]
	}

	body = strings.Trim(strings.TrimSpace(body), ".!?")
	for _, part := range splitPattern.Split(body, -1) {
		if item := leadPattern.ReplaceAllString(strings.TrimSpace(part), ""); item != "" {
			p.Ingredients = append(p.Ingredients, ingredient{Item: item})
		}
	}

	b, err := json.Marshal(p)
	if err != nil {
		slog.Error("Failed to marshal extraction payload", "error", err)
		return "{}"
	}
	return string(b)
}

const questions = `Per proporti delle ricette mi servono ancora alcune informazioni:
1. Quali altri ingredienti hai in dispensa?
2. Per quante persone cucini?
3. Ci sono allergie o restrizioni alimentari?`

const proposals = `1. Frittata di verdure (20 minuti)
Ingredienti: uova, verdure di stagione, olio, sale.
Preparazione: sbatti le uova, salta le verdure in padella, unisci e cuoci a fuoco basso.

2. Pasta al pomodoro (25 minuti)
Ingredienti: pasta, pomodori, aglio, basilico.
Preparazione: prepara il sugo con aglio e pomodori, cuoci la pasta al dente e manteca.

3. Crespelle salate (30 minuti)
Ingredienti: farina, latte, uova, formaggio.
Preparazione: prepara la pastella, cuoci le crespelle, farcisci e passa in forno.`

const review = `Score: 7/10
Le porzioni sono plausibili per il numero di persone indicato. Nessuna ricetta viola i vincoli dichiarati.
Gli ingredienti in scadenza potrebbero essere valorizzati meglio nella prima proposta.`
