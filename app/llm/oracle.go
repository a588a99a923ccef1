package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lysyi3m/amplifier/app/models"
)

// MaxTextLength bounds any text the oracle hands back for publishing.
const MaxTextLength = 280

var ErrMalformed = errors.New("malformed oracle output")

// Oracle decides what to do with a candidate and writes reply and post text.
type Oracle struct {
	gen     Generator
	persona string
}

func NewOracle(gen Generator, persona string) *Oracle {
	return &Oracle{gen: gen, persona: persona}
}

// Decide never fails on bad output: anything it cannot parse becomes a
// none decision. Errors are reserved for generator failures.
func (o *Oracle) Decide(ctx context.Context, dc models.DecisionContext) (models.Decision, error) {
	raw, err := o.gen.Generate(ctx, o.system(decideInstruction), decisionPrompt(dc))
	if err != nil {
		return models.Decision{Action: models.ActionNone}, err
	}

	decision, err := ParseDecision(raw)
	if err != nil {
		slog.Warn("Oracle returned malformed decision", "item_id", dc.Item.ID, "error", err)
	}
	return decision, nil
}

// GenerateReply returns an empty string when there is nothing worth saying.
func (o *Oracle) GenerateReply(ctx context.Context, rc models.ReplyContext) (string, error) {
	raw, err := o.gen.Generate(ctx, o.system(replyInstruction), replyPrompt(rc))
	if err != nil {
		return "", err
	}
	return cleanText(raw), nil
}

func (o *Oracle) GeneratePost(ctx context.Context, pc models.PostContext) (string, error) {
	raw, err := o.gen.Generate(ctx, o.system(postInstruction), postPrompt(pc))
	if err != nil {
		return "", err
	}
	return cleanText(raw), nil
}

func (o *Oracle) system(instruction string) string {
	if o.persona == "" {
		return instruction
	}
	return o.persona + "\n\n" + instruction
}

type rawDecision struct {
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
	DraftText string `json:"draft_text"`
	Draft     string `json:"draftText"`
}

// ParseDecision decodes the oracle's JSON verdict. Code fences and
// surrounding prose are tolerated. A missing action or rationale, or an
// unknown action, yields ActionNone together with ErrMalformed.
func ParseDecision(raw string) (models.Decision, error) {
	none := models.Decision{Action: models.ActionNone}

	body := extractJSON(raw)
	if body == "" {
		return none, fmt.Errorf("%w: no JSON object", ErrMalformed)
	}

	var rd rawDecision
	if err := json.Unmarshal([]byte(body), &rd); err != nil {
		return none, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if strings.TrimSpace(rd.Action) == "" || strings.TrimSpace(rd.Rationale) == "" {
		return none, fmt.Errorf("%w: missing action or rationale", ErrMalformed)
	}

	action := models.ParseActionKind(rd.Action)
	if action == models.ActionNone && !strings.EqualFold(strings.TrimSpace(rd.Action), string(models.ActionNone)) {
		return none, fmt.Errorf("%w: unknown action %q", ErrMalformed, rd.Action)
	}

	draft := rd.DraftText
	if draft == "" {
		draft = rd.Draft
	}

	return models.Decision{
		Action:    action,
		Rationale: strings.TrimSpace(rd.Rationale),
		DraftText: cleanText(draft),
	}, nil
}

func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func cleanText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"")
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > MaxTextLength {
		s = strings.TrimSpace(string(runes[:MaxTextLength]))
	}
	return s
}
