package interpret

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"curator/internal/kb"
	"curator/internal/llm"
	"curator/internal/logging"
	"curator/internal/services"
	"curator/internal/state"
	"curator/internal/textutil"
)

// Completer is the slice of the LLM client the interpreter needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Interpreter runs the model-driven phases over cached payloads.
type Interpreter struct {
	client Completer
	logger *slog.Logger
}

// New builds an interpreter over the given completion client.
func New(client Completer, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Interpreter{client: client, logger: logger}
}

// DescribeMedia asks the model for a one-line description of every media
// attachment that does not have one yet. Items without media succeed
// immediately.
func (in *Interpreter) DescribeMedia(ctx context.Context, item *state.ItemState) error {
	if item.Payload == nil {
		return services.Wrap(services.ErrValidation, "media", "describe", "item has no cached payload", nil)
	}
	pending := pendingMedia(item.Payload)
	if len(pending) == 0 {
		return nil
	}

	content, err := in.client.CompleteJSON(ctx, mediaDescriptionPrompt, mediaUserPrompt(item.Payload, pending))
	if err != nil {
		return err
	}
	var parsed struct {
		Descriptions []string `json:"descriptions"`
	}
	if err := llm.DecodeModelJSON(content, &parsed); err != nil {
		return services.Wrap(services.ErrValidation, "media", "describe", "malformed model output", err)
	}
	if len(parsed.Descriptions) != len(pending) {
		return services.Wrap(services.ErrValidation, "media", "describe",
			fmt.Sprintf("model returned %d descriptions for %d attachments", len(parsed.Descriptions), len(pending)), nil)
	}
	for i, idx := range pending {
		item.Payload.Media[idx].Description = textutil.NormalizeWhitespace(parsed.Descriptions[i])
	}
	return nil
}

func pendingMedia(payload *state.Payload) []int {
	var pending []int
	for i, ref := range payload.Media {
		if strings.TrimSpace(ref.Description) == "" {
			pending = append(pending, i)
		}
	}
	return pending
}

func mediaUserPrompt(payload *state.Payload, pending []int) string {
	var b strings.Builder
	b.WriteString("Post text:\n")
	b.WriteString(textutil.Truncate(payload.Text, 2000))
	b.WriteString("\n\nAttachments:\n")
	for i, idx := range pending {
		ref := payload.Media[idx]
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, ref.Kind, ref.URL)
	}
	return b.String()
}

// Categorize asks the model for a two-level category and a short title, then
// normalizes them into the item's category path.
func (in *Interpreter) Categorize(ctx context.Context, item *state.ItemState) error {
	if item.Payload == nil {
		return services.Wrap(services.ErrValidation, "categorize", "classify", "item has no cached payload", nil)
	}

	content, err := in.client.CompleteJSON(ctx, categorizationPrompt, categorizeUserPrompt(item))
	if err != nil {
		return err
	}
	var parsed struct {
		Category    string `json:"category"`
		Subcategory string `json:"subcategory"`
		Title       string `json:"title"`
	}
	if err := llm.DecodeModelJSON(content, &parsed); err != nil {
		return services.Wrap(services.ErrValidation, "categorize", "classify", "malformed model output", err)
	}

	category := kb.Slugify(parsed.Category)
	subcategory := kb.Slugify(parsed.Subcategory)
	if category == "" || subcategory == "" {
		return services.Wrap(services.ErrValidation, "categorize", "classify",
			fmt.Sprintf("unusable category %q/%q", parsed.Category, parsed.Subcategory), nil)
	}

	item.CategoryPath = category + "/" + subcategory
	if title := textutil.NormalizeWhitespace(parsed.Title); title != "" {
		item.Title = title
	}
	in.logger.Debug("item categorized",
		logging.String(logging.FieldItemID, item.ID),
		logging.String("category_path", item.CategoryPath),
	)
	return nil
}

func categorizeUserPrompt(item *state.ItemState) string {
	var b strings.Builder
	if item.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", item.Title)
	}
	if item.Payload.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", item.Payload.Author)
	}
	b.WriteString("Text:\n")
	b.WriteString(textutil.Truncate(item.Payload.Text, 4000))
	descriptions := describedMedia(item.Payload)
	if len(descriptions) > 0 {
		b.WriteString("\nMedia:\n")
		for _, d := range descriptions {
			b.WriteString("- " + d + "\n")
		}
	}
	return b.String()
}

func describedMedia(payload *state.Payload) []string {
	var out []string
	for _, ref := range payload.Media {
		if desc := strings.TrimSpace(ref.Description); desc != "" {
			out = append(out, desc)
		}
	}
	return out
}
