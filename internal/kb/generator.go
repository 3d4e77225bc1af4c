package kb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"curator/internal/logging"
	"curator/internal/services"
	"curator/internal/state"
	"curator/internal/textutil"
)

// Generator renders markdown entries into the knowledge base directory.
type Generator struct {
	dir    string
	logger *slog.Logger
}

// NewGenerator builds a generator rooted at the knowledge base directory.
func NewGenerator(dir string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{dir: dir, logger: logger}
}

// Generate renders the item's markdown entry under
// <kb>/<category>/<subcategory>/<slug>/README.md and records the entry path
// on the item. It is the phase function for the generate phase.
func (g *Generator) Generate(_ context.Context, item *state.ItemState) error {
	if item.Payload == nil {
		return services.Wrap(services.ErrValidation, "generate", "render", "item has no cached payload", nil)
	}
	category, subcategory, ok := splitCategoryPath(item.CategoryPath)
	if !ok {
		return services.Wrap(services.ErrValidation, "generate", "render", "item has no category path", nil)
	}

	slug := Slugify(item.Title)
	if slug == "" {
		slug = Slugify(item.ID)
	}
	if slug == "" {
		return services.Wrap(services.ErrValidation, "generate", "render", "no usable slug for item", nil)
	}

	relDir := filepath.Join(category, subcategory, slug)
	entryDir := filepath.Join(g.dir, relDir)
	if err := os.MkdirAll(entryDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "generate", "render", "create entry directory", err)
	}
	content := renderEntry(item)
	entryPath := filepath.Join(entryDir, "README.md")
	if err := os.WriteFile(entryPath, []byte(content), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "generate", "render", "write entry", err)
	}

	item.ArtifactPath = filepath.Join(relDir, "README.md")
	g.logger.Debug("entry generated",
		logging.String(logging.FieldItemID, item.ID),
		logging.String("artifact", item.ArtifactPath),
	)
	return nil
}

func splitCategoryPath(path string) (string, string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func renderEntry(item *state.ItemState) string {
	var b strings.Builder
	title := textutil.FirstNonEmpty(item.Title, item.ID)
	fmt.Fprintf(&b, "# %s\n\n", title)
	if item.SourceURL != "" {
		fmt.Fprintf(&b, "Source: <%s>\n\n", item.SourceURL)
	}
	payload := item.Payload
	if payload.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n\n", payload.Author)
	}
	if !payload.FetchedAt.IsZero() {
		fmt.Fprintf(&b, "Captured: %s\n\n", payload.FetchedAt.Format("2006-01-02"))
	}
	if payload.Text != "" {
		fmt.Fprintf(&b, "%s\n", payload.Text)
	}
	if len(payload.Media) > 0 {
		b.WriteString("\n## Media\n\n")
		for _, ref := range payload.Media {
			desc := textutil.FirstNonEmpty(ref.Description, ref.Kind, "attachment")
			fmt.Fprintf(&b, "- [%s](%s)\n", desc, ref.URL)
		}
	}
	if len(payload.Links) > 0 {
		b.WriteString("\n## Links\n\n")
		for _, link := range payload.Links {
			fmt.Fprintf(&b, "- <%s>\n", link)
		}
	}
	return b.String()
}
