package kb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"curator/internal/services"
	"curator/internal/state"
	"curator/internal/textutil"
)

// RenderRootIndex rewrites the knowledge base's top-level README with a table
// of contents grouped by category. It is used as the run finalizer, so it
// reflects whatever entries exist at the end of each run.
func (g *Generator) RenderRootIndex(_ context.Context, items map[string]*state.ItemState) error {
	grouped := make(map[string][]*state.ItemState)
	for _, item := range items {
		if item.ArtifactPath == "" || item.CategoryPath == "" {
			continue
		}
		grouped[item.CategoryPath] = append(grouped[item.CategoryPath], item)
	}

	paths := make([]string, 0, len(grouped))
	for path := range grouped {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	b.WriteString("# Knowledge Base\n")
	for _, path := range paths {
		fmt.Fprintf(&b, "\n## %s\n\n", path)
		entries := grouped[path]
		sort.Slice(entries, func(i, j int) bool {
			return entryLabel(entries[i]) < entryLabel(entries[j])
		})
		for _, item := range entries {
			fmt.Fprintf(&b, "- [%s](%s)\n", entryLabel(item), filepath.ToSlash(item.ArtifactPath))
		}
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "finalize", "index", "create kb directory", err)
	}
	if err := os.WriteFile(filepath.Join(g.dir, "README.md"), []byte(b.String()), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "finalize", "index", "write root index", err)
	}
	return nil
}

func entryLabel(item *state.ItemState) string {
	return textutil.FirstNonEmpty(item.Title, item.ID)
}
