package fetch

import (
	"context"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"curator/internal/logging"
	"curator/internal/services"
	"curator/internal/state"
)

// Discover reads the configured bookmarks export and returns one candidate
// item per usable link. The orchestrator drops IDs it already knows, so
// Discover does not consult the store.
func (f *Fetcher) Discover(ctx context.Context) ([]*state.ItemState, error) {
	path := strings.TrimSpace(f.cfg.BookmarksFile)
	if path == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "fetch", "discover", "bookmarks file missing", err)
		}
		return nil, services.Wrap(services.ErrTransient, "fetch", "discover", "read bookmarks file", err)
	}

	var urls []string
	if looksLikeHTML(raw) {
		urls, err = bookmarkURLsFromHTML(raw)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "fetch", "discover", "parse bookmarks export", err)
		}
	} else {
		urls = bookmarkURLsFromText(raw)
	}

	seen := make(map[string]struct{}, len(urls))
	items := make([]*state.ItemState, 0, len(urls))
	for _, link := range urls {
		id := itemIDFromURL(link)
		if id == "" {
			f.logger.Debug("bookmark link skipped",
				logging.String("url", link),
				logging.String(logging.FieldEventType, "bookmark_skipped"),
			)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		items = append(items, &state.ItemState{ID: id, SourceURL: link})
	}
	return items, nil
}

func looksLikeHTML(raw []byte) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "<")
}

func bookmarkURLsFromHTML(raw []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return nil, err
	}
	var urls []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			urls = append(urls, href)
		}
	})
	return urls, nil
}

// bookmarkURLsFromText accepts one URL per line; blank lines and lines
// starting with # are ignored.
func bookmarkURLsFromText(raw []byte) []string {
	var urls []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls
}
