package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"curator/internal/logging"
	"curator/internal/services"
	"curator/internal/state"
	"curator/internal/textutil"
)

const (
	maxBodyBytes = 4 << 20
	maxLinks     = 32
	maxMedia     = 16
	maxTextRunes = 8192
)

// CachePost downloads the item's source page, extracts its content into the
// payload and keeps a raw snapshot on disk. It is the phase function for the
// cache phase.
func (f *Fetcher) CachePost(ctx context.Context, item *state.ItemState) error {
	source := strings.TrimSpace(item.SourceURL)
	if source == "" {
		return services.Wrap(services.ErrValidation, "cache", "get", "item has no source url", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "cache", "get", "build request", err)
	}
	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrTransient, "cache", "get", "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return services.Wrap(services.ErrNotFound, "cache", "get", "post no longer available: http "+resp.Status, nil)
	case resp.StatusCode >= http.StatusBadRequest:
		return services.Wrap(services.ErrTransient, "cache", "get", "unexpected status: http "+resp.Status, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return services.Wrap(services.ErrTransient, "cache", "get", "read body", err)
	}

	payload, title, err := extractPayload(body, source)
	if err != nil {
		return services.Wrap(services.ErrValidation, "cache", "extract", "parse page", err)
	}
	payload.FetchedAt = time.Now().UTC()

	if err := f.writeSnapshot(item.ID, body); err != nil {
		// The snapshot is a debugging aid; losing it must not fail the phase.
		f.logger.Warn("page snapshot not written",
			logging.String(logging.FieldItemID, item.ID),
			logging.Error(err),
		)
	}

	item.Payload = payload
	if title != "" {
		item.Title = title
	}
	return nil
}

func (f *Fetcher) writeSnapshot(id string, body []byte) error {
	if f.cacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.cacheDir, id+".html"), body, 0o644)
}

func extractPayload(body []byte, source string) (*state.Payload, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}

	title := textutil.FirstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		doc.Find("title").First().Text(),
	)
	title = textutil.NormalizeWhitespace(title)

	author := textutil.FirstNonEmpty(
		metaContent(doc, `meta[name="author"]`),
		metaContent(doc, `meta[property="article:author"]`),
		metaContent(doc, `meta[property="og:site_name"]`),
	)

	text := textutil.FirstNonEmpty(
		metaContent(doc, `meta[property="og:description"]`),
		metaContent(doc, `meta[name="description"]`),
		doc.Find("article").First().Text(),
		doc.Find("main").First().Text(),
	)
	text = textutil.Truncate(textutil.NormalizeWhitespace(text), maxTextRunes)

	payload := &state.Payload{
		Author: author,
		Text:   text,
		Links:  extractLinks(doc, source),
		Media:  extractMedia(doc),
	}
	return payload, title, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

// extractLinks collects outbound links from the main content region, falling
// back to the whole document when the page has no article element.
func extractLinks(doc *goquery.Document, source string) []string {
	region := doc.Find("article").First()
	if region.Length() == 0 {
		region = doc.Find("body").First()
	}
	seen := map[string]struct{}{source: {}}
	var links []string
	region.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			return true
		}
		if _, dup := seen[href]; dup {
			return true
		}
		seen[href] = struct{}{}
		links = append(links, href)
		return len(links) < maxLinks
	})
	return links
}

func extractMedia(doc *goquery.Document) []state.MediaRef {
	seen := make(map[string]struct{})
	var media []state.MediaRef
	add := func(raw, kind string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || len(media) >= maxMedia {
			return
		}
		parsed, err := url.Parse(raw)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return
		}
		if _, dup := seen[raw]; dup {
			return
		}
		seen[raw] = struct{}{}
		media = append(media, state.MediaRef{URL: raw, Kind: kind})
	}

	add(metaContent(doc, `meta[property="og:image"]`), "image")
	add(metaContent(doc, `meta[property="og:video"]`), "video")
	add(metaContent(doc, `meta[property="og:video:url"]`), "video")

	region := doc.Find("article").First()
	if region.Length() == 0 {
		region = doc.Selection
	}
	region.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		add(src, "image")
	})
	region.Find("video source[src], video[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		add(src, "video")
	})
	return media
}
