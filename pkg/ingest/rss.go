package ingest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/logging"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/metrics"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/item"
)

var htmlTagRE = regexp.MustCompile(`<[^>]+>`)

// ImportRSS loads a saved subreddit listing file (reddit serves Atom
// at /r/<sub>/new/.rss). Every entry becomes a post; feeds carry no
// comments and no scores.
func (im *Importer) ImportRSS(ctx context.Context, path, subreddit string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open feed %s: %w", path, err)
	}
	defer f.Close()

	feed, err := gofeed.NewParser().Parse(f)
	if err != nil {
		return Summary{}, fmt.Errorf("parse feed %s: %w", path, err)
	}

	runID, err := im.store.BeginRun(ctx, "import")
	if err != nil {
		return Summary{}, fmt.Errorf("begin import run: %w", err)
	}
	sum := Summary{RunID: runID}

	fail := func(err error) (Summary, error) {
		if ferr := im.store.FinishRun(ctx, runID, sum.Imported, sum.Skipped+sum.Duplicates, err); ferr != nil {
			im.log.WithError(ferr).Warn("finish import run")
		}
		return sum, err
	}

	for _, entry := range feed.Items {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		sum.Read++

		id := entryID(entry)
		if id == "" {
			sum.Skipped++
			im.log.WithFields(logging.Fields{"file": path, "title": entry.Title}).Warn("skip entry without id")
			continue
		}

		published := time.Now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		body := entry.Content
		if body == "" {
			body = entry.Description
		}

		author := ""
		if entry.Author != nil {
			author = strings.TrimPrefix(entry.Author.Name, "/u/")
		}

		sub := subreddit
		if sub == "" {
			sub = subredditFromLink(link)
		}

		it := item.Item{
			ID:         id,
			Type:       item.TypePost,
			Author:     author,
			CreatedUTC: published.Unix(),
			Title:      entry.Title,
			Body:       stripTags(body),
			URL:        link,
			Permalink:  permalinkFromLink(link),
			Subreddit:  sub,
			Timestamp:  published.Format(time.RFC3339),
		}
		env := item.NewEnvelope(&it)
		it = env.Item()

		inserted, err := im.store.InsertItem(ctx, &it)
		if err != nil {
			return fail(fmt.Errorf("insert post %s: %w", it.ID, err))
		}
		if inserted {
			sum.Imported++
			metrics.ItemsImported.WithLabelValues(string(item.TypePost)).Inc()
		} else {
			sum.Duplicates++
		}
	}

	if err := im.store.FinishRun(ctx, runID, sum.Imported, sum.Skipped+sum.Duplicates, nil); err != nil {
		return sum, fmt.Errorf("finish import run: %w", err)
	}
	im.log.WithFields(logging.Fields{
		"run_id":     runID,
		"file":       path,
		"read":       sum.Read,
		"imported":   sum.Imported,
		"duplicates": sum.Duplicates,
		"skipped":    sum.Skipped,
	}).Info("rss import finished")
	return sum, nil
}

// entryID extracts the base36 id from a reddit fullname like t3_abc123.
// Non-reddit feeds fall back to the GUID, then the link, verbatim.
func entryID(entry *gofeed.Item) string {
	id := entry.GUID
	if id == "" {
		id = entry.Link
	}
	for _, prefix := range []string{"t1_", "t3_"} {
		if strings.HasPrefix(id, prefix) {
			return strings.TrimPrefix(id, prefix)
		}
	}
	return id
}

func subredditFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "r" {
		return parts[1]
	}
	return ""
}

func permalinkFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Path
}

// stripTags flattens the rendered-HTML bodies reddit puts in feed
// entries down to plain text.
func stripTags(s string) string {
	s = htmlTagRE.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}
