// Package normalize prepares raw social-media text for classification
// and keyword matching. Cleaning is deterministic and does no I/O, so
// the same stored item always yields the same normalized text.
package normalize

import (
	"html"
	"regexp"
	"strings"

	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/item"
)

// Platform sentinels left behind when a user or a moderator removes
// content. Matched against the trimmed, lowercased body.
const (
	SentinelDeleted = "[deleted]"
	SentinelRemoved = "[removed]"
)

var (
	urlRE        = regexp.MustCompile(`http\S+|www\S+`)
	redditUserRE = regexp.MustCompile(`u/[\w-]+`)
	atUserRE     = regexp.MustCompile(`@[\w-]+`)
	mdLinkRE     = regexp.MustCompile(`\[.*?\]\(.*?\)`)
	emphasisRE   = regexp.MustCompile("[*_~`]+")
	spaceRE      = regexp.MustCompile(`\s+`)
)

// deobfuscator undoes the most common single-character substitutions
// used to dodge keyword filters. Applied to scorer input only; stored
// text keeps the original spelling.
var deobfuscator = strings.NewReplacer(
	"$", "s",
	"@", "a",
	"!", "i",
	"1", "l",
	"0", "o",
	"3", "e",
	"*", "a",
)

// Flags marks degenerate item states detected during normalization.
type Flags struct {
	Deleted bool
	Removed bool
	Empty   bool
}

// Degenerate reports whether the item should skip scoring entirely.
func (f Flags) Degenerate() bool {
	return f.Deleted || f.Removed || f.Empty
}

// Result is the normalized form of one item.
type Result struct {
	Text  string
	Flags Flags
}

// Clean strips noise from raw text in a fixed order: URLs, u/ and @
// mentions (replaced with a <USER> token), HTML entities, markdown
// links, emphasis markers and blockquote prefixes. Output is
// lowercased with whitespace collapsed. URLs go first, so a markdown
// link pointing at the web loses its target before the link pattern
// can see it and keeps its bracketed label.
func Clean(text string) string {
	t := strings.TrimSpace(text)
	t = urlRE.ReplaceAllString(t, "")
	t = redditUserRE.ReplaceAllString(t, "<USER>")
	t = atUserRE.ReplaceAllString(t, "<USER>")
	t = html.UnescapeString(t)
	t = mdLinkRE.ReplaceAllString(t, "")
	t = emphasisRE.ReplaceAllString(t, "")
	t = strings.ReplaceAll(t, "> ", "")
	t = spaceRE.ReplaceAllString(t, " ")
	return strings.ToLower(strings.TrimSpace(t))
}

// Sentinel checks a raw body for the platform deletion markers.
func Sentinel(body string) (deleted, removed bool) {
	s := strings.ToLower(strings.TrimSpace(body))
	return s == SentinelDeleted, s == SentinelRemoved
}

// Deobfuscate maps leetspeak substitutions back to letters so the
// scorer sees "$lur" as "slur". Meant for cleaned text, where intact
// mentions have already become <USER> tokens.
func Deobfuscate(s string) string {
	return deobfuscator.Replace(s)
}

// Normalize extracts and cleans the classifiable text of an item.
// Posts combine title and body; comments use the body alone. A body
// holding a deletion sentinel contributes nothing to the text but a
// post keeps its title, so a removed post can still be inspected by
// what it was titled. Empty is only set for items that are blank
// without being deleted or removed.
func Normalize(it item.Item) Result {
	deleted, removed := Sentinel(it.Body)

	var raw string
	switch it.Type {
	case item.TypePost:
		if deleted || removed {
			raw = it.Title
		} else {
			raw = it.Title + " " + it.Body
		}
	default:
		if deleted || removed {
			raw = ""
		} else {
			raw = it.Body
		}
	}

	text := Clean(raw)
	return Result{
		Text: text,
		Flags: Flags{
			Deleted: deleted,
			Removed: removed,
			Empty:   !deleted && !removed && text == "",
		},
	}
}
