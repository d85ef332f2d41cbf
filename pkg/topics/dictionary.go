// Package topics counts keyword and category mentions across stored
// items, bucketed by day.
package topics

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TermSpec declares one tracked keyword. Pattern is an optional
// regular expression; when empty a case-insensitive whole-word
// pattern is generated from the name.
type TermSpec struct {
	Name    string `yaml:"term"`
	Pattern string `yaml:"pattern,omitempty"`
}

// Term is a compiled tracked keyword.
type Term struct {
	Name    string
	Pattern *regexp.Regexp
}

// Hit is one term found in a text.
type Hit struct {
	Category string
	Term     string
}

// Dictionary is an immutable category → terms mapping. Edits mean
// loading a new dictionary and rerunning the aggregator; counts are
// always recomputed from scratch against one dictionary.
type Dictionary struct {
	categories []string
	terms      map[string][]Term
}

// New validates and compiles a dictionary. Every term may belong to
// only one category, every pattern must compile, and at least one
// term must exist.
func New(categories map[string][]TermSpec) (*Dictionary, error) {
	d := &Dictionary{terms: make(map[string][]Term, len(categories))}

	owner := make(map[string]string)
	total := 0
	for _, category := range sortedKeys(categories) {
		specs := categories[category]
		if category == "" {
			return nil, fmt.Errorf("dictionary: empty category name")
		}
		for _, spec := range specs {
			if spec.Name == "" {
				return nil, fmt.Errorf("dictionary: category %q has a term without a name", category)
			}
			name := strings.ToLower(spec.Name)
			if prev, ok := owner[name]; ok {
				return nil, fmt.Errorf("dictionary: term %q in both %q and %q", name, prev, category)
			}
			owner[name] = category

			pattern := spec.Pattern
			if pattern == "" {
				pattern = autoPattern(name)
			}
			if !strings.HasPrefix(pattern, "(?i)") {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("dictionary: term %q: %w", name, err)
			}
			d.terms[category] = append(d.terms[category], Term{Name: name, Pattern: re})
			total++
		}
		if len(specs) > 0 {
			d.categories = append(d.categories, category)
		}
	}
	if total == 0 {
		return nil, fmt.Errorf("dictionary: no terms defined")
	}
	return d, nil
}

// Load reads a dictionary from a YAML file shaped as
// categories: {name: [{term, pattern?}, ...]}.
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary %s: %w", path, err)
	}

	var file struct {
		Categories map[string][]TermSpec `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse dictionary %s: %w", path, err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("dictionary %s: no categories defined", path)
	}
	return New(file.Categories)
}

// Categories returns the category names in sorted order.
func (d *Dictionary) Categories() []string {
	return d.categories
}

// Terms returns the compiled terms of one category.
func (d *Dictionary) Terms(category string) []Term {
	return d.terms[category]
}

// Len is the total number of terms across categories.
func (d *Dictionary) Len() int {
	n := 0
	for _, ts := range d.terms {
		n += len(ts)
	}
	return n
}

// Match reports which terms occur in text. Each term appears at most
// once no matter how often it occurs.
func (d *Dictionary) Match(text string) []Hit {
	var hits []Hit
	for _, category := range d.categories {
		for _, term := range d.terms[category] {
			if term.Pattern.MatchString(text) {
				hits = append(hits, Hit{Category: category, Term: term.Name})
			}
		}
	}
	return hits
}

// autoPattern builds a case-insensitive whole-word pattern from a
// term name. Multi-word names tolerate space, hyphen or nothing
// between words; single words accept a plural s.
func autoPattern(name string) string {
	words := strings.Fields(name)
	if len(words) <= 1 {
		return `\b` + regexp.QuoteMeta(name) + `(s)?\b`
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return `\b` + strings.Join(quoted, `[\s-]?`) + `\b`
}

func sortedKeys(m map[string][]TermSpec) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Builtin is the default tracked vocabulary: the campus abuse
// monitoring categories with their hand-tuned patterns.
func Builtin() *Dictionary {
	d, err := New(builtinCategories())
	if err != nil {
		panic("builtin dictionary invalid: " + err.Error())
	}
	return d
}

func builtinCategories() map[string][]TermSpec {
	return map[string][]TermSpec{
		"race_ethnicity": {
			{Name: "black", Pattern: `\bblack(s)?\b`},
			{Name: "white", Pattern: `\bwhite(s)?\b`},
			{Name: "asian", Pattern: `\basian(s)?\b`},
			{Name: "latino", Pattern: `\blatino(s)?\b|\blatinx\b`},
			{Name: "hispanic", Pattern: `\bhispanic(s)?\b`},
			{Name: "arab", Pattern: `\barab(s)?\b`},
			{Name: "african", Pattern: `\bafrican(s)?\b`},
			{Name: "racism", Pattern: `\bracism\b|\bracist(s)?\b`},
		},
		"countries": {
			{Name: "china", Pattern: `\bchina\b|\bchinese\b`},
			{Name: "india", Pattern: `\bindia\b|\bindian(s)?\b`},
			{Name: "united states", Pattern: `\b(united states|usa|u\.s\.a\.|america|american(s)?)\b`},
			{Name: "korea", Pattern: `\b(south\s+)?korea(n|ns)?\b|\bnorth\s+korea\b`},
			{Name: "mexico", Pattern: `\bmexico\b|\bmexican(s)?\b`},
			{Name: "turkey", Pattern: `\bturkey\b|\bturk(s)?\b`},
			{Name: "russia", Pattern: `\brussia\b|\brussian(s)?\b`},
		},
		"gender_sexuality": {
			{Name: "women", Pattern: `\bwom[ae]n\b|\bwomen\b`},
			{Name: "men", Pattern: `\bmen\b|\bman\b`},
			{Name: "female", Pattern: `\bfemale(s)?\b`},
			{Name: "male", Pattern: `\bmale(s)?\b`},
			{Name: "trans", Pattern: `\btrans(gender|sexual)?\b`},
			{Name: "lgbtq", Pattern: `\blgbt(q|\+)?\b|\bgay\b|\blesbian(s)?\b|\bqueer\b`},
		},
		"profanity": {
			{Name: "fuck", Pattern: `\bfuck(ing|er|s)?\b`},
			{Name: "shit", Pattern: `\bshit(ty|s)?\b`},
			{Name: "bitch", Pattern: `\bbitch(es)?\b`},
			{Name: "asshole", Pattern: `\basshole(s)?\b`},
			{Name: "bastard", Pattern: `\bbastard(s)?\b`},
			{Name: "dumbass", Pattern: `\bdumbass(es)?\b`},
		},
		"academics_finance": {
			{Name: "financial aid", Pattern: `\bfinancial[\s\-]?aid\b`},
			{Name: "scholarship", Pattern: `\bscholarship(s)?\b`},
			{Name: "tuition", Pattern: `\btuition\b`},
			{Name: "fafsa", Pattern: `\bfafsa\b`},
			{Name: "loan", Pattern: `\b(student[\s\-]?)?loan(s)?\b`},
		},
		"safety_crime": {
			{Name: "assault", Pattern: `\bassault(ed|s|ing)?\b`},
			{Name: "robbery", Pattern: `\brobber(y|ies)\b`},
			{Name: "police", Pattern: `\bpolice\b|\bnypd\b`},
			{Name: "crime", Pattern: `\bcrime(s)?\b`},
		},
		"housing": {
			{Name: "housing", Pattern: `\bhousing\b`},
			{Name: "dorm", Pattern: `\bdorm(s)?\b`},
			{Name: "rent", Pattern: `\brent(ed|ing|s)?\b|\brental\b`},
			{Name: "lease", Pattern: `\blease(d|s|ing)?\b`},
			{Name: "landlord", Pattern: `\blandlord(s)?\b`},
		},
	}
}
