package analyzer

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

const noTitle = "No title"

// Analyzer inspects page markup and scores its on-page SEO signals. It holds
// no per-call state and is safe for concurrent use.
type Analyzer struct {
	parser Parser
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithParser replaces the default goquery-backed parser
func WithParser(p Parser) Option {
	return func(a *Analyzer) {
		a.parser = p
	}
}

// New creates a new Analyzer instance
func New(opts ...Option) *Analyzer {
	a := &Analyzer{parser: GoqueryParser{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze derives the SEO assessment of one page. It never fails: absent
// elements are reported as missing and the score is clamped at zero.
func (a *Analyzer) Analyze(pageURL, html string) PageAnalysis {
	doc := a.parser.Parse(html)

	issues := []SeoIssue{}
	penalty := 0
	add := func(issue SeoIssue, points int) {
		issues = append(issues, issue)
		penalty += points
	}

	// Title
	titleEl, hasTitle := doc.FirstElement("title")
	var title *string
	if hasTitle {
		t := strings.TrimSpace(titleEl.TextContent())
		title = &t
	}
	if issue, points, ok := checkTitle(title); ok {
		add(issue, points)
	}

	// Meta description
	description := metaDescription(doc)
	if issue, points, ok := checkMetaDescription(description); ok {
		add(issue, points)
	}

	// Headings
	h1s := doc.AllElements("h1")
	h1Texts := make([]string, 0, len(h1s))
	for _, h := range h1s {
		h1Texts = append(h1Texts, strings.TrimSpace(h.TextContent()))
	}
	if issue, points, ok := checkH1(len(h1s)); ok {
		add(issue, points)
	}

	// Images
	missingAlt := imagesWithoutAlt(doc)
	if issue, points, ok := checkImages(len(missingAlt)); ok {
		add(issue, points)
	}

	score := baseScore - penalty
	if score < 0 {
		score = 0
	}

	firstH1 := ""
	if len(h1Texts) > 0 {
		firstH1 = h1Texts[0]
	}

	return PageAnalysis{
		URL:     pageURL,
		Title:   displayTitle(title, firstH1, pageURL),
		Issues:  issues,
		Score:   score,
		Crawled: true,
		SeoDetails: SeoDetails{
			Title:           title,
			MetaDescription: description,
			H1Tags: []H1Tag{{
				Text:  strings.Join(h1Texts, ", "),
				Count: len(h1s),
			}},
			ImagesWithoutAlt: missingAlt,
		},
	}
}

// TextLength counts characters the way every length threshold does
func TextLength(s string) int {
	return utf8.RuneCountInString(s)
}

func checkTitle(title *string) (SeoIssue, int, bool) {
	if title == nil || *title == "" {
		return SeoIssue{
			Type:     IssueError,
			Category: CategoryTitle,
			Message:  "Missing title tag",
			Details:  "Every page should have a unique title tag describing its content",
		}, penaltyMissingTitle, true
	}

	length := TextLength(*title)
	switch {
	case length > TitleMaxLength:
		return SeoIssue{
			Type:     IssueWarning,
			Category: CategoryTitle,
			Message:  "Title tag too long",
			Details:  fmt.Sprintf("Title is %d characters (recommended: %d-%d)", length, TitleMinLength, TitleMaxLength),
		}, penaltyLongTitle, true
	case length < TitleMinLength:
		return SeoIssue{
			Type:     IssueWarning,
			Category: CategoryTitle,
			Message:  "Title tag too short",
			Details:  fmt.Sprintf("Title is %d characters (recommended: %d-%d)", length, TitleMinLength, TitleMaxLength),
		}, penaltyShortTitle, true
	}
	return SeoIssue{}, 0, false
}

func checkMetaDescription(description *string) (SeoIssue, int, bool) {
	if description == nil || *description == "" {
		return SeoIssue{
			Type:     IssueError,
			Category: CategoryMetaDescription,
			Message:  "Missing meta description",
			Details:  "Add a meta description to control the snippet shown in search results",
		}, penaltyMissingMeta, true
	}

	length := TextLength(*description)
	switch {
	case length > MetaMaxLength:
		return SeoIssue{
			Type:     IssueWarning,
			Category: CategoryMetaDescription,
			Message:  "Meta description too long",
			Details:  fmt.Sprintf("Meta description is %d characters (recommended: %d-%d)", length, MetaMinLength, MetaMaxLength),
		}, penaltyLongMeta, true
	case length < MetaMinLength:
		return SeoIssue{
			Type:     IssueWarning,
			Category: CategoryMetaDescription,
			Message:  "Meta description too short",
			Details:  fmt.Sprintf("Meta description is %d characters (recommended: %d-%d)", length, MetaMinLength, MetaMaxLength),
		}, penaltyShortMeta, true
	}
	return SeoIssue{}, 0, false
}

func checkH1(count int) (SeoIssue, int, bool) {
	switch {
	case count == 0:
		return SeoIssue{
			Type:     IssueError,
			Category: CategoryH1,
			Message:  "Missing H1 tag",
			Details:  "Each page should have exactly one H1 heading",
		}, penaltyMissingH1, true
	case count > 1:
		return SeoIssue{
			Type:     IssueWarning,
			Category: CategoryH1,
			Message:  "Multiple H1 tags found",
			Details:  fmt.Sprintf("Found %d H1 tags, each page should have exactly one", count),
		}, penaltyMultipleH1, true
	}
	return SeoIssue{}, 0, false
}

func checkImages(missing int) (SeoIssue, int, bool) {
	if missing == 0 {
		return SeoIssue{}, 0, false
	}
	points := missing * penaltyPerImage
	if points > maxImagesPenalty {
		points = maxImagesPenalty
	}
	return SeoIssue{
		Type:     IssueWarning,
		Category: CategoryImages,
		Message:  fmt.Sprintf("%d images without alt attributes", missing),
		Details:  "Alt text describes images to screen readers and search engines",
	}, points, true
}

// metaDescription returns the trimmed content of the first
// <meta name="description">, or nil when no such element exists.
func metaDescription(doc Document) *string {
	for _, meta := range doc.AllElements("meta") {
		if name, ok := meta.Attribute("name"); !ok || name != "description" {
			continue
		}
		content, _ := meta.Attribute("content")
		content = strings.TrimSpace(content)
		return &content
	}
	return nil
}

func imagesWithoutAlt(doc Document) []ImageInfo {
	images := []ImageInfo{}
	for _, img := range doc.AllElements("img") {
		alt, hasAlt := img.Attribute("alt")
		if hasAlt && strings.TrimSpace(alt) != "" {
			continue
		}
		src, _ := img.Attribute("src")
		info := ImageInfo{Src: src}
		if hasAlt {
			raw := alt
			info.Alt = &raw
		}
		images = append(images, info)
	}
	return images
}

// displayTitle picks the human title: the title tag, then a meaningful first
// H1, then a title derived from the URL path.
func displayTitle(title *string, firstH1, pageURL string) string {
	if title != nil && *title != "" {
		return *title
	}
	if TextLength(firstH1) > 3 {
		return firstH1
	}
	return titleFromURL(pageURL)
}

func titleFromURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return noTitle
	}

	var segment string
	for _, part := range strings.Split(u.Path, "/") {
		if part != "" {
			segment = part
		}
	}
	if segment == "" {
		return noTitle
	}

	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(segment))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	if len(words) == 0 {
		return noTitle
	}
	return strings.Join(words, " ")
}
