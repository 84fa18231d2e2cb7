package analyzer

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func page(head, body string) string {
	return "<html><head>" + head + "</head><body>" + body + "</body></html>"
}

func titleTag(n int) string {
	return "<title>" + strings.Repeat("t", n) + "</title>"
}

func metaTag(n int) string {
	return `<meta name="description" content="` + strings.Repeat("d", n) + `">`
}

// goodHead yields no title or meta issue
var goodHead = titleTag(45) + metaTag(140)

func issuesFor(a PageAnalysis, c Category) []SeoIssue {
	var out []SeoIssue
	for _, issue := range a.Issues {
		if issue.Category == c {
			out = append(out, issue)
		}
	}
	return out
}

func TestEndToEndExample(t *testing.T) {
	a := New()
	result := a.Analyze("https://example.com/about-us", `<html><head></head><body><img src="a.png"></body></html>`)

	wantMessages := []string{
		"Missing title tag",
		"Missing meta description",
		"Missing H1 tag",
		"1 images without alt attributes",
	}
	if len(result.Issues) != len(wantMessages) {
		t.Fatalf("expected %d issues, got %d: %+v", len(wantMessages), len(result.Issues), result.Issues)
	}
	for i, msg := range wantMessages {
		if result.Issues[i].Message != msg {
			t.Errorf("issue %d: expected %q, got %q", i, msg, result.Issues[i].Message)
		}
	}
	if result.Score != 43 {
		t.Errorf("expected score 43, got %d", result.Score)
	}
	if result.Title != "About Us" {
		t.Errorf("expected fallback title %q, got %q", "About Us", result.Title)
	}
	if !result.Crawled {
		t.Error("analysis should be marked as crawled")
	}
	if result.SeoDetails.Title != nil || result.SeoDetails.MetaDescription != nil {
		t.Error("absent title and meta description should be nil")
	}
	if len(result.SeoDetails.ImagesWithoutAlt) != 1 || result.SeoDetails.ImagesWithoutAlt[0].Src != "a.png" {
		t.Errorf("unexpected images: %+v", result.SeoDetails.ImagesWithoutAlt)
	}
	if result.SeoDetails.ImagesWithoutAlt[0].Alt != nil {
		t.Error("absent alt attribute should be nil")
	}
}

func TestTitleBoundaries(t *testing.T) {
	tests := []struct {
		length  int
		message string
		score   int
	}{
		{29, "Title tag too short", 95},
		{30, "", 100},
		{60, "", 100},
		{61, "Title tag too long", 90},
		{0, "Missing title tag", 80},
	}

	a := New()
	for _, tt := range tests {
		t.Run(fmt.Sprintf("length_%d", tt.length), func(t *testing.T) {
			result := a.Analyze("https://example.com", page(titleTag(tt.length)+metaTag(140), "<h1>Heading</h1>"))
			issues := issuesFor(result, CategoryTitle)
			if tt.message == "" {
				if len(issues) != 0 {
					t.Fatalf("expected no title issue, got %+v", issues)
				}
			} else {
				if len(issues) != 1 || issues[0].Message != tt.message {
					t.Fatalf("expected %q, got %+v", tt.message, issues)
				}
				if tt.length > 0 && !strings.Contains(issues[0].Details, fmt.Sprint(tt.length)) {
					t.Errorf("details should carry the length: %q", issues[0].Details)
				}
			}
			if result.Score != tt.score {
				t.Errorf("expected score %d, got %d", tt.score, result.Score)
			}
		})
	}
}

func TestMetaDescriptionBoundaries(t *testing.T) {
	tests := []struct {
		length  int
		message string
		score   int
	}{
		{119, "Meta description too short", 95},
		{120, "", 100},
		{160, "", 100},
		{161, "Meta description too long", 90},
		{0, "Missing meta description", 80},
	}

	a := New()
	for _, tt := range tests {
		t.Run(fmt.Sprintf("length_%d", tt.length), func(t *testing.T) {
			result := a.Analyze("https://example.com", page(titleTag(45)+metaTag(tt.length), "<h1>Heading</h1>"))
			issues := issuesFor(result, CategoryMetaDescription)
			if tt.message == "" && len(issues) != 0 {
				t.Fatalf("expected no meta issue, got %+v", issues)
			}
			if tt.message != "" && (len(issues) != 1 || issues[0].Message != tt.message) {
				t.Fatalf("expected %q, got %+v", tt.message, issues)
			}
			if result.Score != tt.score {
				t.Errorf("expected score %d, got %d", tt.score, result.Score)
			}
		})
	}
}

func TestMetaDescriptionTrimmedAndWhitespaceOnly(t *testing.T) {
	a := New()
	result := a.Analyze("https://example.com", page(titleTag(45)+`<meta name="description" content="   ">`, "<h1>x</h1>"))
	issues := issuesFor(result, CategoryMetaDescription)
	if len(issues) != 1 || issues[0].Type != IssueError {
		t.Fatalf("whitespace-only description should be missing, got %+v", issues)
	}
	if result.SeoDetails.MetaDescription == nil || *result.SeoDetails.MetaDescription != "" {
		t.Errorf("present but blank description should be an empty string, got %v", result.SeoDetails.MetaDescription)
	}
}

func TestH1Checks(t *testing.T) {
	a := New()

	t.Run("single", func(t *testing.T) {
		result := a.Analyze("https://example.com", page(goodHead, "<h1>Only one</h1>"))
		if len(issuesFor(result, CategoryH1)) != 0 {
			t.Fatalf("expected no H1 issue, got %+v", result.Issues)
		}
		if result.Score != 100 {
			t.Errorf("expected score 100, got %d", result.Score)
		}
	})

	t.Run("missing", func(t *testing.T) {
		result := a.Analyze("https://example.com", page(goodHead, "<p>no heading</p>"))
		issues := issuesFor(result, CategoryH1)
		if len(issues) != 1 || issues[0].Type != IssueError || issues[0].Message != "Missing H1 tag" {
			t.Fatalf("unexpected issues: %+v", issues)
		}
		if result.Score != 85 {
			t.Errorf("missing H1 should cost 15 points, got score %d", result.Score)
		}
	})

	t.Run("multiple", func(t *testing.T) {
		result := a.Analyze("https://example.com", page(goodHead, "<h1>One</h1><h1>Two</h1><h1>Three</h1>"))
		issues := issuesFor(result, CategoryH1)
		if len(issues) != 1 || issues[0].Type != IssueWarning || issues[0].Message != "Multiple H1 tags found" {
			t.Fatalf("unexpected issues: %+v", issues)
		}
		if !strings.Contains(issues[0].Details, "3") {
			t.Errorf("details should carry the count: %q", issues[0].Details)
		}
		if result.Score != 90 {
			t.Errorf("expected score 90, got %d", result.Score)
		}
		want := []H1Tag{{Text: "One, Two, Three", Count: 3}}
		if !reflect.DeepEqual(result.SeoDetails.H1Tags, want) {
			t.Errorf("expected flattened H1 record %+v, got %+v", want, result.SeoDetails.H1Tags)
		}
	})

	t.Run("flattened record when absent", func(t *testing.T) {
		result := a.Analyze("https://example.com", page(goodHead, ""))
		want := []H1Tag{{Text: "", Count: 0}}
		if !reflect.DeepEqual(result.SeoDetails.H1Tags, want) {
			t.Errorf("expected %+v, got %+v", want, result.SeoDetails.H1Tags)
		}
	})
}

func TestImagePenalty(t *testing.T) {
	tests := []struct {
		missing int
		score   int
	}{
		{0, 100},
		{1, 98},
		{5, 90},
		{7, 86},
		{8, 85},
		{20, 85},
	}

	a := New()
	for _, tt := range tests {
		t.Run(fmt.Sprintf("missing_%d", tt.missing), func(t *testing.T) {
			body := "<h1>Heading</h1>" + `<img src="ok.png" alt="x">` + strings.Repeat(`<img src="a.png">`, tt.missing)
			result := a.Analyze("https://example.com", page(goodHead, body))
			if result.Score != tt.score {
				t.Errorf("expected score %d, got %d", tt.score, result.Score)
			}
			if len(result.SeoDetails.ImagesWithoutAlt) != tt.missing {
				t.Errorf("expected %d images without alt, got %d", tt.missing, len(result.SeoDetails.ImagesWithoutAlt))
			}
			issues := issuesFor(result, CategoryImages)
			if tt.missing == 0 && len(issues) != 0 {
				t.Errorf("expected no image issue, got %+v", issues)
			}
			if tt.missing > 0 {
				want := fmt.Sprintf("%d images without alt attributes", tt.missing)
				if len(issues) != 1 || issues[0].Message != want {
					t.Errorf("expected %q, got %+v", want, issues)
				}
			}
		})
	}
}

func TestImageAltValues(t *testing.T) {
	a := New()
	body := `<h1>Heading</h1><img src="empty.png" alt=""><img src="blank.png" alt="  "><img alt="x"><img>`
	result := a.Analyze("https://example.com", page(goodHead, body))

	images := result.SeoDetails.ImagesWithoutAlt
	if len(images) != 3 {
		t.Fatalf("expected 3 images without alt, got %+v", images)
	}
	if images[0].Src != "empty.png" || images[0].Alt == nil || *images[0].Alt != "" {
		t.Errorf("empty alt should be kept as empty string: %+v", images[0])
	}
	if images[1].Alt == nil || *images[1].Alt != "  " {
		t.Errorf("whitespace alt should be kept raw: %+v", images[1])
	}
	if images[2].Src != "" || images[2].Alt != nil {
		t.Errorf("image without attributes should have empty src and nil alt: %+v", images[2])
	}
}

func TestScoreNeverNegative(t *testing.T) {
	a := New()
	body := "<h1>a</h1><h1>b</h1>" + strings.Repeat("<img>", 30)
	result := a.Analyze("https://example.com", page(titleTag(80)+metaTag(200), body))
	// 10 + 10 + 10 + 15
	if result.Score != 55 {
		t.Errorf("expected 55, got %d", result.Score)
	}

	worst := a.Analyze("https://example.com", strings.Repeat("<img>", 50))
	if worst.Score < 0 || worst.Score > 100 {
		t.Errorf("score out of range: %d", worst.Score)
	}
	if worst.Score != 30 {
		t.Errorf("expected 30, got %d", worst.Score)
	}
}

func TestIssueOrder(t *testing.T) {
	a := New()
	result := a.Analyze("https://example.com", "<img>")
	want := []Category{CategoryTitle, CategoryMetaDescription, CategoryH1, CategoryImages}
	if len(result.Issues) != len(want) {
		t.Fatalf("expected %d issues, got %d", len(want), len(result.Issues))
	}
	for i, c := range want {
		if result.Issues[i].Category != c {
			t.Errorf("issue %d: expected category %s, got %s", i, c, result.Issues[i].Category)
		}
	}
}

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		name string
		url  string
		html string
		want string
	}{
		{"title tag", "https://example.com/x", page("<title>  Home Page  </title>", "<h1>Heading</h1>"), "Home Page"},
		{"h1 fallback", "https://example.com/x", page("", "<h1> Welcome </h1>"), "Welcome"},
		{"short h1 skipped", "https://example.com/contact_us", page("", "<h1>Hi</h1>"), "Contact Us"},
		{"h1 of four chars", "https://example.com/x", page("", "<h1>Blog</h1>"), "Blog"},
		{"last segment", "https://example.com/blog/my-first_post/", page("", ""), "My First Post"},
		{"root path", "https://example.com/", page("", ""), "No title"},
		{"no path", "https://example.com", page("", ""), "No title"},
		{"unparseable url", "http://[::1", page("", ""), "No title"},
		{"free text", "not a url", page("", ""), "No title"},
		{"relative path", "about-us", page("", ""), "No title"},
		{"rooted path", "/blog/first-post", page("", ""), "No title"},
		{"separators only", "https://example.com/--", page("", ""), "No title"},
		{"empty title tag", "https://example.com/pricing", page("<title>   </title>", ""), "Pricing"},
	}

	a := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(tt.url, tt.html).Title
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMalformedMarkup(t *testing.T) {
	a := New()
	inputs := []string{
		"",
		"<<<>>>",
		"<html><head><title>Unclosed",
		"<div><h1>nested<p>broken</div>",
		"\x00\xff\xfe",
	}
	for _, in := range inputs {
		result := a.Analyze("https://example.com/page", in)
		if result.Score < 0 || result.Score > 100 {
			t.Errorf("score out of range for %q: %d", in, result.Score)
		}
		if !result.Crawled {
			t.Errorf("analysis of %q should be marked crawled", in)
		}
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	a := New()
	html := page(titleTag(20)+metaTag(200), "<h1>A</h1><h1>B</h1><img src='x'>")
	first := a.Analyze("https://example.com/a", html)
	second := a.Analyze("https://example.com/a", html)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("analysis differs between runs:\n%+v\n%+v", first, second)
	}
}

func TestConcurrentAnalyze(t *testing.T) {
	a := New()
	html := page(goodHead, "<h1>Heading</h1><img>")
	want := a.Analyze("https://example.com", html)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := a.Analyze("https://example.com", html); !reflect.DeepEqual(got, want) {
				t.Errorf("concurrent analysis differs")
			}
		}()
	}
	wg.Wait()
}

type stubDocument struct {
	elements map[string][]Element
}

func (d stubDocument) FirstElement(tag string) (Element, bool) {
	if els := d.elements[tag]; len(els) > 0 {
		return els[0], true
	}
	return nil, false
}

func (d stubDocument) AllElements(tag string) []Element { return d.elements[tag] }

type stubElement struct {
	attrs map[string]string
	text  string
}

func (e stubElement) Attribute(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

func (e stubElement) TextContent() string { return e.text }

type stubParser struct{ doc Document }

func (p stubParser) Parse(string) Document { return p.doc }

func TestInjectedParser(t *testing.T) {
	doc := stubDocument{elements: map[string][]Element{
		"title": {stubElement{text: strings.Repeat("x", 40)}},
		"meta":  {stubElement{attrs: map[string]string{"name": "description", "content": strings.Repeat("y", 130)}}},
		"h1":    {stubElement{text: "Heading"}},
	}}
	a := New(WithParser(stubParser{doc: doc}))
	result := a.Analyze("https://example.com", "ignored")
	if len(result.Issues) != 0 || result.Score != 100 {
		t.Errorf("expected a clean page, got score %d issues %+v", result.Score, result.Issues)
	}
}
