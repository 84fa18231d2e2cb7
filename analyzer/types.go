package analyzer

// IssueType is the severity of a detected problem
type IssueType string

const (
	IssueError   IssueType = "error"
	IssueWarning IssueType = "warning"
	IssueInfo    IssueType = "info"
)

// IssueTypes lists every severity in declaration order
var IssueTypes = []IssueType{IssueError, IssueWarning, IssueInfo}

// Category is the on-page signal an issue concerns
type Category string

const (
	CategoryTitle           Category = "title"
	CategoryMetaDescription Category = "meta_description"
	CategoryH1              Category = "h1"
	CategoryImages          Category = "images"
)

// Categories lists every category in enumeration order. Rankings that tie on
// count fall back to this order.
var Categories = []Category{CategoryTitle, CategoryMetaDescription, CategoryH1, CategoryImages}

// Length bands accepted without an issue, inclusive on both ends.
const (
	TitleMinLength = 30
	TitleMaxLength = 60
	MetaMinLength  = 120
	MetaMaxLength  = 160
)

// Score deductions applied per issue.
const (
	baseScore = 100

	penaltyMissingTitle = 20
	penaltyLongTitle    = 10
	penaltyShortTitle   = 5

	penaltyMissingMeta = 20
	penaltyLongMeta    = 10
	penaltyShortMeta   = 5

	penaltyMissingH1  = 15
	penaltyMultipleH1 = 10

	penaltyPerImage  = 2
	maxImagesPenalty = 15
)

// SeoIssue is one problem found on a page
type SeoIssue struct {
	Type     IssueType `json:"type"`
	Category Category  `json:"category"`
	Message  string    `json:"message"`
	Details  string    `json:"details,omitempty"`
}

// H1Tag summarises the page's H1 headings
type H1Tag struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// ImageInfo describes an image that lacks usable alt text. Alt is nil when the
// attribute is absent and holds the raw value otherwise.
type ImageInfo struct {
	Src string  `json:"src"`
	Alt *string `json:"alt"`
}

// SeoDetails holds the raw facts extracted from the markup
type SeoDetails struct {
	Title            *string     `json:"title"`
	MetaDescription  *string     `json:"metaDescription"`
	H1Tags           []H1Tag     `json:"h1Tags"`
	ImagesWithoutAlt []ImageInfo `json:"imagesWithoutAlt"`
}

// PageAnalysis is the verdict for a single page
type PageAnalysis struct {
	URL        string     `json:"url"`
	Title      string     `json:"title"`
	Issues     []SeoIssue `json:"issues"`
	Score      int        `json:"score"`
	Crawled    bool       `json:"crawled"`
	SeoDetails SeoDetails `json:"seoDetails"`
}

// TitleText returns the extracted title or "" when the page has none
func (d SeoDetails) TitleText() string {
	if d.Title == nil {
		return ""
	}
	return *d.Title
}

// MetaDescriptionText returns the extracted meta description or ""
func (d SeoDetails) MetaDescriptionText() string {
	if d.MetaDescription == nil {
		return ""
	}
	return *d.MetaDescription
}

// H1Count returns the number of H1 elements found on the page
func (d SeoDetails) H1Count() int {
	if len(d.H1Tags) == 0 {
		return 0
	}
	return d.H1Tags[0].Count
}

// H1Text returns the joined H1 text
func (d SeoDetails) H1Text() string {
	if len(d.H1Tags) == 0 {
		return ""
	}
	return d.H1Tags[0].Text
}
