package report

import (
	"fmt"

	"github.com/Nilscreate/websitecrawltool/analyzer"
)

// Issue labels used in rows and exports
const (
	LabelGood       = "Good"
	LabelMissing    = "Missing"
	LabelTooLong    = "Too Long"
	LabelTooShort   = "Too Short"
	LabelMultipleH1 = "Multiple H1s"
)

// Suggested target ranges, independent of the analyzer detection bands
const (
	suggestedTitleMin = 50
	suggestedTitleMax = 60
	suggestedMetaMin  = 150
	suggestedMetaMax  = 160
)

// SeoDataRow is the flattened, export-ready view of one page
type SeoDataRow struct {
	URL                   string `json:"url"`
	Title                 string `json:"title"`
	TitleLength           int    `json:"titleLength"`
	TitleIssue            string `json:"titleIssue"`
	TitleSuggestion       string `json:"titleSuggestion"`
	MetaDescription       string `json:"metaDescription"`
	MetaDescriptionLength int    `json:"metaDescriptionLength"`
	MetaIssue             string `json:"metaIssue"`
	MetaSuggestion        string `json:"metaSuggestion"`
	H1                    string `json:"h1"`
	H1Count               int    `json:"h1Count"`
	H1Issue               string `json:"h1Issue"`
	H1Suggestion          string `json:"h1Suggestion"`
	ImagesWithoutAlt      int    `json:"imagesWithoutAlt"`
	ImageSuggestion       string `json:"imageSuggestion"`
}

// ToRows maps each analysis to exactly one row, in input order
func ToRows(analyses []analyzer.PageAnalysis) []SeoDataRow {
	rows := make([]SeoDataRow, 0, len(analyses))
	for _, a := range analyses {
		rows = append(rows, toRow(a))
	}
	return rows
}

func toRow(a analyzer.PageAnalysis) SeoDataRow {
	d := a.SeoDetails
	title := d.TitleText()
	meta := d.MetaDescriptionText()
	titleLen := analyzer.TextLength(title)
	metaLen := analyzer.TextLength(meta)
	h1Count := d.H1Count()
	images := len(d.ImagesWithoutAlt)

	titleIssue := lengthLabel(titleLen, analyzer.TitleMinLength, analyzer.TitleMaxLength)
	metaIssue := lengthLabel(metaLen, analyzer.MetaMinLength, analyzer.MetaMaxLength)
	h1Issue := h1Label(h1Count)

	return SeoDataRow{
		URL:                   a.URL,
		Title:                 title,
		TitleLength:           titleLen,
		TitleIssue:            titleIssue,
		TitleSuggestion:       titleSuggestion(titleIssue, titleLen),
		MetaDescription:       meta,
		MetaDescriptionLength: metaLen,
		MetaIssue:             metaIssue,
		MetaSuggestion:        metaSuggestion(metaIssue, metaLen),
		H1:                    d.H1Text(),
		H1Count:               h1Count,
		H1Issue:               h1Issue,
		H1Suggestion:          h1Suggestion(h1Issue, h1Count),
		ImagesWithoutAlt:      images,
		ImageSuggestion:       imageSuggestion(images),
	}
}

func lengthLabel(length, lo, hi int) string {
	switch {
	case length == 0:
		return LabelMissing
	case length > hi:
		return LabelTooLong
	case length < lo:
		return LabelTooShort
	}
	return LabelGood
}

func h1Label(count int) string {
	switch {
	case count == 0:
		return LabelMissing
	case count > 1:
		return LabelMultipleH1
	}
	return LabelGood
}

func titleSuggestion(label string, length int) string {
	switch label {
	case LabelMissing:
		return fmt.Sprintf("Add a unique, descriptive title tag of %d-%d characters that includes the page's primary keyword.",
			suggestedTitleMin, suggestedTitleMax)
	case LabelTooLong:
		return fmt.Sprintf("Shorten the title from %d to %d-%d characters so it is not truncated in search results.",
			length, suggestedTitleMin, suggestedTitleMax)
	case LabelTooShort:
		return fmt.Sprintf("Expand the title from %d to %d-%d characters with more descriptive keywords.",
			length, suggestedTitleMin, suggestedTitleMax)
	}
	return "Title length is within the recommended range."
}

func metaSuggestion(label string, length int) string {
	switch label {
	case LabelMissing:
		return fmt.Sprintf("Add a meta description of %d-%d characters that summarizes the page and invites the click.",
			suggestedMetaMin, suggestedMetaMax)
	case LabelTooLong:
		return fmt.Sprintf("Trim the meta description from %d to %d-%d characters so the whole snippet is shown.",
			length, suggestedMetaMin, suggestedMetaMax)
	case LabelTooShort:
		return fmt.Sprintf("Expand the meta description from %d to %d-%d characters with a clear summary and call to action.",
			length, suggestedMetaMin, suggestedMetaMax)
	}
	return "Meta description length is within the recommended range."
}

func h1Suggestion(label string, count int) string {
	switch label {
	case LabelMissing:
		return "Add a single H1 heading that states the main topic of the page."
	case LabelMultipleH1:
		return fmt.Sprintf("Reduce the %d H1 tags to one and use H2-H6 for subsections.", count)
	}
	return "Page has a single H1 heading."
}

func imageSuggestion(missing int) string {
	if missing == 0 {
		return "All images have alt text."
	}
	return fmt.Sprintf("Add descriptive alt text to %d image(s).", missing)
}

// LabelStat is a label count and its share of all pages
type LabelStat struct {
	Count   int `json:"count"`
	Percent int `json:"percent"`
}

// RowSummary aggregates rows for the text report
type RowSummary struct {
	TotalPages            int       `json:"totalPages"`
	MissingTitle          LabelStat `json:"missingTitle"`
	TitleTooLong          LabelStat `json:"titleTooLong"`
	TitleTooShort         LabelStat `json:"titleTooShort"`
	MissingMeta           LabelStat `json:"missingMeta"`
	MetaTooLong           LabelStat `json:"metaTooLong"`
	MetaTooShort          LabelStat `json:"metaTooShort"`
	MissingH1             LabelStat `json:"missingH1"`
	MultipleH1            LabelStat `json:"multipleH1"`
	TotalImagesWithoutAlt int       `json:"totalImagesWithoutAlt"`
	AvgImagesWithoutAlt   int       `json:"avgImagesWithoutAlt"`
}

// SummarizeRows counts row labels and converts them to percentages of all
// pages. An empty input yields zeros.
func SummarizeRows(rows []SeoDataRow) RowSummary {
	s := RowSummary{TotalPages: len(rows)}
	for _, r := range rows {
		switch r.TitleIssue {
		case LabelMissing:
			s.MissingTitle.Count++
		case LabelTooLong:
			s.TitleTooLong.Count++
		case LabelTooShort:
			s.TitleTooShort.Count++
		}
		switch r.MetaIssue {
		case LabelMissing:
			s.MissingMeta.Count++
		case LabelTooLong:
			s.MetaTooLong.Count++
		case LabelTooShort:
			s.MetaTooShort.Count++
		}
		switch r.H1Issue {
		case LabelMissing:
			s.MissingH1.Count++
		case LabelMultipleH1:
			s.MultipleH1.Count++
		}
		s.TotalImagesWithoutAlt += r.ImagesWithoutAlt
	}

	for _, stat := range []*LabelStat{
		&s.MissingTitle, &s.TitleTooLong, &s.TitleTooShort,
		&s.MissingMeta, &s.MetaTooLong, &s.MetaTooShort,
		&s.MissingH1, &s.MultipleH1,
	} {
		stat.Percent = percentOf(stat.Count, s.TotalPages)
	}
	if s.TotalPages > 0 {
		s.AvgImagesWithoutAlt = roundHalfUp(float64(s.TotalImagesWithoutAlt) / float64(s.TotalPages))
	}
	return s
}
