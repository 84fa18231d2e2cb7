package export

import (
	"strconv"
	"strings"

	"github.com/Nilscreate/websitecrawltool/report"
)

// Content types for the rendered exports
const (
	CSVContentType  = "text/csv; charset=utf-8"
	TextContentType = "text/plain; charset=utf-8"
)

// CSVHeader is the fixed column list of the CSV export
var CSVHeader = []string{
	"URL",
	"Title",
	"Title Issue",
	"Title Suggestion",
	"Meta Description",
	"Meta Issue",
	"Meta Suggestion",
	"H1",
	"H1 Count",
	"H1 Issue",
	"H1 Suggestion",
	"Images Without Alt",
	"Image Suggestion",
}

var (
	quoteEscaper  = strings.NewReplacer(`"`, `""`)
	lineFlattener = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")
)

// ToCSV renders rows as CSV text: the header line followed by one line per
// row. Text fields are quoted with embedded quotes doubled; the two numeric
// columns are left bare.
func ToCSV(rows []report.SeoDataRow) string {
	lines := make([]string, 0, len(rows)+1)

	header := make([]string, len(CSVHeader))
	for i, h := range CSVHeader {
		header[i] = quote(h)
	}
	lines = append(lines, strings.Join(header, ","))

	for _, r := range rows {
		lines = append(lines, strings.Join([]string{
			quote(r.URL),
			quote(r.Title),
			quote(r.TitleIssue),
			quote(r.TitleSuggestion),
			quote(r.MetaDescription),
			quote(r.MetaIssue),
			quote(r.MetaSuggestion),
			quote(r.H1),
			strconv.Itoa(r.H1Count),
			quote(r.H1Issue),
			quote(r.H1Suggestion),
			strconv.Itoa(r.ImagesWithoutAlt),
			quote(r.ImageSuggestion),
		}, ","))
	}

	return strings.Join(lines, "\n")
}

// quote wraps a field in double quotes. Line breaks inside a field are
// flattened to spaces so every record stays on one line.
func quote(field string) string {
	return `"` + quoteEscaper.Replace(lineFlattener.Replace(field)) + `"`
}
