package export

import (
	"fmt"
	"strings"

	"github.com/Nilscreate/websitecrawltool/report"
)

// ToSummaryText renders the plain-text audit report: an overview of issue
// percentages followed by one block per page.
func ToSummaryText(rows []report.SeoDataRow) string {
	s := report.SummarizeRows(rows)

	var b strings.Builder
	b.WriteString("SEO AUDIT SUMMARY\n")
	b.WriteString("=================\n\n")
	fmt.Fprintf(&b, "Pages analyzed: %d\n\n", s.TotalPages)

	b.WriteString("Titles\n")
	writeStat(&b, "Missing", s.MissingTitle)
	writeStat(&b, "Too long", s.TitleTooLong)
	writeStat(&b, "Too short", s.TitleTooShort)
	b.WriteString("\n")

	b.WriteString("Meta descriptions\n")
	writeStat(&b, "Missing", s.MissingMeta)
	writeStat(&b, "Too long", s.MetaTooLong)
	writeStat(&b, "Too short", s.MetaTooShort)
	b.WriteString("\n")

	b.WriteString("H1 headings\n")
	writeStat(&b, "Missing", s.MissingH1)
	writeStat(&b, "Multiple", s.MultipleH1)
	b.WriteString("\n")

	b.WriteString("Images\n")
	fmt.Fprintf(&b, "  Without alt text: %d total, %d per page on average\n", s.TotalImagesWithoutAlt, s.AvgImagesWithoutAlt)

	if len(rows) > 0 {
		b.WriteString("\nPAGE DETAILS\n")
		b.WriteString("============\n")
	}
	for i, r := range rows {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, r.URL)
		fmt.Fprintf(&b, "   Title: %s (%d chars)\n", r.TitleIssue, r.TitleLength)
		fmt.Fprintf(&b, "   Meta description: %s (%d chars)\n", r.MetaIssue, r.MetaDescriptionLength)
		fmt.Fprintf(&b, "   H1 tags: %d\n", r.H1Count)
		fmt.Fprintf(&b, "   Images without alt: %d\n", r.ImagesWithoutAlt)
	}

	return b.String()
}

func writeStat(b *strings.Builder, label string, stat report.LabelStat) {
	fmt.Fprintf(b, "  %s: %d (%d%%)\n", label, stat.Count, stat.Percent)
}
