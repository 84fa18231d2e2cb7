package report

import (
	"math"
	"sort"

	"github.com/Nilscreate/websitecrawltool/analyzer"
)

// topIssuesLimit is how many categories the summary ranking keeps
const topIssuesLimit = 3

// CategoryCount pairs a category with the number of issues it received
type CategoryCount struct {
	Category analyzer.Category `json:"category"`
	Count    int               `json:"count"`
}

// Summary aggregates a batch of page analyses
type Summary struct {
	TotalPages   int                        `json:"totalPages"`
	TotalIssues  int                        `json:"totalIssues"`
	AverageScore int                        `json:"averageScore"`
	ByType       map[analyzer.IssueType]int `json:"byType"`
	ByCategory   map[analyzer.Category]int  `json:"byCategory"`
	TopIssues    []CategoryCount            `json:"topIssues"`
}

// Summarize recomputes the fleet-level summary from scratch. An empty batch
// yields zero counts and an average score of 0.
func Summarize(analyses []analyzer.PageAnalysis) Summary {
	s := Summary{
		TotalPages: len(analyses),
		ByType:     make(map[analyzer.IssueType]int, len(analyzer.IssueTypes)),
		ByCategory: make(map[analyzer.Category]int, len(analyzer.Categories)),
	}
	for _, t := range analyzer.IssueTypes {
		s.ByType[t] = 0
	}
	for _, c := range analyzer.Categories {
		s.ByCategory[c] = 0
	}

	totalScore := 0
	for _, a := range analyses {
		totalScore += a.Score
		s.TotalIssues += len(a.Issues)
		for _, issue := range a.Issues {
			s.ByType[issue.Type]++
			s.ByCategory[issue.Category]++
		}
	}

	if s.TotalPages > 0 {
		s.AverageScore = roundHalfUp(float64(totalScore) / float64(s.TotalPages))
	}

	ranking := make([]CategoryCount, 0, len(analyzer.Categories))
	for _, c := range analyzer.Categories {
		ranking = append(ranking, CategoryCount{Category: c, Count: s.ByCategory[c]})
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Count > ranking[j].Count
	})
	s.TopIssues = ranking[:topIssuesLimit]

	return s
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// percentOf returns round(count / total * 100), or 0 for an empty batch
func percentOf(count, total int) int {
	if total == 0 {
		return 0
	}
	return roundHalfUp(float64(count) / float64(total) * 100)
}
