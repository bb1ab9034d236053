package report

import (
	"fmt"
	"strings"

	"github.com/hitoshi/execdash/internal/llm"
	"github.com/hitoshi/execdash/internal/model"
)

// MaxSourceReferences はレポート末尾に載せる参照リンクの上限。
const MaxSourceReferences = 10

// RenderMarkdown は週次レポートのMarkdown本文を組み立てる。
// 件数0のカテゴリはKey Trendsに含めない。
func RenderMarkdown(
	week, year int,
	executive llm.ExecutiveSummary,
	categories []llm.CategorySummary,
	articles []*model.Article,
) string {
	var sections []string
	for _, cs := range categories {
		if cs.Count == 0 {
			continue
		}
		devs := make([]string, len(cs.KeyDevelopments))
		for i, d := range cs.KeyDevelopments {
			devs[i] = "- " + d
		}
		sections = append(sections, fmt.Sprintf("### %s\n%s\n\n%s", cs.Category, cs.Summary, strings.Join(devs, "\n")))
	}

	insights := make([]string, len(executive.ActionableInsights))
	for i, insight := range executive.ActionableInsights {
		insights[i] = fmt.Sprintf("%d. **%s**", i+1, insight)
	}

	refs := articles
	if len(refs) > MaxSourceReferences {
		refs = refs[:MaxSourceReferences]
	}
	sources := make([]string, len(refs))
	for i, a := range refs {
		sources[i] = fmt.Sprintf("- [%s](%s)", a.Title, a.SourceURL)
	}

	var b strings.Builder
	b.WriteString("# Executive Summary\n\n")
	b.WriteString(executive.Summary)
	b.WriteString("\n\n## Key Trends\n\n")
	b.WriteString(strings.Join(sections, "\n\n"))
	b.WriteString("\n\n## Actionable Insights\n\n")
	b.WriteString(strings.Join(insights, "\n"))
	b.WriteString("\n\n## Source References\n\n")
	b.WriteString(strings.Join(sources, "\n"))
	fmt.Fprintf(&b, "\n\n---\n*Generated by Domain AI Engine | Week %d / %d*", week, year)
	return b.String()
}
