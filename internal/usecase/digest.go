package usecase

import (
	"fmt"
	"strings"

	"SmartphoneRanker/internal/domain"
)

// BuildDigestMessage renders a Markdown summary of one run for chat delivery.
func BuildDigestMessage(run domain.RankingRun) string {
	if len(run.Products) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Top smartphones* (%s)\n\n", run.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	for i, p := range run.Products {
		fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, escapeMarkdown(p.Name), p.Link)
		line := fmt.Sprintf("Score: %.4f | Positive: %.0f%% | Reviews: %d", p.CompositeScore, p.PositiveRatio*100, p.ReviewCount)
		if p.Price != nil {
			line += " | " + *p.Price
		}
		if p.Rating != nil {
			line += fmt.Sprintf(" | %.1f★", *p.Rating)
		}
		b.WriteString(line)
		b.WriteString("\n\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

var markdownEscaper = strings.NewReplacer("[", "(", "]", ")", "*", "", "_", " ", "`", "'")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
