package normalize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML flattens a job description to plain text. List items come out as
// "- " bullets and repeated lines are dropped, so the matching text stays
// stable when boards duplicate blocks.
func StripHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style").Remove()

	var lines []string
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		if t := CleanText(li.Text()); t != "" {
			lines = append(lines, "- "+t)
		}
	})
	doc.Find("li").Remove()

	for _, line := range strings.Split(doc.Text(), "\n") {
		if t := CleanText(line); t != "" {
			lines = append(lines, t)
		}
	}

	seen := map[string]bool{}
	var out []string
	for _, l := range lines {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return strings.Join(out, "\n"), nil
}
