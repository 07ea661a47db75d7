package agent

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// parseTable extracts a result table into a rectangular-ish array of
// trimmed cell texts. The first row is the header and is skipped; rows
// without data cells (th-only rows) are dropped. Short rows are NOT
// padded here; padding to the fixed report width is the receiver's job.
func parseTable(html string) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse table HTML: %w", err)
	}

	var rows [][]string
	doc.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return
		}
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})

	if len(rows) == 0 {
		return nil, fmt.Errorf("table has no data rows")
	}
	return rows, nil
}
