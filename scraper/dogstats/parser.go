package dogstats

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"greyhound-pipeline/models"
)

var trapImgRegexp = regexp.MustCompile(`trap_(\d+)\.`)

// parseStatsPage extracts the race history table from a dog's stats page.
// Rows are taken verbatim as displayed; the AVERAGE footer row is skipped.
func parseStatsPage(html, dogName string) ([]*models.DogStatsRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var rows []*models.DogStatsRow

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if !isHistoryTable(table) {
			return true
		}

		table.Find("tr").Each(func(i int, tr *goquery.Selection) {
			if i == 0 {
				return // header
			}
			cells := tr.Find("td")
			if cells.Length() < 10 {
				return
			}
			if cellText(cells, 0) == "AVERAGE" {
				return
			}

			rows = append(rows, &models.DogStatsRow{
				DogName:  dogName,
				Date:     cellText(cells, 0),
				Track:    cellText(cells, 1),
				Trap:     trapFromCell(cells.Eq(2)),
				Grade:    cellText(cells, 3),
				Distance: cellText(cells, 4),
				Going:    cellText(cells, 5),
				Runners:  cellText(cells, 6),
				Position: cellText(cells, 7),
				Btn:      cellText(cells, 8),
				Time:     cellText(cells, 9),
				SP:       cellText(cells, 10),
				Comment:  cellText(cells, 11),
			})
		})
		return false
	})

	return rows, nil
}

// isHistoryTable recognises the race history table by its header columns.
func isHistoryTable(table *goquery.Selection) bool {
	headers := table.Find("th")
	if headers.Length() == 0 {
		headers = table.Find("tr").First().Find("td")
	}

	var names []string
	headers.Each(func(_ int, h *goquery.Selection) {
		names = append(names, strings.TrimSpace(h.Text()))
	})

	return contains(names, "Date") && contains(names, "Track") && contains(names, "Grade")
}

// trapFromCell reads the trap number out of the cell's image source,
// e.g. "./images/trap_3.jpg".
func trapFromCell(cell *goquery.Selection) string {
	src, ok := cell.Find("img").First().Attr("src")
	if !ok {
		return strings.TrimSpace(cell.Text())
	}
	if m := trapImgRegexp.FindStringSubmatch(src); m != nil {
		return m[1]
	}
	return ""
}

func cellText(cells *goquery.Selection, i int) string {
	if i >= cells.Length() {
		return ""
	}
	return strings.TrimSpace(cells.Eq(i).Text())
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
