package racecard

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"greyhound-pipeline/models"
)

var (
	raceNumberRegexp = regexp.MustCompile(`Race (\d+)`)
	gradeRegexp      = regexp.MustCompile(`\b([A-Z]\d+)\b`)
	distanceRegexp   = regexp.MustCompile(`\b(\d+m)\b`)
	metersRegexp     = regexp.MustCompile(`(\d+)`)
	trapClassRegexp  = regexp.MustCompile(`^trap(\d+)$`)
	seedingRegexp    = regexp.MustCompile(`\s*\([MW]\)\s*`)
	formRegexp       = regexp.MustCompile(`Form:\s*([A-Z0-9T]+)`)
	forecastRegexp   = regexp.MustCompile(`SP Forecast:\s*([0-9/]+)`)
	trainerRegexp    = regexp.MustCompile(`Tnr:\s*([A-Za-z\s]+)`)
)

// meeting is one track's meeting link on the listing page.
type meeting struct {
	Track string
	Href  string
}

// raceRef points at a single race card (or result) page.
type raceRef struct {
	Track      string
	RaceNumber int
	RaceTime   string
	Href       string
}

// parseMeetings extracts the meeting links from a listing page. The href
// fragment differs between today's cards ("meeting-races") and historical
// results ("meeting-results").
func parseMeetings(html, hrefFragment string) ([]meeting, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var meetings []meeting
	seen := make(map[string]struct{})

	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.Contains(href, hrefFragment) {
			return
		}

		heading := sel.Find("h4").First()
		if heading.Length() == 0 {
			return
		}
		track := strings.TrimSpace(strings.SplitN(heading.Text(), "\n", 2)[0])
		if track == "" {
			return
		}
		if _, dup := seen[track]; dup {
			return
		}
		seen[track] = struct{}{}

		meetings = append(meetings, meeting{Track: track, Href: href})
	})

	return meetings, nil
}

// parseRaceLinks extracts per-race links from a meeting page.
func parseRaceLinks(html, track, hrefFragment string) ([]raceRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var refs []raceRef
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.Contains(href, hrefFragment) {
			return
		}

		raceTime := strings.TrimSpace(sel.Find("strong").First().Text())
		if raceTime == "" {
			raceTime = "TBC"
		}

		raceNumber := 0
		if m := raceNumberRegexp.FindStringSubmatch(sel.Find("h4").First().Text()); m != nil {
			raceNumber, _ = strconv.Atoi(m[1])
		}

		refs = append(refs, raceRef{
			Track:      track,
			RaceNumber: raceNumber,
			RaceTime:   raceTime,
			Href:       href,
		})
	})

	return refs, nil
}

// parseRaceCard extracts all runners from a race card page. Both today's
// cards and completed-race result pages share the runnerBlock structure.
func parseRaceCard(html string, ref raceRef, runDate string) ([]*models.RaceCardRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	grade, distance := parseGradeAndDistance(doc)
	meters := parseDistanceMeters(distance)

	var rows []*models.RaceCardRow
	doc.Find("div#sortContainer div.runnerBlock").Each(func(_ int, block *goquery.Selection) {
		name := strings.TrimSpace(block.Find("strong").First().Text())
		if name == "" {
			return
		}
		name = strings.TrimSpace(seedingRegexp.ReplaceAllString(name, ""))

		trap := parseTrap(block)
		form, forecast, trainer := parseRunnerInfo(block)

		rows = append(rows, &models.RaceCardRow{
			Track:          ref.Track,
			RaceNumber:     ref.RaceNumber,
			RaceTime:       ref.RaceTime,
			Grade:          grade,
			Distance:       distance,
			DistanceMeters: meters,
			Trap:           trap,
			DogName:        name,
			Form:           form,
			SPForecast:     forecast,
			Trainer:        trainer,
			RunDate:        runDate,
		})
	})

	return rows, nil
}

func parseGradeAndDistance(doc *goquery.Document) (string, string) {
	grade, distance := "", ""

	title := doc.Find("span#title-circle-container").First().Text()
	if m := gradeRegexp.FindStringSubmatch(title); m != nil {
		grade = m[1]
	}
	if m := distanceRegexp.FindStringSubmatch(title); m != nil {
		distance = m[1]
	}

	return grade, distance
}

// parseDistanceMeters pulls the numeric meters out of distance text like
// "480m". Absent or unparseable text yields nil, never zero.
func parseDistanceMeters(distance string) *int {
	m := metersRegexp.FindStringSubmatch(distance)
	if m == nil {
		return nil
	}
	meters, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &meters
}

func parseTrap(block *goquery.Selection) int {
	trap := 0
	block.Find("i").EachWithBreak(func(_ int, i *goquery.Selection) bool {
		class, _ := i.Attr("class")
		for _, cls := range strings.Fields(class) {
			if m := trapClassRegexp.FindStringSubmatch(cls); m != nil {
				trap, _ = strconv.Atoi(m[1])
				return false
			}
		}
		return true
	})
	return trap
}

func parseRunnerInfo(block *goquery.Selection) (form, forecast, trainer string) {
	form, forecast, trainer = "N/A", "N/A", "N/A"

	info := block.Find("div.info").First()
	if info.Length() == 0 {
		return
	}
	text := info.Text()

	if m := formRegexp.FindStringSubmatch(text); m != nil {
		form = m[1]
	}
	if m := forecastRegexp.FindStringSubmatch(text); m != nil {
		forecast = m[1]
	}
	if m := trainerRegexp.FindStringSubmatch(text); m != nil {
		trainer = strings.TrimSpace(m[1])
	}
	return
}
