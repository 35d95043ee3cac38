// Package extract holds parsing helpers shared by plugins.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	urlutil "github.com/law-makers/scrape/internal/utils/url"
)

// Document parses an HTML string.
func Document(page string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Text returns the selection's text with whitespace collapsed.
func Text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// OwnText returns only the text nodes directly under the first element of s.
func OwnText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	var sb strings.Builder
	for c := s.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// First returns the text of the first element matching any of selectors.
func First(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if found := s.Find(sel).First(); found.Length() > 0 {
			if t := Text(found); t != "" {
				return t
			}
		}
	}
	return ""
}

// Link returns the first href under s resolved against base.
func Link(s *goquery.Selection, base string) string {
	a := s
	if goquery.NodeName(s) != "a" {
		a = s.Find("a[href]").First()
	}
	href, ok := a.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	return urlutil.ResolveURL(base, strings.TrimSpace(href))
}

var priceRe = regexp.MustCompile(`\d[\d\s\x{00A0}.,]*`)

// Price pulls the first number out of text such as "$ 1,250.00 / month" or
// "1 250 000 ₽". A single comma followed by one or two digits is a decimal
// separator; every other separator groups thousands.
func Price(text string) (float64, bool) {
	m := priceRe.FindString(text)
	if m == "" {
		return 0, false
	}
	m = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(m))
	m = strings.TrimRight(m, ".,")

	if i := strings.LastIndexByte(m, ','); i >= 0 && !strings.Contains(m, ".") {
		if tail := len(m) - i - 1; tail == 1 || tail == 2 {
			m = m[:i] + "." + m[i+1:]
		}
	}
	m = strings.ReplaceAll(m, ",", "")
	if strings.Count(m, ".") > 1 {
		m = strings.ReplaceAll(m, ".", "")
	}

	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
