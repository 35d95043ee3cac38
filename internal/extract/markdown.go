package extract

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	urlutil "github.com/law-makers/scrape/internal/utils/url"
)

// CleanHTML strips scripts, forms and every attribute except link and image
// targets.
func CleanHTML(fragment string) (string, error) {
	doc, err := Document(fragment)
	if err != nil {
		return "", err
	}

	doc.Find("script, style, link, meta, noscript, iframe, svg, form, input, button, select, textarea, canvas").Remove()

	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		node := s.Nodes[0]
		var kept []html.Attribute
		for _, attr := range node.Attr {
			switch {
			case node.Data == "a" && (attr.Key == "href" || attr.Key == "title"):
				kept = append(kept, attr)
			case node.Data == "img" && (attr.Key == "src" || attr.Key == "alt"):
				kept = append(kept, attr)
			}
		}
		node.Attr = kept
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Markdown converts an HTML fragment to GitHub-flavored Markdown, resolving
// relative links against base.
func Markdown(fragment, base string) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	converter.AddRules(md.Rule{
		Filter: []string{"a"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			href, exists := selec.Attr("href")
			if !exists {
				return nil
			}
			text := strings.TrimSpace(content)
			if text == "" {
				text = strings.TrimSpace(selec.Text())
			}
			str := fmt.Sprintf("[%s](%s)", text, urlutil.ResolveURL(base, href))
			return &str
		},
	})

	cleaned, err := CleanHTML(fragment)
	if err != nil {
		return "", err
	}

	out, err := converter.ConvertString(cleaned)
	if err != nil {
		return "", fmt.Errorf("failed to convert to markdown: %w", err)
	}
	return strings.TrimSpace(out), nil
}
