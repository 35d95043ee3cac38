// Package listings scrapes generic real-estate style listing pages: a grid
// of cards each carrying a title, price, location, description and link.
package listings

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/scrape/internal/engine"
	"github.com/law-makers/scrape/internal/extract"
	"github.com/law-makers/scrape/internal/registry"
	urlutil "github.com/law-makers/scrape/internal/utils/url"
	"github.com/law-makers/scrape/pkg/models"
)

// Name is the registry id and the dataset name sent to the clear endpoint.
const Name = "listings"

// DefaultMaxPages is how many pages are followed when the run sets none.
const DefaultMaxPages = 1

var (
	cardSelectors     = []string{"[data-listing]", ".listing", ".listing-card", "article.card", ".card", "[itemtype*='Offer']", "li.item"}
	titleSelectors    = []string{".title", "[itemprop=name]", "h2", "h3", "a"}
	priceSelectors    = []string{".price", "[itemprop=price]", "[data-price]"}
	locationSelectors = []string{".location", ".address", "[itemprop=address]", ".loc"}
	descSelectors     = []string{".description", "[itemprop=description]", "p"}
	nextSelectors     = []string{"a[rel=next]", "link[rel=next]", ".pagination .next a", "a.next"}

	// stateGlobals are checked when a page renders its cards client-side.
	stateGlobals = []string{"__INITIAL_STATE__", "__NEXT_DATA__", "__DATA__"}
)

func init() {
	registry.MustRegister(Name, New)
}

// Listing is one card.
type Listing struct {
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Price       float64 `json:"price" yaml:"price"`
	PriceText   string  `json:"price_text,omitempty" yaml:"price_text,omitempty"`
	Location    string  `json:"location,omitempty" yaml:"location,omitempty"`
	URL         string  `json:"url,omitempty" yaml:"url,omitempty"`
}

// Result is the record produced by a run.
type Result struct {
	Source    string    `json:"source" yaml:"source"`
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
	Pages     int       `json:"pages" yaml:"pages"`
	Listings  []Listing `json:"listings" yaml:"listings"`

	next string
}

// Header implements output.Tabular.
func (r *Result) Header() []string {
	return []string{"title", "price", "location", "url", "description"}
}

// Rows implements output.Tabular.
func (r *Result) Rows() [][]string {
	rows := make([][]string, 0, len(r.Listings))
	for _, l := range r.Listings {
		rows = append(rows, []string{
			l.Title,
			strconv.FormatFloat(l.Price, 'f', -1, 64),
			l.Location,
			l.URL,
			l.Description,
		})
	}
	return rows
}

// Plugin scrapes listing cards, following "next" links up to MaxPages.
type Plugin struct {
	*engine.Base
}

// New is the registry factory.
func New(env engine.Env) (engine.Plugin, error) {
	p := &Plugin{}
	p.Base = engine.NewBase(Name, env, "", p)
	return p, nil
}

// Run fetches the first page and any following pages over one session.
func (p *Plugin) Run(ctx context.Context) (models.Record, error) {
	cfg := p.Env().Config
	if !cfg.Render {
		if _, err := p.OpenSession(); err != nil {
			return nil, err
		}
	}

	rec, err := p.RunPage(ctx, p)
	if err != nil || rec == nil {
		return rec, err
	}
	result := rec.(*Result)

	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	for result.Pages < maxPages && result.next != "" {
		next := result.next
		result.next = ""

		html, ok, err := p.Fetch(ctx, next, nil)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Warn().Str("url", next).Msg("Stopping pagination, page unavailable")
			break
		}

		page, err := p.parse(html, next)
		if err != nil {
			return nil, err
		}
		result.Listings = append(result.Listings, page.Listings...)
		result.Pages++
		result.next = page.next
	}

	log.Info().
		Str("plugin", Name).
		Int("pages", result.Pages).
		Int("listings", len(result.Listings)).
		Msg("Listings extracted")
	return result, nil
}

// ParsePage extracts the listings on the target page.
func (p *Plugin) ParsePage(ctx context.Context, html string) (models.Record, error) {
	return p.parse(html, p.TargetURL())
}

func (p *Plugin) parse(html, pageURL string) (*Result, error) {
	doc, err := extract.Document(html)
	if err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeParseError, Name, "unreadable page", err).
			WithDetail("url", pageURL)
	}

	result := &Result{
		Source:    pageURL,
		FetchedAt: time.Now().UTC(),
		Pages:     1,
		Listings:  []Listing{},
		next:      nextPage(doc, pageURL),
	}

	cards := findCards(doc)
	if cards.Length() > 0 {
		cards.Each(func(i int, card *goquery.Selection) {
			if l, ok := parseCard(card, pageURL); ok {
				result.Listings = append(result.Listings, l)
			}
		})
		return result, nil
	}

	state, err := extract.ScriptState(doc, pageURL, stateGlobals...)
	if err != nil {
		log.Warn().Str("url", pageURL).Msg("No listing cards or embedded state found")
		return result, nil
	}
	for _, v := range state {
		for _, l := range listingsFromState(v, pageURL) {
			if validate(l) {
				result.Listings = append(result.Listings, l)
			}
		}
	}
	return result, nil
}

func findCards(doc *goquery.Document) *goquery.Selection {
	for _, sel := range cardSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return doc.Find("[data-listing]")
}

func parseCard(card *goquery.Selection, pageURL string) (Listing, bool) {
	l := Listing{
		Title:    extract.First(card, titleSelectors...),
		Location: extract.First(card, locationSelectors...),
		URL:      extract.Link(card, pageURL),
	}

	priceSel := card.Find(strings.Join(priceSelectors, ", ")).First()
	if raw, ok := priceSel.Attr("content"); ok {
		l.PriceText = raw
	} else if raw, ok := priceSel.Attr("data-price"); ok {
		l.PriceText = raw
	} else {
		l.PriceText = extract.Text(priceSel)
	}
	if price, ok := extract.Price(l.PriceText); ok {
		l.Price = price
	}

	for _, sel := range descSelectors {
		desc := card.Find(sel).First()
		if desc.Length() == 0 {
			continue
		}
		if frag, err := desc.Html(); err == nil {
			if text, err := extract.Markdown(frag, pageURL); err == nil && text != "" {
				l.Description = text
				break
			}
		}
	}

	if !validate(l) {
		log.Debug().Str("title", l.Title).Str("price", l.PriceText).Msg("Skipping invalid listing")
		return Listing{}, false
	}
	return l, true
}

// validate keeps listings with a title and a positive price. A missing or
// unreadable price leaves Price at zero and drops the listing.
func validate(l Listing) bool {
	return strings.TrimSpace(l.Title) != "" && l.Price > 0
}

func nextPage(doc *goquery.Document, pageURL string) string {
	for _, sel := range nextSelectors {
		if href, ok := doc.Find(sel).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
			next := urlutil.ResolveURL(pageURL, strings.TrimSpace(href))
			if next != pageURL {
				return next
			}
		}
	}
	return ""
}

// listingsFromState walks decoded script state looking for arrays of
// objects that carry a title.
func listingsFromState(v any, pageURL string) []Listing {
	var out []Listing
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				if l, ok := listingFromMap(m, pageURL); ok {
					out = append(out, l)
					continue
				}
			}
			out = append(out, listingsFromState(item, pageURL)...)
		}
	case map[string]any:
		for _, child := range t {
			out = append(out, listingsFromState(child, pageURL)...)
		}
	}
	return out
}

func listingFromMap(m map[string]any, pageURL string) (Listing, bool) {
	title := stringField(m, "title", "name")
	if title == "" {
		return Listing{}, false
	}
	l := Listing{
		Title:       title,
		Location:    stringField(m, "location", "address", "city"),
		Description: stringField(m, "description"),
	}
	if u := stringField(m, "url", "href", "link"); u != "" {
		l.URL = urlutil.ResolveURL(pageURL, u)
	}
	switch price := m["price"].(type) {
	case int64:
		l.Price = float64(price)
	case float64:
		l.Price = price
	case string:
		l.PriceText = price
		if v, ok := extract.Price(price); ok {
			l.Price = v
		}
	}
	if !validate(l) {
		return Listing{}, false
	}
	return l, true
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
