package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"SmartphoneRanker/internal/domain"
	"SmartphoneRanker/internal/extract"
)

const (
	// StrategyDirectLink scans every product-detail anchor in the document.
	StrategyDirectLink = "direct-link"
	// StrategyContainer walks known card containers.
	StrategyContainer = "container"

	productLinkSelector = `a[href*="/dp/"]`
	minNameLength       = 15
	maxPriceAncestors   = 5
)

var (
	phoneKeywords = []string{
		"phone", "mobile", "smartphone", "iphone", "samsung", "oneplus", "xiaomi",
		"oppo", "vivo", "realme", "redmi", "poco", "motorola", "nokia", "huawei", "honor",
	}

	containerSelectors = []string{
		`div[data-asin]`,
		`div[id*="gridItemRoot"]`,
		`div[class*="zg-item"]`,
	}

	priceSelectors = []string{
		`span[class*="price"]`,
		`.a-price-whole`,
		`.a-price`,
		`span[class*="symbol"]`,
	}

	ratingSelector = `span[class*="rating"], span[class*="star"]`

	currencyExpr = regexp.MustCompile(`₹|Rs\.?\s*\d|[$€£]\s*\d`)
	decimalExpr  = regexp.MustCompile(`\d+\.?\d*`)
)

// DirectLinkStrategy accepts product anchors whose text looks like a phone name.
type DirectLinkStrategy struct {
	base *url.URL
}

// NewDirectLinkStrategy resolves relative links against baseURL.
func NewDirectLinkStrategy(baseURL string) *DirectLinkStrategy {
	return &DirectLinkStrategy{base: parseBase(baseURL)}
}

// Name identifies the strategy inside the registry.
func (d *DirectLinkStrategy) Name() string {
	return StrategyDirectLink
}

// Extract walks product anchors in document order.
func (d *DirectLinkStrategy) Extract(doc *goquery.Document, limit int) extract.Result {
	res := extract.Result{Strategy: d.Name()}

	doc.Find(productLinkSelector).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		name, href, ok := candidateLink(link, d.base)
		if !ok {
			return true
		}

		res.Candidates = append(res.Candidates, domain.ProductCandidate{
			Name:  name,
			Link:  href,
			Price: ancestorPrice(link),
			Rank:  len(res.Candidates) + 1,
		})
		return len(res.Candidates) < limit
	})

	if len(res.Candidates) > 0 {
		res.Kind = extract.Found
	}
	return res
}

// ContainerStrategy locates card containers and reads link, price and rating from each.
type ContainerStrategy struct {
	base *url.URL
}

// NewContainerStrategy resolves relative links against baseURL.
func NewContainerStrategy(baseURL string) *ContainerStrategy {
	return &ContainerStrategy{base: parseBase(baseURL)}
}

// Name identifies the strategy inside the registry.
func (c *ContainerStrategy) Name() string {
	return StrategyContainer
}

// Extract uses the first container selector that matches anything.
func (c *ContainerStrategy) Extract(doc *goquery.Document, limit int) extract.Result {
	res := extract.Result{Strategy: c.Name()}

	var containers *goquery.Selection
	for _, sel := range containerSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			containers = found
			break
		}
	}
	if containers == nil {
		return res
	}

	containers.EachWithBreak(func(_ int, container *goquery.Selection) bool {
		link := container.Find(productLinkSelector).First()
		if link.Length() == 0 {
			return true
		}
		name, href, ok := candidateLink(link, c.base)
		if !ok {
			return true
		}

		res.Candidates = append(res.Candidates, domain.ProductCandidate{
			Name:   name,
			Link:   href,
			Price:  containerPrice(container),
			Rating: containerRating(container),
			Rank:   len(res.Candidates) + 1,
		})
		return len(res.Candidates) < limit
	})

	if len(res.Candidates) > 0 {
		res.Kind = extract.Found
	}
	return res
}

// candidateLink applies the shared name filter and resolves the href.
func candidateLink(link *goquery.Selection, base *url.URL) (string, string, bool) {
	href, exists := link.Attr("href")
	if !exists || strings.TrimSpace(href) == "" {
		return "", "", false
	}

	name := collapse(link.Text())
	if !looksLikePhone(name) {
		return "", "", false
	}

	resolved, err := resolveLink(base, href)
	if err != nil {
		return "", "", false
	}
	return name, resolved, true
}

func looksLikePhone(name string) bool {
	if utf8.RuneCountInString(name) <= minNameLength {
		return false
	}
	lower := strings.ToLower(name)
	for _, kw := range phoneKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func ancestorPrice(link *goquery.Selection) *string {
	parent := link.Parent()
	for i := 0; i < maxPriceAncestors && parent.Length() > 0; i++ {
		// Only leaf spans: wrappers concatenate every nested price fragment.
		marked := parent.Find("span").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Children().Length() == 0 && currencyExpr.MatchString(s.Text())
		}).First()
		if marked.Length() == 0 {
			marked = parent.Find(`span[class*="price"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
				return s.Children().Length() == 0
			}).First()
		}
		if marked.Length() > 0 {
			if text := collapse(marked.Text()); text != "" {
				return &text
			}
		}
		parent = parent.Parent()
	}
	return nil
}

func containerPrice(container *goquery.Selection) *string {
	for _, sel := range priceSelectors {
		el := container.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		text := collapse(el.Text())
		if currencyExpr.MatchString(text) {
			return &text
		}
	}
	return nil
}

func containerRating(container *goquery.Selection) *float64 {
	el := container.Find(ratingSelector).First()
	if el.Length() == 0 {
		return nil
	}
	return parseRating(el.Text())
}

// parseRating reads the first decimal and rescales values above 5 from a 10 point scale.
func parseRating(text string) *float64 {
	match := decimalExpr.FindString(text)
	if match == "" {
		return nil
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	if value > 5 {
		value = value / 10 * 5
	}
	return &value
}

func resolveLink(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if base == nil {
		return "", fmt.Errorf("relative link %q without base url", href)
	}
	return base.ResolveReference(ref).String(), nil
}

func parseBase(raw string) *url.URL {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
