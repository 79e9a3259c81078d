package garment

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extractor finds product images on pages of the shops it knows.
type Extractor interface {
	CanExtract(host string) bool
	Extract(doc *goquery.Document) []string
}

// DefaultExtractors covers the shops whose product pages hide the main image
// from the usual meta tags.
func DefaultExtractors() []Extractor {
	return []Extractor{
		amazonExtractor{},
		flipkartExtractor{},
		myntraExtractor{},
		selectorExtractor{hosts: []string{"tatacliq.com"}, selectors: []string{"img.ImageGallery__image"}},
		selectorExtractor{hosts: []string{"peterengland"}, selectors: []string{".Start-image-gallery img", ".slick-track img"}},
	}
}

func hostHas(host string, parts ...string) bool {
	for _, p := range parts {
		if strings.Contains(host, p) {
			return true
		}
	}
	return false
}

type amazonExtractor struct{}

func (amazonExtractor) CanExtract(host string) bool { return hostHas(host, "amazon", "amzn") }

// Thumbnails look like .../I/71sbtz8S+aL._AC_US40_.jpg; dropping the size
// segment gives the full image.
var amazonSizeSuffix = regexp.MustCompile(`\._.+_\.`)

func (amazonExtractor) Extract(doc *goquery.Document) []string {
	var out []string
	for _, sel := range []string{"#landingImage", "#imgBlkFront"} {
		dynamic := doc.Find(sel).AttrOr("data-a-dynamic-image", "")
		if dynamic == "" {
			continue
		}
		// Keys are URLs, values are [width, height].
		var sizes map[string][2]int
		if err := json.Unmarshal([]byte(dynamic), &sizes); err != nil {
			continue
		}
		urls := make([]string, 0, len(sizes))
		for u := range sizes {
			urls = append(urls, u)
		}
		sort.Slice(urls, func(i, j int) bool {
			a, b := sizes[urls[i]], sizes[urls[j]]
			return a[0]*a[1] > b[0]*b[1]
		})
		out = append(out, urls...)
	}
	if src := doc.Find("#landingImage").AttrOr("data-old-hires", ""); src != "" {
		out = append(out, src)
	}
	if src := doc.Find("#landingImage").AttrOr("src", ""); src != "" {
		out = append(out, src)
	}
	doc.Find("#altImages ul li.item img").Each(func(_ int, s *goquery.Selection) {
		if src := s.AttrOr("src", ""); src != "" {
			out = append(out, amazonSizeSuffix.ReplaceAllString(src, "."))
		}
	})
	return out
}

type flipkartExtractor struct{}

func (flipkartExtractor) CanExtract(host string) bool { return hostHas(host, "flipkart.com") }

func (flipkartExtractor) Extract(doc *goquery.Document) []string {
	var out []string
	if src := doc.Find("img._396cs4").AttrOr("src", ""); src != "" {
		out = append(out, src)
	}
	doc.Find("ul._3GnUWp li._20Gt85 img").Each(func(_ int, s *goquery.Selection) {
		if src := s.AttrOr("src", ""); src != "" {
			out = append(out, strings.Replace(src, "/128/128/", "/832/832/", 1))
		}
	})
	return out
}

type myntraExtractor struct{}

func (myntraExtractor) CanExtract(host string) bool { return hostHas(host, "myntra.com") }

var cssURL = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)

func (myntraExtractor) Extract(doc *goquery.Document) []string {
	var out []string
	doc.Find(".image-grid-image").Each(func(_ int, s *goquery.Selection) {
		if m := cssURL.FindStringSubmatch(s.AttrOr("style", "")); len(m) > 1 {
			out = append(out, m[1])
		}
	})
	return out
}

type selectorExtractor struct {
	hosts     []string
	selectors []string
}

func (e selectorExtractor) CanExtract(host string) bool { return hostHas(host, e.hosts...) }

func (e selectorExtractor) Extract(doc *goquery.Document) []string {
	var out []string
	for _, sel := range e.selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if src := s.AttrOr("src", ""); src != "" {
				out = append(out, src)
			}
		})
	}
	return out
}

// genericImages reads the share-preview tags most shops set, then falls back
// to the first image on the page.
func genericImages(doc *goquery.Document) []string {
	var out []string
	for _, sel := range []string{
		"meta[property='og:image:secure_url']",
		"meta[property='og:image']",
		"meta[name='twitter:image']",
		"meta[property='twitter:image']",
	} {
		if v := doc.Find(sel).AttrOr("content", ""); v != "" {
			out = append(out, v)
		}
	}
	if v := doc.Find("link[rel='image_src']").AttrOr("href", ""); v != "" {
		out = append(out, v)
	}
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(src, "data:") {
			return true
		}
		out = append(out, src)
		return false
	})
	return out
}
