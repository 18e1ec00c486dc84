package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/scottaicode/seoul-sister/internal/domain"
	"github.com/scottaicode/seoul-sister/internal/fetch"
	"github.com/scottaicode/seoul-sister/internal/logger"
)

const (
	oliveYoungName    = "oliveyoung"
	oliveYoungBaseURL = "https://global.oliveyoung.com"
	oliveYoungDomain  = "global.oliveyoung.com"
)

// OliveYoung is the primary catalog source. Category listings are crawled
// with colly; detail pages go through the shared fetch client so the
// global rate limits apply.
type OliveYoung struct {
	client *fetch.Client
	logger logger.Logger
}

// NewOliveYoung creates the Olive Young adapter.
func NewOliveYoung(client *fetch.Client, log logger.Logger) *OliveYoung {
	return &OliveYoung{client: client, logger: log}
}

// Name returns the source identifier.
func (o *OliveYoung) Name() string { return oliveYoungName }

// ListCategory crawls one category listing page and returns its product
// tiles.
func (o *OliveYoung) ListCategory(ctx context.Context, categoryID string, page int) ([]Listing, error) {
	pageURL := fmt.Sprintf("%s/display/category?ctgrNo=%s&pageIdx=%d", oliveYoungBaseURL, url.QueryEscape(categoryID), page)

	c := colly.NewCollector(
		colly.AllowedDomains(oliveYoungDomain),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(30 * time.Second)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", fetch.RandomUserAgent())
		r.Headers.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	})

	var listings []Listing
	c.OnHTML("ul.prdt-unit-list li", func(e *colly.HTMLElement) {
		href := e.ChildAttr("a", "href")
		if href == "" {
			return
		}
		detailURL := e.Request.AbsoluteURL(href)

		listing := Listing{
			SourceID: productNoFromURL(detailURL),
			URL:      detailURL,
			Name:     cleanText(e.ChildText(".prdt-name, .name")),
			Brand:    cleanText(e.ChildText(".prdt-brand, .brand")),
		}
		if listing.SourceID == "" || listing.Name == "" {
			return
		}
		listings = append(listings, listing)
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("failed to crawl category page: %w", err)
	}
	c.Wait()

	o.logger.Debug("listed category page",
		logger.String("source", oliveYoungName),
		logger.String("category", categoryID),
		logger.Int("page", page),
		logger.Int("listings", len(listings)),
	)

	return listings, nil
}

// productNoFromURL pulls the retailer's product number out of a detail URL.
func productNoFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("prdtNo")
}

// FetchDetail scrapes a product detail page into a raw staging record.
// Extraction is layered: structural selectors first, then the page's
// JSON-LD block, then pattern matching over raw text.
func (o *OliveYoung) FetchDetail(ctx context.Context, listing Listing) (*domain.StagingRecord, error) {
	body, err := o.client.Get(ctx, listing.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch detail page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail page: %w", err)
	}

	rec := &domain.StagingRecord{
		Source:    oliveYoungName,
		SourceID:  listing.SourceID,
		URL:       listing.URL,
		Name:      firstText(doc, ".prd-name", "h1.name", "h2.prd-brand-info + p"),
		Brand:     firstText(doc, ".prd-brand", ".brand-name", "h2.prd-brand-info"),
		ScrapedAt: time.Now().UTC(),
	}

	if price := firstText(doc, ".price .point", ".prd-price .sale", ".total-price strong"); price != "" {
		rec.PriceUSD = strPtr(price)
	}
	if desc := firstAttr(doc, "content", `meta[property="og:description"]`, `meta[name="description"]`); desc != "" {
		rec.Description = strPtr(cleanText(desc))
	}
	if img := firstAttr(doc, "src", ".prd-img img", ".goods-img img"); img != "" {
		rec.ImageURL = strPtr(img)
	}
	if rating := firstText(doc, ".review-point", ".rating .num"); rating != "" {
		rec.Rating = strPtr(rating)
	}
	if reviews := firstText(doc, ".review-count", ".rating .count"); reviews != "" {
		rec.ReviewCount = strPtr(reviews)
	}
	if cat := firstText(doc, ".location li.on", ".breadcrumb li:last-child"); cat != "" {
		rec.CategoryLabel = strPtr(cat)
	}

	o.fillFromJSONLD(rec, doc)
	o.fillIngredients(rec, doc)

	if rec.Name == "" {
		rec.Name = listing.Name
	}
	if rec.Brand == "" {
		rec.Brand = listing.Brand
	}

	return rec, nil
}

// fillFromJSONLD backfills fields the selectors missed from the page's
// schema.org Product block.
func (o *OliveYoung) fillFromJSONLD(rec *domain.StagingRecord, doc *goquery.Document) {
	product := findJSONLDProduct(doc)
	if product == nil {
		return
	}

	if rec.Name == "" {
		rec.Name = cleanText(product.Name)
	}
	if rec.Brand == "" {
		rec.Brand = product.BrandName()
	}
	if rec.Description == nil && product.Description != "" {
		rec.Description = strPtr(cleanText(product.Description))
	}
	if rec.ImageURL == nil {
		if img := product.ImageURL(); img != "" {
			rec.ImageURL = strPtr(img)
		}
	}
	if rec.PriceUSD == nil {
		if offer := product.Offer(); offer != nil {
			if price := offer.PriceValue(); price != nil {
				rec.PriceUSD = strPtr(fmt.Sprintf("%.2f", *price))
			}
		}
	}
}

// fillIngredients locates the INCI declaration. Olive Young renders it in
// a definition list on the detail tab; the raw-text regex is the fallback
// for template changes.
func (o *OliveYoung) fillIngredients(rec *domain.StagingRecord, doc *goquery.Document) {
	doc.Find("dl.detail-info-list, dl.prd-detail-info").EachWithBreak(func(_ int, dl *goquery.Selection) bool {
		label := strings.ToLower(dl.Find("dt").First().Text())
		if !strings.Contains(label, "ingredient") {
			return true
		}
		if text := cleanText(dl.Find("dd").First().Text()); text != "" {
			rec.RawIngredients = strPtr(text)
			return false
		}
		return true
	})

	if rec.RawIngredients == nil {
		if text := findIngredientsInText(doc.Text()); text != "" {
			rec.RawIngredients = strPtr(text)
		}
	}
}

// SearchProduct is not supported; Olive Young is a catalog source.
func (o *OliveYoung) SearchProduct(context.Context, string, string) ([]PriceCandidate, error) {
	return nil, ErrNotSupported
}

func strPtr(s string) *string { return &s }
