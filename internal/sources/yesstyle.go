package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/scottaicode/seoul-sister/internal/domain"
	"github.com/scottaicode/seoul-sister/internal/fetch"
	"github.com/scottaicode/seoul-sister/internal/logger"
)

const (
	yesStyleName    = "yesstyle"
	yesStyleBaseURL = "https://www.yesstyle.com"

	yesStyleMaxResults = 10
)

// YesStyle is a price source searched by brand and name. Prices are in USD.
type YesStyle struct {
	client *fetch.Client
	logger logger.Logger
}

// NewYesStyle creates the YesStyle adapter.
func NewYesStyle(client *fetch.Client, log logger.Logger) *YesStyle {
	return &YesStyle{client: client, logger: log}
}

// Name returns the source identifier.
func (y *YesStyle) Name() string { return yesStyleName }

// ListCategory is not supported; YesStyle is a price source.
func (y *YesStyle) ListCategory(context.Context, string, int) ([]Listing, error) {
	return nil, ErrNotSupported
}

// FetchDetail is not supported; YesStyle is a price source.
func (y *YesStyle) FetchDetail(context.Context, Listing) (*domain.StagingRecord, error) {
	return nil, ErrNotSupported
}

// SearchProduct searches YesStyle and returns price candidates. Exhausted
// fetch retries degrade to an empty result so one hostile source cannot
// halt a price run.
func (y *YesStyle) SearchProduct(ctx context.Context, brand, name string) ([]PriceCandidate, error) {
	query := url.QueryEscape(cleanText(brand + " " + name))
	searchURL := fmt.Sprintf("%s/en/searchproducts.html?query=%s", yesStyleBaseURL, query)

	body, err := y.client.Get(ctx, searchURL)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		y.logger.Warn("search degraded to empty result",
			logger.String("source", yesStyleName),
			logger.Error(err),
		)
		return []PriceCandidate{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	candidates := y.parseResults(doc, brand)

	y.logger.Debug("searched price source",
		logger.String("source", yesStyleName),
		logger.String("brand", brand),
		logger.String("name", name),
		logger.Int("candidates", len(candidates)),
	)

	return candidates, nil
}

// parseResults extracts candidates from the search result tiles.
func (y *YesStyle) parseResults(doc *goquery.Document, brand string) []PriceCandidate {
	var candidates []PriceCandidate

	doc.Find(".itemContainer, li[data-product-id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name := cleanText(s.Find(".itemTitle, .product-name").First().Text())
		if name == "" {
			return true
		}

		candidate := PriceCandidate{
			Name:    name,
			Brand:   cleanText(s.Find(".itemBrand, .product-brand").First().Text()),
			InStock: true,
		}
		if candidate.Brand == "" {
			candidate.Brand = brand
		}

		candidate.PriceUSD = parsePrice(s.Find(".itemPrice, .product-price").First().Text())

		if href, ok := s.Find("a").First().Attr("href"); ok {
			candidate.URL = absoluteURL(yesStyleBaseURL, href)
		}

		if s.Find(".soldOut, .out-of-stock").Length() > 0 {
			candidate.InStock = false
		}

		candidates = append(candidates, candidate)
		return len(candidates) < yesStyleMaxResults
	})

	return candidates
}

// absoluteURL resolves a possibly relative href against the source base.
func absoluteURL(base, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(u).String()
}
