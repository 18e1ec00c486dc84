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
	styleVanaName    = "stylevana"
	styleVanaBaseURL = "https://www.stylevana.com"

	styleVanaMaxResults = 10
)

// StyleVana is a low-reliability price source. Its search page is
// JavaScript-heavy and frequently served behind bot mitigation, so empty
// results are a normal outcome, not a failure.
type StyleVana struct {
	client *fetch.Client
	logger logger.Logger
}

// NewStyleVana creates the Stylevana adapter.
func NewStyleVana(client *fetch.Client, log logger.Logger) *StyleVana {
	return &StyleVana{client: client, logger: log}
}

// Name returns the source identifier.
func (s *StyleVana) Name() string { return styleVanaName }

// ListCategory is not supported; Stylevana is a price source.
func (s *StyleVana) ListCategory(context.Context, string, int) ([]Listing, error) {
	return nil, ErrNotSupported
}

// FetchDetail is not supported; Stylevana is a price source.
func (s *StyleVana) FetchDetail(context.Context, Listing) (*domain.StagingRecord, error) {
	return nil, ErrNotSupported
}

// SearchProduct searches Stylevana. Fetch failures and bot-mitigation
// pages both degrade to an empty candidate list.
func (s *StyleVana) SearchProduct(ctx context.Context, brand, name string) ([]PriceCandidate, error) {
	query := url.QueryEscape(cleanText(brand + " " + name))
	searchURL := fmt.Sprintf("%s/en_US/catalogsearch/result/?q=%s", styleVanaBaseURL, query)

	body, err := s.client.Get(ctx, searchURL)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.logger.Warn("search degraded to empty result",
			logger.String("source", styleVanaName),
			logger.Error(err),
		)
		return []PriceCandidate{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	candidates := s.parseResults(doc, brand)
	if len(candidates) == 0 {
		s.logger.Debug("no candidates parsed, likely bot mitigation",
			logger.String("source", styleVanaName),
			logger.String("brand", brand),
			logger.String("name", name),
		)
	}

	return candidates, nil
}

// parseResults extracts candidates from server-rendered product tiles.
// When the page ships only the JavaScript shell, nothing matches and the
// result is empty.
func (s *StyleVana) parseResults(doc *goquery.Document, brand string) []PriceCandidate {
	var candidates []PriceCandidate

	doc.Find(".product-item, li.item.product").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		name := cleanText(sel.Find(".product-item-name, .product-item-link").First().Text())
		if name == "" {
			return true
		}

		candidate := PriceCandidate{
			Name:    name,
			Brand:   brand,
			InStock: sel.Find(".stock.unavailable").Length() == 0,
		}

		candidate.PriceUSD = parsePrice(sel.Find(".price").First().Text())

		if href, ok := sel.Find("a.product-item-link, a").First().Attr("href"); ok {
			candidate.URL = absoluteURL(styleVanaBaseURL, href)
		}

		candidates = append(candidates, candidate)
		return len(candidates) < styleVanaMaxResults
	})

	return candidates
}
