package price

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/scottaicode/seoul-sister/internal/database"
	"github.com/scottaicode/seoul-sister/internal/domain"
	"github.com/scottaicode/seoul-sister/internal/logger"
)

// historyThresholdUSD is the minimum price movement that earns a history
// snapshot. Sub-cent noise from currency rounding is ignored.
const historyThresholdUSD = 0.01

// Store is the backing-store surface for price writes.
type Store interface {
	GetCurrent(ctx context.Context, productID, retailerID int64) (*domain.ProductPrice, error)
	Upsert(ctx context.Context, price *domain.ProductPrice) error
	InsertHistory(ctx context.Context, entry *domain.PriceHistoryEntry) error
}

// Upserter writes matched prices and their history snapshots.
type Upserter struct {
	store  Store
	logger logger.Logger
}

// NewUpserter creates an upserter.
func NewUpserter(store Store, log logger.Logger) *Upserter {
	return &Upserter{store: store, logger: log}
}

// Apply writes a matched candidate's price for (product, retailer). A
// history snapshot is recorded on first insert and whenever the price
// moves by more than one cent.
func (u *Upserter) Apply(ctx context.Context, match *Match, retailerID int64, retailerName string) error {
	now := time.Now().UTC()

	existing, err := u.store.GetCurrent(ctx, match.Product.ID, retailerID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to read current price: %w", err)
	}

	price := &domain.ProductPrice{
		ProductID:  match.Product.ID,
		RetailerID: retailerID,
		PriceKRW:   match.Candidate.PriceKRW,
		PriceUSD:   match.Candidate.PriceUSD,
		URL:        match.Candidate.URL,
		InStock:    match.Candidate.InStock,
		CheckedAt:  now,
	}

	if upsertErr := u.store.Upsert(ctx, price); upsertErr != nil {
		return upsertErr
	}

	newPrice, currency := primaryPrice(price)
	if newPrice == nil {
		return nil
	}

	if existing != nil && !priceChanged(existing, *newPrice, currency) {
		return nil
	}

	entry := &domain.PriceHistoryEntry{
		ProductID:  match.Product.ID,
		Retailer:   retailerName,
		Price:      *newPrice,
		Currency:   currency,
		RecordedAt: now,
	}
	if histErr := u.store.InsertHistory(ctx, entry); histErr != nil {
		return histErr
	}

	return nil
}

// primaryPrice picks the price and currency to track in history. USD is
// preferred when both are present.
func primaryPrice(price *domain.ProductPrice) (*float64, string) {
	if price.PriceUSD != nil {
		return price.PriceUSD, "USD"
	}
	if price.PriceKRW != nil {
		return price.PriceKRW, "KRW"
	}
	return nil, ""
}

// priceChanged reports whether the price moved by more than one cent from
// the existing row in the same currency.
func priceChanged(existing *domain.ProductPrice, newPrice float64, currency string) bool {
	var old *float64
	switch currency {
	case "USD":
		old = existing.PriceUSD
	case "KRW":
		old = existing.PriceKRW
	}
	if old == nil {
		return true
	}
	return math.Abs(*old-newPrice) > historyThresholdUSD
}
