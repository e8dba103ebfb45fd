package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"github.com/smallbiznis/invoiceledger/internal/clock"
	"github.com/smallbiznis/invoiceledger/internal/config"
	invoicedomain "github.com/smallbiznis/invoiceledger/internal/invoice/domain"
	overview "github.com/smallbiznis/invoiceledger/internal/invoiceoverview/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const scanBatchSize = 500

type Params struct {
	fx.In

	Repo   invoicedomain.Repository
	Clock  clock.Clock
	Config config.Config
	Log    *zap.Logger
}

type Service struct {
	repo            invoicedomain.Repository
	clock           clock.Clock
	log             *zap.Logger
	defaultCurrency string
	cache           *gocache.Cache
}

// NewService caches reports for STATISTICS_CACHE_TTL. A zero TTL disables
// the cache.
func NewService(p Params) overview.Service {
	s := &Service{
		repo:            p.Repo,
		clock:           p.Clock,
		log:             p.Log.Named("invoiceoverview.service"),
		defaultCurrency: p.Config.Invoice.DefaultCurrency,
	}
	if ttl := p.Config.Invoice.StatisticsCacheTTL; ttl > 0 {
		s.cache = gocache.New(ttl, 2*ttl)
	}
	return s
}

func (s *Service) Statistics(ctx context.Context, req overview.StatisticsRequest) (overview.StatisticsReport, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if len(currency) != 3 {
		return overview.StatisticsReport{}, invoicedomain.ErrInvalidCurrency
	}
	for _, status := range req.Statuses {
		if !status.Valid() {
			return overview.StatisticsReport{}, errors.WithHintf(invoicedomain.ErrInvalidStatusFilter, "unknown status %q", status)
		}
	}

	key := cacheKey(currency, req.Statuses)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached.(overview.StatisticsReport), nil
		}
	}

	report, err := s.compute(ctx, currency, req.Statuses)
	if err != nil {
		return overview.StatisticsReport{}, err
	}
	if s.cache != nil {
		s.cache.SetDefault(key, report)
	}
	return report, nil
}

// compute folds the store in id order, one batch at a time.
func (s *Service) compute(ctx context.Context, currency string, statuses []invoicedomain.InvoiceStatus) (overview.StatisticsReport, error) {
	start := time.Now()
	now := s.clock.Now()
	wanted := lo.SliceToMap(statuses, func(st invoicedomain.InvoiceStatus) (invoicedomain.InvoiceStatus, bool) {
		return st, true
	})
	var stored []invoicedomain.InvoiceStatus
	if len(statuses) > 0 {
		stored = invoicedomain.StoredStatusesFor(statuses)
	}

	acc := overview.NewAccumulator(currency, now)
	var afterID snowflake.ID
	for {
		batch, err := s.repo.Query(ctx, invoicedomain.Filter{
			Statuses: stored,
			Currency: currency,
			AfterID:  afterID,
			Limit:    scanBatchSize,
		})
		if err != nil {
			return overview.StatisticsReport{}, errors.Wrap(err, "scan invoices")
		}
		for _, inv := range batch {
			if len(wanted) > 0 && !wanted[inv.EffectiveStatus(now)] {
				continue
			}
			if err := acc.Add(inv); err != nil {
				return overview.StatisticsReport{}, err
			}
		}
		if len(batch) < scanBatchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
	}

	report := acc.Report()
	s.log.Debug("statistics computed",
		zap.String("currency", currency),
		zap.Int("invoices", report.InvoiceCount),
		zap.Duration("took", time.Since(start)),
	)
	return report, nil
}

func cacheKey(currency string, statuses []invoicedomain.InvoiceStatus) string {
	parts := lo.Uniq(lo.Map(statuses, func(st invoicedomain.InvoiceStatus, _ int) string { return string(st) }))
	sort.Strings(parts)
	return currency + "|" + strings.Join(parts, ",")
}
