package csrf

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce      sync.Once
	tokenLookups     metric.Int64Counter
	tokenFetches     metric.Int64Counter
	tokenFetchTime   metric.Float64Histogram
	interceptResults metric.Int64Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/uptask/uptask-client/internal/csrf")

		var err error
		tokenLookups, err = meter.Int64Counter(
			"csrf.token.lookups",
			metric.WithDescription("Token requests by the cache state observed"),
		)
		if err != nil {
			otel.Handle(err)
		}

		tokenFetches, err = meter.Int64Counter(
			"csrf.token.fetches",
			metric.WithDescription("Token endpoint calls by outcome"),
		)
		if err != nil {
			otel.Handle(err)
		}

		tokenFetchTime, err = meter.Float64Histogram(
			"csrf.token.fetch.duration",
			metric.WithDescription("Token endpoint call duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}

		interceptResults, err = meter.Int64Counter(
			"csrf.intercept.outcomes",
			metric.WithDescription("Outgoing requests by CSRF handling outcome"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

func recordLookup(ctx context.Context, observed State) {
	if tokenLookups == nil {
		return
	}
	tokenLookups.Add(ctx, 1,
		metric.WithAttributes(attribute.String("csrf.state", observed.String())),
	)
}

func recordFetch(ctx context.Context, outcome string, duration time.Duration) {
	if tokenFetches != nil {
		tokenFetches.Add(ctx, 1,
			metric.WithAttributes(attribute.String("csrf.fetch.outcome", outcome)),
		)
	}
	if tokenFetchTime != nil {
		tokenFetchTime.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("csrf.fetch.outcome", outcome)),
		)
	}
}

func recordOutcome(ctx context.Context, method string, outcome Outcome) {
	if interceptResults == nil {
		return
	}
	interceptResults.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("csrf.outcome", outcome.String()),
		),
	)
}
