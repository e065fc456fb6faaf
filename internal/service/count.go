package service

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"userapi/internal/logging"
	"userapi/internal/memo"
	"userapi/internal/repository"
)

// userCountKey identifies the user count within a memo scope.
const userCountKey = "count:" + repository.EntityUser

var tracer = otel.Tracer("userapi/internal/service")

// CountMetrics instruments the queries issued by CountUsers.
// Memoized calls are not observed; only trips to the data store are.
type CountMetrics struct {
	queries  *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewCountMetrics registers the count metrics on reg.
func NewCountMetrics(reg prometheus.Registerer) (*CountMetrics, error) {
	m := &CountMetrics{
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "user_count_queries_total",
				Help: "Number of user count queries sent to the data store.",
			},
			[]string{"result"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "user_count_query_duration_seconds",
			Help:    "Latency of user count queries.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{m.queries, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *CountMetrics) observe(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.queries.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// CountUsers returns the number of user records.
//
// Within one memo scope the data store is queried at most once: concurrent
// callers share the in-flight query and later callers get its outcome,
// failures included. Without a scope in ctx every call queries the store.
// Store errors are returned unchanged; there is no retry and no default.
func (s *userService) CountUsers(ctx context.Context) (int64, error) {
	return memo.Do(ctx, userCountKey, s.countUsers)
}

func (s *userService) countUsers(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "UserService.CountUsers")
	defer span.End()

	if s.countTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.countTimeout)
		defer cancel()
	}

	start := time.Now()
	n, err := s.repo.Count(ctx, repository.EntityUser)
	elapsed := time.Since(start)
	s.metrics.observe(err, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user count failed")
		logging.FromContext(ctx).Error().
			Err(err).
			Str("component", "service").
			Str("event", "user_count_failed").
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("user count query failed")
		return 0, err
	}

	span.SetAttributes(attribute.Int64("user.count", n))
	logging.FromContext(ctx).Debug().
		Str("component", "service").
		Str("event", "user_count_queried").
		Int64("count", n).
		Int64("duration_ms", elapsed.Milliseconds()).
		Msg("user count queried")
	return n, nil
}
