package cmsblog

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eringen/cmsblog/cms"
)

// metrics holds the application counters.
type metrics struct {
	previews    *prometheus.CounterVec
	cmsRequests *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		previews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cmsblog",
			Name:      "preview_resolutions_total",
			Help:      "Preview token resolutions by result",
		}, []string{"result"}),
		cmsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cmsblog",
			Name:      "cms_requests_total",
			Help:      "CMS calls by operation and result",
		}, []string{"op", "result"}),
	}
	reg.MustRegister(m.previews, m.cmsRequests)
	return m
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, cms.ErrNotFound):
		return "not_found"
	case errors.Is(err, cms.ErrInvalidRef):
		return "invalid_ref"
	default:
		return "error"
	}
}

// observedClient counts every call made through the wrapped client.
type observedClient struct {
	next cms.Client
	m    *metrics
}

func (o observedClient) Query(ctx context.Context, preds []cms.Predicate, opts cms.QueryOptions) (cms.Response, error) {
	resp, err := o.next.Query(ctx, preds, opts)
	o.m.cmsRequests.WithLabelValues("query", outcome(err)).Inc()
	return resp, err
}

func (o observedClient) GetByUID(ctx context.Context, typ, uid string, opts cms.QueryOptions) (cms.Document, error) {
	doc, err := o.next.GetByUID(ctx, typ, uid, opts)
	o.m.cmsRequests.WithLabelValues("get_by_uid", outcome(err)).Inc()
	return doc, err
}

func (o observedClient) GetByID(ctx context.Context, id string, opts cms.QueryOptions) (cms.Document, error) {
	doc, err := o.next.GetByID(ctx, id, opts)
	o.m.cmsRequests.WithLabelValues("get_by_id", outcome(err)).Inc()
	return doc, err
}
