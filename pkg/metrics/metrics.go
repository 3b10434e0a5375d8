package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrdersCreated counts orders created, labeled by payment method.
var OrdersCreated = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Total number of orders created",
	},
	[]string{"payment_method"},
)

// CartMutations counts cart mutations by operation (add, remove, clear).
var CartMutations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Total number of cart mutations applied",
	},
	[]string{"op"},
)

// CartBroadcasts counts cart snapshots pushed to live connections.
var CartBroadcasts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "storefront_cart_broadcasts_total",
		Help: "Total number of cart snapshots broadcast over websocket",
	},
)

// WSConnections tracks currently registered websocket connections.
var WSConnections = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "storefront_ws_connections",
		Help: "Number of live websocket connections",
	},
)

// WebhooksProcessed counts payment webhooks by outcome (paid, ignored, anomaly).
var WebhooksProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_payment_webhooks_total",
		Help: "Total number of payment webhooks processed",
	},
	[]string{"outcome"},
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
	)

	DBIdleConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_db_idle_connections",
			Help: "Number of idle connections in the DB pool",
		},
	)

	DBInUseConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
	)
)

func init() {
	prometheus.MustRegister(OrdersCreated, CartMutations, CartBroadcasts, WSConnections, WebhooksProcessed)
	prometheus.MustRegister(DBOpenConns, DBIdleConns, DBInUseConns)
}
