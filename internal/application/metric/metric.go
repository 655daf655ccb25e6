package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики - количество запросов
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP метрики - время обработки запросов
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP метрики - количество ошибок
	httpErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Общее количество HTTP ошибок",
		},
		[]string{"method", "endpoint", "status"},
	)

	// WS метрики - количество активных соединений
	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Количество активных WebSocket соединений",
		},
	)

	// WS метрики - входящие сообщения по типу и результату
	wsMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_messages_total",
			Help: "Количество входящих WebSocket сообщений",
		},
		[]string{"type", "outcome"},
	)

	// Количество живых сессий комнат
	activeRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rooms_active_sessions",
			Help: "Количество комнат с хотя бы одним подключением",
		},
	)

	// Получатели, отключенные из-за ошибки отправки
	wsDroppedRecipientsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_dropped_recipients_total",
			Help: "Количество соединений, отключенных при рассылке",
		},
	)
)

// RecordHTTPMetrics записывает метрики HTTP запроса
func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())

	// Записываем ошибки (статус >= 400)
	if status >= 400 {
		httpErrorsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	}
}

func IncrementWSActiveConnections() {
	wsActiveConnections.Inc()
}

func DecrementWSActiveConnections() {
	wsActiveConnections.Dec()
}

// RecordWSMessage считает входящее сообщение. outcome: ok, rejected, malformed
func RecordWSMessage(msgType, outcome string) {
	wsMessagesTotal.WithLabelValues(msgType, outcome).Inc()
}

func IncrementActiveRooms() {
	activeRooms.Inc()
}

func DecrementActiveRooms() {
	activeRooms.Dec()
}

func IncrementDroppedRecipients() {
	wsDroppedRecipientsTotal.Inc()
}
