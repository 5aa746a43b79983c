// Package metrics provides Prometheus metrics for the ssr3 bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the bridge.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Transport
	framesTotal       prometheus.Counter
	bytesReceived     prometheus.Counter
	decodeErrors      *prometheus.CounterVec
	messagesTotal     *prometheus.CounterVec
	staleEvents       prometheus.Counter
	connectionState   prometheus.Gauge
	connectsTotal     prometheus.Counter
	disconnectsTotal  prometheus.Counter
	reconnectAttempts prometheus.Counter
	dialErrors        prometheus.Counter
	commandsSent      *prometheus.CounterVec
	commandsDropped   *prometheus.CounterVec

	// Store
	producerActive   prometheus.Gauge
	ingestLatency    prometheus.Histogram
	changedKeys      prometheus.Histogram
	storeKeys        prometheus.Gauge
	storeRevision    prometheus.Gauge
	latchPhase       prometheus.Gauge
	latchTransitions *prometheus.CounterVec
	producerErrors   prometheus.Counter

	// Queue
	queueDepth         prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors *prometheus.CounterVec

	// Feed
	wsClients    prometheus.Gauge
	wsFramesSent prometheus.Counter
	wsDropped    prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ssr3",
		subsystem:        "bridge",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	// Transport
	m.framesTotal = auto.NewCounter(m.counter("frames_total", "Complete newline-delimited frames read from the producer"))
	m.bytesReceived = auto.NewCounter(m.counter("bytes_received_total", "Bytes read from the producer connection"))
	m.decodeErrors = auto.NewCounterVec(m.counter("decode_errors_total", "Frames dropped because they could not be decoded"), []string{"reason"})
	m.messagesTotal = auto.NewCounterVec(m.counter("messages_total", "Decoded producer messages by kind"), []string{"kind"})
	m.staleEvents = auto.NewCounter(m.counter("stale_events_total", "Events discarded because their connection was no longer current"))
	m.connectionState = auto.NewGauge(m.gauge("connected", "1 while a producer connection is live"))
	m.connectsTotal = auto.NewCounter(m.counter("connects_total", "Successful producer connections"))
	m.disconnectsTotal = auto.NewCounter(m.counter("disconnects_total", "Producer connections closed"))
	m.reconnectAttempts = auto.NewCounter(m.counter("reconnect_attempts_total", "Reconnect timers that fired"))
	m.dialErrors = auto.NewCounter(m.counter("dial_errors_total", "Failed dial attempts"))
	m.commandsSent = auto.NewCounterVec(m.counter("commands_sent_total", "Commands written to the producer"), []string{"cmd"})
	m.commandsDropped = auto.NewCounterVec(m.counter("commands_dropped_total", "Commands dropped before reaching the producer"), []string{"cmd", "reason"})

	// Store
	m.producerActive = auto.NewGauge(m.gauge("producer_active", "1 while the producer reports an instrumented target"))
	m.ingestLatency = auto.NewHistogram(m.histogram("ingest_latency_milliseconds", "Time from frame receipt to store publication", m.histogramBuckets))
	m.changedKeys = auto.NewHistogram(m.histogram("changed_keys", "Keys reported changed per ingestion", []float64{0, 1, 2, 4, 8, 16, 32, 64}))
	m.storeKeys = auto.NewGauge(m.gauge("store_keys", "Named values currently held"))
	m.storeRevision = auto.NewGauge(m.gauge("store_revision", "Current store revision"))
	m.latchPhase = auto.NewGauge(m.gauge("latch_phase", "Level-lock phase (0 free, 1 captured, 2 locked)"))
	m.latchTransitions = auto.NewCounterVec(m.counter("latch_transitions_total", "Level-lock phase changes by target phase"), []string{"to"})
	m.producerErrors = auto.NewCounter(m.counter("producer_errors_total", "Error messages reported by the producer"))

	// Queue
	m.queueDepth = auto.NewGauge(m.gauge("queue_depth", "Events waiting for the ingestion worker"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Capacity of the ingestion queue"))
	m.queueEnqueueErrors = auto.NewCounterVec(m.counter("queue_enqueue_errors_total", "Events that could not be enqueued"), []string{"reason"})

	// Feed
	m.wsClients = auto.NewGauge(m.gauge("ws_clients", "Connected websocket feed clients"))
	m.wsFramesSent = auto.NewCounter(m.counter("ws_frames_sent_total", "Frames written to websocket clients"))
	m.wsDropped = auto.NewCounter(m.counter("ws_clients_dropped_total", "Websocket clients dropped for falling behind"))

	// HTTP
	m.httpRequests = auto.NewCounterVec(
		m.counter("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogram("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counter("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Transport Metrics Functions.

// RecordFrame counts one framed segment of n bytes.
func RecordFrame(n int) {
	globalManager.framesTotal.Inc()
	globalManager.bytesReceived.Add(float64(n))
}

// RecordDecodeError counts a dropped frame.
func RecordDecodeError(reason string) {
	globalManager.decodeErrors.WithLabelValues(reason).Inc()
}

// RecordMessage counts a decoded message of the given kind.
func RecordMessage(kind string) {
	globalManager.messagesTotal.WithLabelValues(kind).Inc()
}

// RecordStaleEvent counts an event discarded for belonging to a closed connection.
func RecordStaleEvent() {
	globalManager.staleEvents.Inc()
}

// UpdateConnectionState sets the connected gauge.
func UpdateConnectionState(connected bool) {
	globalManager.connectionState.Set(boolGauge(connected))
}

// RecordConnect counts a successful connection.
func RecordConnect() {
	globalManager.connectsTotal.Inc()
}

// RecordDisconnect counts a closed connection.
func RecordDisconnect() {
	globalManager.disconnectsTotal.Inc()
}

// RecordReconnectAttempt counts a fired reconnect timer.
func RecordReconnectAttempt() {
	globalManager.reconnectAttempts.Inc()
}

// RecordDialError counts a failed dial.
func RecordDialError() {
	globalManager.dialErrors.Inc()
}

// RecordCommandSent counts a command written to the producer.
func RecordCommandSent(cmd string) {
	globalManager.commandsSent.WithLabelValues(cmd).Inc()
}

// RecordCommandDropped counts a command that was not written.
func RecordCommandDropped(cmd, reason string) {
	globalManager.commandsDropped.WithLabelValues(cmd, reason).Inc()
}

// Store Metrics Functions.

// UpdateProducerActive sets the producer-active gauge.
func UpdateProducerActive(active bool) {
	globalManager.producerActive.Set(boolGauge(active))
}

// RecordIngestLatency records ingestion latency in milliseconds.
func RecordIngestLatency(latencyMs float64) {
	globalManager.ingestLatency.Observe(latencyMs)
}

// RecordChangedKeys records the size of a last-changed set.
func RecordChangedKeys(n int) {
	globalManager.changedKeys.Observe(float64(n))
}

// UpdateStoreKeys sets the number of held values.
func UpdateStoreKeys(n int) {
	globalManager.storeKeys.Set(float64(n))
}

// UpdateStoreRevision sets the current revision.
func UpdateStoreRevision(rev uint64) {
	globalManager.storeRevision.Set(float64(rev))
}

// UpdateLatchPhase sets the level-lock phase gauge.
func UpdateLatchPhase(phase int) {
	globalManager.latchPhase.Set(float64(phase))
}

// RecordLatchTransition counts a phase change.
func RecordLatchTransition(to string) {
	globalManager.latchTransitions.WithLabelValues(to).Inc()
}

// RecordProducerError counts a producer-reported error.
func RecordProducerError() {
	globalManager.producerErrors.Inc()
}

// Queue Metrics Functions.

// UpdateQueueDepth sets the number of queued events.
func UpdateQueueDepth(n int) {
	globalManager.queueDepth.Set(float64(n))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts an event that could not be enqueued.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// Feed Metrics Functions.

// UpdateWSClients sets the websocket client gauge.
func UpdateWSClients(n int) {
	globalManager.wsClients.Set(float64(n))
}

// RecordWSFrame counts a frame written to a websocket client.
func RecordWSFrame() {
	globalManager.wsFramesSent.Inc()
}

// RecordWSDropped counts a websocket client dropped for being slow.
func RecordWSDropped() {
	globalManager.wsDropped.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
