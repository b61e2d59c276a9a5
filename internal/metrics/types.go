package metrics

// Metric name constants following Prometheus naming conventions
// Format: dexterity_{component}_{metric}_{unit}

// Schema cache metrics
const (
	MetricSchemaCacheHitsTotal          = "dexterity_schema_cache_hits_total"
	MetricSchemaCacheMissesTotal        = "dexterity_schema_cache_misses_total"
	MetricSchemaCacheInvalidationsTotal = "dexterity_schema_cache_invalidations_total"
	MetricSpecResolutionsTotal          = "dexterity_spec_resolutions_total"
)

// Type lifecycle metrics
const (
	MetricLifecycleEventsTotal    = "dexterity_lifecycle_events_total"
	MetricSchemaRecompilesTotal   = "dexterity_schema_recompiles_total"
	MetricTypesRegistered         = "dexterity_types_registered"
	MetricContentConstructedTotal = "dexterity_content_constructed_total"
)

// Marshaler metrics
const (
	MetricMarshalBytesReadTotal    = "dexterity_marshal_bytes_read_total"
	MetricMarshalBytesWrittenTotal = "dexterity_marshal_bytes_written_total"
	MetricMarshalSpooledTotal      = "dexterity_marshal_spooled_total"
	MetricMarshalDuration          = "dexterity_marshal_duration_seconds"
)

// API metrics
const (
	MetricAPIRequestsTotal   = "dexterity_api_requests_total"
	MetricAPIRequestDuration = "dexterity_api_request_duration_seconds"
)

// Label name constants
const (
	LabelPortalType = "portal_type"
	LabelOutcome    = "outcome"
	LabelKind       = "kind"
	LabelDirection  = "direction"
	LabelOperation  = "operation"
	LabelStatus     = "status"
	LabelMethod     = "method"
	LabelEndpoint   = "endpoint"
	LabelTransport  = "transport"
)

// Marshal directions
const (
	DirectionRead  = "read"
	DirectionWrite = "write"
)
