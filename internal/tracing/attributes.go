package tracing

// Span attribute keys following OpenTelemetry semantic conventions
const (
	// Site attributes
	AttrSite = "dexterity.site"

	// Content attributes
	AttrPortalType = "dexterity.portal_type"
	AttrPath       = "dexterity.path"
	AttrUID        = "dexterity.uid"

	// Marshaling attributes
	AttrMimeType     = "dexterity.mime_type"
	AttrCharset      = "dexterity.charset"
	AttrPrimaryCount = "dexterity.primary_fields"
	AttrBytesWritten = "dexterity.bytes.written"
	AttrBytesRead    = "dexterity.bytes.read"
	AttrSpooled      = "dexterity.spooled"

	// Type lifecycle attributes
	AttrEvent = "dexterity.event"

	// Operation attributes
	AttrOperation = "dexterity.operation"
	AttrStatus    = "dexterity.status"
	AttrError     = "dexterity.error"

	// HTTP attributes (OpenTelemetry semantic conventions)
	AttrHTTPMethod       = "http.method"
	AttrHTTPRoute        = "http.route"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPUserAgent    = "http.user_agent"
	AttrHTTPRequestSize  = "http.request.size"
	AttrHTTPResponseSize = "http.response.size"

	// gRPC attributes (OpenTelemetry semantic conventions)
	AttrRPCService = "rpc.service"
	AttrRPCMethod  = "rpc.method"
	AttrRPCStatus  = "rpc.status_code"
)
