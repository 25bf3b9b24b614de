package telemetry

// Span names emitted by the export pipeline.
const (
	SpanExport          = "export"
	SpanExtract         = "export.extract"
	SpanGenerate        = "export.generate"
	SpanDeliver         = "export.deliver"
	SpanLocation        = "location.acquire"
	SpanSnapshot        = "snapshot"
	SpanSnapshotRestore = "snapshot.restore"
	SpanNavigation      = "navigation.offer"
)

// Span attribute keys.
const (
	AttrFormat   = "export.format"
	AttrVariant  = "export.variant"
	AttrFilename = "export.filename"
	AttrPoints   = "track.points"
	AttrSegments = "track.segments"
	AttrCacheHit = "location.cache_hit"
	AttrSurface  = "snapshot.surface"
)
