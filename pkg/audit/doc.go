// Package audit records who revealed which personal data and when.
//
// Every time a room owner reads a member's filled form, the rooms service
// writes an AuditEntry describing the reveal. Entries are written as JSON
// lines either to a file or to stdout.
//
// # Basic Usage
//
//	logger, err := audit.NewLogger(&audit.AuditConfig{
//		Enabled:    true,
//		OutputFile: "/var/log/formroom-audit.log",
//	}, slog.Default())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer logger.Close()
//
//	entry := audit.NewAuditEntry(audit.EventResponseRevealed, audit.TraceID(ctx)).
//		WithActor(&audit.ActorInfo{UserID: ownerID}).
//		WithRoom(&audit.RoomInfo{ID: roomID})
//	_ = logger.Log(*entry)
//
// # Trace Correlation
//
// TraceMiddleware stores a per-request trace ID in the request context.
// The ID is taken from the X-Request-ID header when present and generated
// otherwise, so entries written while serving one request share a trace ID.
//
// # Application log
//
// With AuditConfig.Log set, entries are also written through the
// application's slog.Logger (SlogLogger), which ships them to Loki when
// log.loki_url is configured. A file plus the application log is served by
// a MultiWriter.
package audit
