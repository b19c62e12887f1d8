// Package logging configures log/slog for formroom.
//
// The server logs to stderr as text or JSON and can additionally ship
// records to a Loki push endpoint:
//
//	log := logging.New(logging.Config{Level: logging.LevelInfo, Format: logging.FormatJSON})
//	if url != "" {
//	    loki := logging.NewLokiHandler(url, logging.WithLokiLabels(map[string]string{"service": "formroom"}))
//	    defer loki.Close()
//	    log = slog.New(logging.NewMultiHandler(log.Handler(), loki))
//	}
//
// Components take a *slog.Logger in their constructor and fall back to
// Nop when none is given. Form contents and decrypted responses are never
// passed to a logger; log identifiers only.
package logging
