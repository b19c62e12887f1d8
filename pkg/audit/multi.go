package audit

import "errors"

// MultiWriter fans every entry out to several loggers. A failing writer
// does not stop the others from receiving the entry.
type MultiWriter struct {
	writers []AuditLogger
}

// NewMultiWriter returns a MultiWriter over the non-nil writers.
func NewMultiWriter(writers ...AuditLogger) *MultiWriter {
	m := &MultiWriter{}
	for _, w := range writers {
		if w != nil {
			m.writers = append(m.writers, w)
		}
	}
	return m
}

// Log writes entry to every writer and joins their errors.
func (m *MultiWriter) Log(entry AuditEntry) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Log(entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every writer and joins their errors.
func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ AuditLogger = (*MultiWriter)(nil)
