package helper

import (
	"fmt"
	"net/http"
	"sync"
)

// ErrorReporter is the slice of errHandler the helper needs; an interface so
// tests can substitute a recorder.
type ErrorReporter interface {
	ReportServerError(r *http.Request, err error)
}

type HelperRepository struct {
	baseUrl  *string
	WG       *sync.WaitGroup
	reporter ErrorReporter
}

func New(baseUrl *string, wg *sync.WaitGroup, reporter ErrorReporter) *HelperRepository {
	return &HelperRepository{
		baseUrl:  baseUrl,
		WG:       wg,
		reporter: reporter,
	}
}

func (h *HelperRepository) NewEmailData() map[string]any {
	data := map[string]any{
		"BaseURL": *h.baseUrl,
	}

	return data
}

// BackgroundTask runs fn on its own goroutine, recovering panics and routing
// failures to the error reporter so they are never silently dropped. The
// wait group lets the server drain these during shutdown.
func (h *HelperRepository) BackgroundTask(r *http.Request, fn func() error) {
	h.WG.Add(1)

	go func() {
		defer h.WG.Done()

		defer func() {
			err := recover()
			if err != nil && h.reporter != nil {
				h.reporter.ReportServerError(nil, fmt.Errorf("%s", err))
			}
		}()

		// The request may already be finished by the time fn fails, so it
		// is not attached to the report.
		err := fn()
		if err != nil && h.reporter != nil {
			h.reporter.ReportServerError(nil, err)
		}
	}()
}
