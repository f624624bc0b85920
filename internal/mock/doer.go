package mock

import (
	"net/http"
	"net/http/httptest"
	"time"
)

// Doer serves requests directly from a Backend without a network
// round trip. It satisfies service.Doer.
type Doer struct {
	backend *Backend
}

// Doer returns an in-process client for b.
func (b *Backend) Doer() *Doer {
	return &Doer{backend: b}
}

// Do dispatches req to the backend handler. The configured latency is
// applied first and the request context is honoured while waiting.
func (d *Doer) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if lat := d.backend.latency; lat > 0 {
		t := time.NewTimer(lat)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in := req.Clone(ctx)
	if in.Body == nil {
		in.Body = http.NoBody
	}
	if in.RemoteAddr == "" {
		in.RemoteAddr = "127.0.0.1:0"
	}
	in.RequestURI = in.URL.RequestURI()

	rec := httptest.NewRecorder()
	d.backend.Handler().ServeHTTP(rec, in)

	resp := rec.Result()
	resp.Request = req
	return resp, nil
}
