package circuitbreaker

import (
	"context"
	"errors"
	"os"

	catalog "github.com/eugener/holocron/internal"
)

// httpStatusError is implemented by upstream errors carrying a status code.
type httpStatusError interface {
	HTTPStatus() int
}

// Weight returns how much err counts against the upstream:
//
//	nil, caller cancellation, 4xx except 429   0
//	429                                         0.5
//	5xx, transport failures, anything else      1
//	timeouts                                    1.5
func Weight(err error) float64 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return 1.5
	case errors.Is(err, context.Canceled):
		return 0
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrBadRequest):
		return 0
	}

	var he httpStatusError
	if errors.As(err, &he) {
		return statusWeight(he.HTTPStatus())
	}
	return 1
}

func statusWeight(code int) float64 {
	switch {
	case code == 429:
		return 0.5
	case code >= 500:
		return 1
	default:
		return 0
	}
}
