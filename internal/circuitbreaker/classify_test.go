package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"

	catalog "github.com/eugener/holocron/internal"
)

type statusError struct{ code int }

func (e *statusError) Error() string   { return fmt.Sprintf("HTTP %d", e.code) }
func (e *statusError) HTTPStatus() int { return e.code }

func TestWeight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want float64
	}{
		{"nil", nil, 0},
		{"429", &statusError{429}, 0.5},
		{"500", &statusError{500}, 1},
		{"503 wrapped", fmt.Errorf("swapi: %w", &statusError{503}), 1},
		{"400", &statusError{400}, 0},
		{"404", &statusError{404}, 0},
		{"not found", fmt.Errorf("get: %w", catalog.ErrNotFound), 0},
		{"bad request", catalog.ErrBadRequest, 0},
		{"canceled", fmt.Errorf("do: %w", context.Canceled), 0},
		{"deadline", context.DeadlineExceeded, 1.5},
		{"os deadline", os.ErrDeadlineExceeded, 1.5},
		{"network", &net.OpError{Op: "dial", Err: errors.New("refused")}, 1},
		{"server", catalog.ErrServer, 1},
		{"generic", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Weight(tt.err); got != tt.want {
				t.Errorf("Weight(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
