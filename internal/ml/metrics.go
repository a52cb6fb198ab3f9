package ml

import (
	"strings"
	"time"

	"github.com/your-org/mediavault/internal/observability"
)

func observeInference(path string, d time.Duration) {
	op := strings.TrimPrefix(path, "/")
	observability.InferenceDuration.WithLabelValues(op).Observe(d.Seconds())
}
