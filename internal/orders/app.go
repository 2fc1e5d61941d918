package orders

import (
	"net/http"

	"go.uber.org/zap"

	"SliceSizzle/pkg/kit"
)

type HTTPDeps = kit.HTTPDeps

// NewHandler fills the Server's logger and relay metrics from deps when the
// caller left them unset.
func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	if s.Log == nil {
		s.Log = deps.Log
	}
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	if s.Metrics == nil && deps.Registry != nil {
		s.Metrics = NewMetrics(deps.Registry)
	}

	r := kit.NewRouter(deps)
	r.Mount("/", s.Routes())
	return r
}
