package service

import (
	"context"
	"time"

	"github.com/wb-go/wbf/ginext"

	"filmclub/internal/dto"
)

const healthProbeTimeout = 3 * time.Second

// Health reports which secrets are configured and whether the meetings
// table answers a count query. It always responds 200.
func (s *service) Health(ctx *ginext.Context) {
	probeCtx, cancel := context.WithTimeout(ctx.Request.Context(), healthProbeTimeout)
	defer cancel()

	var db dto.DatabaseReport
	count, err := s.repo.CountMeetings(probeCtx)
	if err != nil {
		s.log.Warn().Err(err).Msg("health probe failed")
		db.Error = err.Error()
	} else {
		db.OK = true
		db.Count = &count
	}

	env := make(map[string]bool, len(s.opts.EnvReport))
	for k, v := range s.opts.EnvReport {
		env[k] = v
	}

	dto.NoStore(ctx)
	dto.SuccessResponse(ctx, dto.HealthResponse{Env: env, Database: db})
}
