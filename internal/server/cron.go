package server

import (
	"context"
	"encoding/json"
	"strings"

	"simstats-backend/internal/components/chrono"
)

// DefaultCron runs every three hours at five past, in JST.
const DefaultCron = "5 */3 * * *"

// flatten puts a multi-line result on one log line.
func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// ScheduleUpdates registers one cron job per provider, specs maps a provider id
// to its cron spec and providers without one use DefaultCron.
func (s *Server) ScheduleUpdates(ctx context.Context, cron chrono.CronAPI, specs map[string]string) error {
	for _, p := range s.service.Providers() {
		id := p.ID
		spec := specs[id]
		if spec == "" {
			spec = DefaultCron
		}
		err := cron.Cron(spec, func() {
			s.runScheduled(ctx, id)
		})
		if err != nil {
			s.tel.ReportBroken(report_cron_register, err, id, spec)
			return err
		}
		s.tel.ReportDebug("scheduled update", id, spec)
	}
	return nil
}

func (s *Server) runScheduled(ctx context.Context, id string) {
	res := s.update(ctx, id, "cron")
	if res.Failed() {
		s.tel.ReportWarning(report_cron_result, id, flatten(res.Error))
		return
	}
	body, err := json.Marshal(res)
	if err != nil {
		s.tel.ReportBroken(report_cron_result, err, id)
		return
	}
	s.tel.ReportDebug("cron result", id, string(body))
}
