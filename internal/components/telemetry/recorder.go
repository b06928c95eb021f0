package telemetry

import (
	"strings"
	"sync"
)

type Report struct {
	Kind   string
	ID     string
	Params []any
}

// RecorderAPI keeps every report in memory so that tests can assert on what was reported.
type RecorderAPI struct {
	mutex   sync.Mutex
	reports []Report
}

func (r *RecorderAPI) push(kind, id string, params []any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, Report{Kind: kind, ID: id, Params: params})
}

func (r *RecorderAPI) ReportBroken(id string, params ...any) {
	r.push("broken", id, params)
}

func (r *RecorderAPI) ReportWarning(id string, params ...any) {
	r.push("warning", id, params)
}

func (r *RecorderAPI) ReportDebug(msg string, params ...any) {
	r.push("debug", msg, params)
}

func (r *RecorderAPI) ReportCount(id string, count int64) {
	r.push("count", id, []any{count})
}

// Find returns all reports of the given kind whose id ends with suffix.
func (r *RecorderAPI) Find(kind, suffix string) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, rep := range r.reports {
		if rep.Kind == kind && strings.HasSuffix(rep.ID, suffix) {
			out = append(out, rep)
		}
	}
	return out
}
