package reconcile

import (
	"fmt"
	"sync"
	"time"
)

// Report summarizes a single reconciliation run. Counters are safe to
// update from concurrent sweep workers.
type Report struct {
	mu sync.Mutex

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	TrialsConverted   int `json:"trials_converted"`
	TrialsExpired     int `json:"trials_expired"`
	RenewalsProcessed int `json:"renewals_processed"`
	RenewalsFailed    int `json:"renewals_failed"`
	RemindersSent     int `json:"reminders_sent"`

	// Errors holds per-subscriber failures that did not stop the run.
	Errors []string `json:"errors,omitempty"`
}

func (r *Report) addConverted() { r.inc(&r.TrialsConverted) }
func (r *Report) addExpired()   { r.inc(&r.TrialsExpired) }
func (r *Report) addRenewed()   { r.inc(&r.RenewalsProcessed) }
func (r *Report) addFailed()    { r.inc(&r.RenewalsFailed) }
func (r *Report) addReminder()  { r.inc(&r.RemindersSent) }

func (r *Report) inc(counter *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*counter++
}

func (r *Report) addError(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}
