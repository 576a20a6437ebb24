package scenario

import (
	"fmt"
	"strings"

	"github.com/me/ksched/pkg/model"
)

// Validate checks the scenario against a machine of cpus CPUs.
// Returns nil if valid, or an *model.APIError with FieldError details.
func (sc *Scenario) Validate(cpus int) *model.APIError {
	var errs []model.FieldError

	if cpus < 1 || cpus > model.MaxCPUs {
		errs = append(errs, model.FieldError{
			Field:   "cpus",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", model.MaxCPUs, cpus),
		})
		cpus = 0
	}
	if sc.TimeSlice < 0 {
		errs = append(errs, model.FieldError{Field: "time_slice", Message: "must not be negative"})
	}
	if sc.Broadcast && sc.Uniprocessor {
		errs = append(errs, model.FieldError{Field: "broadcast", Message: "cannot broadcast on a uniprocessor"})
	}

	names := make(map[string]bool, len(sc.Threads))
	errs = append(errs, sc.validateThreads(cpus, names)...)
	errs = append(errs, sc.validateEvents(cpus, names)...)

	if len(errs) == 0 {
		return nil
	}
	return model.NewValidationError("scenario validation failed", errs...)
}

func (sc *Scenario) validateThreads(cpus int, names map[string]bool) []model.FieldError {
	var errs []model.FieldError
	for i, t := range sc.Threads {
		field := fmt.Sprintf("threads[%d]", i)
		switch {
		case t.Name == "":
			errs = append(errs, model.FieldError{Field: field + ".name", Message: "name is required"})
		case strings.HasPrefix(t.Name, "idle"):
			errs = append(errs, model.FieldError{Field: field + ".name", Message: "names starting with \"idle\" are reserved"})
		case names[t.Name]:
			errs = append(errs, model.FieldError{Field: field + ".name", Message: fmt.Sprintf("duplicate thread %q", t.Name)})
		}
		names[t.Name] = true

		if !model.ValidPriority(t.Priority) {
			errs = append(errs, model.FieldError{
				Field:   field + ".priority",
				Message: fmt.Sprintf("must be between %d and %d", model.LowestPriority, model.HighestPriority),
			})
		}
		if t.Pinned != nil && (*t.Pinned < 0 || *t.Pinned >= cpus) {
			errs = append(errs, model.FieldError{
				Field:   field + ".pinned",
				Message: fmt.Sprintf("cpu %d is not online", *t.Pinned),
			})
		}
		switch t.Start {
		case "", StartBlocked:
		case StartReady:
			if t.Queue != "" {
				errs = append(errs, model.FieldError{Field: field + ".queue", Message: "only blocked threads start on a queue"})
			}
		default:
			errs = append(errs, model.FieldError{
				Field:   field + ".start",
				Message: fmt.Sprintf("unknown start %q; expected ready or blocked", t.Start),
			})
		}
	}
	return errs
}

func (sc *Scenario) validateEvents(cpus int, names map[string]bool) []model.FieldError {
	var errs []model.FieldError
	last := 0
	for i, e := range sc.Events {
		field := fmt.Sprintf("events[%d]", i)
		if e.At < last {
			errs = append(errs, model.FieldError{Field: field + ".at", Message: "events must be ordered by at"})
		}
		last = e.At

		if e.CPU < 0 || e.CPU >= cpus {
			errs = append(errs, model.FieldError{Field: field + ".cpu", Message: fmt.Sprintf("cpu %d is not online", e.CPU)})
		}
		if !knownOps[e.Op] {
			errs = append(errs, model.FieldError{Field: field + ".op", Message: fmt.Sprintf("unknown op %q", e.Op)})
			continue
		}
		if e.Count < 0 {
			errs = append(errs, model.FieldError{Field: field + ".count", Message: "must not be negative"})
		}

		switch e.Op {
		case OpWake:
			if e.Thread == "" {
				errs = append(errs, model.FieldError{Field: field + ".thread", Message: "wake requires a thread"})
			} else if !names[e.Thread] {
				errs = append(errs, model.FieldError{Field: field + ".thread", Message: fmt.Sprintf("unknown thread %q", e.Thread)})
			}
		case OpWakeOne, OpWakeAll:
			if e.Queue == "" {
				errs = append(errs, model.FieldError{Field: field + ".queue", Message: string(e.Op) + " requires a queue"})
			}
		}
	}
	return errs
}
