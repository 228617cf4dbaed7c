package redesign

import "github.com/koios/arqia/pkg/models"

// Result is a delivered redesign.
type Result struct {
	JobID    string `json:"jobId"`
	ImageURL string `json:"imageUrl"`
}

// Deliver turns a terminal job into a result or a typed error.
func Deliver(job models.Job) (Result, error) {
	switch job.State {
	case models.StateSucceeded:
		return Result{JobID: job.ID, ImageURL: job.ResultURL}, nil
	case models.StateFailed:
		if job.Cause == models.CauseTransport {
			return Result{}, &Error{Kind: KindTransport, JobID: job.ID, Detail: job.ErrorDetail}
		}
		return Result{}, &Error{Kind: KindGenerationFailed, JobID: job.ID, Detail: detailOr(job.ErrorDetail, msgGenerationFailed)}
	case models.StateCanceled:
		return Result{}, &Error{Kind: KindCanceled, JobID: job.ID, Detail: detailOr(job.ErrorDetail, msgCanceled)}
	case models.StateTimedOut:
		return Result{}, &Error{Kind: KindTimedOut, JobID: job.ID, Detail: detailOr(job.ErrorDetail, msgTimedOut)}
	default:
		return Result{}, &Error{Kind: KindGenerationFailed, JobID: job.ID, Detail: "job is not finished: " + string(job.State)}
	}
}

func detailOr(detail, fallback string) string {
	if detail == "" {
		return fallback
	}
	return detail
}
