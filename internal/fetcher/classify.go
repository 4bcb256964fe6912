package fetcher

import (
	"context"
	"errors"
	"net/http"
	"time"

	gh "github.com/google/go-github/v57/github"

	"github.com/gnomegl/gitgraph/internal/github"
)

type Outcome int

const (
	OK Outcome = iota
	RetryAfter
	PermanentFailure
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case RetryAfter:
		return "retry-after"
	case PermanentFailure:
		return "permanent"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result is the typed classification of one provider call.
type Result struct {
	Outcome Outcome
	Delay   time.Duration
	Reason  string
	Err     error
}

// Classify maps a provider error to an Outcome. Quota errors become
// RetryAfter with at least the given cooldown; context errors abort; every
// other error is permanent for the entity that was requested.
func Classify(err error, cooldown time.Duration) Result {
	if err == nil {
		return Result{Outcome: OK}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Result{Outcome: Aborted, Reason: "canceled", Err: err}
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return Result{Outcome: RetryAfter, Delay: cooldown, Reason: "quota exhausted", Err: err}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		delay := cooldown
		if hint := abuseErr.GetRetryAfter(); hint > delay {
			delay = hint
		}
		return Result{Outcome: RetryAfter, Delay: delay, Reason: "secondary rate limit", Err: err}
	}

	if errors.Is(err, github.ErrBadIdentifier) {
		return Result{Outcome: PermanentFailure, Reason: "bad identifier", Err: err}
	}

	var errResp *gh.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		switch errResp.Response.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			return Result{Outcome: PermanentFailure, Reason: "not found", Err: err}
		case http.StatusForbidden, http.StatusUnavailableForLegalReasons, http.StatusUnauthorized:
			return Result{Outcome: PermanentFailure, Reason: "forbidden", Err: err}
		default:
			return Result{Outcome: PermanentFailure, Reason: http.StatusText(errResp.Response.StatusCode), Err: err}
		}
	}

	return Result{Outcome: PermanentFailure, Reason: "unexpected", Err: err}
}
