package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ClaimCaseActivity)
	w.RegisterActivity(a.AnalyzeCaseActivity)
	w.RegisterActivity(a.CompleteCaseActivity)
	w.RegisterActivity(a.FailCaseActivity)
}
