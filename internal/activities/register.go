package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.CheckExistingActivity)
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.QuickPhaseActivity)
	w.RegisterActivity(a.FullPhaseActivity)
	w.RegisterActivity(a.MarkFailedActivity)
	w.RegisterActivity(a.NotifyReadyActivity)
}
