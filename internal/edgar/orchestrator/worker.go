package orchestrator

import (
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

// WorkerOptions configures NewWorker.
type WorkerOptions struct {
	HostPort  string
	TaskQueue string
}

// NewWorker dials the Temporal frontend at opts.HostPort and returns a
// worker registered for every ingestion workflow and activity, polling
// opts.TaskQueue. Callers run it with w.Run(worker.InterruptCh()).
func NewWorker(opts WorkerOptions, activities *Activities) (worker.Worker, client.Client, error) {
	c, err := client.Dial(client.Options{HostPort: opts.HostPort})
	if err != nil {
		return nil, nil, eris.Wrap(err, "orchestrator: dial temporal")
	}

	w := worker.New(c, opts.TaskQueue, worker.Options{})

	w.RegisterWorkflow(ProcessFilingIndexWorkflow)
	w.RegisterWorkflow(ProcessFilingWorkflow)
	w.RegisterWorkflow(SearchDocumentWorkflow)
	w.RegisterWorkflow(ExtractDocumentDataWorkflow)

	w.RegisterActivity(activities.FetchOrCacheIndex)
	w.RegisterActivity(activities.GetFilingByStorePath)
	w.RegisterActivity(activities.EnsureEnvelope)
	w.RegisterActivity(activities.CreateFilingError)
	w.RegisterActivity(activities.ParseEnvelope)
	w.RegisterActivity(activities.PersistFiling)
	w.RegisterActivity(activities.PersistDocumentsAndArtifacts)
	w.RegisterActivity(activities.UpdateFilingStatus)
	w.RegisterActivity(activities.UpsertFilingIndexResult)
	w.RegisterActivity(activities.SearchDocument)
	w.RegisterActivity(activities.ExtractDocumentData)

	zap.L().Info("registered temporal worker", zap.String("component", "orchestrator"), zap.String("task_queue", opts.TaskQueue))

	return w, c, nil
}
