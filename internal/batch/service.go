package batch

import "context"

// JobStatus is a snapshot of one remote bulk-inference job.
type JobStatus struct {
	Status    string
	Total     int64
	Completed int64
	Failed    int64

	OutputFileID string
	ErrorFileID  string
}

// Service is the remote bulk-inference collaborator: upload-and-enqueue a
// request file, poll the resulting job, download result files.
type Service interface {
	Submit(ctx context.Context, path string) (jobID string, err error)
	Status(ctx context.Context, jobID string) (JobStatus, error)
	Retrieve(ctx context.Context, fileID string) ([]byte, error)
}
