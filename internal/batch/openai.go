package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIService drives the OpenAI Files and Batches APIs. One batch job
// covers all submissions of a task.
type OpenAIService struct {
	client openai.Client
}

func NewOpenAIService(apiKey string) *OpenAIService {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &OpenAIService{client: openai.NewClient(opts...)}
}

func (s *OpenAIService) Submit(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening batch file %s: %w", path, err)
	}
	defer f.Close()

	file, err := s.client.Files.New(ctx, openai.FileNewParams{
		File:    f,
		Purpose: openai.FilePurposeBatch,
	})
	if err != nil {
		return "", fmt.Errorf("error uploading batch file %s: %w", path, err)
	}

	batch, err := s.client.Batches.New(ctx, openai.BatchNewParams{
		InputFileID:      file.ID,
		Endpoint:         openai.BatchNewParamsEndpointV1ChatCompletions,
		CompletionWindow: openai.BatchNewParamsCompletionWindow24h,
	})
	if err != nil {
		return "", fmt.Errorf("error creating batch for file %s: %w", file.ID, err)
	}

	slog.Info("batch enqueued", "batch_id", batch.ID, "input_file_id", file.ID)
	return batch.ID, nil
}

func (s *OpenAIService) Status(ctx context.Context, jobID string) (JobStatus, error) {
	batch, err := s.client.Batches.Get(ctx, jobID)
	if err != nil {
		return JobStatus{}, fmt.Errorf("error querying batch %s: %w", jobID, err)
	}

	return JobStatus{
		Status:       string(batch.Status),
		Total:        batch.RequestCounts.Total,
		Completed:    batch.RequestCounts.Completed,
		Failed:       batch.RequestCounts.Failed,
		OutputFileID: batch.OutputFileID,
		ErrorFileID:  batch.ErrorFileID,
	}, nil
}

func (s *OpenAIService) Retrieve(ctx context.Context, fileID string) ([]byte, error) {
	res, err := s.client.Files.Content(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("error downloading file %s: %w", fileID, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", fileID, err)
	}
	return data, nil
}
