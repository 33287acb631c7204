// Package scheduler runs the periodic passes: scanning domains for new
// signals, walking the escalation ladder, and executing the dispatch requests
// the ladder produced. Passes are enqueued through asynq so overlapping runs
// land on one worker pool and stay safe under the dispatch-log claims.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"opspulse_backend/internal/signals/domain"
)

const TaskScanPass = "scan.pass"

const TaskLadderPass = "ladder.pass"

const TaskDispatchRequest = "dispatch.request"

type ScanPassPayload struct {
	Categories []string `json:"categories,omitempty"`
}

func NewScanPassTask(payload ScanPassPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScanPass, data), nil
}

func ParseScanPassPayload(task *asynq.Task) (ScanPassPayload, error) {
	var payload ScanPassPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScanPassPayload{}, err
	}
	return payload, nil
}

func NewLadderPassTask() *asynq.Task {
	return asynq.NewTask(TaskLadderPass, nil)
}

func NewDispatchRequestTask(req domain.DispatchRequest) (*asynq.Task, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDispatchRequest, data), nil
}

func ParseDispatchRequestPayload(task *asynq.Task) (domain.DispatchRequest, error) {
	var req domain.DispatchRequest
	if err := json.Unmarshal(task.Payload(), &req); err != nil {
		return domain.DispatchRequest{}, err
	}
	return req, nil
}
