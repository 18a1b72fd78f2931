package spinnaker

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	// TaskSucceeded is the terminal success status of a Spinnaker task
	TaskSucceeded = "SUCCEEDED"

	defaultTaskTimeout      = 120 * time.Second
	defaultTaskPollInterval = 2 * time.Second
)

var taskFailures = map[string]bool{
	"TERMINAL": true,
	"CANCELED": true,
	"STOPPED":  true,
}

// Task is an orchestration request submitted to Gate.
type Task struct {
	Application string                   `json:"application"`
	Description string                   `json:"description"`
	Job         []map[string]interface{} `json:"job"`
}

// PostTask submits a task and returns its id.
func (c *Client) PostTask(ctx context.Context, task *Task) (string, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return "", errors.Wrap(err, "encoding task")
	}
	body, err := c.sendAPIRequest(ctx, http.MethodPost, "/tasks", data)
	if err != nil {
		return "", err
	}
	ref := gjson.GetBytes(body, "ref").String()
	if ref == "" {
		return "", errors.Errorf("gate did not return a task reference: %s", body)
	}
	id := ref[strings.LastIndex(ref, "/")+1:]
	gateLog.InFunc("PostTask").Infof("submitted task %s: %s", id, task.Description)
	return id, nil
}

// WaitForTask polls the task until it finishes. A failed task is returned
// as an error carrying the task's own failure message when available.
func (c *Client) WaitForTask(ctx context.Context, id string) error {
	log := gateLog.InFunc("WaitForTask")

	timeout := c.TaskTimeout
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	interval := c.TaskPollInterval
	if interval <= 0 {
		interval = defaultTaskPollInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		body, err := c.sendAPIRequest(ctx, http.MethodGet, "/tasks/"+id, nil)
		if err != nil {
			return errors.Wrapf(err, "checking task %s", id)
		}

		status := gjson.GetBytes(body, "status").String()
		log.Debugf("task %s status %s", id, status)
		switch {
		case status == TaskSucceeded:
			return nil
		case taskFailures[status]:
			reason := gjson.GetBytes(body, "execution.stages.#.context.exception.details.errors|@flatten|0").String()
			if reason == "" {
				reason = status
			}
			return errors.Errorf("task %s failed: %s", id, reason)
		}

		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "waiting for task %s", id)
		case <-ticker.C:
		}
	}
}
