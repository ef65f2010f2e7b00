package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/tfpilot-io/tfpilot/internal/ir"
	"github.com/tfpilot-io/tfpilot/internal/logging"
)

// DefaultCloudHostname is used when a remote backend block names no host.
const DefaultCloudHostname = "app.terraform.io"

// TokenEnvVar supplies the cloud API token when the backend block carries
// none.
const TokenEnvVar = "TFPILOT_CLOUD_TOKEN"

const runPollInterval = 2 * time.Second

// RemoteConfig identifies a cloud workspace.
type RemoteConfig struct {
	Hostname     string
	Organization string
	Workspace    string
	Token        string
}

// RemoteConfigFromStack extracts the remote backend declaration from a
// stack's configuration document. The second return is false when the
// stack declares no usable remote backend.
func RemoteConfigFromStack(stackJSON string) (RemoteConfig, bool) {
	var doc struct {
		Terraform struct {
			Backend struct {
				Remote *struct {
					Hostname     string `json:"hostname"`
					Organization string `json:"organization"`
					Token        string `json:"token"`
					Workspaces   struct {
						Name string `json:"name"`
					} `json:"workspaces"`
				} `json:"remote"`
			} `json:"backend"`
		} `json:"terraform"`
	}
	if err := json.Unmarshal([]byte(stackJSON), &doc); err != nil {
		return RemoteConfig{}, false
	}

	remote := doc.Terraform.Backend.Remote
	if remote == nil || remote.Organization == "" || remote.Workspaces.Name == "" {
		return RemoteConfig{}, false
	}

	cfg := RemoteConfig{
		Hostname:     remote.Hostname,
		Organization: remote.Organization,
		Workspace:    remote.Workspaces.Name,
		Token:        remote.Token,
	}
	if cfg.Hostname == "" {
		cfg.Hostname = DefaultCloudHostname
	}
	return cfg, true
}

// Remote executes the lifecycle through a Terraform-Cloud-compatible run
// API: plans and applies happen as remote runs whose logs are streamed
// back to the caller.
type Remote struct {
	cfg     RemoteConfig
	baseURL string
	httpc   *http.Client
	retry   *RetryPolicy

	mu         sync.Mutex
	destroyRun string // run created by Plan(destroy=true), consumed by Destroy
}

// NewRemote returns a cloud executor for the given workspace. A missing
// token falls back to the TFPILOT_CLOUD_TOKEN environment variable.
func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.Token == "" {
		cfg.Token = os.Getenv(TokenEnvVar)
	}
	if cfg.Hostname == "" {
		cfg.Hostname = DefaultCloudHostname
	}
	return &Remote{
		cfg:     cfg,
		baseURL: "https://" + cfg.Hostname + "/api/v2",
		httpc:   &http.Client{Timeout: 30 * time.Second},
		retry:   DefaultRetryPolicy(),
	}
}

// apiObject is the single-resource shape of the cloud's JSON:API payloads.
type apiObject struct {
	ID            string          `json:"id"`
	Attributes    json.RawMessage `json:"attributes"`
	Relationships map[string]struct {
		Data struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"data"`
	} `json:"relationships"`
}

type runAttributes struct {
	Status     string `json:"status"`
	HasChanges bool   `json:"has-changes"`
}

// IsRemoteWorkspace reports whether the configured workspace exists and is
// reachable with the configured token.
func (r *Remote) IsRemoteWorkspace(ctx context.Context) bool {
	if r.cfg.Token == "" {
		return false
	}
	_, err := r.workspace(ctx)
	return err == nil
}

func (r *Remote) Init(ctx context.Context) error {
	if r.cfg.Token == "" {
		return fmt.Errorf("cloud backend requires an API token (set %s)", TokenEnvVar)
	}
	if _, err := r.workspace(ctx); err != nil {
		return fmt.Errorf("workspace %s/%s is not reachable: %w", r.cfg.Organization, r.cfg.Workspace, err)
	}
	logging.Debug("cloud workspace verified", "organization", r.cfg.Organization, "workspace", r.cfg.Workspace)
	return nil
}

func (r *Remote) Plan(ctx context.Context, destroy bool) (*ir.Plan, error) {
	ws, err := r.workspace(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"data": map[string]any{
			"type": "runs",
			"attributes": map[string]any{
				"message":    "queued by tfpilot",
				"is-destroy": destroy,
			},
			"relationships": map[string]any{
				"workspace": map[string]any{
					"data": map[string]any{"type": "workspaces", "id": ws.ID},
				},
			},
		},
	}
	created, err := r.post(ctx, "/runs", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	run, attrs, err := r.waitForRun(ctx, created.ID, map[string]bool{
		"planned":              true,
		"planned_and_finished": true,
		"cost_estimated":       true,
		"policy_checked":       true,
	})
	if err != nil {
		return nil, err
	}

	var resources []ir.PlannedResource
	if planRel, ok := run.Relationships["plan"]; ok && planRel.Data.ID != "" {
		raw, err := r.getRaw(ctx, r.baseURL+"/plans/"+planRel.Data.ID+"/json-output")
		if err != nil {
			// The structured plan endpoint is permission-gated; without it
			// the resource list stays empty and progress is seeded from
			// streamed output instead.
			logging.Warn("plan json-output unavailable", "run", run.ID, "error", err)
		} else if resources, err = decodePlanResources(raw); err != nil {
			return nil, err
		}
	}

	if destroy {
		r.mu.Lock()
		r.destroyRun = run.ID
		r.mu.Unlock()
	}

	return &ir.Plan{
		NeedsApply: attrs.HasChanges && attrs.Status != "planned_and_finished",
		Resources:  resources,
		Handle:     run.ID,
		URL: fmt.Sprintf("https://%s/app/%s/workspaces/%s/runs/%s",
			r.cfg.Hostname, r.cfg.Organization, r.cfg.Workspace, run.ID),
	}, nil
}

func (r *Remote) Deploy(ctx context.Context, handle string, onOutput func([]byte)) error {
	return r.applyRun(ctx, handle, onOutput)
}

func (r *Remote) Destroy(ctx context.Context, onOutput func([]byte)) error {
	r.mu.Lock()
	run := r.destroyRun
	r.mu.Unlock()
	if run == "" {
		return errors.New("no destroy run exists: plan a destroy first")
	}
	return r.applyRun(ctx, run, onOutput)
}

func (r *Remote) Output(ctx context.Context) (map[string]ir.OutputValue, error) {
	ws, err := r.workspace(ctx)
	if err != nil {
		return nil, err
	}

	svRel, ok := ws.Relationships["current-state-version"]
	if !ok || svRel.Data.ID == "" {
		return map[string]ir.OutputValue{}, nil
	}

	objs, err := r.getList(ctx, "/state-versions/"+svRel.Data.ID+"/outputs")
	if err != nil {
		return nil, fmt.Errorf("failed to read outputs: %w", err)
	}

	outputs := make(map[string]ir.OutputValue, len(objs))
	for _, obj := range objs {
		var attrs struct {
			Name      string `json:"name"`
			Sensitive bool   `json:"sensitive"`
			Type      any    `json:"type"`
			Value     any    `json:"value"`
		}
		if err := json.Unmarshal(obj.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("failed to decode output: %w", err)
		}
		outputs[attrs.Name] = ir.OutputValue{
			Value:     attrs.Value,
			Type:      attrs.Type,
			Sensitive: attrs.Sensitive,
		}
	}
	return outputs, nil
}

// applyRun confirms a run's apply and streams its log until the run
// settles.
func (r *Remote) applyRun(ctx context.Context, runID string, onOutput func([]byte)) error {
	body := map[string]string{"comment": "confirmed by tfpilot"}
	if _, err := r.post(ctx, "/runs/"+runID+"/actions/apply", body); err != nil {
		return fmt.Errorf("failed to confirm run %s: %w", runID, err)
	}

	logURL, err := r.applyLogURL(ctx, runID)
	if err != nil {
		logging.Warn("apply log unavailable", "run", runID, "error", err)
	}

	var seen int
	for {
		_, attrs, err := r.runStatus(ctx, runID)
		if err != nil {
			return err
		}

		if logURL != "" && onOutput != nil {
			seen = r.emitLogTail(ctx, logURL, seen, onOutput)
		}

		switch attrs.Status {
		case "applied":
			return nil
		case "errored", "canceled", "force_canceled", "discarded":
			return fmt.Errorf("run %s finished with status %q", runID, attrs.Status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(runPollInterval):
		}
	}
}

// emitLogTail fetches the apply log and emits any bytes beyond seen,
// returning the new high-water mark. Log fetch failures are tolerated;
// run status remains authoritative.
func (r *Remote) emitLogTail(ctx context.Context, logURL string, seen int, onOutput func([]byte)) int {
	raw, err := r.getRaw(ctx, logURL)
	if err != nil || len(raw) <= seen {
		return seen
	}
	onOutput(raw[seen:])
	return len(raw)
}

func (r *Remote) applyLogURL(ctx context.Context, runID string) (string, error) {
	run, _, err := r.runStatus(ctx, runID)
	if err != nil {
		return "", err
	}
	applyRel, ok := run.Relationships["apply"]
	if !ok || applyRel.Data.ID == "" {
		return "", errors.New("run has no apply")
	}

	applyObj, err := r.get(ctx, "/applies/"+applyRel.Data.ID)
	if err != nil {
		return "", err
	}
	var attrs struct {
		LogReadURL string `json:"log-read-url"`
	}
	if err := json.Unmarshal(applyObj.Attributes, &attrs); err != nil {
		return "", err
	}
	return attrs.LogReadURL, nil
}

// waitForRun polls a run until it reaches one of the done statuses.
func (r *Remote) waitForRun(ctx context.Context, runID string, done map[string]bool) (*apiObject, runAttributes, error) {
	for {
		run, attrs, err := r.runStatus(ctx, runID)
		if err != nil {
			return nil, runAttributes{}, err
		}

		if done[attrs.Status] {
			return run, attrs, nil
		}
		switch attrs.Status {
		case "errored", "canceled", "force_canceled", "discarded":
			return nil, runAttributes{}, fmt.Errorf("run %s finished with status %q", runID, attrs.Status)
		}

		select {
		case <-ctx.Done():
			return nil, runAttributes{}, ctx.Err()
		case <-time.After(runPollInterval):
		}
	}
}

func (r *Remote) runStatus(ctx context.Context, runID string) (*apiObject, runAttributes, error) {
	run, err := r.get(ctx, "/runs/"+runID)
	if err != nil {
		return nil, runAttributes{}, fmt.Errorf("failed to read run %s: %w", runID, err)
	}
	var attrs runAttributes
	if err := json.Unmarshal(run.Attributes, &attrs); err != nil {
		return nil, runAttributes{}, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return run, attrs, nil
}

func (r *Remote) workspace(ctx context.Context) (*apiObject, error) {
	ws, err := r.get(ctx, "/organizations/"+r.cfg.Organization+"/workspaces/"+r.cfg.Workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace: %w", err)
	}
	return ws, nil
}

func (r *Remote) get(ctx context.Context, path string) (*apiObject, error) {
	raw, err := r.getRaw(ctx, r.baseURL+path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Data apiObject `json:"data"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode API response: %w", err)
	}
	return &doc.Data, nil
}

func (r *Remote) getList(ctx context.Context, path string) ([]apiObject, error) {
	raw, err := r.getRaw(ctx, r.baseURL+path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Data []apiObject `json:"data"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode API response: %w", err)
	}
	return doc.Data, nil
}

// post is a single attempt, never retried: creating or confirming a run
// is not idempotent, and a retry after a failure that reached the server
// would enqueue a duplicate.
func (r *Remote) post(ctx context.Context, path string, body any) (*apiObject, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	raw, err := r.do(req)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return &apiObject{}, nil
	}
	var doc struct {
		Data apiObject `json:"data"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode API response: %w", err)
	}
	return &doc.Data, nil
}

func (r *Remote) getRaw(ctx context.Context, url string) ([]byte, error) {
	var raw []byte
	err := r.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		raw, err = r.do(req)
		return err
	}, IsTransientError)
	return raw, err
}

func (r *Remote) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	req.Header.Set("Content-Type", "application/vnd.api+json")

	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status)
	}
	return raw, nil
}
