package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/secureai/medgenomics/pkg/types"
)

// client is a thin JSON/HTTP client for the intake API, used by the
// submit/status/result/proof/cancel commands.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{baseURL: baseURL, http: &http.Client{Timeout: 30 * time.Second}}
}

func (c *client) submit(filename string, body []byte) (string, error) {
	u := fmt.Sprintf("%s/v1/jobs?filename=%s", c.baseURL, url.QueryEscape(filename))
	resp, err := c.http.Post(u, "application/octet-stream", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", apiError(resp)
	}

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.JobID, nil
}

func (c *client) status(jobID string) (types.JobView, error) {
	var view types.JobView
	err := c.getJSON(fmt.Sprintf("%s/v1/jobs/%s", c.baseURL, jobID), &view)
	return view, err
}

func (c *client) result(jobID string) (types.Verdict, error) {
	var verdict types.Verdict
	err := c.getJSON(fmt.Sprintf("%s/v1/jobs/%s/result", c.baseURL, jobID), &verdict)
	return verdict, err
}

func (c *client) proof(jobID string) (types.DeletionProof, error) {
	var proof types.DeletionProof
	err := c.getJSON(fmt.Sprintf("%s/v1/jobs/%s/proof", c.baseURL, jobID), &proof)
	return proof, err
}

func (c *client) cancel(jobID string) error {
	resp, err := c.http.Post(fmt.Sprintf("%s/v1/jobs/%s/cancel", c.baseURL, jobID), "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

func (c *client) getJSON(url string, out interface{}) error {
	resp, err := c.http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var out struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &out) == nil && out.Error != "" {
		return fmt.Errorf("%s: %s", resp.Status, out.Error)
	}
	return fmt.Errorf("%s", resp.Status)
}
