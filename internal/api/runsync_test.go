package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/seantiz/vidrestore/internal/backend"
	"github.com/seantiz/vidrestore/internal/model"
	"github.com/seantiz/vidrestore/internal/serverless"
)

func postRunSync(t *testing.T, env *testEnv, body string) (*http.Response, serverless.Response) {
	t.Helper()
	resp, err := http.Post(env.ts.URL+"/v1/runsync", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /v1/runsync: %v", err)
	}
	defer resp.Body.Close()

	var out serverless.Response
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestRunSyncSuccess(t *testing.T) {
	env := newTestEnv(t, backend.NewPassthroughBackend(model.Variant7B, 0))

	video := base64.StdEncoding.EncodeToString(mp4Header)
	resp, out := postRunSync(t, env, `{"input":{"video_data":"`+video+`","seed":42,"res_w":640,"res_h":360}}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if out.Status != serverless.StatusSuccess {
		t.Fatalf("result = %+v", out)
	}
	if out.ResultVideo != video {
		t.Error("passthrough result should equal the input")
	}
	if out.Parameters == nil || out.Parameters.Resolution != "640x360" || out.Parameters.Seed != 42 {
		t.Errorf("parameters = %+v", out.Parameters)
	}

	// The synchronous path keeps no records.
	if jobs := listJobs(t, env); len(jobs.Jobs) != 0 {
		t.Errorf("runsync created %d jobs", len(jobs.Jobs))
	}
}

func TestRunSyncMissingVideo(t *testing.T) {
	env := newTestEnv(t, backend.NewPassthroughBackend(model.Variant7B, 0))

	resp, out := postRunSync(t, env, `{"id":"r1","input":{}}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if out.Status != serverless.StatusError || out.ErrorType != string(model.KindValidation) {
		t.Errorf("result = %+v, want ValidationError", out)
	}
}

func TestRunSyncInvalidJSON(t *testing.T) {
	env := newTestEnv(t, backend.NewPassthroughBackend(model.Variant7B, 0))

	resp, err := http.Post(env.ts.URL+"/v1/runsync", "application/json", bytes.NewBufferString("not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
