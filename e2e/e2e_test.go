package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/sawtak/glovestudio/internal/app"
	"github.com/sawtak/glovestudio/internal/feed"
	"github.com/sawtak/glovestudio/internal/hook"
	"github.com/sawtak/glovestudio/internal/pose"
	"github.com/sawtak/glovestudio/internal/server"
	"github.com/sawtak/glovestudio/internal/store"
	"github.com/sawtak/glovestudio/testdata"
)

func newRegistry(t *testing.T) *pose.Registry {
	t.Helper()
	reg, err := pose.NewRegistry(pose.HandConfig(pose.ModeScalar))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func writeUploadHook(t *testing.T, dir, out string) {
	t.Helper()
	hookDir := filepath.Join(dir, "record")
	if err := os.MkdirAll(hookDir, 0755); err != nil {
		t.Fatalf("failed to create hook dir: %v", err)
	}
	manifest := `{"name":"record","executable":"record.sh","events":["upload"]}`
	if err := os.WriteFile(filepath.Join(hookDir, hook.ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	script := "#!/bin/sh\ncat > '" + out + "'\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(hookDir, "record.sh"), []byte(script), 0755); err != nil {
		t.Fatalf("failed to write hook: %v", err)
	}
}

func TestE2E_CaptureWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	replayFile, err := testdata.WriteRecording(tmpDir, "hello")
	if err != nil {
		t.Fatalf("WriteRecording() error = %v", err)
	}
	src, err := feed.New(feed.Config{Kind: feed.KindReplay, File: replayFile, Interval: time.Millisecond, Loop: true})
	if err != nil {
		t.Fatalf("feed.New() error = %v", err)
	}

	hookOut := filepath.Join(tmpDir, "hook.json")
	hooksDir := filepath.Join(tmpDir, "hooks")
	writeUploadHook(t, hooksDir, hookOut)
	manager := hook.NewManager(hooksDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	runner := hook.NewRunner(manager, hook.NewExecutor(5*time.Second), nil)

	studio, err := app.New(app.Config{
		Registry:   newRegistry(t),
		Source:     src,
		Uploader:   s,
		Hook:       runner,
		Submission: "Evening practice",
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	if err := studio.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer studio.Close()

	srv := server.New(server.Config{Studio: studio, Store: s})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	send := func(method, path, body string, want int, out interface{}) {
		t.Helper()
		req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
		if err != nil {
			t.Fatalf("NewRequest() error = %v", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("%s %s error = %v", method, path, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("%s %s status = %d, want %d", method, path, resp.StatusCode, want)
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				t.Fatalf("decode %s: %v", path, err)
			}
		}
	}

	var status struct {
		State     string `json:"state"`
		Frames    int    `json:"frames"`
		Connected bool   `json:"connected"`
		Feed      string `json:"feed"`
	}

	t.Run("GloveConnects", func(t *testing.T) {
		waitFor(t, "glove connection", studio.Connected)
		send(http.MethodGet, "/api/studio", "", http.StatusOK, &status)
		if !status.Connected || !strings.HasPrefix(status.Feed, "replay ") {
			t.Errorf("status = %+v", status)
		}
	})

	var signFrames int
	t.Run("RecordSign", func(t *testing.T) {
		send(http.MethodPost, "/api/studio/recording", `{"label":"hello"}`, http.StatusCreated, nil)
		waitFor(t, "120 recorded frames", func() bool { return studio.Status().Frames >= 120 })
		send(http.MethodPost, "/api/studio/recording/stop", "", http.StatusOK, &status)
		if status.State != "reviewing" {
			t.Fatalf("state = %q, want reviewing", status.State)
		}

		// Frames keep arriving but are no longer buffered.
		time.Sleep(50 * time.Millisecond)
		if got := studio.Status().Frames; got != status.Frames {
			t.Errorf("buffer grew to %d after stop, want %d", got, status.Frames)
		}

		send(http.MethodPut, "/api/studio/trim", `{"start":25,"end":75}`, http.StatusOK, nil)
		var sign struct {
			Frames int `json:"frames"`
		}
		send(http.MethodPost, "/api/studio/save", "", http.StatusCreated, &sign)
		start := status.Frames * 25 / 100
		end := status.Frames * 75 / 100
		if sign.Frames != end-start {
			t.Errorf("saved %d frames, want %d", sign.Frames, end-start)
		}
		signFrames = sign.Frames
	})

	var uploadID string
	t.Run("UploadSubmission", func(t *testing.T) {
		var up struct {
			UploadID string `json:"upload_id"`
			Signs    int    `json:"signs"`
		}
		send(http.MethodPost, "/api/studio/upload", `{"name":"Evening practice","language":"ASL"}`, http.StatusCreated, &up)
		if up.Signs != 1 {
			t.Errorf("uploaded %d signs, want 1", up.Signs)
		}
		uploadID = up.UploadID

		runner.Wait()
		data, err := os.ReadFile(hookOut)
		if err != nil {
			t.Fatalf("upload hook did not run: %v", err)
		}
		var req hook.Request
		if err := json.Unmarshal(data, &req); err != nil {
			t.Fatalf("hook received invalid JSON: %v", err)
		}
		if req.UploadID != uploadID || req.Language != "ASL" || len(req.Signs) != 1 || req.Signs[0].Label != "hello" {
			t.Errorf("hook request = %+v", req)
		}
	})

	t.Run("BrowseAndExport", func(t *testing.T) {
		var list struct {
			Submissions []struct {
				ID       string `json:"id"`
				UploadID string `json:"upload_id"`
				Frames   int    `json:"frames"`
			} `json:"submissions"`
		}
		send(http.MethodGet, "/api/submissions?language=ASL", "", http.StatusOK, &list)
		if len(list.Submissions) != 1 || list.Submissions[0].UploadID != uploadID {
			t.Fatalf("submissions = %+v", list.Submissions)
		}

		var exp struct {
			Name       string `json:"name"`
			Recordings []struct {
				Label string `json:"label"`
				Data  []struct {
					Data map[string]map[string]float64 `json:"data"`
				} `json:"data"`
			} `json:"recordings"`
		}
		send(http.MethodGet, "/api/submissions/"+list.Submissions[0].ID+"/download", "", http.StatusOK, &exp)
		if len(exp.Recordings) != 1 || len(exp.Recordings[0].Data) != signFrames {
			t.Fatalf("export = %d recordings", len(exp.Recordings))
		}
		first := exp.Recordings[0].Data[0].Data
		if _, ok := first["index"]["pitch"]; !ok {
			t.Errorf("exported frame = %v, want index pitch", first)
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		send(http.MethodGet, "/api/health", "", http.StatusOK, nil)
	})
}

func TestE2E_RecordingDrivesPose(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	msgs, err := testdata.LoadMessages("fist")
	if err != nil {
		t.Fatalf("LoadMessages() error = %v", err)
	}

	studio, err := app.New(app.Config{Registry: newRegistry(t)})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	if err := studio.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer studio.Close()

	for _, m := range msgs {
		studio.HandleMessage(m)
	}
	waitFor(t, "all frames", func() bool { return studio.Status().FramesReceived == uint64(len(msgs)) })

	snap := studio.Snapshot()
	full := pose.FromAxisAngle(pose.AxisZ, pose.DefaultMaxAngle)
	half := pose.FromAxisAngle(pose.AxisZ, pose.DefaultMaxAngle/2)
	for joint, want := range map[string]pose.Quat{
		"index_01R_017": full,
		"index_02R_018": half,
		"pinky_02R_042": half,
		"thumb_01R_08":  full,
	} {
		if !pose.Equal(snap[joint], want, 1e-9) {
			t.Errorf("%s = %v, want %v", joint, snap[joint], want)
		}
	}

	studio.Calibrate()
	waitFor(t, "calibration", func() bool {
		return pose.Equal(studio.Snapshot()["index_01R_017"], pose.Identity, 1e-9)
	})
}
