package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/imgpost/internal/imgpost"
	"github.com/blacktop/imgpost/internal/imgpost/imagefit"
	"github.com/blacktop/imgpost/internal/imgpost/postlog"
)

type fakePublisher struct {
	id    string
	err   error
	calls int
	last  imgpost.Request
}

func (f *fakePublisher) Name() string { return "fake" }

func (f *fakePublisher) Publish(ctx context.Context, req imgpost.Request) (string, error) {
	f.calls++
	f.last = req
	return f.id, f.err
}

func makeImageDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("tiny"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestRun_PostsAndLogs(t *testing.T) {
	dir := makeImageDir(t, "a.png")
	log := postlog.New(filepath.Join(t.TempDir(), "posted.log"))
	pub := &fakePublisher{id: "at://did/app.bsky.feed.post/1"}

	runner := New(dir, log, pub)
	runner.Tag = "sunset"
	runner.Alt = "alt text"

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if pub.calls != 1 {
		t.Fatalf("publisher called %d times, want 1", pub.calls)
	}

	want := filepath.Join(dir, "a.png")
	if pub.last.ImagePath != want {
		t.Errorf("published %q, want %q (file under ceiling stays unchanged)", pub.last.ImagePath, want)
	}
	if pub.last.Tag != "sunset" || pub.last.Alt != "alt text" {
		t.Errorf("request decoration = %+v, want tag and alt passed through", pub.last)
	}

	posted, err := log.IsPosted(want)
	if err != nil {
		t.Fatalf("IsPosted failed: %v", err)
	}
	if !posted {
		t.Error("posted image was not recorded in the log")
	}
}

func TestRun_SecondRunPostsTheOtherImage(t *testing.T) {
	dir := makeImageDir(t, "a.png", "b.png")
	log := postlog.New(filepath.Join(t.TempDir(), "posted.log"))
	pub := &fakePublisher{id: "1"}
	runner := New(dir, log, pub)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	first := pub.last.ImagePath

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if pub.last.ImagePath == first {
		t.Errorf("second run re-posted %q", first)
	}

	// Third run finds everything posted: a normal terminal outcome.
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("third Run = %v, want nil when exhausted", err)
	}
	if pub.calls != 2 {
		t.Errorf("publisher called %d times across three runs, want 2", pub.calls)
	}
}

func TestRun_EmptyDirectoryIsNotAnError(t *testing.T) {
	log := postlog.New(filepath.Join(t.TempDir(), "posted.log"))
	pub := &fakePublisher{}
	runner := New(t.TempDir(), log, pub)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run on empty directory = %v, want nil", err)
	}
	if pub.calls != 0 {
		t.Errorf("publisher called %d times, want 0", pub.calls)
	}
}

func TestRun_PublishFailureLeavesLogUntouched(t *testing.T) {
	dir := makeImageDir(t, "a.png")
	logPath := filepath.Join(t.TempDir(), "posted.log")
	log := postlog.New(logPath)
	wantErr := fmt.Errorf("remote unavailable")
	pub := &fakePublisher{err: wantErr}
	runner := New(dir, log, pub)

	if err := runner.Run(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("Run = %v, want publish error", err)
	}
	if _, err := os.Stat(logPath); !os.IsNotExist(err) {
		t.Error("log file was written although the publish failed")
	}
}

func TestRun_DecodeFailureAbortsWithoutFallthrough(t *testing.T) {
	dir := makeImageDir(t, "garbage.png")
	log := postlog.New(filepath.Join(t.TempDir(), "posted.log"))
	pub := &fakePublisher{}
	runner := New(dir, log, pub)
	// Force the fit path; the fixture bytes are not a decodable image.
	runner.Fitter = imagefit.Fitter{Ceiling: 1, Quality: imagefit.DefaultQuality}

	err := runner.Run(context.Background())
	var decodeErr imgpost.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Run = %v, want DecodeError", err)
	}
	if pub.calls != 0 {
		t.Errorf("publisher called %d times after decode failure, want 0", pub.calls)
	}
}

func TestRun_LogFailureAfterPostIsOnlyWarned(t *testing.T) {
	dir := makeImageDir(t, "a.png")
	// A log under a missing parent: reads fail open to "not posted" but the
	// append cannot create the file.
	logPath := filepath.Join(t.TempDir(), "missing-parent", "posted.log")
	log := postlog.New(logPath)
	pub := &fakePublisher{id: "1"}
	runner := New(dir, log, pub)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run = %v, want nil: the post succeeded", err)
	}
	if pub.calls != 1 {
		t.Errorf("publisher called %d times, want 1", pub.calls)
	}
}

func TestRun_CleansDerivedCopies(t *testing.T) {
	dir := makeImageDir(t, "a.png")
	original := filepath.Join(dir, "a.png")
	for _, derived := range []string{original + "_compressed.jpg", original + "_resized.jpg"} {
		if err := os.WriteFile(derived, []byte("leftover"), 0o644); err != nil {
			t.Fatalf("write %s: %v", derived, err)
		}
	}

	log := postlog.New(filepath.Join(t.TempDir(), "posted.log"))
	pub := &fakePublisher{id: "1"}
	runner := New(dir, log, pub)

	// The derived copies themselves are directory entries; mark them posted
	// so the selector settles on the original.
	if err := log.Append(original + "_compressed.jpg"); err != nil {
		t.Fatalf("seed log: %v", err)
	}
	if err := log.Append(original + "_resized.jpg"); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, derived := range []string{original + "_compressed.jpg", original + "_resized.jpg"} {
		if _, err := os.Stat(derived); !os.IsNotExist(err) {
			t.Errorf("derived copy %s still present after a successful run", derived)
		}
	}
	if _, err := os.Stat(original); err != nil {
		t.Errorf("original removed: %v", err)
	}
}
