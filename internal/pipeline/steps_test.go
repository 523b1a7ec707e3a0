package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nao1215/onionleak/internal/crawler"
	"github.com/nao1215/onionleak/internal/database"
	"github.com/nao1215/onionleak/internal/matcher"
	"github.com/nao1215/onionleak/internal/model"
	"github.com/nao1215/onionleak/internal/report"
	"github.com/nao1215/onionleak/internal/sink"
	"github.com/nao1215/onionleak/internal/tor"
)

// plainSession fetches on a direct client.
type plainSession struct {
	client *http.Client
}

func (s plainSession) HTTPClient() *http.Client            { return s.client }
func (s plainSession) RotateIdentity(context.Context) error { return nil }

// acceptAll lets the crawler fetch httptest URLs.
func acceptAll(string) error { return nil }

func newProbeServer(t *testing.T, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if r.URL.Path == "/probe" {
			fmt.Fprint(w, body)
			return
		}
		fmt.Fprintf(w, "<html><head><title>%s</title></head><body><p>contact alice@mail.com at %s</p></body></html>", r.URL.Path, r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifyStep(t *testing.T) {
	t.Parallel()

	t.Run("routed traffic connects", func(t *testing.T) {
		t.Parallel()

		srv := newProbeServer(t, `{"IsTor": true, "IP": "203.0.113.9"}`, nil)
		cs := tor.NewCircuitSession(srv.Client(), tor.WithProbeURL(srv.URL+"/probe"))

		session := model.NewSession(model.SessionCrawl)
		if err := NewVerifyStep(cs, nil).Do(context.Background(), session); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if !session.Connected {
			t.Error("session should be connected")
		}
	})

	t.Run("unrouted traffic stops the run before any fetch", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		srv := newProbeServer(t, `{"IsTor": false}`, &hits)
		cs := tor.NewCircuitSession(srv.Client(), tor.WithProbeURL(srv.URL+"/probe"))

		session := model.NewSession(model.SessionCrawl)
		session.Targets = []string{srv.URL + "/page"}

		p := New()
		p.AddStep(NewVerifyStep(cs, nil))
		p.AddStep(NewCrawlStep(plainSession{srv.Client()}, nil,
			WithEngineOptions(crawler.WithTargetValidator(acceptAll), crawler.WithDelay(0))))

		err := p.Execute(context.Background(), session)
		if !errors.Is(err, tor.ErrNotRouted) {
			t.Fatalf("expected ErrNotRouted, got %v", err)
		}
		if session.Connected {
			t.Error("session should not be connected")
		}
		if hits.Load() != 1 {
			t.Errorf("server saw %d requests, expected only the probe", hits.Load())
		}
		if len(session.Results) != 0 {
			t.Errorf("Results = %v, expected none", session.Results)
		}
	})
}

func TestCrawlStep(t *testing.T) {
	t.Parallel()

	t.Run("refuses to run unverified", func(t *testing.T) {
		t.Parallel()

		step := NewCrawlStep(plainSession{http.DefaultClient}, nil)
		session := model.NewSession(model.SessionCrawl)
		session.Targets = []string{"http://example.com"}
		if err := step.Do(context.Background(), session); err == nil {
			t.Error("expected error for an unverified session")
		}
	})

	t.Run("writes page text to the corpus", func(t *testing.T) {
		t.Parallel()

		srv := newProbeServer(t, "", nil)
		corpusPath := filepath.Join(t.TempDir(), "text.txt")
		corpus, err := sink.OpenCorpus(corpusPath)
		if err != nil {
			t.Fatal(err)
		}
		defer corpus.Close()

		var finished atomic.Int32
		step := NewCrawlStep(plainSession{srv.Client()}, corpus,
			WithEngineOptions(crawler.WithTargetValidator(acceptAll), crawler.WithDelay(0)),
			WithProgress(crawler.ObserverFunc(func(e crawler.Event) {
				if e.Kind == crawler.EventFetchFinished {
					finished.Add(1)
				}
			})),
			WithEventBuffer(0),
		)

		session := model.NewSession(model.SessionCrawl)
		session.Connected = true
		session.Targets = []string{srv.URL + "/one", srv.URL + "/two", srv.URL + "/one"}

		if err := step.Do(context.Background(), session); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if len(session.Results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(session.Results))
		}
		if session.Results[2].Status != model.StatusSkipped {
			t.Errorf("repeated target status = %v, expected skipped", session.Results[2].Status)
		}
		if finished.Load() != 3 {
			t.Errorf("progress saw %d finished events, expected 3", finished.Load())
		}
		if corpus.Pages() != 2 {
			t.Errorf("corpus pages = %d, expected 2", corpus.Pages())
		}

		data, err := os.ReadFile(corpusPath)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "contact alice@mail.com at /one") ||
			!strings.Contains(string(data), "contact alice@mail.com at /two") {
			t.Errorf("corpus missing page text:\n%s", data)
		}
	})

	t.Run("cancellation keeps gathered results", func(t *testing.T) {
		t.Parallel()

		srv := newProbeServer(t, "", nil)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		step := NewCrawlStep(plainSession{srv.Client()}, nil,
			WithEngineOptions(crawler.WithTargetValidator(acceptAll), crawler.WithDelay(0)),
			WithProgress(crawler.ObserverFunc(func(e crawler.Event) {
				if e.Kind == crawler.EventFetchFinished {
					cancel()
				}
			})),
			WithEventBuffer(0),
		)

		session := model.NewSession(model.SessionCrawl)
		session.Connected = true
		session.Targets = []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"}

		err := step.Do(ctx, session)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(session.Results) == 0 || len(session.Results) == 3 {
			t.Errorf("expected a partial result set, got %d", len(session.Results))
		}
	})
}

func TestMatchAndReportSteps(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	refs := filepath.Join(dir, "user_data.txt")
	writeFile(t, refs, "alice@mail.com\n555-1234\n")
	corpus := filepath.Join(dir, "text.txt")
	writeFile(t, corpus, "Alice@Mail.com called.\nNo relevant info.\nCall 555-1234 today.\n")

	var hooked []string
	var out bytes.Buffer

	p := New()
	p.AddStep(NewMatchStep(matcher.NewEngine(), refs, corpus, WithReferenceHook(func(r ...string) {
		hooked = append(hooked, r...)
	})))
	p.AddStep(NewReportStep(report.NewTextWriter(&out, report.WithHeader(false))))

	session := model.NewSession(model.SessionMatch)
	if err := p.Execute(context.Background(), session); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(hooked) != 2 {
		t.Errorf("reference hook got %v", hooked)
	}
	want := "Data: alice@mail.com\n  - Alice@Mail.com called.\nData: 555-1234\n  - Call 555-1234 today.\n"
	if out.String() != want {
		t.Errorf("report =\n%q\nexpected\n%q", out.String(), want)
	}
}

func TestMatchStepMissingCorpus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	refs := filepath.Join(dir, "refs.txt")
	writeFile(t, refs, "x\n")

	var out bytes.Buffer
	p := New()
	p.AddStep(NewMatchStep(matcher.NewEngine(), refs, filepath.Join(dir, "missing.txt")))
	p.AddStep(NewReportStep(report.NewTextWriter(&out)))

	err := p.Execute(context.Background(), model.NewSession(model.SessionMatch))
	var cfgErr *matcher.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("report written after a failed match: %q", out.String())
	}
}

func TestReportStepWithoutReport(t *testing.T) {
	t.Parallel()

	step := NewReportStep(report.NewTextWriter(&bytes.Buffer{}))
	if err := step.Do(context.Background(), model.NewSession(model.SessionMatch)); err == nil {
		t.Error("expected error without a report")
	}
}

func TestPersistStep(t *testing.T) {
	t.Parallel()

	store, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	session := model.NewSession(model.SessionCrawl)
	session.Targets = []string{"http://a.onion"}
	session.Connected = true
	session.Results = append(session.Results, model.FetchResult{
		Address: model.NewAddress("http://a.onion"),
		Status:  model.StatusSuccess,
		Title:   "A",
	})
	session.Report = model.NewMatchReport([]model.MatchEntry{
		{Reference: "alice", Lines: []string{"alice here"}},
	}, 1, 0)

	ctx := context.Background()
	if err := NewPersistStep(store).Do(ctx, session); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	fetches, err := store.ListFetches(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(fetches) != 1 || fetches[0].Title != "A" {
		t.Errorf("ListFetches() = %+v", fetches)
	}
	rep, err := store.GetMatchReport(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rep == nil || rep.MatchedCount() != 1 {
		t.Errorf("GetMatchReport() = %+v", rep)
	}
}

// recordingRecorder remembers the corpus it was given and returns err.
type recordingRecorder struct {
	corpus string
	calls  int
	err    error
}

func (r *recordingRecorder) RecordSession(_ context.Context, _ *model.Session, corpus string) error {
	r.calls++
	r.corpus = corpus
	return r.err
}

func TestPersistStepRecorder(t *testing.T) {
	t.Parallel()

	t.Run("match session passes its corpus", func(t *testing.T) {
		t.Parallel()

		session := model.NewSession(model.SessionMatch)
		session.Targets = []string{"corpus.txt"}
		session.Report = model.NewMatchReport(nil, 0, 0)

		rec := &recordingRecorder{}
		if err := NewPersistStep(rec).Do(context.Background(), session); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if rec.calls != 1 || rec.corpus != "corpus.txt" {
			t.Errorf("calls = %d, corpus = %q", rec.calls, rec.corpus)
		}
	})

	t.Run("crawl session has no corpus", func(t *testing.T) {
		t.Parallel()

		session := model.NewSession(model.SessionCrawl)
		session.Targets = []string{"http://a.onion"}

		rec := &recordingRecorder{}
		if err := NewPersistStep(rec).Do(context.Background(), session); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if rec.corpus != "" {
			t.Errorf("corpus = %q, expected empty", rec.corpus)
		}
	})

	t.Run("recorder failure is returned", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("disk full")
		rec := &recordingRecorder{err: boom}
		if err := NewPersistStep(rec).Do(context.Background(), model.NewSession(model.SessionCrawl)); !errors.Is(err, boom) {
			t.Errorf("expected recorder error, got %v", err)
		}
	})
}
