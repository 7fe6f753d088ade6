package tracing_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ollamatrace/pkg/eventstream"
	"github.com/papercomputeco/ollamatrace/pkg/storage/inmemory"
	"github.com/papercomputeco/ollamatrace/pkg/tracing"
	"github.com/papercomputeco/ollamatrace/pkg/tracked"
)

// stalledDriver blocks Put until its context ends, like an unreachable database.
type stalledDriver struct {
	*inmemory.Driver
}

func (stalledDriver) Put(ctx context.Context, _ *tracked.Call) error {
	<-ctx.Done()
	return ctx.Err()
}

// otlpRequest is what the fake collector saw on one export.
type otlpRequest struct {
	Path    string
	Headers http.Header
}

type fakeCollector struct {
	mu       sync.Mutex
	requests []otlpRequest
	server   *httptest.Server
}

func newFakeCollector() *fakeCollector {
	fc := &fakeCollector{}
	fc.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fc.mu.Lock()
		fc.requests = append(fc.requests, otlpRequest{Path: r.URL.Path, Headers: r.Header.Clone()})
		fc.mu.Unlock()
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.WriteHeader(http.StatusOK)
	}))
	return fc
}

func (fc *fakeCollector) Requests() []otlpRequest {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return append([]otlpRequest(nil), fc.requests...)
}

type closingPublisher struct {
	closed bool
	err    error
}

func (p *closingPublisher) PublishCall(context.Context, *eventstream.CallTrackedEvent) error {
	return nil
}

func (p *closingPublisher) Close() error {
	p.closed = true
	return p.err
}

var _ = Describe("Client", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("New", func() {
		It("builds a disabled client from an empty config", func() {
			client, err := tracing.New(ctx, tracing.Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(client.Enabled()).To(BeFalse())
			Expect(client.Config().ProjectName).To(Equal(tracing.DefaultProjectName))
			Expect(client.Shutdown(ctx)).To(Succeed())
		})

		It("rejects a remote endpoint without an api key", func() {
			_, err := tracing.New(ctx, tracing.Config{
				Enabled:  true,
				Endpoint: "https://opik.example.com/api/v1/private/otel/v1/traces",
			})
			Expect(err).To(MatchError(tracing.ErrMissingAPIKey))
		})
	})

	Describe("export", func() {
		var collector *fakeCollector

		BeforeEach(func() {
			collector = newFakeCollector()
		})

		AfterEach(func() {
			collector.server.Close()
		})

		It("sends spans with the backend headers on shutdown", func() {
			client, err := tracing.New(ctx, tracing.Config{
				Enabled:     true,
				Endpoint:    collector.server.URL + "/api/v1/private/otel/v1/traces",
				APIKey:      "secret-key",
				Workspace:   "my-workspace",
				ProjectName: "ollama-demo",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(client.Enabled()).To(BeTrue())

			fn := tracing.TrackWith(client, "call_ollama", func(_ context.Context, _ string) (string, error) {
				return "ok", nil
			})
			_, err = fn(ctx, "Hi!!")
			Expect(err).NotTo(HaveOccurred())

			Expect(tracing.Shutdown(client)).To(Succeed())

			requests := collector.Requests()
			Expect(requests).NotTo(BeEmpty())
			Expect(requests[0].Path).To(Equal("/api/v1/private/otel/v1/traces"))
			Expect(requests[0].Headers.Get("Authorization")).To(Equal("secret-key"))
			Expect(requests[0].Headers.Get("Comet-Workspace")).To(Equal("my-workspace"))
			Expect(requests[0].Headers.Get("projectName")).To(Equal("ollama-demo"))
		})

		It("sends metrics to the derived metrics endpoint", func() {
			client, err := tracing.New(ctx, tracing.Config{
				Enabled:        true,
				Endpoint:       collector.server.URL + "/v1/traces",
				MetricsEnabled: true,
			})
			Expect(err).NotTo(HaveOccurred())

			fn := tracing.TrackWith(client, "call_ollama", func(_ context.Context, _ string) (string, error) {
				return "ok", nil
			})
			_, err = fn(ctx, "Hi!!")
			Expect(err).NotTo(HaveOccurred())

			Expect(tracing.Shutdown(client)).To(Succeed())

			paths := []string{}
			for _, r := range collector.Requests() {
				paths = append(paths, r.Path)
			}
			Expect(paths).To(ContainElement("/v1/traces"))
			Expect(paths).To(ContainElement("/v1/metrics"))
		})
	})

	Describe("Shutdown", func() {
		It("closes the recorders", func() {
			driver := inmemory.NewDriver()
			publisher := &closingPublisher{}

			client, err := tracing.New(ctx, tracing.Config{},
				tracing.WithDriver(driver),
				tracing.WithPublisher(publisher),
				tracing.WithWorkers(1),
			)
			Expect(err).NotTo(HaveOccurred())

			Expect(client.Shutdown(ctx)).To(Succeed())
			Expect(publisher.closed).To(BeTrue())
		})

		It("reports recorder close failures", func() {
			publisher := &closingPublisher{err: errors.New("flush failed")}

			client, err := tracing.New(ctx, tracing.Config{}, tracing.WithPublisher(publisher))
			Expect(err).NotTo(HaveOccurred())

			Expect(client.Shutdown(ctx)).To(MatchError(ContainSubstring("flush failed")))
		})

		It("returns the first result on repeated calls", func() {
			client, err := tracing.New(ctx, tracing.Config{})
			Expect(err).NotTo(HaveOccurred())

			Expect(client.Shutdown(ctx)).To(Succeed())
			Expect(client.Shutdown(ctx)).To(Succeed())
		})

		It("tolerates a nil client", func() {
			Expect(tracing.Shutdown(nil)).To(Succeed())
		})

		It("returns within the bound when a recorder is stuck", func() {
			restore := tracing.SetShutdownTimeout(200 * time.Millisecond)
			defer restore()

			client, err := tracing.New(ctx, tracing.Config{},
				tracing.WithDriver(stalledDriver{Driver: inmemory.NewDriver()}),
				tracing.WithWorkers(1),
			)
			Expect(err).NotTo(HaveOccurred())

			fn := tracing.TrackWith(client, "call_ollama", func(_ context.Context, in string) (string, error) {
				return in, nil
			})
			_, err = fn(ctx, "Hi!!")
			Expect(err).NotTo(HaveOccurred())

			start := time.Now()
			err = tracing.Shutdown(client)
			Expect(err).To(MatchError(context.DeadlineExceeded))
			Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
		})
	})
})

var _ = Describe("Configure", func() {
	BeforeEach(func() {
		tracing.ResetGlobal()
	})

	AfterEach(func() {
		tracing.ResetGlobal()
	})

	It("returns a disabled default client before Configure", func() {
		client := tracing.Default()
		Expect(client).NotTo(BeNil())
		Expect(client.Enabled()).To(BeFalse())
	})

	It("initializes only once and keeps the first result", func() {
		first, err := tracing.Configure(context.Background(), tracing.Config{ProjectName: "first"})
		Expect(err).NotTo(HaveOccurred())
		defer first.Shutdown(context.Background())

		second, err := tracing.Configure(context.Background(), tracing.Config{ProjectName: "second"})
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(BeIdenticalTo(first))
		Expect(tracing.Default()).To(BeIdenticalTo(first))
		Expect(tracing.Default().Config().ProjectName).To(Equal("first"))
	})

	It("falls back to the disabled client after the default is shut down", func() {
		client, err := tracing.Configure(context.Background(), tracing.Config{ProjectName: "first"})
		Expect(err).NotTo(HaveOccurred())
		Expect(tracing.Default()).To(BeIdenticalTo(client))

		Expect(tracing.Shutdown(client)).To(Succeed())

		fallback := tracing.Default()
		Expect(fallback).NotTo(BeIdenticalTo(client))
		Expect(fallback.Enabled()).To(BeFalse())
	})

	It("keeps a configuration error for later calls", func() {
		_, err := tracing.Configure(context.Background(), tracing.Config{
			Enabled:  true,
			Endpoint: "https://opik.example.com/api/v1/private/otel/v1/traces",
		})
		Expect(err).To(MatchError(tracing.ErrMissingAPIKey))

		_, err = tracing.Configure(context.Background(), tracing.Config{})
		Expect(err).To(MatchError(tracing.ErrMissingAPIKey))
		Expect(tracing.Default().Enabled()).To(BeFalse())
	})
})
