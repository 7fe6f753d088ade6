package sqlite_test

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ollamatrace/pkg/storage"
	"github.com/papercomputeco/ollamatrace/pkg/storage/sqlite"
	"github.com/papercomputeco/ollamatrace/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	var (
		driver *sqlite.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		driver, err = sqlite.NewDriver(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("NewDriver", func() {
		It("rejects an empty path", func() {
			_, err := sqlite.NewDriver(ctx, "")
			Expect(err).To(HaveOccurred())
		})

		It("creates parent directories for a file database", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "nested", "calls.db")

			fileDriver, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer fileDriver.Close()

			Expect(dbPath).To(BeAnExistingFile())
		})
	})

	Describe("Put and Get", func() {
		It("round-trips every field of a call", func() {
			call := storagetest.NewCall("call-1", 0)
			Expect(driver.Put(ctx, call)).To(Succeed())

			got, err := driver.Get(ctx, "call-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal(call.Name))
			Expect(got.Project).To(Equal(call.Project))
			Expect(got.TraceID).To(Equal(call.TraceID))
			Expect(got.SpanID).To(Equal(call.SpanID))
			Expect(string(got.Input)).To(Equal(`"Hi!!"`))
			Expect(string(got.Output)).To(Equal(`{"text":"Hello!"}`))
			Expect(got.StartedAt.Equal(call.StartedAt)).To(BeTrue())
			Expect(got.EndedAt.Equal(call.EndedAt)).To(BeTrue())
			Expect(got.Duration).To(Equal(250 * time.Millisecond))
			Expect(got.Metadata).To(HaveKeyWithValue("model", "llama3.2"))
		})

		It("replaces a call with the same ID", func() {
			Expect(driver.Put(ctx, storagetest.NewCall("call-1", 0))).To(Succeed())

			updated := storagetest.NewCall("call-1", 0)
			updated.Output = nil
			updated.Error = "connection refused"
			Expect(driver.Put(ctx, updated)).To(Succeed())

			got, err := driver.Get(ctx, "call-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Failed()).To(BeTrue())
			Expect(got.Output).To(BeNil())
		})

		It("rejects a nil call", func() {
			Expect(driver.Put(ctx, nil)).To(MatchError(storage.ErrNilCall))
		})

		It("returns NotFoundError for an unknown ID", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(err).To(MatchError(storage.NotFoundError{ID: "missing"}))
		})
	})

	Describe("List", func() {
		It("returns calls oldest first", func() {
			Expect(driver.Put(ctx, storagetest.NewCall("late", 2*time.Second))).To(Succeed())
			Expect(driver.Put(ctx, storagetest.NewCall("early", 0))).To(Succeed())

			calls, err := driver.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(HaveLen(2))
			Expect(calls[0].ID).To(Equal("early"))
			Expect(calls[1].ID).To(Equal("late"))
		})
	})
})
