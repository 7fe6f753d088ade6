package storageutils_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ollamatrace/pkg/config"
	"github.com/papercomputeco/ollamatrace/pkg/storage/inmemory"
	"github.com/papercomputeco/ollamatrace/pkg/storage/sqlite"
	storageutils "github.com/papercomputeco/ollamatrace/pkg/storage/utils"
)

var _ = Describe("NewDriver", func() {
	ctx := context.Background()

	It("returns no driver for an empty type", func() {
		driver, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{})
		Expect(err).NotTo(HaveOccurred())
		Expect(driver).To(BeNil())
	})

	It("returns no driver for none", func() {
		driver, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{DriverType: "none"})
		Expect(err).NotTo(HaveOccurred())
		Expect(driver).To(BeNil())
	})

	It("builds an in-memory driver", func() {
		driver, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{DriverType: "memory"})
		Expect(err).NotTo(HaveOccurred())
		Expect(driver).To(BeAssignableToTypeOf(&inmemory.Driver{}))
	})

	It("builds a sqlite driver", func() {
		driver, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{
			DriverType: "sqlite",
			SQLitePath: ":memory:",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(driver).To(BeAssignableToTypeOf(&sqlite.Driver{}))
		Expect(driver.Close()).To(Succeed())
	})

	It("requires a dsn for postgres", func() {
		_, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{DriverType: "postgres"})
		Expect(err).To(MatchError(ContainSubstring("dsn")))
	})

	It("rejects unknown drivers", func() {
		_, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{DriverType: "mongo"})
		Expect(err).To(MatchError(ContainSubstring("unsupported storage driver: mongo")))
	})
})

var _ = Describe("NewDriverFromConfig", func() {
	ctx := context.Background()

	It("places the default sqlite database in the config dir", func() {
		dir := GinkgoT().TempDir()
		driver, err := storageutils.NewDriverFromConfig(ctx, config.StorageConfig{Driver: "sqlite"}, dir, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(driver).To(BeAssignableToTypeOf(&sqlite.Driver{}))
		Expect(driver.Close()).To(Succeed())

		Expect(filepath.Join(dir, "calls.db")).To(BeAnExistingFile())
	})

	It("returns no driver when storage is disabled", func() {
		driver, err := storageutils.NewDriverFromConfig(ctx, config.NewDefaultConfig().Storage, "", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(driver).To(BeNil())
	})
})
