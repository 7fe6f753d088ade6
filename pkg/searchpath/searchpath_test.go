package searchpath_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ollamatrace/pkg/searchpath"
)

var _ = Describe("Guard", func() {
	It("returns an unchanged copy when the directory is absent", func() {
		entries := []string{"/usr/local/bin", "/usr/bin"}

		got := searchpath.Guard(entries, "/opt/ollamatrace")
		Expect(got).To(Equal(entries))

		got[0] = "/mutated"
		Expect(entries[0]).To(Equal("/usr/local/bin"))
	})

	It("is idempotent when the directory is absent", func() {
		entries := []string{"/usr/local/bin", "/usr/bin"}

		once := searchpath.Guard(entries, "/opt/ollamatrace")
		twice := searchpath.Guard(once, "/opt/ollamatrace")
		Expect(twice).To(Equal(entries))
	})

	It("removes exactly the first matching entry", func() {
		entries := []string{"/opt/ollamatrace", "/usr/bin", "/opt/ollamatrace"}

		got := searchpath.Guard(entries, "/opt/ollamatrace")
		Expect(got).To(Equal([]string{"/usr/bin", "/opt/ollamatrace"}))
		Expect(entries).To(HaveLen(3))
	})

	It("compares cleaned paths", func() {
		got := searchpath.Guard([]string{"/opt/ollamatrace/", "/usr/bin"}, "/opt/ollamatrace")
		Expect(got).To(Equal([]string{"/usr/bin"}))
	})

	It("handles empty input", func() {
		Expect(searchpath.Guard(nil, "/opt/ollamatrace")).To(BeEmpty())
	})
})

var _ = Describe("Split and Join", func() {
	It("round-trips a path value", func() {
		value := searchpath.Join([]string{"/a", "/b", "/c"})
		Expect(searchpath.Split(value)).To(Equal([]string{"/a", "/b", "/c"}))
	})

	It("splits an empty value into no entries", func() {
		Expect(searchpath.Split("")).To(BeEmpty())
	})
})

var _ = Describe("GuardEnv", func() {
	const key = "OLLAMATRACE_TEST_SEARCHPATH"

	AfterEach(func() {
		os.Unsetenv(key)
	})

	It("removes the directory and rewrites the variable", func() {
		GinkgoT().Setenv(key, searchpath.Join([]string{"/opt/ollamatrace", "/usr/bin"}))

		removed, err := searchpath.GuardEnv(key, "/opt/ollamatrace")
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(BeTrue())
		Expect(os.Getenv(key)).To(Equal("/usr/bin"))
	})

	It("leaves the variable alone when the directory is absent", func() {
		GinkgoT().Setenv(key, "/usr/bin")

		removed, err := searchpath.GuardEnv(key, "/opt/ollamatrace")
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(BeFalse())
		Expect(os.Getenv(key)).To(Equal("/usr/bin"))
	})

	It("ignores an unset variable", func() {
		removed, err := searchpath.GuardEnv(key, "/opt/ollamatrace")
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(BeFalse())
		_, set := os.LookupEnv(key)
		Expect(set).To(BeFalse())
	})
})

var _ = Describe("ExecutableDir", func() {
	It("returns an absolute directory", func() {
		dir, err := searchpath.ExecutableDir()
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.IsAbs(dir)).To(BeTrue())
		Expect(dir).To(BeADirectory())
	})
})
