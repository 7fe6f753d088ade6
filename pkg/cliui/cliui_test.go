package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ollamatrace/pkg/cliui"
)

var _ = Describe("cliui", func() {
	Describe("Mark", func() {
		It("returns the success mark for nil errors", func() {
			Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		})

		It("returns the fail mark for errors", func() {
			Expect(cliui.Mark(errors.New("boom"))).To(Equal(cliui.FailMark))
		})
	})

	DescribeTable("FormatDuration",
		func(d time.Duration, expected string) {
			Expect(cliui.FormatDuration(d)).To(Equal(expected))
		},
		Entry("sub-second", 12*time.Millisecond, "12ms"),
		Entry("zero", time.Duration(0), "0ms"),
		Entry("seconds", 3200*time.Millisecond, "3.2s"),
	)

	Describe("KeyValue", func() {
		It("writes the key and value", func() {
			var buf bytes.Buffer
			cliui.KeyValue(&buf, "storage.driver", "sqlite")
			Expect(buf.String()).To(ContainSubstring("storage.driver"))
			Expect(buf.String()).To(ContainSubstring("sqlite"))
			Expect(buf.String()).To(HaveSuffix("\n"))
		})

		It("marks empty values as unset", func() {
			var buf bytes.Buffer
			cliui.KeyValue(&buf, "tracing.api_key", "")
			Expect(buf.String()).To(ContainSubstring("<unset>"))
		})
	})

	Describe("Line", func() {
		It("joins parts with spaces", func() {
			var buf bytes.Buffer
			cliui.Line(&buf, "a", "b", "c")
			Expect(buf.String()).To(ContainSubstring("a b c"))
		})
	})
})
