package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("VTime", func() {
	It("should convert seconds", func() {
		Expect(Seconds(2)).To(Equal(2 * Second))
		Expect(Seconds(0.5)).To(Equal(500 * Millisecond))
		Expect((1500 * Millisecond).InSec()).To(BeNumerically("~", 1.5))
	})

	It("should print with a sign and nanosecond precision", func() {
		Expect((2 * Second).String()).To(Equal("+2.000000000s"))
		Expect((1500 * Microsecond).String()).To(Equal("+0.001500000s"))
	})

	It("should reject negative and overflowing delays", func() {
		_, ok := addDelay(10, -1)
		Expect(ok).To(BeFalse())

		_, ok = addDelay(MaxVTime, 1)
		Expect(ok).To(BeFalse())

		t, ok := addDelay(10, 5)
		Expect(ok).To(BeTrue())
		Expect(t).To(Equal(VTime(15)))
	})
})
