package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("IDGenerator", func() {
	It("should count from one", func() {
		g := NewSequentialIDGenerator()

		Expect(g.Generate()).To(Equal("1"))
		Expect(g.Generate()).To(Equal("2"))
		Expect(NewSequentialIDGenerator().Generate()).To(Equal("1"))
	})

	It("should never repeat a unique ID", func() {
		g := NewUniqueIDGenerator()
		seen := make(map[string]bool)

		for i := 0; i < 1000; i++ {
			id := g.Generate()
			Expect(id).To(HaveLen(20))
			Expect(seen).NotTo(HaveKey(id))
			seen[id] = true
		}
	})
})
