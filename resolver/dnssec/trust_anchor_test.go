package dnssec

import (
	"github.com/miekg/dns"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const exampleComKSK = "example.com. 172800 IN DNSKEY 257 3 8 " +
	"AwEAAaz/tAm8yTn4Mfeh5eyI96WSVexTBAvkMgJzkKTOiW1vkIbzxeF3+/4RgWOq7HrxRixHlFlExOLAJr5emLvN7SWXgnLh4+B5xQlNVz8Og8k" +
	"vArMtNROxVQuCaSnIDdD5LKyWbRd2n9WGe2R8PzgCmr3EgVLrjyBxWezF0jLHwVN8efS3rCj/EWgvIWgb9tarpVUDK/b58Da+sqqls3eNbuv7pr" +
	"+eoZG+SrDK6nWeL3c6H5Apxz7LjVc1uTIdsIXxuOLYA4/ilBmSVIzuDWfdRUfhHdY6+cn8HFRm+2hM8AnXGXws9555KrUB5qihylGa8subX2Nn6" +
	"UwNR1AkUTV74bU="

var _ = Describe("trust anchor store", func() {
	Describe("NewTrustAnchorStore with no custom anchors", func() {
		It("falls back to the IANA root KSKs, both carrying the SEP flag", func() {
			store, err := NewTrustAnchorStore(nil)
			Expect(err).Should(Succeed())

			roots := store.GetRootTrustAnchors()
			Expect(roots).ShouldNot(BeEmpty())

			for _, anchor := range roots {
				Expect(anchor.Key.Flags & dns.SEP).Should(Equal(dns.SEP))
			}
		})

		It("includes KSK-2017 or KSK-2024 by key tag", func() {
			store, err := NewTrustAnchorStore(nil)
			Expect(err).Should(Succeed())

			tags := make(map[uint16]bool)
			for _, anchor := range store.GetRootTrustAnchors() {
				tags[anchor.Key.KeyTag()] = true
			}

			Expect(tags[ksk2017Tag] || tags[ksk2024Tag]).Should(BeTrue())
		})
	})

	Describe("NewTrustAnchorStore with custom anchors", func() {
		It("loads a well-formed KSK and rejects garbage outright", func() {
			store, err := NewTrustAnchorStore([]string{exampleComKSK})
			Expect(err).Should(Succeed())
			Expect(store.HasTrustAnchor("example.com.")).Should(BeTrue())

			_, err = NewTrustAnchorStore([]string{"not a resource record"})
			Expect(err).Should(HaveOccurred())
		})

		It("rejects a DNSKEY missing the SEP bit", func() {
			zsk := ". 172800 IN DNSKEY 256 3 8 " +
				"AwEAAaz/tAm8yTn4Mfeh5eyI96WSVexTBAvkMgJzkKTOiW1vkIbzxeF3+/4RgWOq7HrxRixHlFlExOLAJr5emLvN7SWXgnLh4+B5xQlN" +
				"Vz8Og8kvArMtNROxVQuCaSnIDdD5LKyWbRd2n9WGe2R8PzgCmr3EgVLrjyBxWezF0jLHwVN8efS3rCj/EWgvIWgb9tarpVUDK/b58Da+s" +
				"qqls3eNbuv7pr+eoZG+SrDK6nWeL3c6H5Apxz7LjVc1uTIdsIXxuOLYA4/ilBmSVIzuDWfdRUfhHdY6+cn8HFRm+2hM8AnXGXws9555K" +
				"rUB5qihylGa8subX2Nn6UwNR1AkUTV74bU="

			_, err := NewTrustAnchorStore([]string{zsk})
			Expect(err).Should(MatchError(ContainSubstring("not a KSK")))
		})

		It("rejects a record that isn't a DNSKEY at all", func() {
			_, err := NewTrustAnchorStore([]string{"example.com. 300 IN A 192.0.2.1"})
			Expect(err).Should(MatchError(ContainSubstring("not a DNSKEY")))
		})
	})

	Describe("Find (longest-suffix search)", func() {
		var store *TrustAnchorStore

		BeforeEach(func() {
			var err error
			store, err = NewTrustAnchorStore([]string{exampleComKSK})
			Expect(err).Should(Succeed())
		})

		It("matches a domain configured exactly", func() {
			Expect(store.Find("example.com.")).Should(HaveLen(1))
		})

		It("matches a subdomain by stripping labels until it hits the configured owner", func() {
			Expect(store.Find("deeply.nested.example.com.")).Should(HaveLen(1))
		})

		It("never matches a sibling zone that just happens to share a suffix", func() {
			Expect(store.Find("notexample.com.")).Should(BeEmpty())
		})

		It("stops at the root without a configured root anchor", func() {
			emptyStore := &TrustAnchorStore{anchors: make(map[string][]*TrustAnchor)}
			Expect(emptyStore.Find("example.com.")).Should(BeEmpty())
		})

		It("is case-insensitive", func() {
			Expect(store.Find("EXAMPLE.COM.")).Should(HaveLen(1))
		})
	})

	Describe("GetTrustAnchors vs Find", func() {
		It("GetTrustAnchors does no suffix search, only Find does", func() {
			store, err := NewTrustAnchorStore([]string{exampleComKSK})
			Expect(err).Should(Succeed())

			Expect(store.GetTrustAnchors("sub.example.com.")).Should(BeEmpty())
			Expect(store.Find("sub.example.com.")).Should(HaveLen(1))
		})

		It("normalizes case and trailing dot identically to Find", func() {
			store, err := NewTrustAnchorStore([]string{exampleComKSK})
			Expect(err).Should(Succeed())

			a := store.GetTrustAnchors("example.com")
			b := store.GetTrustAnchors("EXAMPLE.COM.")
			Expect(a).Should(HaveLen(len(b)))
			Expect(a).ShouldNot(BeEmpty())
		})
	})

	Describe("HasTrustAnchor", func() {
		It("is true for the root zone by default and false for an unconfigured domain", func() {
			store, err := NewTrustAnchorStore(nil)
			Expect(err).Should(Succeed())

			Expect(store.HasTrustAnchor(".")).Should(BeTrue())
			Expect(store.HasTrustAnchor("example.com.")).Should(BeFalse())
		})
	})

	Describe("AddTrustAnchor", func() {
		It("accumulates multiple anchors for the same owner instead of overwriting", func() {
			store := &TrustAnchorStore{anchors: make(map[string][]*TrustAnchor)}

			Expect(store.AddTrustAnchor(getDefaultRootTrustAnchors()[0])).Should(Succeed())
			Expect(store.AddTrustAnchor(getDefaultRootTrustAnchors()[1])).Should(Succeed())

			Expect(store.GetRootTrustAnchors()).Should(HaveLen(2))
		})

		It("rejects a malformed zone-file line", func() {
			store := &TrustAnchorStore{anchors: make(map[string][]*TrustAnchor)}
			Expect(store.AddTrustAnchor("garbage")).Should(HaveOccurred())
		})
	})

	Describe("getDefaultRootTrustAnchors", func() {
		It("returns zone-file DNSKEY lines carrying the KSK flag", func() {
			for _, anchor := range getDefaultRootTrustAnchors() {
				Expect(anchor).Should(ContainSubstring("IN DNSKEY"))
				Expect(anchor).Should(ContainSubstring("257"))
			}
		})
	})
})
