package dnssec

// TrustAnchorStore is a longest-suffix lookup of configured trust anchors.
// Default anchors are the IANA root KSKs; custom anchors are DNSKEY records
// in zone-file format with the SEP (KSK) bit set.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// Root KSK key tags, for documentation/debugging only; matching is by key
// material, not by tag.
const (
	ksk2017Tag = 20326 // KSK-2017, active since February 2017
	ksk2024Tag = 38696 // KSK-2024, active since July 2024
)

// getDefaultRootTrustAnchors returns the default root KSK trust anchors from
// IANA (https://data.iana.org/root-anchors/root-anchors.xml, last updated
// 2025-10-29): KSK-2017 and KSK-2024.
func getDefaultRootTrustAnchors() []string {
	return []string{
		". 172800 IN DNSKEY 257 3 8 " +
			"AwEAAaz/tAm8yTn4Mfeh5eyI96WSVexTBAvkMgJzkKTOiW1vkIbzxeF3+/4RgWOq7HrxRixHlFlExOLAJr5emLvN7SWXgnLh4+B5xQlNVz8Og8k" +
			"vArMtNROxVQuCaSnIDdD5LKyWbRd2n9WGe2R8PzgCmr3EgVLrjyBxWezF0jLHwVN8efS3rCj/EWgvIWgb9tarpVUDK/b58Da+sqqls3eNbuv7pr" +
			"+eoZG+SrDK6nWeL3c6H5Apxz7LjVc1uTIdsIXxuOLYA4/ilBmSVIzuDWfdRUfhHdY6+cn8HFRm+2hM8AnXGXws9555KrUB5qihylGa8subX2Nn6" +
			"UwNR1AkUTV74bU=",
		". 172800 IN DNSKEY 257 3 8 " +
			"AwEAAa96jeuknZlaeSrvyAJj6ZHv28hhOKkx3rLGXVaC6rXTsDc449/cidltpkyGwCJNnOAlFNKF2jBosZBU5eeHspaQWOmOElZsjICMQMC3aeH" +
			"bGiShvZsx4wMYSjH8e7Vrhbu6irwCzVBApESjbUdpWWmEnhathWu1jo+siFUiRAAxm9qyJNg/wOZqqzL/dL/q8PkcRU5oUKEpUge71M3ej2/7CP" +
			"qpdVwuMoTvoB+ZOT4YeGyxMvHmbrxlFzGOHOijtzN+u1TQNatX2XBuzZNQ1K+s2CXkPIZo7s6JgZyvaBevYtxPvYLw4z9mR7K2vaF18UYH9Z9GN" +
			"UUeayffKC73PYc=",
	}
}

// TrustAnchor is a configured key covering a zone, already treated as
// pre-validated and Secure: nothing upstream of the store can ever
// revalidate it.
type TrustAnchor struct {
	Key *dns.DNSKEY
}

// TrustAnchorStore holds configured trust anchors keyed by exact owner
// name, and performs the longest-suffix search Find requires: starting at
// qname, strip labels left to right until an owner matches or the root is
// reached.
type TrustAnchorStore struct {
	anchors map[string][]*TrustAnchor
}

// NewTrustAnchorStore creates a trust anchor store. If customAnchors is
// empty, the default IANA root KSKs are used.
func NewTrustAnchorStore(customAnchors []string) (*TrustAnchorStore, error) {
	store := &TrustAnchorStore{anchors: make(map[string][]*TrustAnchor)}

	anchors := customAnchors
	if len(anchors) == 0 {
		anchors = getDefaultRootTrustAnchors()
	}

	for _, anchor := range anchors {
		if err := store.AddTrustAnchor(anchor); err != nil {
			return nil, fmt.Errorf("failed to load trust anchor: %w", err)
		}
	}

	return store, nil
}

// AddTrustAnchor adds a trust anchor from a DNSKEY zone-file record string.
func (s *TrustAnchorStore) AddTrustAnchor(anchorStr string) error {
	rr, err := dns.NewRR(anchorStr)
	if err != nil {
		return fmt.Errorf("failed to parse trust anchor: %w", err)
	}

	dnskey, ok := rr.(*dns.DNSKEY)
	if !ok {
		return errors.New("trust anchor is not a DNSKEY record")
	}

	if dnskey.Flags&dns.SEP == 0 {
		return errors.New("trust anchor is not a KSK (SEP flag not set)")
	}

	domain := strings.ToLower(dnskey.Header().Name)
	s.anchors[domain] = append(s.anchors[domain], &TrustAnchor{Key: dnskey})

	return nil
}

// exact returns anchors configured for exactly this domain, with no
// suffix search.
func (s *TrustAnchorStore) exact(domain string) []*TrustAnchor {
	return s.anchors[strings.ToLower(dns.Fqdn(domain))]
}

// Find performs a longest-suffix search: strip labels off qname left to
// right until an owner matches or the root (".") is passed. The root
// anchor, if configured, matches everything.
func (s *TrustAnchorStore) Find(qname string) []*TrustAnchor {
	qname = dns.Fqdn(qname)
	labels := dns.SplitDomainName(qname)

	for i := 0; i <= len(labels); i++ {
		candidate := stripLeftLabels(qname, i)
		if anchors := s.exact(candidate); len(anchors) > 0 {
			return anchors
		}

		if candidate == "." {
			break
		}
	}

	return nil
}

// GetTrustAnchors returns trust anchors for exactly domain (no suffix
// search); kept for callers that already know the exact anchor name, e.g.
// the root-priming step of FINDKEY.
func (s *TrustAnchorStore) GetTrustAnchors(domain string) []*TrustAnchor {
	return s.exact(domain)
}

// HasTrustAnchor reports whether an anchor is configured for exactly domain.
func (s *TrustAnchorStore) HasTrustAnchor(domain string) bool {
	return len(s.exact(domain)) > 0
}

// GetRootTrustAnchors returns the anchors configured for the root zone.
func (s *TrustAnchorStore) GetRootTrustAnchors() []*TrustAnchor {
	return s.exact(".")
}
