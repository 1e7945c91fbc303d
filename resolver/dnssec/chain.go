package dnssec

// Chain-of-trust evaluation, RFC 4035 §5: confirm an unbroken line of
// verified delegations connects a trust anchor down to the zone that
// actually signed the records under validation.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

func (v *Validator) getCachedValidation(domain string) (ValidationResult, bool) {
	result, _ := v.validationCache.Get(domain)
	if result == nil {
		return ValidationResultIndeterminate, false
	}

	v.cacheHitMetrics.Inc()

	return *result, true
}

func (v *Validator) setCachedValidation(domain string, result ValidationResult) {
	v.validationCache.Put(domain, &result, v.cacheExpiration)
}

// walkChainOfTrust confirms every delegation between the root (or the
// nearest configured trust anchor) and domain is intact, caching the
// verdict under domain's own name.
func (v *Validator) walkChainOfTrust(ctx context.Context, domain string) ValidationResult {
	domain = dns.Fqdn(domain)

	v.logger.Debugf("%s: walking delegations down to %s", ValEventStateFindkey, domain)

	if cached, found := v.getCachedValidation(domain); found {
		v.logger.Debugf("using cached validation result for %s: %s", domain, cached.String())

		return cached
	}

	path := delegationPath(domain)

	if uint(len(path)) > v.maxChainDepth {
		v.logger.Warnf("domain %s exceeds maximum chain depth (%d zones > %d max), rejecting",
			domain, len(path), v.maxChainDepth)

		result := ValidationResultBogus
		v.setCachedValidation(domain, result)

		return result
	}

	result := v.descendDelegationPath(ctx, path)
	v.setCachedValidation(domain, result)

	return result
}

// delegationPath enumerates every zone cut between the root and domain,
// inclusive, top-down: ".", "com.", "example.com.", ...
func delegationPath(domain string) []string {
	if domain == "." {
		return []string{"."}
	}

	labels := dns.SplitDomainName(domain)
	path := make([]string, 0, len(labels)+1)
	path = append(path, ".")

	for i := len(labels) - 1; i >= 0; i-- {
		path = append(path, dns.Fqdn(strings.Join(labels[i:], ".")))
	}

	return path
}

// descendDelegationPath verifies each zone in path in order. Because the
// walk proceeds top-down, a zone's own delegation check may assume every
// ancestor already validated - no level ever needs to re-walk its parent.
func (v *Validator) descendDelegationPath(ctx context.Context, path []string) ValidationResult {
	for _, zone := range path {
		result := v.verifyZoneCut(ctx, zone)
		if result != ValidationResultSecure {
			return result
		}
	}

	return ValidationResultSecure
}

// verifyZoneCut authenticates a single zone: the root and any zone with a
// configured trust anchor are checked directly against that anchor,
// everything else is authenticated via its parent's DS record.
func (v *Validator) verifyZoneCut(ctx context.Context, zone string) ValidationResult {
	switch {
	case zone == ".":
		return v.verifyAgainstTrustAnchors(ctx)
	case v.trustAnchors.HasTrustAnchor(zone):
		v.logger.Debugf("zone %s has a configured trust anchor, verifying DNSKEY directly", zone)

		return v.verifyDomainAgainstTrustAnchor(ctx, zone)
	default:
		return v.validateDomainLevel(ctx, zone)
	}
}

// validateDomainLevel authenticates zone's DNSKEY set: it fetches the DS
// records zone's parent published, matches one against a key in zone's own
// DNSKEY RRset, and confirms that same key also signed the RRset. The
// caller guarantees zone's parent already validated.
func (v *Validator) validateDomainLevel(ctx context.Context, zone string) ValidationResult {
	v.logger.Debugf("validating delegation for %s", zone)

	parent := parentZone(zone)
	if parent == "" {
		v.logger.Debugf("%s has no parent zone to validate against", zone)

		return ValidationResultInsecure
	}

	ctx, dsResponse, err := v.queryRecords(ctx, zone, dns.TypeDS)
	if err != nil {
		v.logger.Warnf("DS query for %s failed: %v", zone, err)

		return ValidationResultIndeterminate
	}

	dsRecords, result := v.resolveDSRecords(ctx, zone, parent, dsResponse)
	if result != ValidationResultSecure {
		return result
	}

	_, dnskeyResponse, err := v.queryRecords(ctx, zone, dns.TypeDNSKEY)
	if err != nil {
		v.logger.Warnf("DNSKEY query for %s failed: %v", zone, err)

		return ValidationResultIndeterminate
	}

	keys, err := extractTypedRecords[*dns.DNSKEY](dnskeyResponse.Answer)
	if err != nil {
		v.logger.Warnf("no DNSKEY records returned for %s: %v", zone, err)

		return ValidationResultIndeterminate
	}

	ksk := v.findAndValidateKSK(keys, dsRecords, zone)
	if ksk == nil {
		v.logger.Warnf("no DNSKEY in %s's key set is anchored by its parent's DS record", zone)

		return ValidationResultBogus
	}

	// RFC 4035 §5.2: the DNSKEY RRset must be self-signed by a key within
	// the set, which lets every key in it (including ZSKs on a different
	// algorithm than the KSK) be trusted for the rest of this zone's proofs.
	if err := v.verifyDNSKEYRRset(dnskeyResponse.Answer, ksk, zone); err != nil {
		v.logger.Warnf("DNSKEY RRset for %s failed self-signature check: %v", zone, err)

		return ValidationResultBogus
	}

	v.logger.Debugf("%s's DNSKEY set is authenticated by its parent's DS record", zone)

	return ValidationResultSecure
}

// matchesDS reports whether dnskey is the key a DS record commits to:
// matching algorithm and a digest that reproduces the DS's recorded value.
func matchesDS(dnskey *dns.DNSKEY, ds *dns.DS) error {
	if dnskey.Algorithm != ds.Algorithm {
		return fmt.Errorf("algorithm mismatch: DNSKEY uses %d, DS expects %d", dnskey.Algorithm, ds.Algorithm)
	}

	computed := dnskey.ToDS(ds.DigestType)
	if computed == nil {
		return fmt.Errorf("unsupported DS digest type: %d", ds.DigestType)
	}

	if !strings.EqualFold(computed.Digest, ds.Digest) {
		return fmt.Errorf("DS digest mismatch: expected %s, got %s", ds.Digest, computed.Digest)
	}

	return nil
}

// findAndValidateKSK returns the first eligible key in keys whose digest
// matches one of dsRecords, trying an exact per-record match first and
// falling back to the digest-preference matcher shared with the DS-set
// scanner used elsewhere in this package.
func (v *Validator) findAndValidateKSK(keys []*dns.DNSKEY, dsRecords []*dns.DS, domain string) *dns.DNSKEY {
	for _, key := range keys {
		if !isZoneKey(key) || isRevokedKSK(key) {
			continue
		}

		for _, ds := range dsRecords {
			if err := matchesDS(key, ds); err == nil {
				v.logger.Debugf("validated KSK for %s: flags=%d, algorithm=%d, keytag=%d",
					domain, key.Flags, key.Algorithm, key.KeyTag())

				return key
			}
		}
	}

	if key := findValidatingKSK(keys, dsRecords, nil); key != nil {
		v.logger.Debugf("validated KSK for %s via digest-preference fallback: keytag=%d", domain, key.KeyTag())

		return key
	}

	return nil
}

// verifyDNSKEYRRset confirms the DNSKEY RRset in answer carries a valid
// self-signature from ksk, per RFC 4035 §5.2.
func (v *Validator) verifyDNSKEYRRset(answer []dns.RR, ksk *dns.DNSKEY, domain string) error {
	var dnskeys []dns.RR

	var sigs []*dns.RRSIG

	for _, rr := range answer {
		switch r := rr.(type) {
		case *dns.DNSKEY:
			dnskeys = append(dnskeys, r)
		case *dns.RRSIG:
			if r.TypeCovered == dns.TypeDNSKEY {
				sigs = append(sigs, r)
			}
		}
	}

	if len(dnskeys) == 0 {
		return errors.New("no DNSKEY records in answer")
	}

	domainFQDN := dns.Fqdn(domain)

	sig := selfSignatureFor(sigs, ksk, domainFQDN)
	if sig == nil {
		return fmt.Errorf("no RRSIG over the DNSKEY set from keytag=%d, algorithm=%d", ksk.KeyTag(), ksk.Algorithm)
	}

	if err := v.verifyRRSIG(dnskeys, sig, ksk, nil, domain); err != nil {
		return fmt.Errorf("DNSKEY RRset signature: %w", err)
	}

	v.logger.Debugf("verified DNSKEY RRset for %s with KSK keytag=%d", domain, ksk.KeyTag())

	return nil
}

// selfSignatureFor picks the RRSIG in sigs produced by ksk over its own
// zone: RFC 4035 §2.2 requires a DNSKEY RRSIG's signer name equal the
// RRset's owner.
func selfSignatureFor(sigs []*dns.RRSIG, ksk *dns.DNSKEY, owner string) *dns.RRSIG {
	for _, sig := range sigs {
		if sig.KeyTag == ksk.KeyTag() && sig.Algorithm == ksk.Algorithm && dns.Fqdn(sig.SignerName) == owner {
			return sig
		}
	}

	return nil
}

// verifyAgainstTrustAnchors authenticates the root DNSKEY set against the
// configured root trust anchors.
func (v *Validator) verifyAgainstTrustAnchors(ctx context.Context) ValidationResult {
	_, keys, err := v.queryDNSKEY(ctx, ".")
	if err != nil {
		v.logger.Warnf("root DNSKEY query failed: %v", err)

		return ValidationResultIndeterminate
	}

	anchors := v.trustAnchors.GetRootTrustAnchors()

	return matchAnyAnchor(v.logger, keys, anchors, ".")
}

// verifyDomainAgainstTrustAnchor authenticates domain's DNSKEY set against
// its own configured trust anchor, used when a zone below the root carries
// a statically-configured anchor instead of relying on DS delegation.
func (v *Validator) verifyDomainAgainstTrustAnchor(ctx context.Context, domain string) ValidationResult {
	_, keys, err := v.queryDNSKEY(ctx, domain)
	if err != nil {
		v.logger.Warnf("DNSKEY query for %s failed: %v", domain, err)

		return ValidationResultIndeterminate
	}

	anchors := v.trustAnchors.GetTrustAnchors(domain)
	if len(anchors) == 0 {
		v.logger.Warnf("no trust anchors configured for %s", domain)

		return ValidationResultIndeterminate
	}

	return matchAnyAnchor(v.logger, keys, anchors, domain)
}

// matchAnyAnchor reports Secure if some non-revoked zone key in keys
// matches one of anchors by key material, Bogus otherwise.
func matchAnyAnchor(logger *logrus.Entry, keys []*dns.DNSKEY, anchors []*TrustAnchor, zone string) ValidationResult {
	if len(anchors) == 0 {
		logger.Warnf("no trust anchors configured for %s", zone)

		return ValidationResultIndeterminate
	}

	for _, key := range keys {
		if isRevokedKSK(key) {
			logger.Debugf("skipping revoked DNSKEY for %s (keytag: %d)", zone, key.KeyTag())

			continue
		}

		if !isZoneKey(key) {
			logger.Debugf("skipping DNSKEY without ZONE flag for %s (keytag: %d)", zone, key.KeyTag())

			continue
		}

		for _, anchor := range anchors {
			if key.PublicKey == anchor.Key.PublicKey &&
				key.Algorithm == anchor.Key.Algorithm &&
				key.Flags == anchor.Key.Flags {
				logger.Debugf("validated DNSKEY for %s against configured trust anchor", zone)

				return ValidationResultSecure
			}
		}
	}

	logger.Warnf("no DNSKEY for %s matched any configured trust anchor", zone)

	return ValidationResultBogus
}

// parentZone returns the immediate parent of domain, "" for the root.
func parentZone(domain string) string {
	domain = dns.Fqdn(domain)
	if domain == "." {
		return ""
	}

	labels := dns.SplitDomainName(domain)
	if len(labels) <= 1 {
		return "."
	}

	return dns.Fqdn(strings.Join(labels[1:], "."))
}

// resolveDSRecords extracts and authenticates the DS RRset for zone out of
// a response from its parent. A DS RRset absent from the response is not
// automatically a failure: it may be an authenticated insecure delegation,
// proven by NSEC/NSEC3 in the response's authority section.
func (v *Validator) resolveDSRecords(
	ctx context.Context, zone, parent string, dsResponse *dns.Msg,
) ([]*dns.DS, ValidationResult) {
	dsRecords, err := extractTypedRecords[*dns.DS](dsResponse.Answer, dsResponse.Ns)
	if err != nil {
		return v.proveDelegationUnsigned(zone, dsResponse)
	}

	// RFC 4035 §5.2: a DS set this validator cannot evaluate at all (every
	// digest type unsupported) is not an attack, just a delegation this
	// validator cannot authenticate - Insecure, not Bogus.
	if !anySupportedDigest(dsRecords) {
		v.logger.Warnf("DS records for %s use only unsupported digest types - treating as Insecure", zone)

		return nil, ValidationResultInsecure
	}

	sig := dsRRSIGFor(dsResponse, zone, v.logger)
	if sig == nil {
		return nil, ValidationResultBogus
	}

	result := v.verifyDSSignature(ctx, zone, parent, dsRecords, sig)
	if result != ValidationResultSecure {
		return nil, result
	}

	return dsRecords, ValidationResultSecure
}

// verifyDSSignature checks the DS RRset's RRSIG using the parent zone's
// already-validated DNSKEY set.
func (v *Validator) verifyDSSignature(
	ctx context.Context, zone, parent string, dsRecords []*dns.DS, sig *dns.RRSIG,
) ValidationResult {
	_, parentKeys, err := v.queryDNSKEY(ctx, parent)
	if err != nil {
		v.logger.Warnf("parent DNSKEY query for %s failed: %v", parent, err)

		return ValidationResultIndeterminate
	}

	signer := findMatchingDNSKEY(parentKeys, sig.KeyTag)
	if signer == nil {
		v.logger.Warnf("no parent DNSKEY with keytag %d found to verify DS for %s", sig.KeyTag, zone)

		return ValidationResultBogus
	}

	rrset := make([]dns.RR, 0, len(dsRecords))
	for _, ds := range dsRecords {
		rrset = append(rrset, ds)
	}

	if err := v.verifyRRSIG(rrset, sig, signer, nil, ""); err != nil {
		v.logger.Warnf("DS RRSIG verification failed for %s: %v", zone, err)

		return ValidationResultBogus
	}

	v.logger.Debugf("validated DS records for %s against parent %s", zone, parent)

	return ValidationResultSecure
}

// proveDelegationUnsigned handles a DS query that returned no DS records:
// that is only a valid outcome when the authority section carries an
// authenticated NSEC/NSEC3 proof that none exist.
func (v *Validator) proveDelegationUnsigned(zone string, dsResponse *dns.Msg) ([]*dns.DS, ValidationResult) {
	hasNSEC := len(extractNSECRecords(dsResponse.Ns)) > 0
	hasNSEC3 := len(extractNSEC3Records(dsResponse.Ns)) > 0

	if !hasNSEC && !hasNSEC3 {
		v.logger.Warnf("no DS records for %s and no NSEC/NSEC3 proof - indeterminate", zone)

		return nil, ValidationResultIndeterminate
	}

	question := dns.Question{Name: zone, Qtype: dns.TypeDS, Qclass: dns.ClassINET}

	var proof ValidationResult
	if hasNSEC {
		proof = v.validateNSECNODATA(extractNSECRecords(dsResponse.Ns), zone, dns.TypeDS)
	} else {
		proof = v.validateNSEC3DenialOfExistence(dsResponse, question)
	}

	switch proof {
	case ValidationResultSecure, ValidationResultInsecure:
		v.logger.Debugf("proved absence of DS for %s - unsigned delegation", zone)

		return nil, ValidationResultInsecure
	default:
		v.logger.Warnf("NSEC/NSEC3 present but failed to prove DS absence for %s - treating as Bogus", zone)

		return nil, ValidationResultBogus
	}
}

// dsRRSIGFor finds the RRSIG covering DS in a DS response.
func dsRRSIGFor(dsResponse *dns.Msg, zone string, logger *logrus.Entry) *dns.RRSIG {
	for _, sig := range extractRRSIGs(append(dsResponse.Answer, dsResponse.Ns...)) {
		if sig.TypeCovered == dns.TypeDS {
			return sig
		}
	}

	logger.Warnf("no RRSIG found for DS records of %s", zone)

	return nil
}

// extractTypedRecords collects every record of type T across one or more
// RR slices, erroring if none are found.
func extractTypedRecords[T dns.RR](rrs ...[]dns.RR) ([]T, error) {
	var results []T

	for _, rrList := range rrs {
		for _, rr := range rrList {
			if typed, ok := rr.(T); ok {
				results = append(results, typed)
			}
		}
	}

	if len(results) == 0 {
		return nil, errors.New("no records of requested type found")
	}

	return results, nil
}
