package dnssec

// This file contains NSEC3-based denial of existence validation per RFC 5155.

import (
	"bytes"
	"encoding/base32"
	"fmt"
	"slices"
	"strings"

	"github.com/0xERR0R/blocky/util"

	"github.com/miekg/dns"
)

// NSEC3IterationLimits holds the per-key-size iteration ceilings configured
// via nsec3.iterations.<keysize> (RFC 5155 §10.3 generalizes the single flat
// limit BIND/Unbound use into one ceiling per signing-key size, since the
// cost of an iteration scales with the key's RSA modulus length). Exceeding
// the applicable ceiling makes the NSEC3 proof unusable but is not itself an
// attack signal, so it resolves to Insecure rather than Bogus.
type NSEC3IterationLimits struct {
	Bits1024 uint
	Bits2048 uint
	Bits4096 uint
}

func defaultNSEC3IterationLimits(fallback uint) NSEC3IterationLimits {
	if fallback == 0 {
		fallback = 150
	}

	return NSEC3IterationLimits{Bits1024: fallback, Bits2048: fallback, Bits4096: fallback}
}

// ceilingFor returns the configured ceiling for a signing key of the given
// RSA modulus bit length. A bits of 0 - an unresolved or non-RSA signing
// key - falls back to the 2048-bit bucket, the common case.
func (l NSEC3IterationLimits) ceilingFor(bits int) uint {
	switch {
	case bits > 0 && bits <= 1024:
		return l.Bits1024
	case bits > 2048:
		return l.Bits4096
	default:
		return l.Bits2048
	}
}

// validateNSEC3DenialOfExistence dispatches the NXDOMAIN or NODATA NSEC3
// proof (RFC 5155 §8) after checking the iteration ceiling and that every
// record in the authority section agrees on hash parameters.
func (v *Validator) validateNSEC3DenialOfExistence(response *dns.Msg, question dns.Question) ValidationResult {
	qname := dns.Fqdn(question.Name)
	qtype := question.Qtype

	nsec3Records := extractNSEC3Records(response.Ns)
	if len(nsec3Records) == 0 {
		return ValidationResultInsecure
	}

	first := nsec3Records[0]
	hashAlg, salt, iterations := first.Hash, first.Salt, first.Iterations

	if first.Flags&nsec3OptOutFlag != 0 {
		v.logger.Debugf("nsec3 opt-out flag set for %s, unsigned delegations may be present", qname)
	}

	ceiling := v.nsec3IterationLimits.ceilingFor(v.nsec3SigningKeyBits(response.Ns))
	if uint(iterations) > ceiling {
		v.logger.Warnf("nsec3 iteration count %d for %s exceeds ceiling %d, treating as insecure",
			iterations, qname, ceiling)

		return ValidationResultInsecure
	}

	for _, rec := range nsec3Records {
		if rec.Hash != hashAlg || rec.Salt != salt || rec.Iterations != iterations {
			v.logger.Warnf("nsec3 records for %s disagree on hash parameters", qname)

			return ValidationResultBogus
		}
	}

	if hashAlg != dns.SHA1 {
		v.logger.Warnf("nsec3 hash algorithm %d for %s is not supported", hashAlg, qname)

		return ValidationResultBogus
	}

	zoneName := nsec3OwnerZone(first.Hdr.Name)

	if response.Rcode == dns.RcodeNameError {
		return v.validateNSEC3NXDOMAIN(nsec3Records, qname, zoneName, hashAlg, salt, iterations)
	}

	return v.validateNSEC3NODATA(nsec3Records, qname, qtype, zoneName, hashAlg, salt, iterations)
}

// nsec3SigningKeyBits resolves the RSA modulus size of the DNSKEY that
// signed the NSEC3 RRset in authority, by looking up the RRSIG's signer in
// the already-populated KeyCache. Returns 0 (the default bucket) when the
// signer's key set was never cached, the key is missing, or the algorithm
// is not RSA.
func (v *Validator) nsec3SigningKeyBits(authority []dns.RR) int {
	for _, sig := range extractRRSIGs(authority) {
		if sig.TypeCovered != dns.TypeNSEC3 {
			continue
		}

		entry, ok := v.keyCache.Get(dns.Fqdn(sig.SignerName), dns.ClassINET)
		if !ok || entry.Kind != KeyEntryGood {
			continue
		}

		if key := findMatchingDNSKEY(entry.Keys, sig.KeyTag); key != nil {
			return rsaModulusBits(key)
		}
	}

	return 0
}

// nsec3OwnerZone strips an NSEC3 record's leading hash label to recover the
// zone it belongs to: owner names take the form <hash>.<zone>.
func nsec3OwnerZone(ownerName string) string {
	labels := dns.SplitDomainName(ownerName)
	if len(labels) <= 1 {
		return ""
	}

	return dns.Fqdn(strings.Join(labels[1:], "."))
}

// extractNSEC3Records extracts NSEC3 records from a list of RRs
func extractNSEC3Records(rrs []dns.RR) []*dns.NSEC3 {
	return util.ExtractRecordsFromSlice[*dns.NSEC3](rrs)
}

// computeNSEC3Hash computes the NSEC3 hash per RFC 5155 §5 with caching
// Caching is important because NSEC3 hash computation is expensive (iterative SHA-1)
func (v *Validator) computeNSEC3Hash(name string, hashAlg uint8, salt string, iterations uint16) (string, error) {
	if hashAlg != dns.SHA1 {
		return "", fmt.Errorf("unsupported NSEC3 hash algorithm: %d", hashAlg)
	}

	// Convert name to canonical form for consistent cache keys
	name = dns.Fqdn(strings.ToLower(name))

	// Create cache key: name:algorithm:salt:iterations
	cacheKey := fmt.Sprintf("%s:%d:%s:%d", name, hashAlg, salt, iterations)

	// Check cache first
	if cached, ok := v.nsec3HashCache.Load(cacheKey); ok {
		if hash, ok := cached.(string); ok {
			return hash, nil
		}
	}

	// Compute hash using the miekg/dns library's built-in NSEC3 hash function
	hash := dns.HashName(name, hashAlg, iterations, salt)

	// Store in cache
	v.nsec3HashCache.Store(cacheKey, hash)

	return hash, nil
}

// nsec3MatchByHash returns the record whose owner hash label equals hash,
// case-insensitively, or nil when none of the records match.
func nsec3MatchByHash(nsec3Records []*dns.NSEC3, hash string) *dns.NSEC3 {
	for _, rec := range nsec3Records {
		labels := dns.SplitDomainName(rec.Hdr.Name)
		if len(labels) > 0 && strings.EqualFold(labels[0], hash) {
			return rec
		}
	}

	return nil
}

// closestEncloserCandidates lists the names to test for a closest-encloser
// match, in search order: qname itself, then each of its ancestors up to
// and including zoneName. A qname outside zoneName yields no candidates at
// all, since there's no zone cut to prove anything against.
func closestEncloserCandidates(qname, zoneName string) []string {
	qname = dns.Fqdn(qname)
	zoneName = dns.Fqdn(zoneName)

	if zoneName != "" && !dns.IsSubDomain(zoneName, qname) {
		return nil
	}

	candidates := make([]string, 0, dns.CountLabel(qname)+1)

	for name := qname; ; {
		candidates = append(candidates, name)

		if name == zoneName || name == "." {
			return candidates
		}

		labels := dns.SplitDomainName(name)
		if len(labels) <= 1 {
			return candidates
		}

		name = dns.Fqdn(strings.Join(labels[1:], "."))
	}
}

// findClosestEncloser walks closestEncloserCandidates from qname upward and
// returns the first one with a matching NSEC3 owner hash (RFC 5155 §8.3).
// An empty result means none of the candidate names, including the zone
// apex, had a covering record - the proof can't be completed.
func (v *Validator) findClosestEncloser(qname, zoneName string, nsec3Records []*dns.NSEC3,
	hashAlg uint8, salt string, iterations uint16,
) string {
	for _, candidate := range closestEncloserCandidates(qname, zoneName) {
		hash, err := v.computeNSEC3Hash(candidate, hashAlg, salt, iterations)
		if err != nil {
			return ""
		}

		if nsec3MatchByHash(nsec3Records, hash) != nil {
			return candidate
		}
	}

	return ""
}

// nextCloserName returns the name one label longer than closestEncloser on
// the path down to qname - the name whose non-existence the NSEC3 chain
// must cover to complete an NXDOMAIN proof. Empty when qname isn't strictly
// below closestEncloser.
func nextCloserName(qname, closestEncloser string) string {
	qnameLabels := dns.SplitDomainName(qname)
	ceLabels := dns.SplitDomainName(closestEncloser)

	if len(qnameLabels) <= len(ceLabels) {
		return ""
	}

	start := len(qnameLabels) - len(ceLabels) - 1

	return dns.Fqdn(strings.Join(qnameLabels[start:], "."))
}

// optOutDelegation reports whether hash sits in an opt-out span for a DS
// query - meaning an unsigned delegation legitimately lives there rather
// than the response being forged.
func (v *Validator) optOutDelegation(nsec3Records []*dns.NSEC3, qtype uint16, hash string) bool {
	return qtype == dns.TypeDS && v.nsec3CoversWithOptOut(nsec3Records, hash)
}

// wildcardHashAt hashes "*.<encloser>" under the response's NSEC3
// parameters, the name whose non-existence proves no wildcard expansion
// could have produced the answer.
func (v *Validator) wildcardHashAt(encloser string, hashAlg uint8, salt string, iterations uint16) (string, error) {
	return v.computeNSEC3Hash("*."+encloser, hashAlg, salt, iterations)
}

// validateNSEC3NXDOMAIN proves a name doesn't exist per RFC 5155 §8.4: the
// closest encloser must be provable, the next closer name down toward qname
// must fall in a covering gap, and no wildcard under the encloser may cover
// it either - three separate negatives, all required.
func (v *Validator) validateNSEC3NXDOMAIN(nsec3Records []*dns.NSEC3, qname, zoneName string,
	hashAlg uint8, salt string, iterations uint16,
) ValidationResult {
	encloser := v.findClosestEncloser(qname, zoneName, nsec3Records, hashAlg, salt, iterations)
	if encloser == "" {
		v.logger.Debugf("nsec3: no closest encloser for %s", qname)

		return ValidationResultBogus
	}

	nextCloser := nextCloserName(qname, encloser)
	if nextCloser == "" {
		v.logger.Debugf("nsec3: encloser %s for %s yields no next closer name", encloser, qname)

		return ValidationResultBogus
	}

	nextCloserHash, err := v.computeNSEC3Hash(nextCloser, hashAlg, salt, iterations)
	if err != nil {
		v.logger.Warnf("nsec3: hashing next closer %s: %v", nextCloser, err)

		return ValidationResultBogus
	}

	if !v.nsec3Covers(nsec3Records, nextCloserHash) {
		v.logger.Debugf("nsec3: next closer %s not covered by any record", nextCloser)

		return ValidationResultBogus
	}

	if v.nsec3CoversWithOptOut(nsec3Records, nextCloserHash) {
		v.logger.Debugf("nsec3: next closer %s falls in an opt-out span, unsigned delegation allowed", nextCloser)

		return ValidationResultInsecure
	}

	wildcardHash, err := v.wildcardHashAt(encloser, hashAlg, salt, iterations)
	if err != nil {
		v.logger.Warnf("nsec3: hashing wildcard at %s: %v", encloser, err)

		return ValidationResultBogus
	}

	if !v.nsec3Covers(nsec3Records, wildcardHash) {
		v.logger.Debugf("nsec3: wildcard under %s not covered by any record", encloser)

		return ValidationResultBogus
	}

	v.logger.Debugf("nsec3: nxdomain proof for %s checks out via encloser %s", qname, encloser)

	return ValidationResultSecure
}

// validateNSEC3NODATA proves qname exists but lacks qtype per RFC 5155 §8.5:
// first looks for a record owned by qname itself, then falls back to a
// wildcard-synthesis denial if qname's own record isn't present.
func (v *Validator) validateNSEC3NODATA(nsec3Records []*dns.NSEC3, qname string, qtype uint16,
	zoneName string, hashAlg uint8, salt string, iterations uint16,
) ValidationResult {
	qnameHash, err := v.computeNSEC3Hash(qname, hashAlg, salt, iterations)
	if err != nil {
		v.logger.Warnf("nsec3: hashing %s: %v", qname, err)

		return ValidationResultBogus
	}

	if result := v.checkDirectNSEC3Match(nsec3Records, qname, qnameHash, qtype); result != ValidationResultIndeterminate {
		return result
	}

	return v.checkWildcardNSEC3Match(nsec3Records, qname, qtype, zoneName, hashAlg, salt, iterations, qnameHash)
}

// checkDirectNSEC3Match reports Secure/Bogus when a record owned by qname's
// own hash exists, or Indeterminate when the caller should try the wildcard
// path instead.
func (v *Validator) checkDirectNSEC3Match(nsec3Records []*dns.NSEC3, qname, qnameHash string,
	qtype uint16,
) ValidationResult {
	match := nsec3MatchByHash(nsec3Records, qnameHash)
	if match == nil {
		return ValidationResultIndeterminate
	}

	if slices.Contains(match.TypeBitMap, qtype) {
		v.logger.Debugf("nsec3: record owning %s already lists type %d", qname, qtype)

		return ValidationResultBogus
	}

	v.logger.Debugf("nsec3: nodata proof for %s type %d via direct match", qname, qtype)

	return ValidationResultSecure
}

// checkWildcardNSEC3Match handles the case where qname itself has no NSEC3
// owner: it must instead be covered at its closest encloser, with a record
// for "*.<encloser>" proving no wildcard expansion supplies qtype either.
func (v *Validator) checkWildcardNSEC3Match(nsec3Records []*dns.NSEC3, qname string, qtype uint16,
	zoneName string, hashAlg uint8, salt string, iterations uint16, qnameHash string,
) ValidationResult {
	encloser := v.findClosestEncloser(qname, zoneName, nsec3Records, hashAlg, salt, iterations)
	if encloser == "" {
		return v.unprovenNodata(qname, qtype, nsec3Records, qnameHash)
	}

	wildcardHash, err := v.wildcardHashAt(encloser, hashAlg, salt, iterations)
	if err != nil {
		return v.unprovenNodata(qname, qtype, nsec3Records, qnameHash)
	}

	match := nsec3MatchByHash(nsec3Records, wildcardHash)
	if match == nil {
		return v.unprovenNodata(qname, qtype, nsec3Records, qnameHash)
	}

	if slices.Contains(match.TypeBitMap, qtype) {
		return ValidationResultBogus
	}

	v.logger.Debugf("nsec3: nodata proof for %s type %d via wildcard at %s", qname, qtype, encloser)

	return ValidationResultSecure
}

// unprovenNodata is the shared fallback once neither a direct nor a
// wildcard NSEC3 match could be found: an opt-out span still legitimizes an
// unsigned DS delegation, otherwise the response is unproven.
func (v *Validator) unprovenNodata(qname string, qtype uint16, nsec3Records []*dns.NSEC3, qnameHash string) ValidationResult {
	v.logger.Debugf("nsec3: no record proves nodata for %s (hash %s)", qname, qnameHash)

	if v.optOutDelegation(nsec3Records, qtype, qnameHash) {
		v.logger.Debugf("nsec3: %s falls in an opt-out span, unsigned delegation allowed", qname)

		return ValidationResultInsecure
	}

	return ValidationResultBogus
}

var base32Hex = base32.HexEncoding.WithPadding(base32.NoPadding)

// compareNSEC3Hashes orders two base32hex-encoded NSEC3 hashes by decoding
// them and comparing the raw bytes big-endian, per RFC 5155's definition of
// hash order. Returns -1/0/+1 like bytes.Compare, or an error if either
// string isn't valid base32hex.
func compareNSEC3Hashes(hash1, hash2 string) (int, error) {
	b1, err := base32Hex.DecodeString(strings.ToUpper(hash1))
	if err != nil {
		return 0, fmt.Errorf("decoding nsec3 hash %q: %w", hash1, err)
	}

	b2, err := base32Hex.DecodeString(strings.ToUpper(hash2))
	if err != nil {
		return 0, fmt.Errorf("decoding nsec3 hash %q: %w", hash2, err)
	}

	return bytes.Compare(b1, b2), nil
}

// nsec3HashInRange reports whether hash falls in the half-open span
// (ownerHash, nextHash], wrapping around the top of the hash space when
// ownerHash sorts after nextHash - the last NSEC3 record in a zone always
// wraps back to the lexicographically smallest owner.
func nsec3HashInRange(hash, ownerHash, nextHash string) bool {
	hashVsOwner, err := compareNSEC3Hashes(hash, ownerHash)
	if err != nil {
		return false
	}

	hashVsNext, err := compareNSEC3Hashes(hash, nextHash)
	if err != nil {
		return false
	}

	ownerVsNext, err := compareNSEC3Hashes(ownerHash, nextHash)
	if err != nil {
		return false
	}

	if ownerVsNext < 0 {
		return hashVsOwner > 0 && hashVsNext <= 0
	}

	return hashVsOwner > 0 || hashVsNext <= 0
}

const nsec3OptOutFlag = 0x01

// nsec3RangeCovers reports whether any record's (owner-hash, next-hash] span
// brackets hash, restricted to opt-out records when optOutOnly is set.
func nsec3RangeCovers(nsec3Records []*dns.NSEC3, hash string, optOutOnly bool) bool {
	for _, rec := range nsec3Records {
		if optOutOnly && rec.Flags&nsec3OptOutFlag == 0 {
			continue
		}

		labels := dns.SplitDomainName(rec.Hdr.Name)
		if len(labels) == 0 {
			continue
		}

		if nsec3HashInRange(hash, labels[0], rec.NextDomain) {
			return true
		}
	}

	return false
}

// nsec3Covers reports whether hash falls within some record's span,
// regardless of the opt-out flag.
func (v *Validator) nsec3Covers(nsec3Records []*dns.NSEC3, hash string) bool {
	return nsec3RangeCovers(nsec3Records, hash, false)
}

// nsec3CoversWithOptOut reports whether hash falls within an opt-out span,
// meaning an unsigned delegation may legitimately sit there (RFC 5155 §6).
func (v *Validator) nsec3CoversWithOptOut(nsec3Records []*dns.NSEC3, hash string) bool {
	return nsec3RangeCovers(nsec3Records, hash, true)
}
