package dnssec

// Canonical RRset construction (RFC 4034 §6) and verification of one RRSIG
// over one RRset under one DNSKEY. Also carries the algorithm strength table
// used for RFC 6840 §5.11 downgrade-attack prevention and the RFC 3110
// RSA-exponent-length guard needed because Go's crypto/rsa cannot represent
// exponents that don't fit in an int.

import (
	"encoding/base64"
	"fmt"
	"sort"
	"time"

	"github.com/miekg/dns"
)

// Algorithm strength scores, strongest to weakest, used to pick the best
// available signature and to detect a downgrade attempt: a validator must
// never accept a weak signature when a stronger one for the same RRset was
// present but failed, if harden.algo.downgrade is configured.
const (
	algorithmStrengthED448           = 100
	algorithmStrengthED25519         = 90
	algorithmStrengthECDSAP384SHA384 = 80
	algorithmStrengthECDSAP256SHA256 = 70
	algorithmStrengthRSASHA512       = 50
	algorithmStrengthRSASHA256       = 40
	algorithmStrengthRSASHA1         = 10
	algorithmStrengthUnsupported     = 0
)

func algorithmStrength(alg uint8) int {
	switch alg {
	case dns.ED448:
		return algorithmStrengthED448
	case dns.ED25519:
		return algorithmStrengthED25519
	case dns.ECDSAP384SHA384:
		return algorithmStrengthECDSAP384SHA384
	case dns.ECDSAP256SHA256:
		return algorithmStrengthECDSAP256SHA256
	case dns.RSASHA512:
		return algorithmStrengthRSASHA512
	case dns.RSASHA256:
		return algorithmStrengthRSASHA256
	case dns.RSASHA1, dns.RSASHA1NSEC3SHA1:
		return algorithmStrengthRSASHA1
	default:
		return algorithmStrengthUnsupported
	}
}

// isSupportedAlgorithm reports whether alg is implemented by the crypto
// backend (miekg/dns + Go's crypto/*), per the RFC 8624 matrix.
func isSupportedAlgorithm(alg uint8) bool {
	return algorithmStrength(alg) > algorithmStrengthUnsupported
}

// sortRRSIGsByStrength orders sigs strongest-algorithm-first, so callers
// that try signatures in order attempt the strongest candidate first.
func sortRRSIGsByStrength(sigs []*dns.RRSIG) []*dns.RRSIG {
	out := make([]*dns.RRSIG, len(sigs))
	copy(out, sigs)

	sort.SliceStable(out, func(i, j int) bool {
		return algorithmStrength(out[i].Algorithm) > algorithmStrength(out[j].Algorithm)
	})

	return out
}

// selectBestRRSIG returns the strongest-algorithm signature in rrsigs, or nil
// if rrsigs is empty. Used where only the single best candidate matters,
// as opposed to sortRRSIGsByStrength's full ordered-retry list.
func (v *Validator) selectBestRRSIG(rrsigs []*dns.RRSIG) *dns.RRSIG {
	sorted := sortRRSIGsByStrength(rrsigs)
	if len(sorted) == 0 {
		return nil
	}

	return sorted[0]
}

// findMatchingRRSIGs returns the RRSIGs in sigs that cover rrType and whose
// owner name matches domain.
func findMatchingRRSIGs(sigs []*dns.RRSIG, domain string, rrType uint16) []*dns.RRSIG {
	var out []*dns.RRSIG

	domain = dns.Fqdn(domain)

	for _, sig := range sigs {
		if sig.TypeCovered != rrType {
			continue
		}

		if dns.Fqdn(sig.Header().Name) != domain {
			continue
		}

		out = append(out, sig)
	}

	return out
}

// findMatchingDNSKEY returns the key in keys whose key tag matches, per RFC
// 4034 §2.1.2. Algorithm agreement is verified separately by the caller
// against the RRSIG's own algorithm field.
func findMatchingDNSKEY(keys []*dns.DNSKEY, keyTag uint16) *dns.DNSKEY {
	for _, k := range keys {
		if k.KeyTag() == keyTag {
			return k
		}
	}

	return nil
}

// hasUnsupportedRSAExponent reports whether key uses an RSA public exponent
// this validator's crypto backend cannot represent.
func hasUnsupportedRSAExponent(key *dns.DNSKEY) bool {
	ok, _ := rsaExponentSupported(key)

	return !ok
}

// validateSignerName checks RRSIG check #1: the signer name must be a
// suffix of (or equal to) the RRset's owner name.
func validateSignerName(signerName, rrsetOwner string) bool {
	return dns.IsSubDomain(dns.Fqdn(signerName), dns.Fqdn(rrsetOwner))
}

// serialBefore reports whether a precedes b under RFC 1982 serial-number
// arithmetic, the comparison RRSIG.Inception/Expiration require since they
// are 32-bit wrapping timestamps, not plain integers.
func serialBefore(a, b uint32) bool {
	return int32(a-b) < 0 //nolint:gosec // RFC 1982 §3.2 defined comparison
}

// checkSignatureTiming validates rrsig's validity window against now,
// widened by the configured clock-skew tolerance, returning a distinct error
// for "not yet valid" versus "expired" so callers and operators can tell
// the two failure modes apart.
func (v *Validator) checkSignatureTiming(rrsig *dns.RRSIG, now time.Time) error {
	skew := uint32(v.clockSkewToleranceSec) //nolint:gosec // bounded by config, not attacker input
	nowSerial := uint32(now.Unix())

	if serialBefore(nowSerial+skew, rrsig.Inception) {
		return fmt.Errorf("RRSIG not yet valid: inception %d, now %d (skew %ds)",
			rrsig.Inception, nowSerial, v.clockSkewToleranceSec)
	}

	if serialBefore(rrsig.Expiration+skew, nowSerial) {
		return fmt.Errorf("RRSIG expired: expiration %d, now %d (skew %ds)",
			rrsig.Expiration, nowSerial, v.clockSkewToleranceSec)
	}

	return nil
}

// verifyRRSIG runs the full validation checklist for one
// (rrset, rrsig, key) triple: signer-name/owner agreement, the validity
// window (with clock-skew tolerance), algorithm support, the RSA-exponent
// guard, the cryptographic signature itself over the canonical RRset, and
// finally — when nsRecords is available and the signature indicates
// wildcard synthesis — the wildcard non-existence proof.
func (v *Validator) verifyRRSIG(
	rrset []dns.RR, rrsig *dns.RRSIG, key *dns.DNSKEY, nsRecords []dns.RR, qname string,
) error {
	if len(rrset) == 0 {
		return fmt.Errorf("failed.signature.empty_rrset")
	}

	owner := dns.Fqdn(rrset[0].Header().Name)

	if !validateSignerName(rrsig.SignerName, owner) {
		return fmt.Errorf("failed.signature.signer_name: %s is not within %s", rrsig.SignerName, owner)
	}

	if err := v.checkSignatureTiming(rrsig, time.Now()); err != nil {
		return err
	}

	ownerLabels := labelCount(owner)
	if int(rrsig.Labels) > ownerLabels {
		return fmt.Errorf("failed.signature.invalid_label_count: rrsig labels %d > owner labels %d",
			rrsig.Labels, ownerLabels)
	}

	wildcard := int(rrsig.Labels) < ownerLabels

	if !isSupportedAlgorithm(rrsig.Algorithm) {
		return fmt.Errorf("failed.signature.unsupported_algorithm: %d", rrsig.Algorithm)
	}

	if hasUnsupportedRSAExponent(key) {
		return errUnsupportedRSAExponent
	}

	canon := canonicalRRs(rrset, rrsig.OrigTtl)

	if err := rrsig.Verify(key, canon); err != nil {
		return fmt.Errorf("failed.signature.crypto_verify: %w", err)
	}

	if wildcard && nsRecords != nil {
		if err := v.validateWildcardExpansion(owner, rrsig, key, nsRecords, qname); err != nil {
			return fmt.Errorf("failed.signature.wildcard_proof: %w", err)
		}
	}

	return nil
}

// rsaExponentSupported guards against RSA public exponents too large for Go's
// crypto/rsa (which represents the exponent as a native int), per RFC 3110's
// variable-length exponent encoding. A key using such an exponent cannot be
// evaluated by this validator; treated as Insecure, not an attack signal,
// since the key itself is not malformed, merely unsupported.
func rsaExponentSupported(key *dns.DNSKEY) (bool, string) {
	switch key.Algorithm {
	case dns.RSASHA1, dns.RSASHA1NSEC3SHA1, dns.RSASHA256, dns.RSASHA512:
	default:
		return true, ""
	}

	raw, err := base64.StdEncoding.DecodeString(key.PublicKey)
	if err != nil || len(raw) == 0 {
		return false, "failed.key.malformed_rsa_key"
	}

	expLen := int(raw[0])
	off := 1

	if expLen == 0 {
		if len(raw) < 3 {
			return false, "failed.key.malformed_rsa_key"
		}

		expLen = int(raw[1])<<8 | int(raw[2])
		off = 3
	}

	if off+expLen > len(raw) {
		return false, "failed.key.malformed_rsa_key"
	}

	// crypto/rsa's exponent is a native int; anything needing more than 4
	// bytes (and effectively > 2^31-1) cannot be represented.
	if expLen > 4 {
		return false, fmt.Sprintf("failed.key.unsupported_rsa_exponent_length: %d bytes", expLen)
	}

	var e int64
	for i := 0; i < expLen; i++ {
		e = e<<8 | int64(raw[off+i])
	}

	if e > 0x7FFFFFFF {
		return false, "failed.key.unsupported_rsa_exponent_value"
	}

	return true, ""
}

// canonicalRRs returns a copy of rrs with owner names lowercased, embedded
// names in RDATA lowercased, and TTL pinned to originalTTL, sorted into RFC
// 4034 §6.3 canonical order. This is what must be passed to
// dns.RRSIG.Verify so the signed preimage matches what the signer actually
// signed, independent of how the RRs arrived (compressed, TTL-decremented,
// in whatever order the wire happened to carry them).
func canonicalRRs(rrs []dns.RR, originalTTL uint32) []dns.RR {
	out := make([]dns.RR, len(rrs))

	for i, rr := range rrs {
		c := dns.Copy(rr)
		h := c.Header()
		h.Name = canonicalName(h.Name)
		h.Ttl = originalTTL
		lowercaseEmbeddedNames(c)
		out[i] = c
	}

	sort.Slice(out, func(i, j int) bool {
		return rdataLess(out[i], out[j])
	})

	return out
}

// rdataLess compares the canonical wire RDATA of two same-type records, per
// RFC 4034 §6.3, using miekg/dns's own wire packer so the byte order always
// matches what the library's signature verifier expects.
func rdataLess(a, b dns.RR) bool {
	ab, aerr := packRR(a)
	bb, berr := packRR(b)

	if aerr != nil || berr != nil {
		return a.String() < b.String()
	}

	return string(ab) < string(bb)
}

func packRR(rr dns.RR) ([]byte, error) {
	buf := make([]byte, dns.Len(rr)+64)

	off, err := dns.PackRR(rr, buf, 0, nil, false)
	if err != nil {
		return nil, err
	}

	return buf[:off], nil
}

// lowercaseEmbeddedNames lowercases RDATA fields that are themselves domain
// names, per RFC 4034 §6.2, for the common RR types where this affects the
// signed preimage.
func lowercaseEmbeddedNames(rr dns.RR) {
	switch v := rr.(type) {
	case *dns.NS:
		v.Ns = canonicalName(v.Ns)
	case *dns.CNAME:
		v.Target = canonicalName(v.Target)
	case *dns.SOA:
		v.Ns = canonicalName(v.Ns)
		v.Mbox = canonicalName(v.Mbox)
	case *dns.MX:
		v.Mx = canonicalName(v.Mx)
	case *dns.PTR:
		v.Ptr = canonicalName(v.Ptr)
	case *dns.SRV:
		v.Target = canonicalName(v.Target)
	}
}
