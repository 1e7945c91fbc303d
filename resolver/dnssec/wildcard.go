package dnssec

// Wildcard expansion proof (RFC 4035 §5.3.4): a signed RRset whose owner name
// carries more labels than the RRSIG's Labels field was synthesized from a
// wildcard, and the response must additionally prove that no literal name
// closer than the wildcard exists.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// validateWildcardExpansion checks whether rrsetName was synthesized from a
// wildcard (its label count exceeds the RRSIG's recorded original-owner
// label count) and, if so, validates the synthesis. signingKey is the
// DNSKEY that produced rrsig, already fetched by the caller, and supplies
// the key-size signal an NSEC3 proof needs to pick its iteration ceiling.
func (v *Validator) validateWildcardExpansion(
	rrsetName string, rrsig *dns.RRSIG, signingKey *dns.DNSKEY, nsRecords []dns.RR, qname string,
) error {
	rrsetName = dns.Fqdn(rrsetName)
	originalLabels := int(rrsig.Labels)

	if dns.CountLabel(rrsetName) <= originalLabels {
		return nil
	}

	return v.validateWildcardExpansionDetails(
		rrsetName, dns.Fqdn(rrsig.SignerName), originalLabels, signingKey, nsRecords, qname)
}

// validateWildcardExpansionDetails reconstructs the wildcard owner name that
// must have produced rrsetName, confirms it sits within the signer's zone,
// and delegates to the denial-of-existence proof.
func (v *Validator) validateWildcardExpansionDetails(
	rrsetName, signerName string, rrsigLabels int, signingKey *dns.DNSKEY, nsRecords []dns.RR, qname string,
) error {
	labels := dns.SplitDomainName(rrsetName)
	if len(labels) < rrsigLabels {
		return fmt.Errorf("invalid wildcard: rrset %s has %d labels but rrsig claims %d", rrsetName, len(labels), rrsigLabels)
	}

	wildcardName := dns.Fqdn("*." + strings.Join(labels[len(labels)-rrsigLabels:], "."))

	v.logger.Debugf("%s appears to be a wildcard expansion of %s", rrsetName, wildcardName)

	if !dns.IsSubDomain(signerName, wildcardName) {
		return fmt.Errorf("wildcard %s not within signer zone %s", wildcardName, signerName)
	}

	return v.validateWildcardProof(wildcardName, rrsetName, signingKey, nsRecords, qname)
}

// validateWildcardProof dispatches to whichever denial mechanism the
// authority section carries to prove qname itself has no literal match
// closer than the wildcard. Neither NSEC nor NSEC3 present is a hard
// failure: RFC 4035 §5.3.4 requires this proof unconditionally.
func (v *Validator) validateWildcardProof(
	wildcardName, rrsetName string, signingKey *dns.DNSKEY, nsRecords []dns.RR, qname string,
) error {
	qname = dns.Fqdn(qname)

	if nsecRecords := extractNSECRecords(nsRecords); len(nsecRecords) > 0 {
		if err := v.validateWildcardNSEC(nsecRecords, qname); err != nil {
			return fmt.Errorf("nsec proof for wildcard %s: %w", wildcardName, err)
		}

		v.logger.Debugf("nsec proves no closer match than %s for %s", wildcardName, rrsetName)

		return nil
	}

	if nsec3Records := extractNSEC3Records(nsRecords); len(nsec3Records) > 0 {
		if err := v.validateWildcardNSEC3(nsec3Records, signingKey, qname); err != nil {
			return fmt.Errorf("nsec3 proof for wildcard %s: %w", wildcardName, err)
		}

		v.logger.Debugf("nsec3 proves no closer match than %s for %s", wildcardName, rrsetName)

		return nil
	}

	v.logger.Warnf("wildcard expansion for %s has no nsec/nsec3 proof in the authority section", qname)

	return fmt.Errorf("no NSEC/NSEC3 proof of non-existence for %s", qname)
}

// validateWildcardNSEC requires some NSEC record to cover qname directly.
func (v *Validator) validateWildcardNSEC(nsecRecords []*dns.NSEC, qname string) error {
	qname = dns.Fqdn(qname)

	for _, nsec := range nsecRecords {
		if v.nsecCoversName(nsec, qname) {
			return nil
		}
	}

	return fmt.Errorf("no NSEC record covers %s", qname)
}

// validateWildcardNSEC3 requires a consistent NSEC3 parameter set across the
// authority section, an iteration count within bounds, and some record whose
// owner hash brackets qname's hash. The iteration ceiling is selected by
// signingKey's RSA modulus size, falling back to the 2048-bit bucket for
// non-RSA algorithms or when signingKey is unavailable.
func (v *Validator) validateWildcardNSEC3(nsec3Records []*dns.NSEC3, signingKey *dns.DNSKEY, qname string) error {
	if len(nsec3Records) == 0 {
		return errors.New("no NSEC3 records available")
	}

	first := nsec3Records[0]

	for _, rec := range nsec3Records {
		if rec.Hash != first.Hash || rec.Salt != first.Salt || rec.Iterations != first.Iterations {
			return errors.New("inconsistent NSEC3 parameters in response")
		}
	}

	bits := 0
	if signingKey != nil {
		bits = rsaModulusBits(signingKey)
	}

	ceiling := v.nsec3IterationLimits.ceilingFor(bits)
	if uint(first.Iterations) > ceiling {
		return fmt.Errorf("NSEC3 iteration count %d exceeds maximum %d", first.Iterations, ceiling)
	}

	if first.Hash != dns.SHA1 {
		return fmt.Errorf("unsupported NSEC3 hash algorithm: %d", first.Hash)
	}

	qname = dns.Fqdn(qname)

	qnameHash, err := v.computeNSEC3Hash(qname, first.Hash, first.Salt, first.Iterations)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", qname, err)
	}

	if v.nsec3Covers(nsec3Records, qnameHash) {
		return nil
	}

	return fmt.Errorf("no nsec3 record covers %s", qname)
}
