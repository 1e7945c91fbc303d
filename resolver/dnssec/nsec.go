package dnssec

// NSEC-based denial of existence (RFC 4035 §5.4): proving either that a name
// doesn't exist (NXDOMAIN) or that it exists but lacks the queried type
// (NODATA), using the canonical ordering relationship an NSEC record asserts
// between its owner and its NextDomain field.

import (
	"slices"

	"github.com/0xERR0R/blocky/util"

	"github.com/miekg/dns"
)

// extractNSECRecords pulls every NSEC record out of an RR slice, in order.
func extractNSECRecords(rrs []dns.RR) []*dns.NSEC {
	return util.ExtractRecordsFromSlice[*dns.NSEC](rrs)
}

// validateNSECDenialOfExistence routes to the NXDOMAIN or NODATA proof shape
// depending on the response's rcode; an authority section with no NSEC
// records at all leaves the zone Insecure rather than Bogus, since absence of
// NSEC is itself how an unsigned zone looks.
func (v *Validator) validateNSECDenialOfExistence(response *dns.Msg, question dns.Question) ValidationResult {
	records := extractNSECRecords(response.Ns)
	if len(records) == 0 {
		return ValidationResultInsecure
	}

	if response.Rcode == dns.RcodeNameError {
		return v.validateNSECNXDOMAIN(records, question.Name)
	}

	return v.validateNSECNODATA(records, question.Name, question.Qtype)
}

// validateNSECNXDOMAIN requires some record in the set to cover qname: an
// NSEC owner/next pair that brackets it in canonical order, proving no name
// between them can exist.
func (v *Validator) validateNSECNXDOMAIN(records []*dns.NSEC, qname string) ValidationResult {
	qname = dns.Fqdn(qname)

	for _, rec := range records {
		if v.nsecCoversName(rec, qname) {
			v.logger.Debugf("nsec %s -> %s covers nxdomain name %s", rec.Header().Name, rec.NextDomain, qname)

			return ValidationResultSecure
		}
	}

	v.logger.Warnf("no nsec record covers nxdomain name %s", qname)

	return ValidationResultBogus
}

// validateNSECNODATA requires an NSEC owned exactly by qname whose type
// bitmap omits qtype: existence of the name is conceded, only the type is
// denied.
func (v *Validator) validateNSECNODATA(records []*dns.NSEC, qname string, qtype uint16) ValidationResult {
	qname = dns.Fqdn(qname)

	for _, rec := range records {
		if dns.Fqdn(rec.Header().Name) != qname {
			continue
		}

		if v.nsecHasType(rec, qtype) {
			v.logger.Warnf("nsec at %s lists type %d but response carries no answer", qname, qtype)

			return ValidationResultBogus
		}

		v.logger.Debugf("nsec at %s denies type %d", qname, qtype)

		return ValidationResultSecure
	}

	v.logger.Warnf("no nsec owned by %s found for nodata proof", qname)

	return ValidationResultBogus
}

// nsecCoversName reports whether the span (owner, next) brackets name under
// RFC 4034 §6.1 canonical ordering, including the zone-wrap-around case where
// the owner is the last name before the zone apex.
func (v *Validator) nsecCoversName(nsec *dns.NSEC, name string) bool {
	owner := dns.CanonicalName(nsec.Header().Name)
	next := dns.CanonicalName(nsec.NextDomain)
	name = dns.CanonicalName(name)

	if owner == next {
		// Degenerate single-record zone: the one NSEC points to itself and
		// covers every name except its own owner.
		return name != owner
	}

	if owner < next {
		return owner < name && name < next
	}

	// next wrapped past the end of the canonical ordering back to the start
	// of the zone.
	return name > owner || name < next
}

// nsecHasType reports whether an NSEC's type bitmap asserts qtype exists at
// its owner name.
func (v *Validator) nsecHasType(nsec *dns.NSEC, qtype uint16) bool {
	return slices.Contains(nsec.TypeBitMap, qtype)
}
