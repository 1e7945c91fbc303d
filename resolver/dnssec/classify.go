package dnssec

// Response shape classification: never looks at RRSIG/NSEC content, only at
// header/question/section shape, to decide which proof obligation
// validation must discharge.

import "github.com/miekg/dns"

// classifyResponse buckets response/question into one of the closed set of
// ResponseClassification values.
func classifyResponse(response *dns.Msg, question dns.Question) ResponseClassification {
	if question.Qtype == dns.TypeANY {
		if len(response.Answer) > 0 {
			return ClassAny
		}

		return ClassNodata
	}

	hasCNAME, hasQType := scanAnswer(response.Answer, question.Qtype)

	switch {
	case response.Rcode == dns.RcodeNameError:
		if hasCNAME {
			return ClassCnameNameError
		}

		return ClassNameError
	case isReferral(response):
		return ClassReferral
	case hasQType:
		if hasCNAME {
			return ClassCNAME
		}

		return ClassPositive
	case hasCNAME:
		// CNAME chain present but nothing answers qtype: NODATA at the chain
		// tail, not a plain NODATA at qname.
		return ClassCnameNodata
	case len(response.Answer) == 0:
		return ClassNodata
	default:
		return ClassUnknown
	}
}

// scanAnswer reports whether the answer section contains a CNAME and/or a
// record of qtype.
func scanAnswer(answer []dns.RR, qtype uint16) (hasCNAME, hasQType bool) {
	for _, rr := range answer {
		switch rr.Header().Rrtype {
		case dns.TypeCNAME:
			hasCNAME = true
		case qtype:
			hasQType = true
		}
	}

	return hasCNAME, hasQType
}

// isReferral reports whether response looks like a delegation: no answer
// RRs, an NS set in the authority section, and no SOA (a SOA in the
// authority section instead marks NODATA/NXDOMAIN, not a referral).
func isReferral(response *dns.Msg) bool {
	if len(response.Answer) != 0 {
		return false
	}

	hasNS, hasSOA := false, false

	for _, rr := range response.Ns {
		switch rr.Header().Rrtype {
		case dns.TypeNS:
			hasNS = true
		case dns.TypeSOA:
			hasSOA = true
		}
	}

	return hasNS && !hasSOA
}
