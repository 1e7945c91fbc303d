package dnssec

// Dispatches authenticated denial-of-existence proofs (RFC 4035 §5.4, RFC
// 5155) to the NSEC or NSEC3 engine once the authority section's own
// signatures have been verified.

import (
	"context"

	"github.com/miekg/dns"
)

// denialProofKind reports which proof mechanism, if any, an authority
// section carries.
type denialProofKind int

const (
	denialProofNone denialProofKind = iota
	denialProofNSEC
	denialProofNSEC3
)

func classifyDenialProof(authority []dns.RR) denialProofKind {
	kind := denialProofNone

	for _, rr := range authority {
		switch rr.(type) {
		case *dns.NSEC3:
			// NSEC3 takes precedence: a zone never mixes the two, but a
			// malformed response could include stray records of both types.
			return denialProofNSEC3
		case *dns.NSEC:
			kind = denialProofNSEC
		}
	}

	return kind
}

// validateDenialOfExistence verifies the authority section's RRSIGs, then
// hands off to whichever proof engine matches the records present.
func (v *Validator) validateDenialOfExistence(
	ctx context.Context,
	response *dns.Msg,
	question dns.Question,
) ValidationResult {
	proof := classifyDenialProof(response.Ns)

	if result := v.validateRRsets(ctx, response.Ns, question.Name, response.Ns, question.Name); result != ValidationResultSecure {
		v.logger.Warnf("authority section signatures did not validate for %s: %s", question.Name, result)

		return result
	}

	switch proof {
	case denialProofNSEC3:
		return v.validateNSEC3DenialOfExistence(response, question)
	case denialProofNSEC:
		return v.validateNSECDenialOfExistence(response, question)
	default:
		v.logger.Warnf("no NSEC or NSEC3 records present to prove non-existence for %s", question.Name)

		return ValidationResultInsecure
	}
}
