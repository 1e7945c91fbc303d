package dnssec

//go:generate go run github.com/abice/go-enum -f=$GOFILE --marshal --names

// ValidationResult is the RFC 4033 validator verdict attached to a response
// or to a single RRset while it is under evaluation. ENUM(
// Secure // the chain of trust and all signatures verify
// Insecure // no chain of trust covers the zone, proven by DS absence + NSEC/NSEC3
// Bogus // a proof obligation was not met
// Indeterminate // no trust anchor covers the query, or validation could not proceed
// )
type ValidationResult int

// ValEventState is the state of the per-request validator event loop. ENUM(
// INIT // prime the trust anchor for the query name
// FINDKEY // walk delegations down to the responding zone
// VALIDATE // verify RRsets/proofs per the response classification
// CNAME // follow a CNAME link and re-enter VALIDATE
// FINISHED // aggregate verdicts and stamp the response
// )
type ValEventState int

// ResponseClassification buckets a response into the proof obligation it
// carries. Computed solely from header/question/section shape, never from
// DNSSEC state.
type ResponseClassification int

const (
	ClassUnknown ResponseClassification = iota
	ClassPositive
	ClassCNAME
	ClassNodata
	ClassNameError
	ClassAny
	ClassCnameNodata
	ClassCnameNameError
	ClassReferral
)

func (c ResponseClassification) String() string {
	switch c {
	case ClassPositive:
		return "POSITIVE"
	case ClassCNAME:
		return "CNAME"
	case ClassNodata:
		return "NODATA"
	case ClassNameError:
		return "NAMEERROR"
	case ClassAny:
		return "ANY"
	case ClassCnameNodata:
		return "CNAME_NODATA"
	case ClassCnameNameError:
		return "CNAME_NAMEERROR"
	case ClassReferral:
		return "REFERRAL"
	default:
		return "UNKNOWN"
	}
}

// maxCnameChainLength bounds CNAME-following per request; DNS practice plus
// headroom, matching RFC-recommended resolver limits.
const maxCnameChainLength = 11

// ednsUDPSize is the EDNS0 UDP buffer size advertised on upstream queries so
// that large signed responses are not silently truncated.
const ednsUDPSize = 4096
