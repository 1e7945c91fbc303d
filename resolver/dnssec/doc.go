// Package dnssec implements a DNSSEC validating stub resolver layer: given a
// DNS response from an upstream ("priming") resolver, it builds the chain of
// trust from a configured set of trust anchors down to the responding zone,
// verifies RRSIG signatures over every RRset, proves non-existence with NSEC
// or NSEC3 records where applicable, and emits one of four verdicts defined
// by RFC 4033: Secure, Insecure, Bogus or Indeterminate.
//
// The entry point is Validator.ValidateResponse: it classifies the response
// shape, validates every RRset's signatures, and for zones not already
// covered by a cached result walks the chain of trust from the root trust
// anchor down to the signer's zone (walkChainOfTrust in chain.go),
// fetching and validating DS/DNSKEY pairs one delegation at a
// time and caching DNSKEY sets in a KeyCache as it goes.
//
// Example:
//
//	anchors, err := dnssec.NewTrustAnchorStore(cfg.TrustAnchors)
//	validator := dnssec.NewValidator(ctx, anchors, logger, upstream,
//		cfg.CacheExpirationHours, cfg.MaxChainDepth, cfg.MaxNSEC3Iterations,
//		cfg.MaxUpstreamQueries, cfg.ClockSkewToleranceSec)
//	result := validator.ValidateResponse(ctx, response, question)
package dnssec
