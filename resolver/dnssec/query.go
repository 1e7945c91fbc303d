package dnssec

// Upstream queries issued mid-validation (DNSKEY lookups while walking the
// chain of trust) go through here so a per-request budget can cap how many
// of them a single response is allowed to trigger.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xERR0R/blocky/model"
	"github.com/miekg/dns"
)

// queryBudgetKey stores the remaining upstream-query count in a Context.
type queryBudgetKey struct{}

// withQueryBudget attaches a fresh budget to ctx for one top-level
// ValidateResponse call.
func withQueryBudget(ctx context.Context, budget int) context.Context {
	return context.WithValue(ctx, queryBudgetKey{}, budget)
}

// consumeQueryBudget reports an error if ctx carries no budget or the budget
// has run out, without itself mutating anything.
func (v *Validator) consumeQueryBudget(ctx context.Context) error {
	budget, ok := ctx.Value(queryBudgetKey{}).(int)
	if !ok {
		return errors.New("query budget not initialized")
	}

	if budget <= 0 {
		return fmt.Errorf("upstream query budget exhausted (max: %d queries per validation)", v.maxUpstreamQueries)
	}

	return nil
}

// decrementQueryBudget returns a child context with the budget reduced by
// one, or ctx unchanged if no budget was ever attached.
func (v *Validator) decrementQueryBudget(ctx context.Context) context.Context {
	budget, ok := ctx.Value(queryBudgetKey{}).(int)
	if !ok {
		return ctx
	}

	return withQueryBudget(ctx, budget-1)
}

// queryRecords issues one DNSSEC-enabled upstream query, charging it against
// ctx's budget first. The returned context carries the decremented budget
// for the caller's next query.
func (v *Validator) queryRecords(
	ctx context.Context, domain string, qtype uint16,
) (context.Context, *dns.Msg, error) {
	if err := v.consumeQueryBudget(ctx); err != nil {
		v.logger.Warnf("upstream query budget exhausted querying %s type %d: %v", domain, qtype, err)

		return ctx, nil, err
	}

	domain = dns.Fqdn(domain)

	msg := new(dns.Msg)
	msg.SetQuestion(domain, qtype)
	msg.SetEdns0(ednsUDPSize, true)

	req := &model.Request{
		Req:      msg,
		Protocol: model.RequestProtocolUDP,
	}

	response, err := v.upstream.Resolve(ctx, req)
	if err != nil {
		return ctx, nil, fmt.Errorf("upstream query failed: %w", err)
	}

	return v.decrementQueryBudget(ctx), response.Res, nil
}

// dnskeyCacheTTL bounds how long a queried DNSKEY set is reused before the
// next validation re-queries upstream, independent of the RRset's own TTL:
// it only needs to outlive one validation pass, not a full resolver cache
// lifetime.
const dnskeyCacheTTL = 300

// queryDNSKEY queries upstream for DNSKEY records, memoizing the result (or
// the absence of one) in the validator's KeyCache so that validating many
// RRsets signed by the same zone issues one upstream query instead of one
// per RRset. The first lookup for a given owner always queries upstream and
// returns its error verbatim; only a subsequent lookup within the entry's
// TTL is served from cache.
// Returns (newContext, dnskeys, error) where newContext has decremented budget.
func (v *Validator) queryDNSKEY(ctx context.Context, domain string) (context.Context, []*dns.DNSKEY, error) {
	owner := dns.Fqdn(domain)

	if entry, ok := v.keyCache.Get(owner, dns.ClassINET); ok {
		switch entry.Kind {
		case KeyEntryGood:
			return ctx, entry.Keys, nil
		case KeyEntryBad:
			return ctx, nil, errors.New(entry.BadReason)
		case KeyEntryNull:
			return ctx, nil, errors.New("no records of requested type found")
		}
	}

	ctx, response, err := v.queryRecords(ctx, domain, dns.TypeDNSKEY)
	if err != nil {
		return ctx, nil, err
	}

	keys, err := extractTypedRecords[*dns.DNSKEY](response.Answer)
	if err != nil {
		v.keyCache.Put(owner, dns.ClassINET, newNullKeyEntry(owner, dnskeyCacheTTL, time.Now()))

		return ctx, nil, err
	}

	v.keyCache.Put(owner, dns.ClassINET, newGoodKeyEntry(owner, keys, dnskeyCacheTTL, time.Now()))

	return ctx, keys, nil
}

// queryAndMatchDNSKEY queries signerName's DNSKEY set and returns the key
// whose tag matches keyTag and whose algorithm matches algorithm, the
// binding RFC 4034 §2.1.2 requires between an RRSIG and the key that
// produced it.
func (v *Validator) queryAndMatchDNSKEY(
	ctx context.Context, signerName string, keyTag uint16, algorithm uint8,
) (context.Context, *dns.DNSKEY, error) {
	ctx, keys, err := v.queryDNSKEY(ctx, signerName)
	if err != nil {
		return ctx, nil, err
	}

	key := findMatchingDNSKEY(keys, keyTag)
	if key == nil {
		return ctx, nil, fmt.Errorf("no DNSKEY for %s matches key tag %d", signerName, keyTag)
	}

	if key.Algorithm != algorithm {
		return ctx, nil, fmt.Errorf("DNSKEY algorithm %d for %s does not match RRSIG algorithm %d",
			key.Algorithm, signerName, algorithm)
	}

	return ctx, key, nil
}
