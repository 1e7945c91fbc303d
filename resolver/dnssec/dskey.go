package dnssec

// DS/DNSKEY binding per RFC 4034 §5.2.

import (
	"encoding/base64"

	"github.com/miekg/dns"
)

// defaultDigestPreference orders DS digest algorithm numbers by preference;
// the first one present in a DS RRset and supported by the crypto backend
// wins.
var defaultDigestPreference = []uint8{dns.SHA384, dns.SHA256, dns.SHA1} //nolint:gochecknoglobals

func isSupportedDigest(alg uint8) bool {
	switch alg {
	case dns.SHA1, dns.SHA256, dns.SHA384:
		return true
	default:
		return false
	}
}

// matchDSToDNSKEY reports whether ds was computed from dnskey: key tag and
// algorithm must match, and the digest of (owner-canonical || DNSKEY-rdata)
// must equal ds.Digest.
func matchDSToDNSKEY(ds *dns.DS, dnskey *dns.DNSKEY) bool {
	if ds.KeyTag != dnskey.KeyTag() || ds.Algorithm != dnskey.Algorithm {
		return false
	}

	if !isSupportedDigest(ds.DigestType) {
		return false
	}

	computed := dnskey.ToDS(ds.DigestType)
	if computed == nil {
		return false
	}

	return equalFoldHex(computed.Digest, ds.Digest)
}

func equalFoldHex(a, b string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}

		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}

		if ca != cb {
			return false
		}
	}

	return true
}

// findValidatingKSK finds the DNSKEY in keys whose DS binding matches one of
// dsRecords, preferring the strongest digest algorithm present per
// digestPreference. Returns nil if the DS set is non-empty but no supported
// digest algorithm remains (the zone must then be treated as Insecure, not
// Bogus).
func findValidatingKSK(keys []*dns.DNSKEY, dsRecords []*dns.DS, digestPreference []uint8) *dns.DNSKEY {
	if len(digestPreference) == 0 {
		digestPreference = defaultDigestPreference
	}

	for _, digestAlg := range digestPreference {
		for _, ds := range dsRecords {
			if ds.DigestType != digestAlg {
				continue
			}

			for _, key := range keys {
				if key.Flags&dns.SEP == 0 {
					continue
				}

				if matchDSToDNSKEY(ds, key) {
					return key
				}
			}
		}
	}

	return nil
}

// anySupportedDigest reports whether any DS in dsRecords uses a digest
// algorithm this validator can evaluate. When this is false for a
// non-empty DS set, the zone must be treated as Insecure rather than
// failing validation outright.
func anySupportedDigest(dsRecords []*dns.DS) bool {
	for _, ds := range dsRecords {
		if isSupportedDigest(ds.DigestType) {
			return true
		}
	}

	return false
}

// isRevokedKSK reports the RFC 5011 §7 REVOKE bit on a key.
func isRevokedKSK(key *dns.DNSKEY) bool {
	const revokeFlag = 0x0080

	return key.Flags&revokeFlag != 0
}

// isZoneKey reports the ZONE flag required of any key used to verify
// zone data (RFC 4034 §2.1.1).
func isZoneKey(key *dns.DNSKEY) bool {
	return key.Flags&dns.ZONE != 0
}

// rsaModulusBits returns the bit length of an RSA public key's modulus per
// the RFC 3110 wire encoding (exponent-length prefix, exponent, modulus).
// Non-RSA algorithms and malformed keys report 0, signaling callers to fall
// back to the default iteration-ceiling bucket.
func rsaModulusBits(key *dns.DNSKEY) int {
	switch key.Algorithm {
	case dns.RSASHA1, dns.RSASHA1NSEC3SHA1, dns.RSASHA256, dns.RSASHA512:
	default:
		return 0
	}

	raw, err := base64.StdEncoding.DecodeString(key.PublicKey)
	if err != nil || len(raw) == 0 {
		return 0
	}

	expLen := int(raw[0])
	off := 1

	if expLen == 0 {
		if len(raw) < 3 {
			return 0
		}

		expLen = int(raw[1])<<8 | int(raw[2])
		off = 3
	}

	modLen := len(raw) - off - expLen
	if modLen <= 0 {
		return 0
	}

	return modLen * 8
}
