package config

import (
	"github.com/sirupsen/logrus"
)

// DNSSEC is the configuration for DNSSEC validation
type DNSSEC struct {
	Validate             bool     `default:"false"     yaml:"validate"`
	TrustAnchors         []string `yaml:"trustAnchors"`
	MaxChainDepth        uint     `default:"10"        yaml:"maxChainDepth"`
	CacheExpirationHours uint     `default:"1"         yaml:"cacheExpirationHours"`
	MaxNSEC3Iterations   uint     `default:"150"       yaml:"maxNSEC3Iterations"` // RFC 5155 §10.3
	// DoS protection: max upstream queries per validation
	MaxUpstreamQueries uint `default:"30" yaml:"maxUpstreamQueries"`
	// Clock skew tolerance in seconds for signature validation (default: 3600 = 1 hour)
	// Allows validation to succeed even if system clock is off by this amount.
	// Matches Unbound/BIND defaults for real-world deployments (VMs, containers, embedded systems).
	// Per RFC 6781 §4.1.2: Validators should account for clock skew in deployment environments.
	ClockSkewToleranceSec uint `default:"3600" yaml:"clockSkewToleranceSec"`
	// HardenAlgoDowngrade rejects falling back to a weaker RRSIG when the
	// strongest-algorithm signature for an RRset fails to validate.
	// Per RFC 6840 §5.2 (harden-algo-downgrade).
	HardenAlgoDowngrade bool `default:"true" yaml:"hardenAlgoDowngrade"`
	// MaxValidateRRSIGs bounds how many RRSIGs covering a single RRset are
	// tried before giving up, protecting against signature-flooding.
	MaxValidateRRSIGs uint `default:"8" yaml:"maxValidateRRSIGs"`
	// KeyCacheMaxEntries bounds the in-memory DNSKEY cache size. 0 uses the
	// package default.
	KeyCacheMaxEntries uint `default:"0" yaml:"keyCacheMaxEntries"`
	// NSEC3IterationLimits caps iteration counts per signing-key size, per
	// RFC 5155 §10.3's guidance that larger keys can tolerate more iterations.
	NSEC3IterationLimits NSEC3IterationLimits `yaml:"nsec3IterationLimits"`
}

// NSEC3IterationLimits configures the maximum NSEC3 iteration count this
// validator accepts, bucketed by the zone signing key's RSA modulus size.
// A count above the bucket's ceiling is treated as Insecure rather than
// Bogus (RFC 5155 §10.3 describes this as a denial-of-service mitigation,
// not a proof of tampering).
type NSEC3IterationLimits struct {
	Bits1024 uint `default:"150"  yaml:"bits1024"`
	Bits2048 uint `default:"500"  yaml:"bits2048"`
	Bits4096 uint `default:"2500" yaml:"bits4096"`
}

// IsEnabled returns true if DNSSEC validation is enabled
func (c *DNSSEC) IsEnabled() bool {
	return c.Validate
}

// LogConfig logs the DNSSEC configuration
func (c *DNSSEC) LogConfig(logger *logrus.Entry) {
	logger.Infof("Validation = %t", c.Validate)

	if c.Validate {
		if len(c.TrustAnchors) > 0 {
			logger.Infof("Custom trust anchors = %d", len(c.TrustAnchors))
		} else {
			logger.Info("Using default root trust anchors")
		}
		logger.Infof("Max chain depth = %d", c.MaxChainDepth)
		logger.Infof("Cache expiration = %d hour(s)", c.CacheExpirationHours)
		logger.Infof("Max NSEC3 iterations = %d", c.MaxNSEC3Iterations)
		logger.Infof("Max upstream queries per validation = %d", c.MaxUpstreamQueries)
		logger.Infof("Clock skew tolerance = %d second(s)", c.ClockSkewToleranceSec)
		logger.Infof("Harden algorithm downgrade = %t", c.HardenAlgoDowngrade)
		logger.Infof("Max RRSIGs tried per RRset = %d", c.MaxValidateRRSIGs)
		logger.Infof("NSEC3 iteration limits = %d/%d/%d (1024/2048/4096 bit)",
			c.NSEC3IterationLimits.Bits1024, c.NSEC3IterationLimits.Bits2048, c.NSEC3IterationLimits.Bits4096)
	}
}
