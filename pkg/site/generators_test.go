package site

import (
	"fmt"
	"strings"

	"pgregory.net/rapid"
)

// genLabel generates a lowercase LDH label that starts with a letter.
func genLabel() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-z][a-z0-9]{0,12}(-[a-z0-9]{1,6})?`)
}

// genDomainName generates a syntactically valid name with 2-4 labels.
func genDomainName() *rapid.Generator[string] {
	return rapid.Custom[string](func(t *rapid.T) string {
		n := rapid.IntRange(2, 4).Draw(t, "labels")
		labels := make([]string, n)
		for i := range n {
			labels[i] = genLabel().Draw(t, fmt.Sprintf("label_%d", i))
		}
		return strings.Join(labels, ".")
	})
}

func genCertificateARN() *rapid.Generator[string] {
	return rapid.StringMatching(`arn:aws:acm:us-east-1:[0-9]{12}:certificate/[a-f0-9]{8}-[a-f0-9]{4}`)
}

// genConfig generates a valid Config, exercising the optional settings.
func genConfig() *rapid.Generator[Config] {
	return rapid.Custom[Config](func(t *rapid.T) Config {
		cfg := Config{
			DomainName:     genDomainName().Draw(t, "domain"),
			CertificateARN: genCertificateARN().Draw(t, "certificate"),
			Stage:          rapid.SampledFrom([]string{"", "dev", "prod", "staging"}).Draw(t, "stage"),
		}
		if rapid.Bool().Draw(t, "retain") {
			cfg.RemovalPolicy = RemovalPolicyRetain
		} else {
			cfg.AutoDeleteObjects = rapid.Bool().Draw(t, "autoDelete")
		}
		if rapid.Bool().Draw(t, "zoneID") {
			cfg.HostedZoneID = rapid.StringMatching(`Z[A-Z0-9]{10,20}`).Draw(t, "hostedZoneID")
		}
		return cfg
	})
}
