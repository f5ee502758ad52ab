package site

import (
	"regexp"
	"sort"
	"strings"

	"github.com/miekg/dns"

	"github.com/theory-cloud/sitetheory/pkg/naming"
)

// RemovalPolicy controls what happens to the content bucket on stack teardown.
type RemovalPolicy string

const (
	// RemovalPolicyDestroy deletes the bucket with the stack. It is the default:
	// environments are cheap to tear down at the cost of content durability.
	RemovalPolicyDestroy RemovalPolicy = "destroy"
	// RemovalPolicyRetain orphans the bucket when the stack is deleted.
	RemovalPolicyRetain RemovalPolicy = "retain"
)

const (
	DefaultRootObject = "index.html"

	maxDomainNameLength = 253
	maxLabelLength      = 63
	maxRootObjectLength = 255
	maxTagKeyLength     = 128
	maxTagValueLength   = 256
)

var (
	stackNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]{0,127}$`)
	accountPattern   = regexp.MustCompile(`^[0-9]{12}$`)
	regionPattern    = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-[0-9]+$`)
)

// Config is the input record for Compose.
//
// DomainName and CertificateARN are required. Everything else has a default.
type Config struct {
	DomainName     string `yaml:"domain_name" json:"domain_name"`
	CertificateARN string `yaml:"certificate_arn" json:"certificate_arn"`

	StackName string `yaml:"stack_name,omitempty" json:"stack_name,omitempty"`
	Stage     string `yaml:"stage,omitempty" json:"stage,omitempty"`

	HostedZoneName string `yaml:"hosted_zone_name,omitempty" json:"hosted_zone_name,omitempty"`
	HostedZoneID   string `yaml:"hosted_zone_id,omitempty" json:"hosted_zone_id,omitempty"`

	RemovalPolicy     RemovalPolicy `yaml:"removal_policy,omitempty" json:"removal_policy,omitempty"`
	AutoDeleteObjects bool          `yaml:"auto_delete_objects,omitempty" json:"auto_delete_objects,omitempty"`
	DefaultRootObject string        `yaml:"default_root_object,omitempty" json:"default_root_object,omitempty"`

	Account string `yaml:"account,omitempty" json:"account,omitempty"`
	Region  string `yaml:"region,omitempty" json:"region,omitempty"`

	Tags map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Normalize returns a copy of c with whitespace trimmed, DNS names canonicalized,
// and defaults applied. It never fails; Validate reports what Normalize cannot fix.
func (c Config) Normalize() Config {
	out := c
	out.DomainName = normalizeDomainName(c.DomainName)
	out.CertificateARN = strings.TrimSpace(c.CertificateARN)
	out.Stage = naming.NormalizeStage(c.Stage)
	out.HostedZoneName = normalizeDomainName(c.HostedZoneName)
	out.HostedZoneID = strings.TrimSpace(c.HostedZoneID)
	out.Account = strings.TrimSpace(c.Account)
	out.Region = strings.ToLower(strings.TrimSpace(c.Region))

	if out.HostedZoneName == "" {
		out.HostedZoneName = out.DomainName
	}

	out.StackName = strings.TrimSpace(c.StackName)
	if out.StackName == "" && out.DomainName != "" {
		out.StackName = naming.StackName(out.DomainName, out.Stage)
	}

	out.RemovalPolicy = RemovalPolicy(strings.ToLower(strings.TrimSpace(string(c.RemovalPolicy))))
	if out.RemovalPolicy == "" {
		out.RemovalPolicy = RemovalPolicyDestroy
	}

	out.DefaultRootObject = strings.TrimSpace(c.DefaultRootObject)
	if out.DefaultRootObject == "" {
		out.DefaultRootObject = DefaultRootObject
	}

	if len(c.Tags) > 0 {
		seen := make(map[string]int, len(c.Tags))
		for k := range c.Tags {
			seen[strings.TrimSpace(k)]++
		}
		// Keys that collide once trimmed keep their raw form so Validate can
		// reject them instead of one value winning by map order.
		out.Tags = make(map[string]string, len(c.Tags))
		for k, v := range c.Tags {
			key := strings.TrimSpace(k)
			if seen[key] > 1 {
				key = k
			}
			out.Tags[key] = strings.TrimSpace(v)
		}
	}
	return out
}

// Validate checks a normalized Config. It returns the first *ConfigError found.
func (c Config) Validate() error {
	if c.DomainName == "" {
		return missing("domain_name")
	}
	if c.CertificateARN == "" {
		return missing("certificate_arn")
	}
	if err := validateDomainName("domain_name", c.DomainName); err != nil {
		return err
	}
	if strings.ContainsAny(c.CertificateARN, " \t\r\n") {
		return invalid("certificate_arn", "must not contain whitespace")
	}

	if err := validateDomainName("hosted_zone_name", c.HostedZoneName); err != nil {
		return err
	}
	if !dns.IsSubDomain(c.HostedZoneName, c.DomainName) {
		return invalid("hosted_zone_name", "%q does not contain %q", c.HostedZoneName, c.DomainName)
	}
	if strings.ContainsAny(c.HostedZoneID, " \t\r\n/") {
		return invalid("hosted_zone_id", "must be a bare zone id")
	}

	if !stackNamePattern.MatchString(c.StackName) {
		return invalid("stack_name", "%q is not a valid stack name", c.StackName)
	}

	switch c.RemovalPolicy {
	case RemovalPolicyDestroy:
	case RemovalPolicyRetain:
		if c.AutoDeleteObjects {
			return invalid("auto_delete_objects", "requires removal_policy %q", RemovalPolicyDestroy)
		}
	default:
		return invalid("removal_policy", "unsupported value %q", c.RemovalPolicy)
	}

	if strings.HasPrefix(c.DefaultRootObject, "/") {
		return invalid("default_root_object", "must not start with '/'")
	}
	if len(c.DefaultRootObject) > maxRootObjectLength {
		return invalid("default_root_object", "longer than %d characters", maxRootObjectLength)
	}

	if c.Account != "" && !accountPattern.MatchString(c.Account) {
		return invalid("account", "must be a 12 digit account id")
	}
	if c.Region != "" && !regionPattern.MatchString(c.Region) {
		return invalid("region", "%q is not a region name", c.Region)
	}

	keys := make([]string, 0, len(c.Tags))
	for k := range c.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := c.Tags[k]
		if trimmed := strings.TrimSpace(k); trimmed != k {
			return invalid("tags", "duplicate tag key %q after trimming", trimmed)
		}
		if k == "" {
			return invalid("tags", "empty tag key")
		}
		if len(k) > maxTagKeyLength || len(v) > maxTagValueLength {
			return invalid("tags", "tag %q exceeds length limits", k)
		}
		if strings.HasPrefix(strings.ToLower(k), "aws:") {
			return invalid("tags", "tag %q uses the reserved aws: prefix", k)
		}
	}
	return nil
}

func normalizeDomainName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".")
}

// validateDomainName accepts LDH host names with at least two labels.
func validateDomainName(field, name string) error {
	if name == "" {
		return missing(field)
	}
	if strings.Contains(name, "*") {
		return invalid(field, "wildcard names are not supported")
	}
	if len(name) > maxDomainNameLength {
		return invalid(field, "longer than %d characters", maxDomainNameLength)
	}
	labelCount, ok := dns.IsDomainName(name)
	if !ok {
		return invalid(field, "%q is not a valid DNS name", name)
	}
	if labelCount < 2 {
		return invalid(field, "%q is not fully qualified", name)
	}
	for _, label := range dns.SplitDomainName(name) {
		if err := validateLabel(label); err != nil {
			return invalid(field, "%q: %v", name, err)
		}
	}
	return nil
}

type labelError string

func (e labelError) Error() string { return string(e) }

func validateLabel(label string) error {
	if label == "" || len(label) > maxLabelLength {
		return labelError("label length must be 1-63")
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return labelError("label must not start or end with '-'")
	}
	for i := 0; i < len(label); i++ {
		ch := label[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '-':
		default:
			return labelError("label contains invalid character " + string(rune(ch)))
		}
	}
	return nil
}
