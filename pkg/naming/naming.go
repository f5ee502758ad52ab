package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const maxStackNameLength = 128

var (
	nonAlnum  = regexp.MustCompile(`[^a-z0-9-]+`)
	multiDash = regexp.MustCompile(`-+`)
)

func sanitizePart(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, "_", "-")
	value = strings.ReplaceAll(value, " ", "-")
	value = nonAlnum.ReplaceAllString(value, "-")
	value = multiDash.ReplaceAllString(value, "-")
	value = strings.Trim(value, "-")
	return value
}

// NormalizeStage maps stage aliases to canonical values.
//
// Canonical stages are lowercased and safe for typical resource naming schemes.
func NormalizeStage(stage string) string {
	stage = strings.ToLower(strings.TrimSpace(stage))
	switch stage {
	case "prod", "production", "live":
		return "live"
	case "dev", "development":
		return "dev"
	case "stg", "stage", "staging":
		return "stage"
	case "test", "testing":
		return "test"
	case "local":
		return "local"
	default:
		return sanitizePart(stage)
	}
}

// StackName returns a deterministic CloudFormation stack name for a site domain:
// - <domain>-site-<stage>
// - <domain>-site (when stage is empty)
//
// Dots in the domain become dashes. Names that would not start with a letter
// are prefixed with "site-". When the domain loses characters on the way
// (runs of dashes such as "xn--", characters outside [a-z0-9.-], truncation to
// maxStackNameLength) an 8 character hash of the domain and stage is appended
// so distinct domains keep distinct stacks.
func StackName(domainName, stage string) string {
	raw := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domainName)), ".")
	dashed := strings.ReplaceAll(raw, ".", "-")
	domain := sanitizePart(dashed)

	name := ResourceName(domain, "site", stage, "")
	if name == "" || name[0] < 'a' || name[0] > 'z' {
		name = "site-" + strings.TrimPrefix(name, "-")
	}
	if domain == dashed && len(name) <= maxStackNameLength {
		return name
	}

	sum := sha256.Sum256([]byte(raw + "/" + NormalizeStage(stage)))
	suffix := "-" + hex.EncodeToString(sum[:4])
	if limit := maxStackNameLength - len(suffix); len(name) > limit {
		name = strings.TrimRight(name[:limit], "-")
	}
	return name + suffix
}

// ResourceName returns a deterministic resource name:
// - <app>-<resource>-<stage>
// - <app>-<qualifier>-<resource>-<stage> (when qualifier is provided)
func ResourceName(appName, resource, stage, qualifier string) string {
	app := sanitizePart(appName)
	qualifier = sanitizePart(qualifier)
	resource = sanitizePart(resource)
	stage = NormalizeStage(stage)

	parts := []string{app}
	if qualifier != "" {
		parts = append(parts, qualifier)
	}
	if resource != "" {
		parts = append(parts, resource)
	}
	if stage != "" {
		parts = append(parts, stage)
	}
	return strings.Join(parts, "-")
}
