package site

// Logical resource IDs. They double as CDK construct IDs, so changing one
// replaces the resource on the next deploy.
const (
	StorageID      = "SiteContentBucket"
	CertificateID  = "ACMCertificate"
	DistributionID = "SiteDistribution"
	ZoneID         = "Zone"
	AliasRecordID  = "SiteAliasRecord"

	OutputBucketName = "BucketName"
)

// Compose validates cfg and builds the resource graph for a static site:
// a private bucket, a CloudFront distribution fronting it with an existing
// certificate, and an alias record for the domain.
//
// Compose is pure. It performs no lookups; the certificate and hosted zone are
// emitted as references for the orchestrator to resolve at apply time.
// Invalid configuration returns a *ConfigError and no graph.
func Compose(cfg Config) (*Graph, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Graph{
		StackName: cfg.StackName,
		Environment: Environment{
			Account: cfg.Account,
			Region:  cfg.Region,
		},
		Tags: copyTags(cfg.Tags),

		Storage: StorageContainer{
			ID:                    StorageID,
			PublicRead:            false,
			BlockPublicACLs:       true,
			IgnorePublicACLs:      true,
			BlockPublicPolicy:     true,
			RestrictPublicBuckets: true,
			EnforceSSL:            true,
			RemovalPolicy:         cfg.RemovalPolicy,
			AutoDeleteObjects:     cfg.AutoDeleteObjects,
		},
		Certificate: CertificateRef{
			ID:  CertificateID,
			ARN: cfg.CertificateARN,
		},
		Distribution: EdgeDistribution{
			ID:                     DistributionID,
			Origin:                 Ref{ID: StorageID},
			Certificate:            Ref{ID: CertificateID},
			DomainNames:            []string{cfg.DomainName},
			ViewerProtocolPolicy:   ViewerProtocolHTTPSOnly,
			MinimumProtocolVersion: MinimumProtocolTLSv1_2016,
			DefaultRootObject:      cfg.DefaultRootObject,
		},
		Zone: HostedZoneRef{
			ID:           ZoneID,
			ZoneName:     cfg.HostedZoneName,
			HostedZoneID: cfg.HostedZoneID,
		},
		Alias: DNSAliasRecord{
			ID:         AliasRecordID,
			RecordName: cfg.DomainName,
			Zone:       Ref{ID: ZoneID},
			Target:     Ref{ID: DistributionID, Attribute: AttrDistributionDomainName},
		},
		Outputs: []Output{
			{
				Name:        OutputBucketName,
				Description: "Name of the bucket holding site content",
				Value:       Ref{ID: StorageID, Attribute: AttrBucketName},
			},
		},
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func copyTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
