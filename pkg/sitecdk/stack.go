// Package sitecdk renders a site.Graph as an AWS CDK stack.
package sitecdk

import (
	"fmt"
	"sort"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscertificatemanager"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfront"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfrontorigins"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53targets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/theory-cloud/sitetheory/pkg/site"
)

// SiteStackProps configures NewSiteStack.
type SiteStackProps struct {
	awscdk.StackProps

	// Description overrides the generated stack description.
	Description string
}

// SiteStack is the rendered stack plus handles to the constructs it created.
type SiteStack struct {
	Stack        awscdk.Stack
	Bucket       awss3.Bucket
	Certificate  awscertificatemanager.ICertificate
	Distribution awscloudfront.Distribution
	Zone         awsroute53.IHostedZone
	Record       awsroute53.ARecord
}

// NewSiteStack renders graph into a new stack under scope. Construct IDs are
// the graph's resource IDs.
//
// graph must come from site.Compose; an invalid graph is rejected before any
// construct is created.
func NewSiteStack(scope constructs.Construct, id string, graph *site.Graph, props *SiteStackProps) (*SiteStack, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	var sprops awscdk.StackProps
	description := fmt.Sprintf("Static site for %s", graph.Alias.RecordName)
	if props != nil {
		sprops = props.StackProps
		if props.Description != "" {
			description = props.Description
		}
	}
	if sprops.StackName == nil {
		sprops.StackName = jsii.String(graph.StackName)
	}
	if sprops.Env == nil && (graph.Environment.Account != "" || graph.Environment.Region != "") {
		sprops.Env = &awscdk.Environment{
			Account: optionalString(graph.Environment.Account),
			Region:  optionalString(graph.Environment.Region),
		}
	}
	if sprops.Description == nil {
		sprops.Description = jsii.String(description)
	}
	if id == "" {
		id = graph.StackName
	}

	stack := awscdk.NewStack(scope, jsii.String(id), &sprops)
	out := &SiteStack{Stack: stack}

	if graph.Zone.HostedZoneID == "" &&
		(*awscdk.Token_IsUnresolved(stack.Account()) || *awscdk.Token_IsUnresolved(stack.Region())) {
		return nil, fmt.Errorf("sitecdk: looking up hosted zone %s needs an explicit account and region", graph.Zone.ZoneName)
	}

	out.Bucket = awss3.NewBucket(stack, jsii.String(graph.Storage.ID), &awss3.BucketProps{
		PublicReadAccess:  jsii.Bool(graph.Storage.PublicRead),
		BlockPublicAccess: blockPublicAccess(graph.Storage),
		EnforceSSL:        jsii.Bool(graph.Storage.EnforceSSL),
		Encryption:        awss3.BucketEncryption_S3_MANAGED,
		RemovalPolicy:     removalPolicy(graph.Storage.RemovalPolicy),
		AutoDeleteObjects: jsii.Bool(graph.Storage.AutoDeleteObjects),
	})

	out.Certificate = awscertificatemanager.Certificate_FromCertificateArn(
		stack, jsii.String(graph.Certificate.ID), jsii.String(graph.Certificate.ARN),
	)

	dist := graph.Distribution
	out.Distribution = awscloudfront.NewDistribution(stack, jsii.String(dist.ID), &awscloudfront.DistributionProps{
		DefaultBehavior: &awscloudfront.BehaviorOptions{
			Origin:               awscloudfrontorigins.S3BucketOrigin_WithOriginAccessControl(out.Bucket, nil),
			ViewerProtocolPolicy: viewerProtocolPolicy(dist.ViewerProtocolPolicy),
		},
		DomainNames:            jsii.Strings(dist.DomainNames...),
		Certificate:            out.Certificate,
		DefaultRootObject:      jsii.String(dist.DefaultRootObject),
		MinimumProtocolVersion: minimumProtocolVersion(dist.MinimumProtocolVersion),
	})

	out.Zone = hostedZone(stack, graph.Zone)

	out.Record = awsroute53.NewARecord(stack, jsii.String(graph.Alias.ID), &awsroute53.ARecordProps{
		Zone:       out.Zone,
		RecordName: jsii.String(graph.Alias.RecordName),
		Target:     awsroute53.RecordTarget_FromAlias(awsroute53targets.NewCloudFrontTarget(out.Distribution)),
	})

	for _, o := range graph.Outputs {
		value, err := out.resolve(o.Value)
		if err != nil {
			return nil, err
		}
		awscdk.NewCfnOutput(stack, jsii.String(o.Name), &awscdk.CfnOutputProps{
			Value:       value,
			Description: optionalString(o.Description),
		})
	}

	keys := make([]string, 0, len(graph.Tags))
	for k := range graph.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		awscdk.Tags_Of(stack).Add(jsii.String(k), jsii.String(graph.Tags[k]), nil)
	}

	return out, nil
}

func (s *SiteStack) resolve(ref site.Ref) (*string, error) {
	switch ref.String() {
	case site.StorageID + "." + site.AttrBucketName:
		return s.Bucket.BucketName(), nil
	case site.StorageID + "." + site.AttrBucketRegionalDomainName:
		return s.Bucket.BucketRegionalDomainName(), nil
	case site.DistributionID + "." + site.AttrDistributionDomainName:
		return s.Distribution.DistributionDomainName(), nil
	case site.DistributionID:
		return s.Distribution.DistributionId(), nil
	case site.ZoneID + "." + site.AttrHostedZoneID:
		return s.Zone.HostedZoneId(), nil
	case site.CertificateID + "." + site.AttrCertificateARN:
		return s.Certificate.CertificateArn(), nil
	default:
		return nil, fmt.Errorf("sitecdk: cannot render reference %s", ref)
	}
}

// hostedZone imports the zone by ID when one is known, otherwise it is looked
// up by name at synth time. Lookups need an explicit account and region.
func hostedZone(scope constructs.Construct, zone site.HostedZoneRef) awsroute53.IHostedZone {
	if zone.HostedZoneID != "" {
		return awsroute53.HostedZone_FromHostedZoneAttributes(scope, jsii.String(zone.ID), &awsroute53.HostedZoneAttributes{
			HostedZoneId: jsii.String(zone.HostedZoneID),
			ZoneName:     jsii.String(zone.ZoneName),
		})
	}
	return awsroute53.HostedZone_FromLookup(scope, jsii.String(zone.ID), &awsroute53.HostedZoneProviderProps{
		DomainName: jsii.String(zone.ZoneName),
	})
}

func blockPublicAccess(s site.StorageContainer) awss3.BlockPublicAccess {
	if !s.Public() {
		return awss3.BlockPublicAccess_BLOCK_ALL()
	}
	return awss3.NewBlockPublicAccess(&awss3.BlockPublicAccessOptions{
		BlockPublicAcls:       jsii.Bool(s.BlockPublicACLs),
		IgnorePublicAcls:      jsii.Bool(s.IgnorePublicACLs),
		BlockPublicPolicy:     jsii.Bool(s.BlockPublicPolicy),
		RestrictPublicBuckets: jsii.Bool(s.RestrictPublicBuckets),
	})
}

func removalPolicy(p site.RemovalPolicy) awscdk.RemovalPolicy {
	if p == site.RemovalPolicyRetain {
		return awscdk.RemovalPolicy_RETAIN
	}
	return awscdk.RemovalPolicy_DESTROY
}

func viewerProtocolPolicy(p site.ViewerProtocolPolicy) awscloudfront.ViewerProtocolPolicy {
	switch p {
	case site.ViewerProtocolHTTPSOnly:
		return awscloudfront.ViewerProtocolPolicy_HTTPS_ONLY
	default:
		return awscloudfront.ViewerProtocolPolicy_REDIRECT_TO_HTTPS
	}
}

func minimumProtocolVersion(v site.MinimumProtocolVersion) awscloudfront.SecurityPolicyProtocol {
	switch v {
	case site.MinimumProtocolTLSv1_2016:
		return awscloudfront.SecurityPolicyProtocol_TLS_V1_2016
	default:
		return awscloudfront.SecurityPolicyProtocol_TLS_V1_2_2021
	}
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return jsii.String(v)
}
