package site

import (
	"fmt"
	"sort"
)

// Kind identifies the type of a resource in a Graph.
type Kind string

const (
	KindStorageContainer Kind = "storage_container"
	KindCertificate      Kind = "certificate"
	KindEdgeDistribution Kind = "edge_distribution"
	KindHostedZone       Kind = "hosted_zone"
	KindDNSAliasRecord   Kind = "dns_alias_record"
)

// Attributes assigned by the provider at creation time.
const (
	AttrBucketName               = "BucketName"
	AttrBucketRegionalDomainName = "RegionalDomainName"
	AttrDistributionDomainName   = "DomainName"
	AttrHostedZoneID             = "HostedZoneId"
	AttrCertificateARN           = "Arn"
)

// ViewerProtocolPolicy is the edge policy applied to viewer requests.
type ViewerProtocolPolicy string

// ViewerProtocolHTTPSOnly is the only policy the composer emits.
const ViewerProtocolHTTPSOnly ViewerProtocolPolicy = "https-only"

// MinimumProtocolVersion is the TLS floor negotiated with viewers.
type MinimumProtocolVersion string

// MinimumProtocolTLSv1_2016 pins viewers to TLSv1 with the 2016 cipher set.
const MinimumProtocolTLSv1_2016 MinimumProtocolVersion = "TLSv1_2016"

// Ref points at an attribute of another resource in the same graph.
//
// An empty Attribute refers to the resource itself.
type Ref struct {
	ID        string `yaml:"id" json:"id"`
	Attribute string `yaml:"attribute,omitempty" json:"attribute,omitempty"`
}

func (r Ref) String() string {
	if r.Attribute == "" {
		return r.ID
	}
	return r.ID + "." + r.Attribute
}

// StorageContainer is the private bucket holding site content.
type StorageContainer struct {
	ID string `yaml:"id" json:"id"`

	PublicRead            bool `yaml:"public_read" json:"public_read"`
	BlockPublicACLs       bool `yaml:"block_public_acls" json:"block_public_acls"`
	IgnorePublicACLs      bool `yaml:"ignore_public_acls" json:"ignore_public_acls"`
	BlockPublicPolicy     bool `yaml:"block_public_policy" json:"block_public_policy"`
	RestrictPublicBuckets bool `yaml:"restrict_public_buckets" json:"restrict_public_buckets"`
	EnforceSSL            bool `yaml:"enforce_ssl" json:"enforce_ssl"`

	RemovalPolicy     RemovalPolicy `yaml:"removal_policy" json:"removal_policy"`
	AutoDeleteObjects bool          `yaml:"auto_delete_objects" json:"auto_delete_objects"`
}

// Public reports whether any part of the access policy allows public access.
func (s StorageContainer) Public() bool {
	return s.PublicRead || !s.BlockPublicACLs || !s.IgnorePublicACLs || !s.BlockPublicPolicy || !s.RestrictPublicBuckets
}

// CertificateRef is an existing certificate, resolved by ARN. It is never created.
type CertificateRef struct {
	ID  string `yaml:"id" json:"id"`
	ARN string `yaml:"arn" json:"arn"`
}

// EdgeDistribution is the CloudFront distribution in front of the bucket.
type EdgeDistribution struct {
	ID string `yaml:"id" json:"id"`

	Origin      Ref      `yaml:"origin" json:"origin"`
	Certificate Ref      `yaml:"certificate" json:"certificate"`
	DomainNames []string `yaml:"domain_names" json:"domain_names"`

	ViewerProtocolPolicy   ViewerProtocolPolicy   `yaml:"viewer_protocol_policy" json:"viewer_protocol_policy"`
	MinimumProtocolVersion MinimumProtocolVersion `yaml:"minimum_protocol_version" json:"minimum_protocol_version"`
	DefaultRootObject      string                 `yaml:"default_root_object" json:"default_root_object"`
}

// HostedZoneRef is an existing hosted zone, resolved by name or imported by ID.
type HostedZoneRef struct {
	ID           string `yaml:"id" json:"id"`
	ZoneName     string `yaml:"zone_name" json:"zone_name"`
	HostedZoneID string `yaml:"hosted_zone_id,omitempty" json:"hosted_zone_id,omitempty"`
}

// DNSAliasRecord aliases the site domain at the distribution endpoint.
type DNSAliasRecord struct {
	ID string `yaml:"id" json:"id"`

	RecordName string `yaml:"record_name" json:"record_name"`
	Zone       Ref    `yaml:"zone" json:"zone"`
	Target     Ref    `yaml:"target" json:"target"`
}

// Output is a named stack output consumed by downstream tooling.
type Output struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Value       Ref    `yaml:"value" json:"value"`
}

// Environment is the deployment target needed for zone lookups.
type Environment struct {
	Account string `yaml:"account,omitempty" json:"account,omitempty"`
	Region  string `yaml:"region,omitempty" json:"region,omitempty"`
}

// Graph is the declarative resource graph for one site stack.
//
// A Graph is a value: Compose builds it and nothing mutates it afterwards.
type Graph struct {
	StackName   string            `yaml:"stack_name" json:"stack_name"`
	Environment Environment       `yaml:"environment,omitempty" json:"environment,omitempty"`
	Tags        map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`

	Storage      StorageContainer `yaml:"storage" json:"storage"`
	Certificate  CertificateRef   `yaml:"certificate" json:"certificate"`
	Distribution EdgeDistribution `yaml:"distribution" json:"distribution"`
	Zone         HostedZoneRef    `yaml:"zone" json:"zone"`
	Alias        DNSAliasRecord   `yaml:"alias" json:"alias"`

	Outputs []Output `yaml:"outputs" json:"outputs"`
}

// Node is the ordering view of a single resource.
type Node struct {
	ID        string   `yaml:"id" json:"id"`
	Kind      Kind     `yaml:"kind" json:"kind"`
	Imported  bool     `yaml:"imported,omitempty" json:"imported,omitempty"`
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

// Nodes returns every resource in the graph, created and imported, with its
// dependency edges.
func (g *Graph) Nodes() []Node {
	if g == nil {
		return nil
	}
	return []Node{
		{ID: g.Storage.ID, Kind: KindStorageContainer},
		{ID: g.Certificate.ID, Kind: KindCertificate, Imported: true},
		{
			ID:        g.Distribution.ID,
			Kind:      KindEdgeDistribution,
			DependsOn: []string{g.Distribution.Origin.ID, g.Distribution.Certificate.ID},
		},
		{ID: g.Zone.ID, Kind: KindHostedZone, Imported: true},
		{
			ID:        g.Alias.ID,
			Kind:      KindDNSAliasRecord,
			DependsOn: []string{g.Alias.Zone.ID, g.Alias.Target.ID},
		},
	}
}

// CreationOrder returns the nodes so that every node follows its dependencies.
// Ties are broken by ID so the order is stable across calls.
func (g *Graph) CreationOrder() ([]Node, error) {
	nodes := g.Nodes()
	byID := make(map[string]Node, len(nodes))
	indegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return nil, &GraphError{Message: fmt.Sprintf("%s has an empty id", n.Kind)}
		}
		if _, dup := byID[n.ID]; dup {
			return nil, &GraphError{Message: fmt.Sprintf("duplicate resource id %q", n.ID)}
		}
		byID[n.ID] = n
		indegree[n.ID] = 0
	}

	dependents := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, &GraphError{Message: fmt.Sprintf("%q depends on unknown resource %q", n.ID, dep)}
			}
			indegree[n.ID]++
			dependents[dep] = append(dependents[dep], n.ID)
		}
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]Node, 0, len(nodes))
	for len(ready) > 0 {
		sort.Strings(ready)
		id := ready[0]
		ready = ready[1:]
		order = append(order, byID[id])
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, &GraphError{Message: "dependency cycle detected"}
	}
	return order, nil
}

// TeardownOrder returns the created (non-imported) resources in reverse
// creation order.
func (g *Graph) TeardownOrder() ([]Node, error) {
	order, err := g.CreationOrder()
	if err != nil {
		return nil, err
	}
	out := make([]Node, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		if order[i].Imported {
			continue
		}
		out = append(out, order[i])
	}
	return out, nil
}

// Validate checks the structural and security invariants of the graph.
func (g *Graph) Validate() error {
	if g == nil {
		return &GraphError{Message: "graph is nil"}
	}
	if _, err := g.CreationOrder(); err != nil {
		return err
	}
	if g.Storage.Public() {
		return &GraphError{Message: "storage container allows public access"}
	}
	if g.Distribution.ViewerProtocolPolicy != ViewerProtocolHTTPSOnly {
		return &GraphError{Message: fmt.Sprintf("viewer protocol policy %q is not https-only", g.Distribution.ViewerProtocolPolicy)}
	}
	if g.Distribution.Origin.ID != g.Storage.ID {
		return &GraphError{Message: "distribution origin is not the storage container"}
	}
	if g.Distribution.Certificate.ID != g.Certificate.ID {
		return &GraphError{Message: "distribution certificate is not the certificate reference"}
	}
	if g.Alias.Target.ID != g.Distribution.ID {
		return &GraphError{Message: "alias record does not target the distribution"}
	}
	if g.Alias.Zone.ID != g.Zone.ID {
		return &GraphError{Message: "alias record is not in the hosted zone"}
	}
	if len(g.Distribution.DomainNames) != 1 || g.Distribution.DomainNames[0] != g.Alias.RecordName {
		return &GraphError{Message: "distribution domain names must be exactly the alias record name"}
	}
	return nil
}

// Output returns the named output and whether it exists.
func (g *Graph) Output(name string) (Output, bool) {
	if g == nil {
		return Output{}, false
	}
	for _, out := range g.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return Output{}, false
}

// Node returns the node with the given ID and whether it exists.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes() {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
