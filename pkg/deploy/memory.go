package deploy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/theory-cloud/sitetheory/pkg/site"
)

const maxBucketNameLength = 63

// ErrBucketNotEmpty is the provider failure for deleting a bucket that still
// holds objects without auto-delete enabled.
var ErrBucketNotEmpty = errors.New("bucket is not empty")

// Event is one provider action recorded by MemoryOrchestrator.
type Event struct {
	StackName  string    `json:"stack_name"`
	Action     string    `json:"action"`
	ResourceID string    `json:"resource_id"`
	Kind       site.Kind `json:"kind"`
	PhysicalID string    `json:"physical_id,omitempty"`
}

const (
	ActionResolve  = "resolve"
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionRollback = "rollback"
	ActionDelete   = "delete"
	ActionRetain   = "retain"
)

type memoryStack struct {
	physicalIDs map[string]string
	attributes  map[string]string
	outputs     map[string]string
	objects     map[string]struct{}
}

// MemoryOrchestrator is an in-memory provider for tests and local development.
//
// It resolves certificates and hosted zones from explicit registrations,
// creates resources in creation order, rolls back what it created when a step
// fails, and deletes in teardown order. Nothing leaves the process.
type MemoryOrchestrator struct {
	mu sync.Mutex

	certificates map[string][]string
	zonesByName  map[string]string
	zonesByID    map[string]string

	stacks   map[string]*memoryStack
	failures map[string]error
	orphans  []string
	events   []Event

	newID func() string
}

var (
	_ Orchestrator = (*MemoryOrchestrator)(nil)
	_ Destroyer    = (*MemoryOrchestrator)(nil)
)

type MemoryOption func(*MemoryOrchestrator)

// WithPhysicalIDs overrides the ULID generator used for physical IDs. Any
// non-empty string works; short or punctuated IDs are hashed before they are
// shaped into bucket names and distribution IDs.
func WithPhysicalIDs(fn func() string) MemoryOption {
	return func(m *MemoryOrchestrator) {
		if fn != nil {
			m.newID = fn
		}
	}
}

func NewMemoryOrchestrator(options ...MemoryOption) *MemoryOrchestrator {
	m := &MemoryOrchestrator{
		certificates: make(map[string][]string),
		zonesByName:  make(map[string]string),
		zonesByID:    make(map[string]string),
		stacks:       make(map[string]*memoryStack),
		failures:     make(map[string]error),
		newID:        func() string { return ulid.Make().String() },
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(m)
	}
	return m
}

// AddCertificate registers an issued certificate covering names. Names may use
// a single leading wildcard label.
func (m *MemoryOrchestrator) AddCertificate(arn string, names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	normalized := make([]string, 0, len(names))
	for _, name := range names {
		normalized = append(normalized, canonicalName(name))
	}
	m.certificates[strings.TrimSpace(arn)] = normalized
}

// AddHostedZone registers a hosted zone.
func (m *MemoryOrchestrator) AddHostedZone(name, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = canonicalName(name)
	id = strings.TrimSpace(id)
	m.zonesByName[name] = id
	m.zonesByID[id] = name
}

// FailOn makes every operation on resourceID fail with err. A nil err clears it.
func (m *MemoryOrchestrator) FailOn(resourceID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, resourceID)
		return
	}
	m.failures[resourceID] = err
}

// PutObjects adds keys to the content bucket of a deployed stack.
func (m *MemoryOrchestrator) PutObjects(stackName string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack, ok := m.stacks[stackName]
	if !ok {
		return fmt.Errorf("deploy: stack %q does not exist", stackName)
	}
	for _, key := range keys {
		stack.objects[key] = struct{}{}
	}
	return nil
}

// Events returns a copy of every recorded provider action, in order.
func (m *MemoryOrchestrator) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Orphans returns the physical IDs of retained buckets left behind by Destroy.
func (m *MemoryOrchestrator) Orphans() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.orphans...)
}

// Stack reports the current state of a deployed stack.
func (m *MemoryOrchestrator) Stack(stackName string) (*Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack, ok := m.stacks[stackName]
	if !ok {
		return nil, false
	}
	return &Result{
		StackName:   stackName,
		Outputs:     copyStrings(stack.outputs),
		PhysicalIDs: copyStrings(stack.physicalIDs),
	}, true
}

func (m *MemoryOrchestrator) Apply(ctx context.Context, graph *site.Graph) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	order, err := graph.CreationOrder()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := &memoryStack{
		physicalIDs: map[string]string{},
		attributes:  map[string]string{},
		outputs:     map[string]string{},
		objects:     map[string]struct{}{},
	}
	existing, exists := m.stacks[graph.StackName]
	if exists {
		next.physicalIDs = copyStrings(existing.physicalIDs)
		next.attributes = copyStrings(existing.attributes)
		next.objects = existing.objects
	}

	var created []site.Node
	for _, node := range order {
		if err := ctx.Err(); err != nil {
			m.rollback(graph.StackName, created, next)
			return nil, err
		}

		if node.Imported {
			physicalID, err := m.resolve(graph, node)
			if err != nil {
				m.rollback(graph.StackName, created, next)
				return nil, err
			}
			next.physicalIDs[node.ID] = physicalID
			m.record(graph.StackName, ActionResolve, node, physicalID)
			continue
		}

		_, had := next.physicalIDs[node.ID]
		op := ActionCreate
		if had {
			op = ActionUpdate
		}
		if failure := m.failures[node.ID]; failure != nil {
			m.rollback(graph.StackName, created, next)
			return nil, &ProviderError{ResourceID: node.ID, Op: op, Err: failure}
		}

		if !had {
			m.create(graph, node, next)
			created = append(created, node)
		}
		m.record(graph.StackName, op, node, next.physicalIDs[node.ID])
	}

	for _, out := range graph.Outputs {
		value, ok := lookupRef(out.Value, next)
		if !ok {
			return nil, fmt.Errorf("deploy: output %q references unknown attribute %s", out.Name, out.Value)
		}
		next.outputs[out.Name] = value
	}

	m.stacks[graph.StackName] = next
	return &Result{
		StackName:   graph.StackName,
		Outputs:     copyStrings(next.outputs),
		PhysicalIDs: copyStrings(next.physicalIDs),
	}, nil
}

func (m *MemoryOrchestrator) Destroy(ctx context.Context, graph *site.Graph) error {
	if ctx == nil {
		ctx = context.Background()
	}
	order, err := graph.TeardownOrder()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stack, ok := m.stacks[graph.StackName]
	if !ok {
		return nil
	}

	for _, node := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		physicalID, ok := stack.physicalIDs[node.ID]
		if !ok {
			continue
		}
		if failure := m.failures[node.ID]; failure != nil {
			return &ProviderError{ResourceID: node.ID, Op: ActionDelete, Err: failure}
		}

		if node.Kind == site.KindStorageContainer {
			if graph.Storage.RemovalPolicy == site.RemovalPolicyRetain {
				m.orphans = append(m.orphans, physicalID)
				delete(stack.physicalIDs, node.ID)
				m.record(graph.StackName, ActionRetain, node, physicalID)
				continue
			}
			if len(stack.objects) > 0 && !graph.Storage.AutoDeleteObjects {
				return &ProviderError{ResourceID: node.ID, Op: ActionDelete, Err: ErrBucketNotEmpty}
			}
			stack.objects = map[string]struct{}{}
		}

		delete(stack.physicalIDs, node.ID)
		m.record(graph.StackName, ActionDelete, node, physicalID)
	}

	delete(m.stacks, graph.StackName)
	return nil
}

func (m *MemoryOrchestrator) resolve(graph *site.Graph, node site.Node) (string, error) {
	switch node.Kind {
	case site.KindCertificate:
		arn := graph.Certificate.ARN
		names, ok := m.certificates[arn]
		if !ok {
			return "", &ReferenceError{ResourceID: node.ID, Kind: node.Kind, Identifier: arn, Reason: "certificate not found"}
		}
		for _, domain := range graph.Distribution.DomainNames {
			if !certificateCovers(names, domain) {
				return "", &ReferenceError{
					ResourceID: node.ID,
					Kind:       node.Kind,
					Identifier: arn,
					Reason:     fmt.Sprintf("certificate does not cover %s", domain),
				}
			}
		}
		return arn, nil
	case site.KindHostedZone:
		zoneName := graph.Zone.ZoneName
		zoneID := graph.Zone.HostedZoneID
		if zoneID != "" {
			name, ok := m.zonesByID[zoneID]
			if !ok {
				return "", &ReferenceError{ResourceID: node.ID, Kind: node.Kind, Identifier: zoneID, Reason: "hosted zone not found"}
			}
			zoneName = name
		} else {
			id, ok := m.zonesByName[zoneName]
			if !ok {
				return "", &ReferenceError{ResourceID: node.ID, Kind: node.Kind, Identifier: zoneName, Reason: "hosted zone not found"}
			}
			zoneID = id
		}
		record := graph.Alias.RecordName
		if record != zoneName && !strings.HasSuffix(record, "."+zoneName) {
			return "", &ReferenceError{
				ResourceID: node.ID,
				Kind:       node.Kind,
				Identifier: zoneID,
				Reason:     fmt.Sprintf("zone %s cannot hold %s", zoneName, record),
			}
		}
		return zoneID, nil
	default:
		return "", fmt.Errorf("deploy: %s is not an imported kind", node.Kind)
	}
}

func (m *MemoryOrchestrator) create(graph *site.Graph, node site.Node, stack *memoryStack) {
	id := m.newID()
	switch node.Kind {
	case site.KindStorageContainer:
		name := bucketName(graph.StackName, node.ID, id)
		stack.physicalIDs[node.ID] = name
		stack.attributes[attrKey(node.ID, site.AttrBucketName)] = name
		stack.attributes[attrKey(node.ID, site.AttrBucketRegionalDomainName)] = name + ".s3.amazonaws.com"
	case site.KindEdgeDistribution:
		chars := idChars(id, 26)
		stack.physicalIDs[node.ID] = "E" + strings.ToUpper(chars[:13])
		stack.attributes[attrKey(node.ID, site.AttrDistributionDomainName)] = "d" + chars[len(chars)-13:] + ".cloudfront.net"
	case site.KindDNSAliasRecord:
		stack.physicalIDs[node.ID] = graph.Alias.RecordName
	default:
		stack.physicalIDs[node.ID] = id
	}
}

// rollback removes the resources created by a failed apply, newest first.
func (m *MemoryOrchestrator) rollback(stackName string, created []site.Node, stack *memoryStack) {
	for i := len(created) - 1; i >= 0; i-- {
		node := created[i]
		physicalID := stack.physicalIDs[node.ID]
		delete(stack.physicalIDs, node.ID)
		m.record(stackName, ActionRollback, node, physicalID)
	}
}

func (m *MemoryOrchestrator) record(stackName, action string, node site.Node, physicalID string) {
	m.events = append(m.events, Event{
		StackName:  stackName,
		Action:     action,
		ResourceID: node.ID,
		Kind:       node.Kind,
		PhysicalID: physicalID,
	})
}

func lookupRef(ref site.Ref, stack *memoryStack) (string, bool) {
	if ref.Attribute == "" {
		v, ok := stack.physicalIDs[ref.ID]
		return v, ok
	}
	v, ok := stack.attributes[attrKey(ref.ID, ref.Attribute)]
	return v, ok
}

func attrKey(id, attribute string) string {
	return id + "." + attribute
}

// bucketName mimics CloudFormation generated names: lowercase
// <stack>-<logicalid>-<random>, capped at the S3 limit.
func bucketName(stackName, logicalID, id string) string {
	chars := idChars(id, 12)
	suffix := "-" + chars[len(chars)-12:]
	prefix := strings.ToLower(stackName + "-" + logicalID)
	if limit := maxBucketNameLength - len(suffix); len(prefix) > limit {
		prefix = strings.TrimRight(prefix[:limit], "-")
	}
	return prefix + suffix
}

// idChars returns the lowercase alphanumerics of id, or a hex digest of id
// when fewer than n remain.
func idChars(id string, n int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(id) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() >= n {
		return b.String()
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

func certificateCovers(names []string, domain string) bool {
	for _, name := range names {
		if name == domain {
			return true
		}
		if rest, ok := strings.CutPrefix(name, "*."); ok {
			head, tail, found := strings.Cut(domain, ".")
			if found && head != "" && tail == rest {
				return true
			}
		}
	}
	return false
}

func canonicalName(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}

func copyStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// StackNames returns the deployed stack names, sorted.
func (m *MemoryOrchestrator) StackNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.stacks))
	for name := range m.stacks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
