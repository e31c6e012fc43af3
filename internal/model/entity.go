package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownNodeType is returned when a node type name is not one of NodeTypes.
var ErrUnknownNodeType = errors.New("unknown node type")

// NodeType names one of the four entity collections. The string values match
// the __typename the renderers and the upstream telemetry API use.
type NodeType string

const (
	NodePort     NodeType = "Port"
	NodeProcess  NodeType = "Process"
	NodeFile     NodeType = "File"
	NodeEndpoint NodeType = "Endpoint"
)

// NodeTypes lists every node type in display order.
var NodeTypes = []NodeType{NodeEndpoint, NodeFile, NodePort, NodeProcess}

// ParseNodeType validates a node type name coming from a UI collaborator.
func ParseNodeType(s string) (NodeType, error) {
	for _, t := range NodeTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNodeType, s)
}

// Node is implemented by the four entity types so that graph code can treat
// them uniformly while each keeps its own typed fields.
type Node interface {
	NodeID() string
	NodeType() NodeType
	Host() string
}

// NodeKey identifies a node across the four entity collections. Ids are
// only unique within one collection.
type NodeKey struct {
	Type NodeType
	ID   string
}

func KeyOf(n Node) NodeKey {
	return NodeKey{Type: n.NodeType(), ID: n.NodeID()}
}

// Port is a network port observed on a host. ProcessIDs lists the processes
// that own the port; when empty the port belongs to the host's endpoint.
type Port struct {
	ID         string   `json:"id" db:"id"`
	PortNumber int      `json:"portNumber" db:"port_number"`
	HostName   string   `json:"hostName" db:"host_name"`
	ProcessIDs []string `json:"processes,omitempty" db:"process_ids"`
}

// Process is a running process on a host.
type Process struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	HostName string `json:"hostName" db:"host_name"`
}

// File is a file on a host that has been edited by a process.
type File struct {
	ID       string `json:"id" db:"id"`
	Path     string `json:"path" db:"path"`
	Name     string `json:"name" db:"name"`
	Type     string `json:"type" db:"type"`
	HostName string `json:"hostName" db:"host_name"`
}

// Endpoint is a host taking part in network activity.
type Endpoint struct {
	ID       string `json:"id" db:"id"`
	HostName string `json:"hostName" db:"host_name"`
	HostIP   string `json:"hostIp" db:"host_ip"`
}

func (p *Port) NodeID() string     { return p.ID }
func (p *Port) NodeType() NodeType { return NodePort }
func (p *Port) Host() string       { return p.HostName }

// OwnedByProcess reports whether the port has at least one owning process.
func (p *Port) OwnedByProcess() bool { return len(p.ProcessIDs) > 0 }

func (p *Process) NodeID() string     { return p.ID }
func (p *Process) NodeType() NodeType { return NodeProcess }
func (p *Process) Host() string       { return p.HostName }

func (f *File) NodeID() string     { return f.ID }
func (f *File) NodeType() NodeType { return NodeFile }
func (f *File) Host() string       { return f.HostName }

func (e *Endpoint) NodeID() string     { return e.ID }
func (e *Endpoint) NodeType() NodeType { return NodeEndpoint }
func (e *Endpoint) Host() string       { return e.HostName }

// The MarshalJSON methods add the __typename discriminator expected by
// graph-drawing collaborators.

func (p *Port) MarshalJSON() ([]byte, error) {
	type alias Port
	return json.Marshal(struct {
		TypeName NodeType `json:"__typename"`
		*alias
	}{NodePort, (*alias)(p)})
}

func (p *Process) MarshalJSON() ([]byte, error) {
	type alias Process
	return json.Marshal(struct {
		TypeName NodeType `json:"__typename"`
		*alias
	}{NodeProcess, (*alias)(p)})
}

func (f *File) MarshalJSON() ([]byte, error) {
	type alias File
	return json.Marshal(struct {
		TypeName NodeType `json:"__typename"`
		*alias
	}{NodeFile, (*alias)(f)})
}

func (e *Endpoint) MarshalJSON() ([]byte, error) {
	type alias Endpoint
	return json.Marshal(struct {
		TypeName NodeType `json:"__typename"`
		*alias
	}{NodeEndpoint, (*alias)(e)})
}
