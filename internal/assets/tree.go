package assets

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// rawNode is the per-node shape shared by every historical tree payload.
// Only the wrapping around the root differs between backend versions.
type rawNode struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	FileID   string    `json:"fileId"`
	Size     *int64    `json:"size"`
	Children []rawNode `json:"children"`
}

func (n rawNode) empty() bool {
	return n.ID == "" && n.Name == "" && n.FileID == "" && len(n.Children) == 0
}

// TreeNode is one flattened node of a parsed asset tree.
type TreeNode struct {
	NodeID   string
	ParentID *string
	Name     string
	RemoteID *string // nil for folder placeholders
	Size     *int64
	Path     string // slash-joined position within the tree
}

// IsFile reports whether the node carries downloadable content.
func (n TreeNode) IsFile() bool { return n.RemoteID != nil }

// treeStrategies are tried in fixed priority order; the first strategy that
// recognizes the payload shape and yields at least one node wins.
var treeStrategies = []struct {
	name  string
	roots func(raw []byte) ([]rawNode, bool)
}{
	{"root-object", parseRootObject},
	{"data-wrapped", parseDataWrapped},
	{"array-wrapped", parseArrayWrapped},
}

// ParseTree flattens the raw asset tree of a project detail payload.
// A payload no strategy recognizes is an error; a recognized but empty
// tree yields an empty slice.
func ParseTree(raw []byte) ([]TreeNode, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	recognized := false
	for _, s := range treeStrategies {
		roots, ok := s.roots(trimmed)
		if !ok {
			continue
		}
		recognized = true
		if nodes := flatten(roots); len(nodes) > 0 {
			return nodes, nil
		}
	}
	if !recognized {
		return nil, fmt.Errorf("unrecognized asset tree payload")
	}
	return nil, nil
}

func parseRootObject(raw []byte) ([]rawNode, bool) {
	var n rawNode
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, false
	}
	return []rawNode{n}, true
}

func parseDataWrapped(raw []byte) ([]rawNode, bool) {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Data) == 0 {
		return nil, false
	}
	if roots, ok := parseRootObject(env.Data); ok {
		return roots, true
	}
	return parseArrayWrapped(env.Data)
}

func parseArrayWrapped(raw []byte) ([]rawNode, bool) {
	var nodes []rawNode
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, false
	}
	return nodes, true
}

func flatten(roots []rawNode) []TreeNode {
	var out []TreeNode
	for _, r := range roots {
		walkNode(r, "", nil, &out)
	}
	return out
}

func walkNode(n rawNode, parentPath string, parentID *string, out *[]TreeNode) {
	if n.empty() {
		return
	}

	path := n.Name
	if parentPath != "" {
		path = parentPath + "/" + n.Name
	}

	node := TreeNode{
		NodeID:   deriveNodeID(n, path),
		ParentID: parentID,
		Name:     n.Name,
		Size:     n.Size,
		Path:     path,
	}
	if n.FileID != "" {
		remoteID := n.FileID
		node.RemoteID = &remoteID
	}
	*out = append(*out, node)

	id := node.NodeID
	for _, c := range n.Children {
		walkNode(c, path, &id, out)
	}
}

// deriveNodeID keeps merge keys stable across repeated parses of the same
// tree: an explicit id wins, files fall back to their remote identifier,
// folder placeholders to their position in the tree.
func deriveNodeID(n rawNode, path string) string {
	if n.ID != "" {
		return n.ID
	}
	if n.FileID != "" {
		return idFromString("remote:" + n.FileID)
	}
	return idFromString("path:" + path)
}

func idFromString(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
