package actor

import (
	"fmt"
	"strings"
)

// MaxTreeDepth 监督树最大层级（顶层监督者为第 1 层）
const MaxTreeDepth = 8

// checkTreeDepth 检查在 parent 下再挂一层后是否超过深度限制
func checkTreeDepth(parent *Supervisor, maxDepth int) error {
	depth := parent.Depth()
	if depth+1 > maxDepth {
		return fmt.Errorf("%w: depth %d would exceed maximum %d under %s",
			ErrTreeTooDeep, depth+1, maxDepth, parent.Path())
	}
	return nil
}

// Parent 父监督者，顶层监督者返回 nil
func (s *Supervisor) Parent() *Supervisor {
	return s.parent
}

// Depth 从顶层监督者到 s 的层数，顶层为 1
func (s *Supervisor) Depth() int {
	depth := 0
	for cur := s; cur != nil && depth <= MaxTreeDepth; cur = cur.parent {
		depth++
	}
	return depth
}

// Path 从顶层到 s 的名称路径，如 "root/workers/io"
func (s *Supervisor) Path() string {
	var names []string
	for cur := s; cur != nil && len(names) <= MaxTreeDepth; cur = cur.parent {
		names = append(names, cur.name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/")
}

// TreeNode 监督树节点快照
type TreeNode struct {
	ChildInfo
	Children []TreeNode
}

// Tree 以 s 为根的监督树快照
func (s *Supervisor) Tree() []TreeNode {
	infos := s.Children()
	nodes := make([]TreeNode, 0, len(infos))
	for _, info := range infos {
		node := TreeNode{ChildInfo: info}
		if info.Supervisor != nil {
			node.Children = info.Supervisor.Tree()
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// String 以缩进文本形式输出节点及其子树
func (n TreeNode) String() string {
	var sb strings.Builder
	n.write(&sb, 0)
	return sb.String()
}

func (n TreeNode) write(sb *strings.Builder, indent int) {
	fmt.Fprintf(sb, "%s%s [%s restarts=%d]\n", strings.Repeat("  ", indent), n.Name, n.State, n.Restarts)
	for _, c := range n.Children {
		c.write(sb, indent+1)
	}
}
