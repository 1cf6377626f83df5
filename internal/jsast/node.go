// Package jsast holds the arena AST the renaming passes work on.
//
// Source text is parsed by goja and lowered into a flat slice of Nodes
// addressed by NodeID. Scopes and bindings refer to nodes through these
// handles only, so renaming can mutate Node.Name in place while every
// back-reference stays valid.
package jsast

import "fmt"

// NodeID addresses a node inside an Arena.
type NodeID int32

// NoNode marks an absent child.
const NoNode NodeID = -1

// Valid reports whether id refers to a node.
func (id NodeID) Valid() bool { return id >= 0 }

// Kind is the closed set of node shapes produced by lowering.
type Kind uint8

const (
	KindOpaque Kind = iota
	KindProgram
	KindFunction
	KindClass
	KindBlock
	KindCatch
	KindSwitch
	KindFor
	KindVarDecl
	KindDeclarator
	KindIdentifier
	KindArrayPattern
	KindObjectPattern
	KindProperty
	KindRest
	KindDefault
	KindMember
	KindObject
	KindCall
	KindWith
	KindLabel
	KindExpr

	kindCount
)

var kindNames = [kindCount]string{
	KindOpaque:        "Opaque",
	KindProgram:       "Program",
	KindFunction:      "Function",
	KindClass:         "Class",
	KindBlock:         "Block",
	KindCatch:         "Catch",
	KindSwitch:        "Switch",
	KindFor:           "For",
	KindVarDecl:       "VarDecl",
	KindDeclarator:    "Declarator",
	KindIdentifier:    "Identifier",
	KindArrayPattern:  "ArrayPattern",
	KindObjectPattern: "ObjectPattern",
	KindProperty:      "Property",
	KindRest:          "Rest",
	KindDefault:       "Default",
	KindMember:        "Member",
	KindObject:        "Object",
	KindCall:          "Call",
	KindWith:          "With",
	KindLabel:         "Label",
	KindExpr:          "Expr",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Flags carry per-node syntactic details.
type Flags uint16

const (
	FlagDeclaration    Flags = 1 << iota // function or class in statement position
	FlagArrow                            // arrow function
	FlagExpressionBody                   // arrow function with a concise body
	FlagMethod                           // method, accessor or static block; no own name binding
	FlagComputed                         // computed member or property key
	FlagShorthand                        // identifier written as { a } or { a = 1 }
	FlagEscaped                          // identifier spelled with unicode escapes
	FlagForIn                            // for-in or for-of head
)

// Has reports whether all bits of f2 are set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// DeclKind is the keyword of a VarDecl.
type DeclKind uint8

const (
	DeclNone DeclKind = iota
	DeclVar
	DeclLet
	DeclConst
)

func (d DeclKind) String() string {
	switch d {
	case DeclVar:
		return "var"
	case DeclLet:
		return "let"
	case DeclConst:
		return "const"
	}
	return ""
}

// Role says what an Identifier node stands for.
type Role uint8

const (
	RoleNone           Role = iota
	RoleBinding             // declares a name
	RoleReference           // reads or writes a name
	RoleLabel               // statement label
	RoleMemberProperty      // name after a dot
)

func (r Role) String() string {
	switch r {
	case RoleBinding:
		return "binding"
	case RoleReference:
		return "reference"
	case RoleLabel:
		return "label"
	case RoleMemberProperty:
		return "member"
	}
	return "none"
}

// Node is one arena entry. Child slots by kind:
//
//	Function       Left=name List=params Body=body (Block, or expression with FlagExpressionBody)
//	Class          Left=name Right=superclass List=elements
//	Catch          Left=param List=body statements
//	Switch         Left=discriminant List=cases
//	For            Left=init or binding Right=test or source Extra=update Body=body
//	VarDecl        List=declarators
//	Declarator     Left=target Right=initializer
//	ArrayPattern   List=elements (NoNode for holes, Rest last)
//	ObjectPattern  List=properties (Rest last)
//	Property       Left=computed key Right=value
//	Rest           Left=target
//	Default        Left=target Right=default value
//	Member         Left=object Right=property or computed expression
//	Call           Left=callee List=arguments
//	With           Left=object Body=body
//	Label          Left=label Body=statement
//	Program, Block, Object, Expr  List=children in source order
type Node struct {
	Kind  Kind
	Flags Flags
	Decl  DeclKind
	Role  Role

	// Name is the current spelling of an Identifier. Orig keeps the parsed
	// name so emitters can tell which identifiers were renamed.
	Name string
	Orig string

	// Pos and End are byte offsets into the source unit.
	Pos int
	End int

	Left  NodeID
	Right NodeID
	Extra NodeID
	Body  NodeID
	List  []NodeID
}

// Renamed reports whether an Identifier node was given a new name.
func (n *Node) Renamed() bool {
	return n.Kind == KindIdentifier && n.Name != n.Orig
}

// Arena owns every node of one source unit.
type Arena struct {
	Filename string
	Source   string
	Root     NodeID

	nodes []Node

	// opaqueNames lists the identifier-like words found inside each opaque node.
	opaqueNames map[NodeID][]string
}

// NewArena returns an empty arena for src.
func NewArena(filename, src string) *Arena {
	return &Arena{
		Filename:    filename,
		Source:      src,
		Root:        NoNode,
		opaqueNames: make(map[NodeID][]string),
	}
}

// Len returns the number of nodes.
func (a *Arena) Len() int { return len(a.nodes) }

// Node returns the node for id. The pointer stays valid until the next Add.
func (a *Arena) Node(id NodeID) *Node {
	return &a.nodes[id]
}

// Add appends n and returns its handle.
func (a *Arena) Add(n Node) NodeID {
	a.nodes = append(a.nodes, n)
	return NodeID(len(a.nodes) - 1)
}

// NewNode returns a Node of kind k with all child slots empty.
func NewNode(k Kind) Node {
	return Node{Kind: k, Left: NoNode, Right: NoNode, Extra: NoNode, Body: NoNode}
}

// OpaqueNames returns the words recorded for an opaque node.
func (a *Arena) OpaqueNames(id NodeID) []string {
	return a.opaqueNames[id]
}

// SetOpaqueNames records the identifier-like words of an opaque node.
func (a *Arena) SetOpaqueNames(id NodeID, names []string) {
	if len(names) > 0 {
		a.opaqueNames[id] = names
	}
}

// Children returns the valid children of id in source order.
func (a *Arena) Children(id NodeID) []NodeID {
	n := &a.nodes[id]
	out := make([]NodeID, 0, 4+len(n.List))
	for _, c := range [...]NodeID{n.Left, n.Right, n.Extra} {
		if c.Valid() {
			out = append(out, c)
		}
	}
	for _, c := range n.List {
		if c.Valid() {
			out = append(out, c)
		}
	}
	if n.Body.Valid() {
		out = append(out, n.Body)
	}
	return out
}

// Walk visits id and its descendants in pre-order. Returning false from fn
// skips the children of that node.
func (a *Arena) Walk(id NodeID, fn func(id NodeID, n *Node) bool) {
	if !id.Valid() {
		return
	}
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur, &a.nodes[cur]) {
			continue
		}
		kids := a.Children(cur)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
}

// Identifiers returns every Identifier node in arena order.
func (a *Arena) Identifiers() []NodeID {
	var out []NodeID
	for i := range a.nodes {
		if a.nodes[i].Kind == KindIdentifier {
			out = append(out, NodeID(i))
		}
	}
	return out
}

// Names returns every name spelled in the unit: identifiers of all roles and
// the words inside opaque regions. Generated names must avoid all of them.
func (a *Arena) Names() map[string]struct{} {
	names := make(map[string]struct{}, len(a.nodes)/2)
	for i := range a.nodes {
		if a.nodes[i].Kind == KindIdentifier {
			names[a.nodes[i].Orig] = struct{}{}
		}
	}
	for _, words := range a.opaqueNames {
		for _, w := range words {
			names[w] = struct{}{}
		}
	}
	return names
}

// Position formats the location of id as file:offset for diagnostics.
func (a *Arena) Position(id NodeID) string {
	if !id.Valid() {
		return a.Filename
	}
	line, col := a.LineCol(a.nodes[id].Pos)
	return fmt.Sprintf("%s:%d:%d", a.Filename, line, col)
}

// LineCol converts a byte offset into 1-based line and column numbers.
func (a *Arena) LineCol(offset int) (int, int) {
	if offset > len(a.Source) {
		offset = len(a.Source)
	}
	line, col := 1, 1
	for i := 0; i < offset; i++ {
		if a.Source[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
