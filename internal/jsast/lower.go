package jsast

import (
	"fmt"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
	"github.com/dop251/goja/token"
)

// Parse parses one source unit with goja and lowers it into an arena.
func Parse(filename, src string) (*Arena, error) {
	prog, err := parser.ParseFile(nil, filename, src, 0)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return Lower(filename, src, prog), nil
}

// Lower converts a goja program into an arena. src must be the text prog was
// parsed from.
func Lower(filename, src string, prog *ast.Program) *Arena {
	l := &lowerer{a: NewArena(filename, src), base: 1}
	if prog.File != nil {
		l.base = prog.File.Base()
	}
	root := NewNode(KindProgram)
	root.List = l.stmts(prog.Body)
	root.End = len(src)
	l.a.Root = l.a.Add(root)
	return l.a
}

type lowerer struct {
	a    *Arena
	base int
}

func (l *lowerer) off(idx file.Idx) int {
	o := int(idx) - l.base
	if o < 0 {
		return 0
	}
	if o > len(l.a.Source) {
		return len(l.a.Source)
	}
	return o
}

func (l *lowerer) span(n *Node, src ast.Node) {
	n.Pos = l.off(src.Idx0())
	n.End = l.off(src.Idx1())
	if n.End < n.Pos {
		n.End = n.Pos
	}
}

func (l *lowerer) ident(id *ast.Identifier, role Role, flags Flags) NodeID {
	if id == nil {
		return NoNode
	}
	name := string(id.Name)
	n := NewNode(KindIdentifier)
	n.Role = role
	n.Flags = flags
	n.Name = name
	n.Orig = name
	n.Pos = l.off(id.Idx)
	n.End = n.Pos + len(name)
	if !strings.HasPrefix(l.a.Source[n.Pos:], name) {
		n.Flags |= FlagEscaped
		n.End = n.Pos + wordLen(l.a.Source[n.Pos:])
	}
	return l.a.Add(n)
}

func (l *lowerer) group(kids ...NodeID) NodeID {
	n := NewNode(KindExpr)
	for _, k := range kids {
		if k.Valid() {
			n.List = append(n.List, k)
		}
	}
	return l.a.Add(n)
}

// opaque records a node that is not lowered structurally. The words inside
// its source range are kept so nothing in it is ever renamed or captured.
func (l *lowerer) opaque(src ast.Node) NodeID {
	n := NewNode(KindOpaque)
	if src != nil {
		l.span(&n, src)
	}
	id := l.a.Add(n)
	l.a.SetOpaqueNames(id, ScanWords(l.a.Source[n.Pos:n.End]))
	return id
}

func (l *lowerer) stmts(list []ast.Statement) []NodeID {
	out := make([]NodeID, 0, len(list))
	for _, s := range list {
		if id := l.stmt(s); id.Valid() {
			out = append(out, id)
		}
	}
	return out
}

func (l *lowerer) stmt(s ast.Statement) NodeID {
	switch s := s.(type) {
	case nil:
		return NoNode
	case *ast.BlockStatement:
		return l.block(s)
	case *ast.ExpressionStatement:
		return l.expr(s.Expression)
	case *ast.VariableStatement:
		return l.varDecl(DeclVar, s.List)
	case *ast.LexicalDeclaration:
		return l.lexical(s)
	case *ast.FunctionDeclaration:
		return l.function(s.Function, FlagDeclaration)
	case *ast.ClassDeclaration:
		return l.class(s.Class, FlagDeclaration)
	case *ast.IfStatement:
		return l.group(l.expr(s.Test), l.stmt(s.Consequent), l.stmt(s.Alternate))
	case *ast.ForStatement:
		n := NewNode(KindFor)
		n.Left = l.forInit(s.Initializer)
		n.Right = l.expr(s.Test)
		n.Extra = l.expr(s.Update)
		n.Body = l.stmt(s.Body)
		l.span(&n, s)
		return l.a.Add(n)
	case *ast.ForInStatement:
		return l.forInto(s, s.Into, s.Source, s.Body)
	case *ast.ForOfStatement:
		return l.forInto(s, s.Into, s.Source, s.Body)
	case *ast.WhileStatement:
		return l.group(l.expr(s.Test), l.stmt(s.Body))
	case *ast.DoWhileStatement:
		return l.group(l.stmt(s.Body), l.expr(s.Test))
	case *ast.ReturnStatement:
		return l.group(l.expr(s.Argument))
	case *ast.ThrowStatement:
		return l.group(l.expr(s.Argument))
	case *ast.TryStatement:
		kids := []NodeID{l.block(s.Body)}
		if s.Catch != nil {
			kids = append(kids, l.catch(s.Catch))
		}
		kids = append(kids, l.block(s.Finally))
		return l.group(kids...)
	case *ast.SwitchStatement:
		n := NewNode(KindSwitch)
		n.Left = l.expr(s.Discriminant)
		for _, c := range s.Body {
			kids := []NodeID{l.expr(c.Test)}
			kids = append(kids, l.stmts(c.Consequent)...)
			n.List = append(n.List, l.group(kids...))
		}
		l.span(&n, s)
		return l.a.Add(n)
	case *ast.LabelledStatement:
		n := NewNode(KindLabel)
		n.Left = l.ident(s.Label, RoleLabel, 0)
		n.Body = l.stmt(s.Statement)
		return l.a.Add(n)
	case *ast.BranchStatement:
		return l.group(l.ident(s.Label, RoleLabel, 0))
	case *ast.WithStatement:
		n := NewNode(KindWith)
		n.Left = l.expr(s.Object)
		n.Body = l.stmt(s.Body)
		l.span(&n, s)
		return l.a.Add(n)
	case *ast.EmptyStatement, *ast.DebuggerStatement:
		return NoNode
	default:
		return l.opaque(s)
	}
}

func (l *lowerer) block(b *ast.BlockStatement) NodeID {
	if b == nil {
		return NoNode
	}
	n := NewNode(KindBlock)
	n.List = l.stmts(b.List)
	l.span(&n, b)
	return l.a.Add(n)
}

func (l *lowerer) catch(c *ast.CatchStatement) NodeID {
	n := NewNode(KindCatch)
	n.Left = l.pattern(c.Parameter, RoleBinding)
	if c.Body != nil {
		n.List = l.stmts(c.Body.List)
	}
	l.span(&n, c)
	return l.a.Add(n)
}

func (l *lowerer) lexical(s *ast.LexicalDeclaration) NodeID {
	kind := DeclLet
	if s.Token == token.CONST {
		kind = DeclConst
	}
	return l.varDecl(kind, s.List)
}

func (l *lowerer) varDecl(kind DeclKind, list []*ast.Binding) NodeID {
	n := NewNode(KindVarDecl)
	n.Decl = kind
	for _, b := range list {
		d := NewNode(KindDeclarator)
		d.Left = l.pattern(b.Target, RoleBinding)
		d.Right = l.expr(b.Initializer)
		n.List = append(n.List, l.a.Add(d))
	}
	return l.a.Add(n)
}

func (l *lowerer) forInit(init ast.ForLoopInitializer) NodeID {
	switch init := init.(type) {
	case *ast.ForLoopInitializerExpression:
		return l.expr(init.Expression)
	case *ast.ForLoopInitializerVarDeclList:
		return l.varDecl(DeclVar, init.List)
	case *ast.ForLoopInitializerLexicalDecl:
		return l.lexical(&init.LexicalDeclaration)
	}
	return NoNode
}

func (l *lowerer) forInto(s ast.Statement, into ast.ForInto, source ast.Expression, body ast.Statement) NodeID {
	n := NewNode(KindFor)
	n.Flags = FlagForIn
	switch into := into.(type) {
	case *ast.ForIntoVar:
		n.Left = l.varDecl(DeclVar, []*ast.Binding{into.Binding})
	case *ast.ForDeclaration:
		decl := NewNode(KindVarDecl)
		decl.Decl = DeclLet
		if into.IsConst {
			decl.Decl = DeclConst
		}
		d := NewNode(KindDeclarator)
		d.Left = l.pattern(into.Target, RoleBinding)
		decl.List = []NodeID{l.a.Add(d)}
		n.Left = l.a.Add(decl)
	case *ast.ForIntoExpression:
		n.Left = l.pattern(into.Expression, RoleReference)
	}
	n.Right = l.expr(source)
	n.Body = l.stmt(body)
	l.span(&n, s)
	return l.a.Add(n)
}

func (l *lowerer) function(f *ast.FunctionLiteral, flags Flags) NodeID {
	if f == nil {
		return NoNode
	}
	n := NewNode(KindFunction)
	n.Flags = flags
	if f.Name != nil && !flags.Has(FlagMethod) {
		n.Left = l.ident(f.Name, RoleBinding, 0)
	}
	n.List = l.params(f.ParameterList)
	n.Body = l.block(f.Body)
	l.span(&n, f)
	return l.a.Add(n)
}

func (l *lowerer) arrow(f *ast.ArrowFunctionLiteral) NodeID {
	n := NewNode(KindFunction)
	n.Flags = FlagArrow
	n.List = l.params(f.ParameterList)
	switch body := ast.Node(f.Body).(type) {
	case *ast.BlockStatement:
		n.Body = l.block(body)
	case *ast.ExpressionBody:
		n.Flags |= FlagExpressionBody
		n.Body = l.expr(body.Expression)
	default:
		if body != nil {
			n.Body = l.opaque(body)
		}
	}
	l.span(&n, f)
	return l.a.Add(n)
}

func (l *lowerer) params(pl *ast.ParameterList) []NodeID {
	if pl == nil {
		return nil
	}
	out := make([]NodeID, 0, len(pl.List)+1)
	for _, b := range pl.List {
		target := l.pattern(b.Target, RoleBinding)
		if b.Initializer != nil {
			target = l.withDefault(target, l.expr(b.Initializer))
		}
		out = append(out, target)
	}
	if pl.Rest != nil {
		out = append(out, l.rest(pl.Rest, RoleBinding))
	}
	return out
}

func (l *lowerer) class(c *ast.ClassLiteral, flags Flags) NodeID {
	if c == nil {
		return NoNode
	}
	n := NewNode(KindClass)
	n.Flags = flags
	n.Left = l.ident(c.Name, RoleBinding, 0)
	n.Right = l.expr(c.SuperClass)
	for _, el := range c.Body {
		n.List = append(n.List, l.classElement(el))
	}
	l.span(&n, c)
	return l.a.Add(n)
}

func (l *lowerer) classElement(el ast.ClassElement) NodeID {
	switch el := ast.Node(el).(type) {
	case *ast.MethodDefinition:
		n := NewNode(KindProperty)
		n.Flags = FlagMethod
		if el.Computed {
			n.Flags |= FlagComputed
			n.Left = l.expr(el.Key)
		}
		n.Right = l.function(el.Body, FlagMethod)
		return l.a.Add(n)
	case *ast.FieldDefinition:
		n := NewNode(KindProperty)
		if el.Computed {
			n.Flags |= FlagComputed
			n.Left = l.expr(el.Key)
		}
		n.Right = l.expr(el.Initializer)
		return l.a.Add(n)
	case *ast.ClassStaticBlock:
		n := NewNode(KindFunction)
		n.Flags = FlagMethod
		n.Body = l.block(el.Block)
		l.span(&n, el)
		return l.a.Add(n)
	case nil:
		return NoNode
	default:
		return l.opaque(el)
	}
}

func (l *lowerer) exprs(list []ast.Expression) []NodeID {
	out := make([]NodeID, 0, len(list))
	for _, e := range list {
		out = append(out, l.expr(e))
	}
	return out
}

func (l *lowerer) expr(e ast.Expression) NodeID {
	switch e := e.(type) {
	case nil:
		return NoNode
	case *ast.Identifier:
		return l.ident(e, RoleReference, 0)
	case *ast.FunctionLiteral:
		return l.function(e, 0)
	case *ast.ArrowFunctionLiteral:
		return l.arrow(e)
	case *ast.ClassLiteral:
		return l.class(e, 0)
	case *ast.DotExpression:
		n := NewNode(KindMember)
		n.Left = l.expr(e.Left)
		n.Right = l.ident(&e.Identifier, RoleMemberProperty, 0)
		return l.a.Add(n)
	case *ast.PrivateDotExpression:
		n := NewNode(KindMember)
		n.Left = l.expr(e.Left)
		return l.a.Add(n)
	case *ast.BracketExpression:
		n := NewNode(KindMember)
		n.Flags = FlagComputed
		n.Left = l.expr(e.Left)
		n.Right = l.expr(e.Member)
		return l.a.Add(n)
	case *ast.CallExpression:
		n := NewNode(KindCall)
		n.Left = l.expr(e.Callee)
		n.List = l.exprs(e.ArgumentList)
		l.span(&n, e)
		return l.a.Add(n)
	case *ast.NewExpression:
		return l.group(append([]NodeID{l.expr(e.Callee)}, l.exprs(e.ArgumentList)...)...)
	case *ast.ObjectLiteral:
		n := NewNode(KindObject)
		for _, p := range e.Value {
			n.List = append(n.List, l.property(p))
		}
		return l.a.Add(n)
	case *ast.ArrayLiteral:
		return l.group(l.exprs(e.Value)...)
	case *ast.ArrayPattern, *ast.ObjectPattern:
		return l.pattern(e, RoleReference)
	case *ast.AssignExpression:
		if isPattern(e.Left) {
			return l.group(l.pattern(e.Left, RoleReference), l.expr(e.Right))
		}
		return l.group(l.expr(e.Left), l.expr(e.Right))
	case *ast.BinaryExpression:
		return l.group(l.expr(e.Left), l.expr(e.Right))
	case *ast.ConditionalExpression:
		return l.group(l.expr(e.Test), l.expr(e.Consequent), l.expr(e.Alternate))
	case *ast.SequenceExpression:
		return l.group(l.exprs(e.Sequence)...)
	case *ast.UnaryExpression:
		return l.group(l.expr(e.Operand))
	case *ast.AwaitExpression:
		return l.group(l.expr(e.Argument))
	case *ast.YieldExpression:
		return l.group(l.expr(e.Argument))
	case *ast.SpreadElement:
		return l.group(l.expr(e.Expression))
	case *ast.TemplateLiteral:
		return l.group(append([]NodeID{l.expr(e.Tag)}, l.exprs(e.Expressions)...)...)
	case *ast.Optional:
		return l.expr(e.Expression)
	case *ast.OptionalChain:
		return l.expr(e.Expression)
	case *ast.BooleanLiteral, *ast.NullLiteral, *ast.NumberLiteral, *ast.StringLiteral,
		*ast.RegExpLiteral, *ast.ThisExpression, *ast.SuperExpression, *ast.MetaProperty:
		return l.group()
	default:
		return l.opaque(e)
	}
}

func (l *lowerer) property(p ast.Property) NodeID {
	switch p := ast.Node(p).(type) {
	case *ast.PropertyShort:
		n := NewNode(KindProperty)
		n.Flags = FlagShorthand
		n.Right = l.ident(&p.Name, RoleReference, FlagShorthand)
		if p.Initializer != nil {
			n.Right = l.withDefault(n.Right, l.expr(p.Initializer))
		}
		return l.a.Add(n)
	case *ast.PropertyKeyed:
		n := NewNode(KindProperty)
		if p.Computed {
			n.Flags |= FlagComputed
			n.Left = l.expr(p.Key)
		}
		if fn, ok := p.Value.(*ast.FunctionLiteral); ok && p.Kind != ast.PropertyKindValue {
			n.Flags |= FlagMethod
			n.Right = l.function(fn, FlagMethod)
		} else {
			n.Right = l.expr(p.Value)
		}
		return l.a.Add(n)
	case *ast.SpreadElement:
		return l.group(l.expr(p.Expression))
	case nil:
		return NoNode
	default:
		return l.opaque(p)
	}
}

// pattern lowers a binding or assignment target. role is RoleBinding for
// declarations and RoleReference for assignment patterns.
func (l *lowerer) pattern(e ast.Expression, role Role) NodeID {
	switch e := e.(type) {
	case nil:
		return NoNode
	case *ast.Identifier:
		return l.ident(e, role, 0)
	case *ast.ArrayPattern:
		n := NewNode(KindArrayPattern)
		for _, el := range e.Elements {
			if el == nil {
				n.List = append(n.List, NoNode)
				continue
			}
			n.List = append(n.List, l.pattern(el, role))
		}
		if e.Rest != nil {
			n.List = append(n.List, l.rest(e.Rest, role))
		}
		l.span(&n, e)
		return l.a.Add(n)
	case *ast.ObjectPattern:
		n := NewNode(KindObjectPattern)
		for _, p := range e.Properties {
			n.List = append(n.List, l.patternProperty(p, role))
		}
		if e.Rest != nil {
			n.List = append(n.List, l.rest(e.Rest, role))
		}
		l.span(&n, e)
		return l.a.Add(n)
	case *ast.AssignExpression:
		if e.Operator == token.ASSIGN {
			return l.withDefault(l.pattern(e.Left, role), l.expr(e.Right))
		}
		return l.expr(e)
	default:
		return l.expr(e)
	}
}

func (l *lowerer) patternProperty(p ast.Property, role Role) NodeID {
	switch p := ast.Node(p).(type) {
	case *ast.PropertyShort:
		n := NewNode(KindProperty)
		n.Flags = FlagShorthand
		n.Right = l.ident(&p.Name, role, FlagShorthand)
		if p.Initializer != nil {
			n.Right = l.withDefault(n.Right, l.expr(p.Initializer))
		}
		return l.a.Add(n)
	case *ast.PropertyKeyed:
		n := NewNode(KindProperty)
		if p.Computed {
			n.Flags |= FlagComputed
			n.Left = l.expr(p.Key)
		}
		n.Right = l.pattern(p.Value, role)
		return l.a.Add(n)
	case nil:
		return NoNode
	default:
		return l.opaque(p)
	}
}

func (l *lowerer) rest(e ast.Expression, role Role) NodeID {
	n := NewNode(KindRest)
	n.Left = l.pattern(e, role)
	return l.a.Add(n)
}

func (l *lowerer) withDefault(target, value NodeID) NodeID {
	n := NewNode(KindDefault)
	n.Left = target
	n.Right = value
	return l.a.Add(n)
}

func isPattern(e ast.Expression) bool {
	switch e.(type) {
	case *ast.ArrayPattern, *ast.ObjectPattern:
		return true
	}
	return false
}
