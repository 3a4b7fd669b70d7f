package gen

import (
	"fmt"
	"strings"
)

// GenerateGoGlue renders a Go source file registering model's exported
// functions as Lumen natives under its dotted namespace (§6 Host API:
// addNative parses a header's dotted name and lazily builds the
// intermediate objects). The generated file imports the wrapped package
// directly and calls its functions without reflection; a RegisterPrimitives
// entry point installs them onto a target scope the same way natives/core.go
// installs the hand-written core set.
func GenerateGoGlue(model *PackageModel) (string, error) {
	ns := GoPackageToLumenNamespace(model.ImportPath)
	pkgAlias := sanitizeIdent(model.Name)
	wrapPkg := "wrap_" + pkgAlias

	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by natives/gen from %q. DO NOT EDIT.\n", model.ImportPath)
	fmt.Fprintf(&b, "package %s\n\n", wrapPkg)
	fmt.Fprintf(&b, "import (\n\tpkg %q\n\n\t\"github.com/lumen-lang/lumen/vm\"\n)\n\n", model.ImportPath)

	fmt.Fprintf(&b, "// RegisterPrimitives installs every wrapped %s function onto scope\n", model.ImportPath)
	fmt.Fprintf(&b, "// under the %q namespace.\n", ns)
	fmt.Fprintf(&b, "func RegisterPrimitives(scope vm.Value) error {\n")
	for _, fn := range model.Functions {
		method := GoNameToLumenMethod(fn.Name)
		header := fmt.Sprintf("function %s.%s(%s)", ns, method, paramList(fn.Params))
		fmt.Fprintf(&b, "\tif err := vm.AddNative(%q, wrap_%s, scope, true); err != nil {\n\t\treturn err\n\t}\n", header, method)
	}
	fmt.Fprintf(&b, "\treturn nil\n}\n\n")

	for _, fn := range model.Functions {
		writeWrapperFunc(&b, fn)
	}

	writeConversionHelpers(&b)

	for _, t := range model.Types {
		if t.IsStruct {
			fmt.Fprintf(&b, "// %s.%s is a struct type; no registration is generated for it\n", model.ImportPath, t.Name)
			fmt.Fprintf(&b, "// (class name %s).\n", GoNameToLumenClassName(ns, t.Name))
		}
	}

	return b.String(), nil
}

func writeWrapperFunc(b *strings.Builder, fn FunctionModel) {
	method := GoNameToLumenMethod(fn.Name)
	fmt.Fprintf(b, "func wrap_%s(ctx *vm.ExecutionContext) (vm.Value, error) {\n", method)
	args := make([]string, len(fn.Params))
	for i := range fn.Params {
		args[i] = fmt.Sprintf("goArg%d", i)
		fmt.Fprintf(b, "\t%s := fromLumenValue(ctx.GetParam(%d))\n", args[i], i)
	}
	call := fmt.Sprintf("pkg.%s(%s)", fn.Name, strings.Join(args, ", "))
	if fn.ReturnsErr {
		fmt.Fprintf(b, "\tresult, err := %s\n", call)
		fmt.Fprintf(b, "\tif err != nil {\n\t\treturn nil, vm.NewRuntimeError(\"%s: %%s\", err)\n\t}\n", method)
		fmt.Fprintf(b, "\treturn toLumenValue(result), nil\n")
	} else if len(fn.Results) > 0 {
		fmt.Fprintf(b, "\tresult := %s\n", call)
		fmt.Fprintf(b, "\treturn toLumenValue(result), nil\n")
	} else {
		fmt.Fprintf(b, "\t%s\n", call)
		fmt.Fprintf(b, "\treturn vm.Null, nil\n")
	}
	fmt.Fprintf(b, "}\n\n")
}

func paramList(params []ParamModel) string {
	names := make([]string, len(params))
	for i, p := range params {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		names[i] = name
	}
	return strings.Join(names, ", ")
}

// writeConversionHelpers emits the narrow string/float64/bool <-> vm.Value
// bridge every generated wrapper calls through; a wrapped function taking or
// returning any other shape needs a hand-written override in the same
// package (generated files are meant to be committed and edited, not
// regenerated blindly over local changes).
func writeConversionHelpers(b *strings.Builder) {
	b.WriteString(`func fromLumenValue(v vm.Value) interface{} {
	switch vm.TypeOf(v) {
	case "string":
		return vm.ToString(v)
	case "number":
		return vm.ToDouble(v)
	case "boolean":
		return vm.ToBool(v)
	default:
		return nil
	}
}

func toLumenValue(v interface{}) vm.Value {
	switch x := v.(type) {
	case string:
		return vm.NewString(x)
	case float64:
		return vm.Number(x)
	case int:
		return vm.Number(float64(x))
	case bool:
		return vm.Bool(x)
	default:
		return vm.Null
	}
}
`)
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '.' || r == '-' || r == '/' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if out == "" {
		return toPascal(s)
	}
	return out
}
