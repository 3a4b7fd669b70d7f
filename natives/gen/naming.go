package gen

import (
	"strings"
	"unicode"
)

// GoPackageToLumenNamespace converts a Go import path to the dotted
// native-header namespace AddNative's header parser expects (vm/natives.go,
// "dotted names lazily create intermediate objects on the target scope"):
// "encoding/json" -> "go.encoding.json", "strings" -> "go.strings".
func GoPackageToLumenNamespace(importPath string) string {
	parts := strings.Split(importPath, "/")
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return "go." + strings.Join(parts, ".")
}

// GoNameToLumenMethod converts a Go function or method name (PascalCase)
// to the camelCase form Lumen natives are named with.
func GoNameToLumenMethod(name string) string {
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// GoNameToLumenClassName namespaces a Go exported type under its package's
// namespace the same way a class declaration nests under the environment
// it's declared in: "go.net.http", "Server" -> "go.net.http.Server".
func GoNameToLumenClassName(namespace, typeName string) string {
	return namespace + "." + typeName
}

// toPascal converts a hyphen/underscore-separated string to PascalCase;
// sanitizeIdent falls back to it when its own result is empty.
func toPascal(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	nextUpper := true
	for _, r := range s {
		if r == '-' || r == '_' {
			nextUpper = true
			continue
		}
		if nextUpper {
			b.WriteRune(unicode.ToUpper(r))
			nextUpper = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
