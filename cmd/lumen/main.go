// Command lumen is the CLI harness (§6): with no arguments it runs every
// tests/test###.lum fixture and tallies pass/fail; given a path it runs
// that file; flags select trace output and language-server mode.
// Grounded on cmd/mag/main.go's flag-parse-then-dispatch-by-mode shape.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/lumen-lang/lumen/compiler"
	"github.com/lumen-lang/lumen/config"
	"github.com/lumen-lang/lumen/lspserver"
	"github.com/lumen-lang/lumen/natives"
	"github.com/lumen-lang/lumen/vm"
)

var log = commonlog.GetLogger("lumen.cmd")

func main() {
	trace := flag.Bool("trace", false, "enable per-instruction trace logging (§6 enableTraceLog)")
	serve := flag.Bool("serve", false, "start the language server on stdio instead of running scripts")
	noCache := flag.Bool("no-cache", false, "skip the .lumc compiled-image cache")
	flag.Parse()

	if *serve {
		if err := lspserver.New().Run(); err != nil {
			fmt.Fprintln(os.Stderr, "lsp server:", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *trace {
		cfg.Trace.OnStart = true
	}

	paths := flag.Args()
	if len(paths) == 0 {
		runSuite(cfg, *noCache)
		return
	}

	for _, path := range paths {
		if err := runFile(cfg, path, *noCache); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			os.Exit(1)
		}
	}
}

// runSuite runs every tests/test###.lum fixture in sorted order and
// tallies pass/fail (§6). A fixture passes if it runs to completion
// without a runtime error — assertion failures (the `assert` native)
// surface as ordinary runtime errors.
func runSuite(cfg *config.Config, noCache bool) {
	matches, err := filepath.Glob(filepath.Join("tests", "test*.lum"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "glob tests/:", err)
		os.Exit(1)
	}
	sort.Strings(matches)

	pass, fail := 0, 0
	for _, path := range matches {
		if err := runFile(cfg, path, noCache); err != nil {
			fmt.Printf("FAIL %s: %v\n", path, err)
			fail++
			continue
		}
		fmt.Printf("PASS %s\n", path)
		pass++
	}
	fmt.Printf("%d passed, %d failed\n", pass, fail)
	if fail > 0 {
		os.Exit(1)
	}
}

// runFile compiles (or loads a cached image for) path and runs it
// against a fresh global scope.
func runFile(cfg *config.Config, path string, noCache bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	routine, err := loadRoutine(path, src, noCache)
	if err != nil {
		return err
	}

	v := vm.NewVM()
	if cfg.Trace.OnStart {
		v.Trace = vm.NewCommonLogTrace(log)
	}

	globals := vm.NewObject(vm.RootClass)
	if err := natives.Install(globals); err != nil {
		return err
	}
	natives.ModuleResolver = moduleResolver(cfg, v)

	fn := vm.NewUserFunction(filepath.Base(path), nil, routine)
	_, err = v.Run(fn, []vm.Value{globals})
	return err
}

// loadRoutine consults the .lumc cache (keyed by a hash of the source)
// before recompiling, the binary-image counterpart of §6's JSON dumps.
func loadRoutine(path string, src []byte, noCache bool) (*vm.Routine, error) {
	cachePath := path + "c"
	if !noCache {
		if cached, err := os.ReadFile(cachePath); err == nil {
			if routine, ok := decodeCached(cached, src); ok {
				return routine, nil
			}
		}
	}

	lex := compiler.NewLexer(string(src), path)
	p := compiler.NewParser(lex)
	prog, err := p.ParseProgram()
	if err != nil {
		return nil, err
	}
	if err := compiler.CheckProgram(prog); err != nil {
		return nil, err
	}
	routine, err := compiler.CompileProgram(prog)
	if err != nil {
		return nil, err
	}

	if !noCache {
		if data, err := encodeCached(routine, src); err == nil {
			_ = os.WriteFile(cachePath, data, 0o644)
		}
	}
	return routine, nil
}

// cache envelope: a source hash followed by the CBOR image, so a stale
// cache (source edited since last run) is detected and ignored rather
// than served incorrectly.
func encodeCached(r *vm.Routine, src []byte) ([]byte, error) {
	img, err := vm.EncodeImage(r)
	if err != nil {
		return nil, err
	}
	h := sourceHash(src)
	return append([]byte(h+"\n"), img...), nil
}

func decodeCached(cached, src []byte) (*vm.Routine, bool) {
	h := sourceHash(src)
	prefix := []byte(h + "\n")
	if len(cached) < len(prefix) || string(cached[:len(prefix)]) != string(prefix) {
		return nil, false
	}
	routine, err := vm.DecodeImage(cached[len(prefix):])
	if err != nil {
		return nil, false
	}
	return routine, true
}

func sourceHash(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}

// moduleResolver backs `import path` (§4.3 Export/Import): resolves a
// path relative to the config's module search paths, compiles it once,
// and runs it to produce its populated globals object.
func moduleResolver(cfg *config.Config, v *vm.VM) func(string) (vm.Value, error) {
	return func(path string) (vm.Value, error) {
		for _, dir := range cfg.SearchPathAbs() {
			full := filepath.Join(dir, path+".lum")
			src, err := os.ReadFile(full)
			if err != nil {
				continue
			}
			routine, err := loadRoutine(full, src, false)
			if err != nil {
				return nil, err
			}
			globals := vm.NewObject(vm.RootClass)
			if err := natives.Install(globals); err != nil {
				return nil, err
			}
			fn := vm.NewUserFunction(filepath.Base(full), nil, routine)
			if _, err := v.Run(fn, []vm.Value{globals}); err != nil {
				return nil, err
			}
			return globals, nil
		}
		return nil, fmt.Errorf("import %q: not found in module search paths", path)
	}
}
