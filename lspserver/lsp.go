// Package lspserver implements a minimal language server for Lumen over
// glsp, grounded on the teacher's server/lsp.go: document sync, hover, and
// diagnostics produced by running the real parse/check/codegen pipeline
// against the edited buffer.
package lspserver

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"

	"github.com/lumen-lang/lumen/compiler"
)

var log = commonlog.GetLogger("lumen.lspserver")

const lspName = "lumen-lsp"

// Server bridges LSP editor features to Lumen's compiler front end.
// It never touches a running vm.VM — diagnostics and hover are answered
// purely from parse/check/codegen results, since there is no live session
// state worth serializing across requests.
type Server struct {
	mu   sync.Mutex
	docs map[string]string // URI -> full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// New creates a language server ready to Run.
func New() *Server {
	s := &Server{
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentHover: s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)
	return s
}

// Run starts the server on stdio, blocking until the client disconnects.
func (s *Server) Run() error {
	return s.server.RunStdio()
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "Lumen LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	log.Debugf("Lumen LSP shutting down")
	return nil
}

// --- document synchronization ---

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			text := whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, text)
		}
	}
	return nil
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- diagnostics ---

// publishDiagnostics runs the real parse/check/codegen pipeline (§1) over
// text and reports the first error it hits, positioned with the
// offending token's line/column (§6 source-position mapping).
func (s *Server) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := []protocol.Diagnostic{}
	if _, err := compileForDiagnostics(text); err != nil {
		line, col, msg := positionOf(err)
		severity := protocol.DiagnosticSeverityError
		source := lspName
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: line, Character: col},
				End:   protocol.Position{Line: line, Character: col},
			},
			Severity: &severity,
			Source:   &source,
			Message:  msg,
		})
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func compileForDiagnostics(text string) (*compiler.Program, error) {
	lex := compiler.NewLexer(text, "<buffer>")
	p := compiler.NewParser(lex)
	prog, err := p.ParseProgram()
	if err != nil {
		return nil, err
	}
	if err := compiler.CheckProgram(prog); err != nil {
		return nil, err
	}
	if _, err := compiler.CompileProgram(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// positionOf extracts a 0-based LSP line/character from one of the
// compiler's position-carrying error types (Position.Line/Col are 1-based).
func positionOf(err error) (line, col uint32, msg string) {
	switch e := err.(type) {
	case *compiler.ParseError:
		line, col = zeroBased(e.Pos)
		return line, col, e.Message
	case *compiler.SemanticError:
		line, col = zeroBased(e.Pos)
		return line, col, e.Message
	case *compiler.CodegenError:
		line, col = zeroBased(e.Pos)
		return line, col, e.Message
	default:
		return 0, 0, err.Error()
	}
}

func zeroBased(pos compiler.Position) (uint32, uint32) {
	line := pos.Line - 1
	col := pos.Col - 1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return uint32(line), uint32(col)
}

// --- hover ---

// textDocumentHover reports the word under the cursor, labelled "class
// reference" when it starts with an upper-case letter and "identifier"
// otherwise. It does not compile the buffer or resolve the name to a
// parameter, local or free name; no symbol table is kept between requests.
func (s *Server) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	word := extractWord(text, pos)
	if word == "" {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", word)
	if unicode.IsUpper(rune(word[0])) {
		b.WriteString("\n\nclass reference")
	} else {
		b.WriteString("\n\nidentifier")
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}, nil
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}

	end := col
	for end < len(line) {
		ch := rune(line[end])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			end++
		} else {
			break
		}
	}

	if start == end {
		return ""
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
