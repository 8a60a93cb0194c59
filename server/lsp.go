package server

import (
	"fmt"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/baranium/compiler"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("baranium.server")

const lspName = "barlsp"

// LspServer provides editor features for Baranium sources. Every open
// document is recompiled on change; the last analysis answers completion,
// hover, definition and reference requests.
type LspServer struct {
	worker *Worker

	mu       sync.Mutex
	docs     map[string]string    // URI → full document content
	analyses map[string]*Analysis // URI → last analysis

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP(version string) *LspServer {
	s := &LspServer{
		worker:   NewWorker(),
		docs:     make(map[string]string),
		analyses: make(map[string]*Analysis),
		version:  version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.update(ctx, params.TextDocument.URI, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	delete(s.analyses, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// update stores the new text, reanalyses it and publishes diagnostics.
func (s *LspServer) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	result, err := s.worker.Do(func() any {
		return Analyze(uriPath(string(uri)), text)
	})
	if err != nil {
		log.Errorf("analysing %s: %v", uri, err)
		return
	}
	a := result.(*Analysis)

	s.mu.Lock()
	s.analyses[string(uri)] = a
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(a, text),
	})
}

// document returns the text and last analysis of an open document.
func (s *LspServer) document(uri protocol.DocumentUri) (string, *Analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	if !ok {
		return "", nil, false
	}
	a := s.analyses[string(uri)]
	if a == nil {
		a = &Analysis{Path: uriPath(string(uri))}
	}
	return text, a, true
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, a, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return completionItems(a, prefix, int(params.Position.Line)+1), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, a, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	sym, ok := a.Lookup(word, int(params.Position.Line)+1)
	if !ok {
		return nil, nil
	}

	value := fmt.Sprintf("```baranium\n%s\n```\n\n%s", sym.Detail, sym.Kind)
	if sym.Scope != "" {
		value += fmt.Sprintf(" in `%s`", sym.Scope)
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}, nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	text, a, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	sym, ok := a.Lookup(word, int(params.Position.Line)+1)
	if !ok {
		return nil, nil
	}

	uri := params.TextDocument.URI
	if sym.File != a.Path {
		uri = protocol.DocumentUri("file://" + sym.File)
	}
	return []protocol.Location{{URI: uri, Range: lineRange(sym.Line, 0, 0)}}, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	text, _, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	var locations []protocol.Location
	for _, ref := range References(text, word) {
		locations = append(locations, protocol.Location{
			URI:   params.TextDocument.URI,
			Range: lineRange(ref[0], ref[1], ref[1]+len(word)),
		})
	}
	return locations, nil
}

// completionItems offers keywords and declarations visible at line.
func completionItems(a *Analysis, prefix string, line int) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	for _, kw := range compiler.Keywords() {
		if len(kw) > len(prefix) && kw[:len(prefix)] == prefix && isIdentWord(kw) {
			kind := protocol.CompletionItemKindKeyword
			label := kw
			items = append(items, protocol.CompletionItem{Label: label, Kind: &kind, InsertText: &label})
		}
	}

	for _, sym := range a.Complete(prefix, a.ScopeAt(line)) {
		kind := protocol.CompletionItemKindVariable
		switch sym.Kind {
		case SymbolFunction:
			kind = protocol.CompletionItemKindFunction
		case SymbolField:
			kind = protocol.CompletionItemKindField
		}
		label, detail := sym.Name, sym.Detail
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

// --- Diagnostics ---

// diagnostics converts the compiler diagnostics that belong to the
// document into whole-line LSP diagnostics. Problems inside included files
// are reported on line 1 with the file named in the message.
func diagnostics(a *Analysis, text string) []protocol.Diagnostic {
	lines := splitLines(text)
	out := []protocol.Diagnostic{}
	for _, d := range a.Diagnostics {
		line, msg := d.Line, d.Message
		if d.File != "" && d.File != a.Path {
			line, msg = 1, d.Error()
		}
		end := 0
		if line >= 1 && line <= len(lines) {
			end = len(lines[line-1])
		}
		severity := protocol.DiagnosticSeverityError
		source := lspName
		out = append(out, protocol.Diagnostic{
			Range:    lineRange(line, 0, end),
			Severity: &severity,
			Source:   &source,
			Message:  msg,
		})
	}
	return out
}

// lineRange builds a range on the 1-based line between two columns.
func lineRange(line, start, end int) protocol.Range {
	if line < 1 {
		line = 1
	}
	l := protocol.UInteger(line - 1)
	return protocol.Range{
		Start: protocol.Position{Line: l, Character: protocol.UInteger(start)},
		End:   protocol.Position{Line: l, Character: protocol.UInteger(end)},
	}
}

// --- Text extraction helpers ---

func splitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i])
			start = i + 1
		}
	}
	return append(lines, text[start:])
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := splitLines(text)
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isWordByte(line[start-1]) {
		start--
	}
	if start == col {
		return ""
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := splitLines(text)
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isWordByte(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isWordByte(line[end]) {
		end++
	}
	if start == end {
		return ""
	}
	return line[start:end]
}

func isIdentWord(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && r != '_' {
			return false
		}
	}
	return true
}

func boolPtr(b bool) *bool {
	return &b
}
