// Package models defines the shared data types that flow between the
// pipeline stages and into the .docbot/ persistence layer. Everything here
// serializes to JSON with snake_case keys; that shape is a stable external
// contract.
package models

// Citation points at a location in the repository. File is repo-relative
// with POSIX separators; line numbers are 1-based and LineStart <= LineEnd.
type Citation struct {
	File      string `json:"file"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	Symbol    string `json:"symbol,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
}

// Symbol kinds recognised by the extractors.
const (
	KindFunction  = "function"
	KindClass     = "class"
	KindInterface = "interface"
	KindStruct    = "struct"
	KindEnum      = "enum"
	KindTrait     = "trait"
	KindMethod    = "method"
	KindType      = "type"
)

// PublicSymbol is one exported symbol found by an extractor. Name never
// begins with "_" unless the symbol is re-exported.
type PublicSymbol struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	Signature    string   `json:"signature"`
	DocFirstLine string   `json:"doc_first_line,omitempty"`
	Citation     Citation `json:"citation"`
}

// EnvVar is an environment variable referenced by the code. Name matches
// [A-Z_][A-Z0-9_]*.
type EnvVar struct {
	Name     string   `json:"name"`
	Default  string   `json:"default,omitempty"`
	Citation Citation `json:"citation"`
}

// RaisedError is an error-raising expression (raise/panic/throw) with its
// location.
type RaisedError struct {
	Expression string   `json:"expression"`
	Citation   Citation `json:"citation"`
}

// FileExtraction is the structured output of one extractor run over one file.
type FileExtraction struct {
	Symbols      []PublicSymbol `json:"symbols"`
	Imports      []string       `json:"imports"`
	EnvVars      []EnvVar       `json:"env_vars"`
	RaisedErrors []RaisedError  `json:"raised_errors"`
	Citations    []Citation     `json:"citations"`
}

// SourceFile is one scanned file with its detected language.
type SourceFile struct {
	Path     string `json:"path"`
	Language string `json:"language"`
}
