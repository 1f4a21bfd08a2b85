package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbot-dev/docbot/pkg/models"
)

func TestGoExtractor(t *testing.T) {
	src := `package server

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
)

// Server hosts the read-only API.
type Server struct {
	addr string
}

// Handler dispatches one request.
type Handler interface {
	Handle() error
}

type Option func(*Server)

// New builds a Server listening on addr.
func New(addr string) *Server {
	key := os.Getenv("API_KEY")
	if key == "" {
		panic("missing API_KEY")
	}
	return &Server{addr: addr}
}

// Run starts the listener.
func (s *Server) Run() error {
	return fmt.Errorf("not implemented")
}

func (s *Server) unexported() {}

func helper() {}
`
	abs, rel := writeSource(t, "server.go", src)
	got, err := (&goExtractor{}).Extract(abs, rel, "Go")
	require.NoError(t, err)

	names := symbolNames(got)
	assert.Contains(t, names, "Server")
	assert.Contains(t, names, "Handler")
	assert.Contains(t, names, "Option")
	assert.Contains(t, names, "New")
	assert.Contains(t, names, "Server.Run")
	assert.NotContains(t, names, "Server.unexported")
	assert.NotContains(t, names, "helper")

	srv := findSymbol(got, "Server")
	require.NotNil(t, srv)
	assert.Equal(t, models.KindStruct, srv.Kind)
	assert.Equal(t, "Server hosts the read-only API.", srv.DocFirstLine)

	handler := findSymbol(got, "Handler")
	require.NotNil(t, handler)
	assert.Equal(t, models.KindInterface, handler.Kind)

	opt := findSymbol(got, "Option")
	require.NotNil(t, opt)
	assert.Equal(t, models.KindType, opt.Kind)

	newFn := findSymbol(got, "New")
	require.NotNil(t, newFn)
	assert.Equal(t, models.KindFunction, newFn.Kind)
	assert.Equal(t, "func New(addr string) *Server", newFn.Signature)

	assert.ElementsMatch(t, []string{"fmt", "os", "github.com/gin-gonic/gin"}, got.Imports)

	require.Len(t, got.EnvVars, 1)
	assert.Equal(t, "API_KEY", got.EnvVars[0].Name)

	require.Len(t, got.RaisedErrors, 1)
	assert.Contains(t, got.RaisedErrors[0].Expression, "missing API_KEY")
}

func TestGoExtractorSingleImport(t *testing.T) {
	src := `package main

import "os"

func main() {
	_ = os.Args
}
`
	abs, rel := writeSource(t, "main.go", src)
	got, err := (&goExtractor{}).Extract(abs, rel, "Go")
	require.NoError(t, err)
	assert.Equal(t, []string{"os"}, got.Imports)
}
