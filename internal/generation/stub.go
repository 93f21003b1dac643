package generation

import (
	"context"
	"log/slog"
)

// StubGenerator returns a fixed URL without calling any provider. Used in
// tests and when running without provider credentials.
type StubGenerator struct {
	URL    string
	Err    error
	Calls  int
	logger *slog.Logger
}

func NewStubGenerator(url string, logger *slog.Logger) *StubGenerator {
	return &StubGenerator{URL: url, logger: logger}
}

func (g *StubGenerator) Generate(ctx context.Context, req Request) (string, error) {
	g.Calls++
	if g.logger != nil {
		g.logger.Info("generation stub invoked", "prompt_chars", len(req.Prompt))
	}
	if g.Err != nil {
		return "", g.Err
	}
	return g.URL, nil
}
