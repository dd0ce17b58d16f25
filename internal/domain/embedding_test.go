package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestUnavailableEmbedder_Embed(t *testing.T) {
	e := UnavailableEmbedder{Reason: "no api key"}

	res, err := e.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "no api key") {
		t.Errorf("expected reason in error, got %q", err.Error())
	}
	if res.Embedding != nil {
		t.Errorf("expected nil embedding, got %v", res.Embedding)
	}
}

func TestUnavailableEmbedder_EmptyReason(t *testing.T) {
	err := UnavailableEmbedder{}.HealthCheck(context.Background())
	if err != ErrEmbeddingUnavailable { //nolint:errorlint // bare sentinel expected
		t.Errorf("expected bare sentinel, got %v", err)
	}
}
