package openapi

import (
	"context"
	"testing"
)

func TestLoad(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load ошибка: %v", err)
	}

	item := doc.Paths.Find("/ask-jiji")
	if item == nil || item.Post == nil {
		t.Fatal("в контракте нет POST /ask-jiji")
	}
	if item.Post.RequestBody == nil || !item.Post.RequestBody.Value.Required {
		t.Error("тело POST /ask-jiji должно быть обязательным")
	}

	schema := doc.Components.Schemas["AskRequest"]
	if schema == nil || schema.Value.Properties["query"] == nil {
		t.Fatal("в AskRequest нет поля query")
	}
}
