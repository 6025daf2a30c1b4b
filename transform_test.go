package everytriv

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCaseConversions(t *testing.T) {
	tests := []struct {
		in, camel, snake string
	}{
		{"user_id", "userId", "user_id"},
		{"total_games_played", "totalGamesPlayed", "total_games_played"},
		{"score", "score", "score"},
	}
	for _, tt := range tests {
		if got := snakeToCamel(tt.in); got != tt.camel {
			t.Errorf("snakeToCamel(%q) = %q, want %q", tt.in, got, tt.camel)
		}
		if got := camelToSnake(tt.camel); got != tt.snake {
			t.Errorf("camelToSnake(%q) = %q, want %q", tt.camel, got, tt.snake)
		}
	}
	if got := camelToSnake("HTTPServer"); got != "http_server" {
		t.Errorf("camelToSnake(HTTPServer) = %q", got)
	}
	if got := camelToSnake("userID"); got != "user_id" {
		t.Errorf("camelToSnake(userID) = %q", got)
	}
}

func TestCamelCaseKeys(t *testing.T) {
	out, err := CamelCaseKeys([]byte(`{"user_id":"u1","recent_games":[{"game_id":1,"final_score":9}],"tag_list":["a_b"]}`))
	if err != nil {
		t.Fatalf("CamelCaseKeys() returned error: %v", err)
	}
	want := `{"userId":"u1","recentGames":[{"gameId":1,"finalScore":9}],"tagList":["a_b"]}`
	if string(out) != want {
		t.Errorf("Expected %s, got %s", want, out)
	}
}

func TestSnakeCaseKeys(t *testing.T) {
	out, err := SnakeCaseKeys([]byte(`{"questionId":4,"selectedAnswer":{"answerIndex":2}}`))
	if err != nil {
		t.Fatalf("SnakeCaseKeys() returned error: %v", err)
	}
	want := `{"question_id":4,"selected_answer":{"answer_index":2}}`
	if string(out) != want {
		t.Errorf("Expected %s, got %s", want, out)
	}
}

func TestRewriteKeysEdgeCases(t *testing.T) {
	if out, err := CamelCaseKeys(nil); err != nil || len(out) != 0 {
		t.Errorf("Empty documents pass through, got %q, %v", out, err)
	}
	if _, err := CamelCaseKeys([]byte(`{"a":`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
	if out, _ := CamelCaseKeys([]byte(`"plain_string"`)); string(out) != `"plain_string"` {
		t.Errorf("Scalars are left alone, got %s", out)
	}
}

func TestClientTransformers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"question_id":4}` {
			t.Errorf("Expected snake_case request body, got %s", body)
		}
		w.Header().Set("Content-Type", contentTypeJSON)
		_, _ = w.Write([]byte(`{"success":true,"data":{"is_correct":true}}`))
	}))
	defer server.Close()

	client := New()
	client.AddRequestTransformer(SnakeCaseKeys)
	responseID := client.AddResponseTransformer(CamelCaseKeys)

	resp, err := client.Post(context.Background(), server.URL, map[string]int{"questionId": 4})
	if err != nil {
		t.Fatalf("Post() returned error: %v", err)
	}
	if string(resp.Data) != `{"isCorrect":true}` {
		t.Errorf("Expected camelCase response data, got %s", resp.Data)
	}

	if !client.RemoveResponseTransformer(responseID) {
		t.Error("Expected transformer to be removed")
	}
	if client.RemoveResponseTransformer(responseID) {
		t.Error("Transformer should only be removable once")
	}
	client.ClearRequestTransformers()
	client.ClearResponseTransformers()
	if client.requestTransformers.len() != 0 || client.responseTransformers.len() != 0 {
		t.Error("Expected transformers cleared")
	}
}

func TestResponseTransformerFailure(t *testing.T) {
	server, _ := jsonServer(t, http.StatusOK, `{"success":true,"data":1}`)

	client := New()
	client.AddResponseTransformer(func([]byte) ([]byte, error) { return nil, errors.New("nope") })

	_, err := client.Get(context.Background(), server.URL)
	apiErr, ok := AsAPIError(err)
	if !ok || apiErr.Kind != KindMalformed {
		t.Fatalf("Expected malformed error, got %v", err)
	}
}
