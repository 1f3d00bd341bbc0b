package vision_test

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"lightbox/internal/services"
	"lightbox/internal/services/vision"
)

func newTestClient(t *testing.T, minConfidence float64, reply string, err error) *vision.Client {
	t.Helper()
	client, clientErr := vision.NewClient(context.Background(), vision.Config{MinConfidence: minConfidence},
		vision.WithGenerator(func(ctx context.Context, prompt string, img []byte, mimeType string) (string, error) {
			if mimeType != "image/jpeg" {
				t.Fatalf("unexpected mime type %q", mimeType)
			}
			return reply, err
		}))
	if clientErr != nil {
		t.Fatalf("NewClient: %v", clientErr)
	}
	return client
}

func TestAnalyzeFiltersAndOrdersLabels(t *testing.T) {
	reply := "```json\n" + `{
		"caption": " A dog on a beach ",
		"tags": [{"name": "dog", "confidence": 0.9}, {"name": "Dog", "confidence": 0.95},
		         {"name": "sand", "confidence": 0.7}, {"name": "cat", "confidence": 0.2}, {"name": " ", "confidence": 1}],
		"categories": [{"name": "animals", "confidence": 0.8}],
		"objects": [{"name": "dog", "confidence": 0.9, "box": [100, 200, 500, 600]}],
		"adult_score": 0.01, "racy_score": 1.4
	}` + "\n```"
	client := newTestClient(t, 0.5, reply, nil)

	analysis, err := client.Analyze(context.Background(), []byte("jpeg"), "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.Caption != "A dog on a beach" {
		t.Fatalf("unexpected caption %q", analysis.Caption)
	}
	if len(analysis.Tags) != 2 || analysis.Tags[0].Name != "dog" || analysis.Tags[0].Confidence != 0.95 || analysis.Tags[1].Name != "sand" {
		t.Fatalf("unexpected tags %+v", analysis.Tags)
	}
	if len(analysis.Categories) != 1 || analysis.Categories[0].Name != "animals" {
		t.Fatalf("unexpected categories %+v", analysis.Categories)
	}
	if len(analysis.Objects) != 1 || analysis.Objects[0].Box != image.Rect(200, 100, 600, 500) {
		t.Fatalf("unexpected objects %+v", analysis.Objects)
	}
	if analysis.RacyScore != 1 {
		t.Fatalf("expected racy score clamped to 1, got %v", analysis.RacyScore)
	}
	if analysis.Model != "gemini-2.5-flash" {
		t.Fatalf("unexpected model %q", analysis.Model)
	}
}

func TestDetectFacesScalesBoxes(t *testing.T) {
	reply := `{"faces": [
		{"box": [0, 0, 500, 250], "confidence": 0.9, "age": 31.6, "gender": "Female", "emotion": "Happy"},
		{"box": [10, 10, 20, 20], "confidence": 0.1},
		{"box": [1, 2], "confidence": 0.9}
	]}`
	client := newTestClient(t, 0.5, reply, nil)

	faces, err := client.DetectFaces(context.Background(), []byte("jpeg"), "image/jpeg", 800, 600)
	if err != nil {
		t.Fatalf("DetectFaces: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("expected 1 face, got %+v", faces)
	}
	face := faces[0]
	if face.Box != image.Rect(0, 0, 200, 300) {
		t.Fatalf("unexpected box %v", face.Box)
	}
	if face.Age != 32 || face.Gender != "female" || face.Emotion != "happy" {
		t.Fatalf("unexpected attributes %+v", face)
	}
}

func TestCallErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		err    error
		image  []byte
		marker error
	}{
		{name: "empty image", image: nil, marker: services.ErrValidation},
		{name: "request failure", image: []byte("x"), err: errors.New("boom"), marker: services.ErrExternalTool},
		{name: "timeout", image: []byte("x"), err: context.DeadlineExceeded, marker: services.ErrTimeout},
		{name: "empty reply", image: []byte("x"), reply: "  ", marker: services.ErrExternalTool},
		{name: "bad json", image: []byte("x"), reply: "no json here", marker: services.ErrExternalTool},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, 0, tc.reply, tc.err)
			_, err := client.Analyze(context.Background(), tc.image, "image/jpeg")
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

func TestCallHonorsTimeout(t *testing.T) {
	client, err := vision.NewClient(context.Background(), vision.Config{Timeout: 10 * time.Millisecond},
		vision.WithGenerator(func(ctx context.Context, _ string, _ []byte, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Analyze(context.Background(), []byte("x"), "image/jpeg")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "10ms") {
		t.Fatalf("expected timeout duration in message, got %v", err)
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := vision.NewClient(context.Background(), vision.Config{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
