package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"

	"lightbox/internal/photo"
)

const analysisPrompt = `Describe this photograph for a photo library.
Reply with a single JSON object:
{"caption": string,
 "tags": [{"name": string, "confidence": number}],
 "categories": [{"name": string, "confidence": number}],
 "objects": [{"name": string, "confidence": number, "box": [ymin, xmin, ymax, xmax]}],
 "adult_score": number, "racy_score": number}
Confidences and scores are between 0 and 1. Boxes use a 0-1000 scale.`

const facePrompt = `Find every human face in this photograph.
Reply with a single JSON object:
{"faces": [{"box": [ymin, xmin, ymax, xmax], "confidence": number,
 "age": number, "gender": string, "emotion": string}]}
Boxes use a 0-1000 scale. Use an empty list when there are no faces.`

type labelPayload struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type objectPayload struct {
	Name       string    `json:"name"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box"`
}

type analysisPayload struct {
	Caption    string          `json:"caption"`
	Tags       []labelPayload  `json:"tags"`
	Categories []labelPayload  `json:"categories"`
	Objects    []objectPayload `json:"objects"`
	AdultScore float64         `json:"adult_score"`
	RacyScore  float64         `json:"racy_score"`
}

func (p analysisPayload) toAnalysis(minConfidence float64) *photo.Analysis {
	analysis := &photo.Analysis{
		Caption:    strings.TrimSpace(p.Caption),
		Tags:       filterLabels(p.Tags, minConfidence),
		Categories: filterLabels(p.Categories, minConfidence),
		AdultScore: clamp01(p.AdultScore),
		RacyScore:  clamp01(p.RacyScore),
	}
	for _, obj := range p.Objects {
		name := strings.TrimSpace(obj.Name)
		if name == "" || obj.Confidence < minConfidence {
			continue
		}
		analysis.Objects = append(analysis.Objects, photo.DetectedObject{
			Name:       name,
			Confidence: clamp01(obj.Confidence),
			Box:        scaleBox(obj.Box, 1000, 1000),
		})
	}
	return analysis
}

// filterLabels drops blanks and low-confidence labels, keeps the highest
// confidence per name, and orders by confidence.
func filterLabels(labels []labelPayload, minConfidence float64) []photo.Tag {
	best := make(map[string]float64, len(labels))
	for _, label := range labels {
		name := strings.TrimSpace(label.Name)
		if name == "" || label.Confidence < minConfidence {
			continue
		}
		key := strings.ToLower(name)
		if current, ok := best[key]; !ok || label.Confidence > current {
			best[key] = clamp01(label.Confidence)
		}
	}
	tags := make([]photo.Tag, 0, len(best))
	for name, confidence := range best {
		tags = append(tags, photo.Tag{Name: name, Confidence: confidence})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Confidence != tags[j].Confidence {
			return tags[i].Confidence > tags[j].Confidence
		}
		return tags[i].Name < tags[j].Name
	})
	return tags
}

type facePayload struct {
	Box        []float64 `json:"box"`
	Confidence float64   `json:"confidence"`
	Age        float64   `json:"age"`
	Gender     string    `json:"gender"`
	Emotion    string    `json:"emotion"`
}

type facesPayload struct {
	Faces []facePayload `json:"faces"`
}

func (p facesPayload) toFaces(width, height int, minConfidence float64) []photo.Face {
	faces := make([]photo.Face, 0, len(p.Faces))
	for _, f := range p.Faces {
		if f.Confidence < minConfidence {
			continue
		}
		box := scaleBox(f.Box, width, height)
		if box.Empty() {
			continue
		}
		faces = append(faces, photo.Face{
			Box:        box,
			Confidence: clamp01(f.Confidence),
			Age:        int(f.Age + 0.5),
			Gender:     strings.ToLower(strings.TrimSpace(f.Gender)),
			Emotion:    strings.ToLower(strings.TrimSpace(f.Emotion)),
		})
	}
	return faces
}

// scaleBox converts a [ymin, xmin, ymax, xmax] box on a 0-1000 grid to pixels.
func scaleBox(box []float64, width, height int) image.Rectangle {
	if len(box) != 4 || width <= 0 || height <= 0 {
		return image.Rectangle{}
	}
	scale := func(v float64, size int) int {
		if v < 0 {
			v = 0
		}
		if v > 1000 {
			v = 1000
		}
		return int(v*float64(size)/1000 + 0.5)
	}
	return image.Rect(
		scale(box[1], width), scale(box[0], height),
		scale(box[3], width), scale(box[2], height),
	).Canon()
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// decodeJSON tolerates code fences and prose around the JSON object.
func decodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	body := stripCodeFence(trimmed)
	if start := strings.Index(body, "{"); start >= 0 {
		if end := strings.LastIndex(body, "}"); end > start {
			body = body[start : end+1]
		}
	}
	if body == trimmed {
		return directErr
	}
	if err := json.Unmarshal([]byte(body), target); err != nil {
		return fmt.Errorf("%w (payload: %s)", err, snippet(body))
	}
	return nil
}

func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	body := strings.TrimLeft(content[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
