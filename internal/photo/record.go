package photo

import (
	"image"
	"slices"
	"time"

	"lightbox/internal/enrich"
)

// Tag is a label with the confidence the analyzer assigned to it.
type Tag struct {
	Name       string
	Confidence float64
}

// DetectedObject is an object found in the image with its bounding box in
// preview pixel coordinates.
type DetectedObject struct {
	Name       string
	Confidence float64
	Box        image.Rectangle
}

// Face is a detected face. Box is in original image coordinates.
type Face struct {
	ID         int64
	Box        image.Rectangle
	Confidence float64
	Age        int
	Gender     string
	Emotion    string
}

// Analysis is the raw result of the vision analyzer shared by the units that
// depend on it.
type Analysis struct {
	Caption    string
	Tags       []Tag
	Categories []Tag
	Objects    []DetectedObject
	AdultScore float64
	RacyScore  float64
	Model      string
}

// Source holds transient per-run data: the original file bytes, the decoded
// preview, and the analyzer output. It is never persisted.
type Source struct {
	Original     []byte
	Preview      []byte
	PreviewImage image.Image
	Analysis     *Analysis
}

// Record is one photo in the library and the shared result of an enrichment run.
type Record struct {
	ID     int64
	Path   string
	Name   string
	Status Status
	Flags  enrich.Kind

	Width          int
	Height         int
	Format         string
	SizeBytes      int64
	TakenAt        *time.Time
	CameraMake     string
	CameraModel    string
	Orientation    int
	SHA256         string
	PerceptualHash uint64
	DuplicateOf    int64
	DominantColor  string
	AccentColor    string
	IsBlackWhite   bool
	Caption        string
	IsAdult        bool
	IsRacy         bool
	AdultScore     float64
	RacyScore      float64
	Tags           []Tag
	Categories     []Tag
	Objects        []DetectedObject
	Faces          []Face
	ThumbnailKey   string
	PreviewKey     string
	ErrorMessage   string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	EnrichedAt *time.Time

	Source *Source
}

// Applied returns the flags of every unit whose result is recorded.
func (r *Record) Applied() enrich.Kind { return r.Flags }

// MarkApplied records that a unit's result has been merged.
func (r *Record) MarkApplied(k enrich.Kind) { r.Flags |= k }

// ClearFlags drops k from the applied flags.
func (r *Record) ClearFlags(k enrich.Kind) { r.Flags &^= k }

// Clone returns a deep copy of the persisted fields. Source is shared.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Tags = slices.Clone(r.Tags)
	c.Categories = slices.Clone(r.Categories)
	c.Objects = slices.Clone(r.Objects)
	c.Faces = slices.Clone(r.Faces)
	if r.TakenAt != nil {
		taken := *r.TakenAt
		c.TakenAt = &taken
	}
	if r.EnrichedAt != nil {
		enriched := *r.EnrichedAt
		c.EnrichedAt = &enriched
	}
	return &c
}

// TagNames returns the tag names in stored order.
func (r *Record) TagNames() []string {
	names := make([]string, 0, len(r.Tags))
	for _, tag := range r.Tags {
		names = append(names, tag.Name)
	}
	return names
}

var _ enrich.Subject = (*Record)(nil)
