// Package vision wraps the Gemini API for the analysis and face units.
//
// The client sends one preview image per request and asks for a JSON reply,
// which it decodes into photo.Analysis and photo.Face values. Responses are
// filtered by the configured minimum confidence before they reach the
// enrichment units, so units never see low-confidence labels.
package vision
