// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/replichat/internal/model"
	"github.com/jeranaias/replichat/internal/session"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports the session snapshot as JSON. The credential is
// never part of the document.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonDocument struct {
	SessionID  string                  `json:"session_id"`
	ExportedAt time.Time               `json:"exported_at"`
	Model      *model.ModelProfile     `json:"model,omitempty"`
	Config     *model.GenerationConfig `json:"config,omitempty"`
	Turns      []model.Turn            `json:"turns"`
}

// Export converts a snapshot to indented JSON.
func (e *JSONExporter) Export(snap session.Snapshot) ([]byte, error) {
	if len(snap.Transcript) == 0 {
		return nil, ErrEmptyTranscript
	}
	doc := jsonDocument{
		SessionID:  snap.ID,
		ExportedAt: e.options.now(),
		Turns:      snap.Transcript,
	}
	if e.options.IncludeMetadata {
		doc.Model = &snap.Model
		doc.Config = &snap.Config
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}
