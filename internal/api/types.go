package api

import "renewguide/internal/jsonx"

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatReply is the data payload some backend versions nest the reply in.
type ChatReply struct {
	Status   Text `json:"status,omitempty"`
	Message  Text `json:"message,omitempty"`
	Response Text `json:"response,omitempty"`
}

// SystemInfo describes the backend's retrieval setup.
type SystemInfo struct {
	EmbeddingModel  string `json:"embedding_model" yaml:"embedding_model"`
	EmbeddingType   string `json:"embedding_type,omitempty" yaml:"embedding_type,omitempty"`
	EmbeddingStatus string `json:"embedding_status,omitempty" yaml:"embedding_status,omitempty"`
	VectorstorePath string `json:"vectorstore_path" yaml:"vectorstore_path"`
	CollectionName  string `json:"collection_name" yaml:"collection_name"`
}

// UnmarshalJSON accepts embedding_model either as a plain name or as the
// {"type","name","status"} object the RAG pipeline reports.
func (s *SystemInfo) UnmarshalJSON(data []byte) error {
	var wire struct {
		EmbeddingModel  jsonx.RawMessage `json:"embedding_model"`
		VectorstorePath Text             `json:"vectorstore_path"`
		CollectionName  Text             `json:"collection_name"`
	}
	if err := jsonx.Unmarshal(data, &wire); err != nil {
		return err
	}
	info := SystemInfo{
		VectorstorePath: string(wire.VectorstorePath),
		CollectionName:  string(wire.CollectionName),
	}
	var model struct {
		Type   Text `json:"type"`
		Name   Text `json:"name"`
		Status Text `json:"status"`
	}
	if len(wire.EmbeddingModel) > 0 && wire.EmbeddingModel[0] == '{' && jsonx.Unmarshal(wire.EmbeddingModel, &model) == nil {
		info.EmbeddingModel = string(model.Name)
		info.EmbeddingType = string(model.Type)
		info.EmbeddingStatus = string(model.Status)
	} else if len(wire.EmbeddingModel) > 0 {
		var name Text
		if err := jsonx.Unmarshal(wire.EmbeddingModel, &name); err != nil {
			return err
		}
		info.EmbeddingModel = string(name)
	}
	*s = info
	return nil
}

// ModelLabel renders the embedding model with its provider when known.
func (s SystemInfo) ModelLabel() string {
	if s.EmbeddingType == "" {
		return s.EmbeddingModel
	}
	if s.EmbeddingModel == "" {
		return s.EmbeddingType
	}
	return s.EmbeddingModel + " (" + s.EmbeddingType + ")"
}

// SystemInfoPayload is the data payload of GET /api/system/info.
type SystemInfoPayload struct {
	SystemInfo *SystemInfo `json:"system_info"`
}

// RAGSearchResult is the body of GET /api/rag/search.
type RAGSearchResult struct {
	Status Status         `json:"status" yaml:"status"`
	Query  string         `json:"query" yaml:"query"`
	Result map[string]any `json:"result" yaml:"result"`
}
