package domain

// Embedding providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

// VectorConfig holds the embedding model defaults used when config leaves them empty.
type VectorConfig struct {
	Provider   string
	Model      string
	BaseURL    string
	Dimensions int
}

// DefaultVectorConfig returns defaults for nomic-embed-text served by a local Ollama.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Provider:   ProviderOllama,
		Model:      "nomic-embed-text",
		BaseURL:    "http://localhost:11434",
		Dimensions: 768,
	}
}

// KeyPrefix namespaces every key this service writes to the key-value store.
const KeyPrefix = "simcheck:"
