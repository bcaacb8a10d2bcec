package models

// CuratedModel is an entry in the list of suggested Ollama models.
type CuratedModel struct {
	Name string
	Note string
}

// curated is ordered; the first entry is the default model.
var curated = []CuratedModel{
	{Name: "llama3:8b", Note: "Meta's 8B model (default)"},
	{Name: "gemma3:270M", Note: "Google Gemma 270M"},
	{Name: "gpt-oss:20b", Note: "OpenAI open-weight model for reasoning and agentic tasks"},
	{Name: "deepseek-coder:6.7b", Note: "Top-tier coding model"},
	{Name: "mistral:7b", Note: "Mistral's popular 7B model"},
	{Name: "gemma2:9b", Note: "Google's 9B model"},
	{Name: "phi3:3.8b", Note: "Microsoft's small, capable model"},
	{Name: "qwen2:7b", Note: "Alibaba's Qwen2 model"},
	{Name: "codellama:7b", Note: "Code-specialized model"},
	{Name: "starcoder2:3b", Note: "Code model from HuggingFace/ServiceNow"},
	{Name: "sqlcoder:7b", Note: "Specialized for SQL generation"},
	{Name: "tinydolphin:1.1b", Note: "Very small, fast model for quick tests"},
}

// CuratedModels returns a copy of the curated model table.
func CuratedModels() []CuratedModel {
	out := make([]CuratedModel, len(curated))
	copy(out, curated)
	return out
}

// ModelNames returns the curated model identifiers in order.
func ModelNames() []string {
	names := make([]string, len(curated))
	for i, m := range curated {
		names[i] = m.Name
	}
	return names
}

func DefaultModel() string {
	return curated[0].Name
}
